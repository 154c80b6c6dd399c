// File: internal/scan/runner.go

// Package scan drives one analysis invocation end to end: it expands the
// requested targets into concrete files, fans the per-file work out to a
// bounded worker pool, and folds the outcomes into a single ScanResult.
package scan

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/analysis/static/php"
	"github.com/xkilldash9x/lancet-cli/internal/ast"
	"github.com/xkilldash9x/lancet-cli/internal/catalog"
	"github.com/xkilldash9x/lancet-cli/internal/config"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
	"github.com/xkilldash9x/lancet-cli/internal/parser"
)

// StdinTarget is the pseudo-path that reads a single slice from standard
// input instead of the filesystem.
const StdinTarget = "-"

// Runner executes scans. It is safe for a single Run at a time; the parser
// and the engine it holds are stateless across files, so the files of one
// run are analyzed concurrently.
type Runner struct {
	log         *zap.Logger
	parser      *parser.Parser
	analyzer    *php.Analyzer
	patterns    []*catalog.Pattern
	concurrency int
	forceAST    bool

	// stdin feeds the "-" pseudo-target. Tests substitute a reader.
	stdin io.Reader
}

// RunnerOption adjusts runner behavior at construction time.
type RunnerOption func(*Runner)

// WithForceAST makes every target decode as a pre-built JSON slice tree,
// regardless of extension. Directory walks then collect .json entries only.
func WithForceAST(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.forceAST = enabled
	}
}

// NewRunner wires the parser and the analysis engine from the given
// configuration and pattern catalog. The catalog is validated up front so a
// malformed pattern fails the scan before any file is touched.
func NewRunner(cfg config.AnalysisConfig, patterns []*catalog.Pattern, logger *zap.Logger, opts ...RunnerOption) (*Runner, error) {
	if logger == nil {
		logger = observability.GetLogger()
	}

	if len(patterns) == 0 {
		return nil, fmt.Errorf("pattern catalog is empty")
	}
	for _, p := range patterns {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid pattern catalog: %w", err)
		}
	}

	strategy, err := php.ParseBlockStrategy(cfg.BlockStrategy)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	r := &Runner{
		log:    logger.Named("scan"),
		parser: parser.New(logger),
		analyzer: php.NewAnalyzer(logger,
			php.WithBlockStrategy(strategy),
			php.WithGuardLiteralHeuristic(cfg.GuardLiteralHeuristic),
		),
		patterns:    patterns,
		concurrency: concurrency,
		stdin:       os.Stdin,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run analyzes every target and returns the aggregated result, with file
// entries ordered by target path. Directory targets are walked for .php
// source and .json slice trees. Per-file failures are recorded on the file
// entry and do not abort the scan; only context cancellation does. On
// cancellation the partial result is returned alongside the error.
func (r *Runner) Run(ctx context.Context, scanID string, targets []string) (*schemas.ScanResult, error) {
	result := &schemas.ScanResult{
		ScanID:    scanID,
		StartedAt: time.Now().UTC(),
	}

	files, failed := r.expandTargets(targets)
	result.Files = append(result.Files, failed...)

	r.log.Info("Starting scan",
		zap.String("scan_id", scanID),
		zap.Int("targets", len(files)),
		zap.Int("unresolved", len(failed)),
		zap.Int("concurrency", r.concurrency),
	)

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	// Buffered to the full task count so workers never block on send and
	// the results can be drained after Wait without a collector goroutine.
	resultsChan := make(chan schemas.FileResult, len(files))

	for _, target := range files {
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			resultsChan <- r.analyzeTarget(groupCtx, scanID, target)
			return nil
		})
	}

	runErr := g.Wait()
	close(resultsChan)

	for fileResult := range resultsChan {
		result.Files = append(result.Files, fileResult)
	}
	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Target < result.Files[j].Target
	})
	result.CompletedAt = time.Now().UTC()

	if runErr != nil {
		return result, fmt.Errorf("scan aborted: %w", runErr)
	}

	r.log.Info("Scan complete",
		zap.String("scan_id", scanID),
		zap.Int("files", len(result.Files)),
		zap.Int("findings", result.FindingCount()),
		zap.Duration("elapsed", result.CompletedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

// expandTargets resolves the requested targets into the concrete file list,
// deduplicating paths named more than once. Targets that cannot be resolved
// become failed file entries so the report still accounts for every request.
func (r *Runner) expandTargets(targets []string) ([]string, []schemas.FileResult) {
	var files []string
	var failed []schemas.FileResult
	seen := make(map[string]struct{})

	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, target := range targets {
		if target == StdinTarget {
			add(StdinTarget)
			continue
		}

		info, err := os.Stat(target)
		if err != nil {
			failed = append(failed, schemas.FileResult{
				Target: target,
				Error:  fmt.Sprintf("failed to stat target: %v", err),
			})
			continue
		}

		if !info.IsDir() {
			// Explicitly named files are scanned regardless of extension.
			add(target)
			continue
		}

		walkErr := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".json":
				add(path)
			case ".php":
				if !r.forceAST {
					add(path)
				}
			}
			return nil
		})
		if walkErr != nil {
			failed = append(failed, schemas.FileResult{
				Target: target,
				Error:  fmt.Sprintf("failed to walk directory: %v", walkErr),
			})
		}
	}
	return files, failed
}

// analyzeTarget loads, parses and analyzes a single target, mapping the
// engine's verdict onto the file's result entry. Failures land in the
// entry's Error field rather than the return path, so one broken file
// cannot sink the scan.
func (r *Runner) analyzeTarget(ctx context.Context, scanID, target string) schemas.FileResult {
	fileResult := schemas.FileResult{Target: target}

	root, err := r.loadTarget(ctx, target)
	if err != nil {
		r.log.Warn("Skipping target", zap.String("target", target), zap.Error(err))
		fileResult.Error = err.Error()
		return fileResult
	}

	res, err := r.analyzer.Analyze(ctx, root, r.patterns)
	if err != nil {
		r.log.Warn("Analysis failed", zap.String("target", target), zap.Error(err))
		fileResult.Error = err.Error()
		return fileResult
	}

	if d := res.Diagnostics; d.SkippedStatements > 0 || d.MalformedNodes > 0 {
		r.log.Debug("Analysis degraded on unmodeled input",
			zap.String("target", target),
			zap.Int("skipped_statements", d.SkippedStatements),
			zap.Int("malformed_nodes", d.MalformedNodes),
		)
	}

	fileResult.Vulnerable = res.Vulnerable
	fileResult.ViolatedPatterns = res.ViolatedPatterns
	fileResult.SanitizersApplied = res.SanitizersApplied
	for _, flow := range res.Findings {
		fileResult.Findings = append(fileResult.Findings, r.newFinding(scanID, target, flow))
	}
	return fileResult
}

// loadTarget produces the slice tree for a target: stdin and .php sources
// go through the parser, .json targets (or everything, under forced AST
// mode) are decoded as pre-parsed trees.
func (r *Runner) loadTarget(ctx context.Context, target string) (*ast.Node, error) {
	var source []byte
	var err error
	name := target

	if target == StdinTarget {
		name = "stdin"
		source, err = io.ReadAll(r.stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
	} else {
		source, err = os.ReadFile(target)
		if err != nil {
			return nil, fmt.Errorf("failed to read target: %w", err)
		}
	}

	if r.forceAST || (target != StdinTarget && strings.EqualFold(filepath.Ext(target), ".json")) {
		root, err := ast.DecodeBytes(source)
		if err != nil {
			return nil, fmt.Errorf("failed to decode slice tree: %w", err)
		}
		return root, nil
	}
	return r.parser.Parse(ctx, name, source)
}

// newFinding converts one engine flow into the report's finding schema,
// attaching the severity metadata registered for the violated pattern.
func (r *Runner) newFinding(scanID, target string, flow php.Finding) schemas.Finding {
	meta := metadataFor(flow.Pattern)

	description := fmt.Sprintf("Data from a request entry point reaches %q without passing through a sanitizer.", flow.Callee)
	if flow.Variable != "" {
		description = fmt.Sprintf("Tainted variable $%s reaches %q without passing through a sanitizer.", flow.Variable, flow.Callee)
	}

	return schemas.Finding{
		ID:                uuid.NewString(),
		ScanID:            scanID,
		ObservedAt:        time.Now().UTC(),
		Target:            target,
		Module:            r.analyzer.Name(),
		VulnerabilityName: flow.Pattern,
		Severity:          meta.Severity,
		Description:       description,
		Sink:              flow.Callee,
		Variable:          flow.Variable,
		Line:              flow.Line,
		Recommendation:    meta.Recommendation,
		CWE:               meta.CWE,
	}
}

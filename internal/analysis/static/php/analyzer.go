// Filename: php/analyzer.go
// Package php implements a flow-sensitive static taint analysis engine for
// PHP code slices. Tainted data enters through catalog entry points
// (superglobal reads), propagates through assignments, concatenation,
// interpolation and passthrough calls, is cut by sanitizer calls, and raises
// the verdict when it reaches a sink.
package php

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/internal/analysis/core"
	"github.com/xkilldash9x/lancet-cli/internal/ast"
	"github.com/xkilldash9x/lancet-cli/internal/catalog"
)

const (
	analyzerName        = "php_taint"
	analyzerDescription = "Flow-sensitive taint analysis of PHP slices against a pattern catalog"
)

type options struct {
	blockStrategy         BlockStrategy
	guardLiteralHeuristic bool
}

// Option adjusts engine behavior at construction time.
type Option func(*options)

// WithBlockStrategy selects how many statements of a branch or loop block
// are modeled. The default is BlockFirstMatch.
func WithBlockStrategy(strategy BlockStrategy) Option {
	return func(o *options) {
		o.blockStrategy = strategy
	}
}

// WithGuardLiteralHeuristic toggles the narrow rule that treats a string
// literal equal to an enclosing conditional's guard literal as tainted.
// Enabled by default.
func WithGuardLiteralHeuristic(enabled bool) Option {
	return func(o *options) {
		o.guardLiteralHeuristic = enabled
	}
}

func defaultOptions() options {
	return options{
		blockStrategy:         BlockFirstMatch,
		guardLiteralHeuristic: true,
	}
}

// Analyzer runs taint analysis over slice trees. It holds no per-run state,
// so one Analyzer may serve concurrent Analyze calls.
type Analyzer struct {
	*core.BaseAnalyzer
	opts options
}

// NewAnalyzer creates the engine with the given options applied.
func NewAnalyzer(logger *zap.Logger, opts ...Option) *Analyzer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Analyzer{
		BaseAnalyzer: core.NewBaseAnalyzer(analyzerName, analyzerDescription, core.TypeStatic, logger),
		opts:         o,
	}
}

// Analyze walks the slice's top-level statements in order and returns the
// run's verdict. The tree and the catalog are borrowed read-only; all
// mutable state is scoped to this call. The context is checked between
// top-level statements.
func (a *Analyzer) Analyze(ctx context.Context, root *ast.Node, patterns []*catalog.Pattern) (*Result, error) {
	if root == nil {
		return nil, fmt.Errorf("nil slice root")
	}

	w := newTaintWalker(a.Logger, a.opts, patterns)

	for _, stmt := range root.Children {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis aborted: %w", err)
		}
		w.dispatch(stmt)
	}

	if !w.result.Vulnerable {
		a.Logger.Debug("Slice is safe",
			zap.Int("statements", len(root.Children)),
			zap.Int("sanitizers_applied", len(w.result.SanitizersApplied)),
		)
	}
	return w.result, nil
}

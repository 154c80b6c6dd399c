// Filename: php/walker.go
// Statement-level dispatch for the taint engine. One taintWalker holds the
// entire mutable state of a single run, so concurrent Analyze calls never
// share anything but the read-only catalog and tree.
package php

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/internal/ast"
	"github.com/xkilldash9x/lancet-cli/internal/catalog"
)

// taintWalker carries the per-run analysis state.
type taintWalker struct {
	logger *zap.Logger
	opts   options

	// env is the live taint environment.
	env taintEnv

	// active is the run-scoped pattern set. It starts as the full catalog
	// and is narrowed by every entry-point read; the narrowing persists for
	// the remainder of this run only.
	active []*catalog.Pattern

	// guardLiteral remembers the string literal of the enclosing
	// conditional's equality test while its branches are evaluated. Nil
	// outside such branches.
	guardLiteral *string

	result *Result
}

func newTaintWalker(logger *zap.Logger, opts options, patterns []*catalog.Pattern) *taintWalker {
	return &taintWalker{
		logger: logger,
		opts:   opts,
		env:    make(taintEnv),
		active: append([]*catalog.Pattern(nil), patterns...),
		result: &Result{},
	}
}

// dispatch executes one statement node, mutating the environment and the
// verdict. Unrecognized kinds are non-tainting no-ops.
func (w *taintWalker) dispatch(node *ast.Node) {
	if node == nil {
		w.result.Diagnostics.MalformedNodes++
		return
	}

	switch node.Kind {
	case ast.KindAssign:
		w.handleAssign(node)
	case ast.KindEcho:
		w.handleEcho(node)
	case ast.KindIf:
		w.handleConditional(node)
	case ast.KindWhile:
		w.handleLoop(node)
	case ast.KindBlock:
		for _, child := range node.Children {
			w.dispatch(child)
		}
	default:
		w.result.Diagnostics.SkippedStatements++
		w.logger.Debug("Skipping unrecognized statement kind", zap.String("kind", node.Kind))
	}
}

// handleAssign evaluates the right-hand side and binds the target variable
// to its taint. The target must be a named variable; anything else degrades
// to a no-op.
func (w *taintWalker) handleAssign(node *ast.Node) {
	if node.Left == nil || node.Left.Kind != ast.KindVariable || node.Left.Name == "" {
		w.result.Diagnostics.MalformedNodes++
		return
	}
	if node.Right == nil {
		w.result.Diagnostics.MalformedNodes++
		return
	}
	w.env.bind(node.Left.Name, w.evaluateTaint(node.Right))
}

// handleEcho checks each echoed argument. Only a DIRECT entry-point read
// (offsetlookup) triggers echo sinks; a tainted variable passed to echo does
// not. The asymmetry with call sinks is part of the engine's contract.
func (w *taintWalker) handleEcho(node *ast.Node) {
	for _, arg := range node.Arguments {
		if arg == nil || arg.Kind != ast.KindOffsetLookup {
			continue
		}
		if !w.evaluateEntryPointRead(arg) {
			continue
		}
		for _, pattern := range w.active {
			if pattern.IsSink(echoSinkName) {
				w.reportViolation(pattern, echoSinkName, "", arg)
			}
		}
	}
}

// reportViolation raises the verdict and records the violated pattern. The
// verdict only ever moves from safe to vulnerable.
func (w *taintWalker) reportViolation(pattern *catalog.Pattern, callee, variable string, node *ast.Node) {
	w.result.Vulnerable = true
	w.result.ViolatedPatterns = append(w.result.ViolatedPatterns, pattern.Name)
	w.result.Findings = append(w.result.Findings, Finding{
		Pattern:  pattern.Name,
		Callee:   callee,
		Variable: variable,
		Line:     node.Line(),
	})

	w.logger.Warn("Taint flow reached sink",
		zap.String("pattern", pattern.Name),
		zap.String("sink", callee),
		zap.String("variable", variable),
		zap.Int("line", node.Line()),
	)
}

// Filename: php/eval.go
// Expression-level taint evaluation. evaluateTaint is pure with respect to
// control flow but carries the engine's side effects: entry-point reads
// narrow the active pattern set, calls may sanitize variables or fire sinks.
package php

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/internal/ast"
	"github.com/xkilldash9x/lancet-cli/internal/catalog"
)

// evaluateTaint computes the taint flag of an expression node.
func (w *taintWalker) evaluateTaint(node *ast.Node) bool {
	if node == nil {
		w.result.Diagnostics.MalformedNodes++
		return false
	}

	switch node.Kind {
	case ast.KindVariable:
		return w.env.lookup(node.Name)

	case ast.KindString:
		// Literals are not attacker controlled, with one narrow exception:
		// inside a conditional guarded by an equality test against a string
		// literal, a literal equal to the guard is treated as derived from
		// it. See handleConditional.
		if w.guardLiteral != nil && node.Value == *w.guardLiteral {
			return true
		}
		return false

	case ast.KindEncapsed:
		for _, part := range node.Parts {
			if part != nil && part.Kind == ast.KindVariable && w.env.lookup(part.Name) {
				return true
			}
		}
		return false

	case ast.KindBin:
		// Concatenation joins the taint of both sides. Other binary
		// operators are not modeled and evaluate untainted.
		if node.Type == "." {
			left := w.evaluateTaint(node.Left)
			right := w.evaluateTaint(node.Right)
			return left || right
		}
		return false

	case ast.KindOffsetLookup:
		return w.evaluateEntryPointRead(node)

	case ast.KindCall:
		return w.evaluateCall(node)

	default:
		w.result.Diagnostics.DefaultedExpressions++
		w.logger.Debug("Defaulting unrecognized expression kind to untainted", zap.String("kind", node.Kind))
		return false
	}
}

// evaluateEntryPointRead resolves an offset lookup ($_GET['x']) against the
// active patterns. The read's name gains the catalog sigil, the active set
// narrows to the patterns listing it, and the read is tainted iff at least
// one pattern matched.
func (w *taintWalker) evaluateEntryPointRead(node *ast.Node) bool {
	name, ok := node.CalleeName()
	if !ok {
		w.result.Diagnostics.MalformedNodes++
		return false
	}
	entryName := entryPointSigil + name

	matched := make([]*catalog.Pattern, 0, len(w.active))
	for _, pattern := range w.active {
		if pattern.IsEntryPoint(entryName) {
			matched = append(matched, pattern)
		}
	}
	w.active = matched

	if len(matched) == 0 {
		return false
	}
	w.logger.Debug("Entry-point read narrowed active patterns",
		zap.String("entry_point", entryName),
		zap.Int("active_patterns", len(matched)),
	)
	return true
}

// evaluateCall handles function calls. The passthrough callees forward
// their first argument's taint; every other call is tested against each
// active pattern's sanitizer and sink sets independently. A call's own
// value is never tainted.
func (w *taintWalker) evaluateCall(node *ast.Node) bool {
	callee, ok := node.CalleeName()
	if !ok {
		w.result.Diagnostics.MalformedNodes++
		return false
	}

	if isPassthroughCallee(callee) {
		if len(node.Arguments) == 0 {
			w.result.Diagnostics.MalformedNodes++
			return false
		}
		return w.evaluateTaint(node.Arguments[0])
	}

	for _, pattern := range w.active {
		// Sanitization runs before the sink check so a callee listed as
		// both never fires its own sink.
		w.applySanitizer(node, callee, pattern)
		w.checkSink(node, callee, pattern)
	}
	return false
}

// applySanitizer forces every direct-variable argument untainted when the
// callee is one of the pattern's sanitizers, and records the sanitizer.
func (w *taintWalker) applySanitizer(node *ast.Node, callee string, pattern *catalog.Pattern) {
	if !pattern.IsSanitizer(callee) {
		return
	}
	for _, arg := range node.Arguments {
		if arg != nil && arg.Kind == ast.KindVariable && arg.Name != "" {
			w.env.bind(arg.Name, false)
		}
	}
	w.result.SanitizersApplied = append(w.result.SanitizersApplied, callee)
	w.logger.Debug("Sanitizer applied",
		zap.String("sanitizer", callee),
		zap.String("pattern", pattern.Name),
	)
}

// checkSink raises the verdict for every direct-variable argument that is
// currently tainted when the callee is one of the pattern's sinks.
func (w *taintWalker) checkSink(node *ast.Node, callee string, pattern *catalog.Pattern) {
	if !pattern.IsSink(callee) {
		return
	}
	for _, arg := range node.Arguments {
		if arg != nil && arg.Kind == ast.KindVariable && w.env.lookup(arg.Name) {
			w.reportViolation(pattern, callee, arg.Name, node)
		}
	}
}

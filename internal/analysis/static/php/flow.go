// Filename: php/flow.go
// Control-flow handlers: join-over-branches for conditionals and monotone
// fixed-point iteration for loops.
package php

import (
	"github.com/xkilldash9x/lancet-cli/internal/ast"
)

// handleConditional models an if/else as a sound over-approximation: both
// branches run against copies of the same pre-branch environment and the
// results merge by per-variable OR.
func (w *taintWalker) handleConditional(node *ast.Node) {
	if w.opts.guardLiteralHeuristic {
		previous := w.guardLiteral
		if literal, ok := guardLiteral(node.Test); ok {
			w.guardLiteral = &literal
		}
		defer func() { w.guardLiteral = previous }()
	}

	before := w.env.snapshot()

	w.env = before.snapshot()
	w.runBranch(node.Body)
	thenEnv := w.env

	w.env = before.snapshot()
	if alt := node.Alternate; alt != nil {
		// An else-if chain recurses through the same handler; a plain else
		// block runs like a branch body.
		if alt.Kind == ast.KindIf {
			w.handleConditional(alt)
		} else {
			w.runBranch(alt)
		}
	}
	elseEnv := w.env

	w.env = mergeEnvs(thenEnv, elseEnv)
}

// guardLiteral extracts the string literal of an equality test ("==" or
// "==="), whichever side it sits on. The remembered literal feeds the
// narrow string-taint heuristic in evaluateTaint.
func guardLiteral(test *ast.Node) (string, bool) {
	if test == nil || test.Kind != ast.KindBin {
		return "", false
	}
	if test.Type != "==" && test.Type != "===" {
		return "", false
	}
	if test.Right != nil && test.Right.Kind == ast.KindString {
		return test.Right.Value, true
	}
	if test.Left != nil && test.Left.Kind == ast.KindString {
		return test.Left.Value, true
	}
	return "", false
}

// runBranch executes a branch body. Under BlockFirstMatch only the first
// assign or nested if statement in the block is modeled; under BlockAll
// every statement dispatches. A nil body (absent else) is a no-op.
func (w *taintWalker) runBranch(body *ast.Node) {
	if body == nil {
		return
	}
	stmts := blockStatements(body)

	if w.opts.blockStrategy == BlockAll {
		for _, stmt := range stmts {
			w.dispatch(stmt)
		}
		return
	}

	for _, stmt := range stmts {
		if stmt == nil {
			continue
		}
		switch stmt.Kind {
		case ast.KindAssign:
			w.handleAssign(stmt)
			return
		case ast.KindIf:
			w.handleConditional(stmt)
			return
		}
	}
}

// handleLoop iterates the while body against the live environment until the
// taint state stops growing. Each surviving iteration must both change the
// environment and strictly increase the tainted-variable count, which bounds
// the iteration count by |variables|+1.
func (w *taintWalker) handleLoop(node *ast.Node) {
	if node.Body == nil {
		w.result.Diagnostics.MalformedNodes++
		return
	}
	stmts := blockStatements(node.Body)

	for {
		before := w.env.snapshot()
		beforeTainted := before.taintedCount()

		for _, stmt := range stmts {
			if stmt == nil {
				continue
			}
			if w.opts.blockStrategy == BlockAll {
				w.dispatch(stmt)
				continue
			}
			// Only assignments and nested conditionals are modeled inside
			// loop bodies; other kinds are ignored.
			switch stmt.Kind {
			case ast.KindAssign:
				w.handleAssign(stmt)
			case ast.KindIf:
				w.handleConditional(stmt)
			}
		}

		if w.env.equal(before) {
			return
		}
		if w.env.taintedCount() <= beforeTainted {
			return
		}
	}
}

// blockStatements unwraps a block node to its statement list. A bare
// statement standing in for a block is treated as a one-statement list.
func blockStatements(body *ast.Node) []*ast.Node {
	if body.Kind == ast.KindBlock || body.Kind == ast.KindProgram {
		return body.Children
	}
	return []*ast.Node{body}
}

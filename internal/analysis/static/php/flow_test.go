package php

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet-cli/internal/ast"
)

// -- Conditionals --

func TestConditionalMergeKeepsTaintedBranch(t *testing.T) {
	t.Parallel()

	// if ($c) { $x = $u; } else { $x = "safe"; }
	result := runAnalysis(t, program(
		assign("u", offsetLookup("_GET", "id")),
		ifStmt(variable("c"),
			block(assign("x", variable("u"))),
			block(assign("x", stringLit("safe"))),
		),
		assign("r", call("mysql_query", variable("x"))),
	), testPatterns())

	assert.True(t, result.Vulnerable)
	assert.Equal(t, []string{"SQL Injection"}, result.ViolatedPatterns)
}

func TestConditionalJoinIsSound(t *testing.T) {
	t.Parallel()

	t.Run("branch taints over clean pre-state", func(t *testing.T) {
		t.Parallel()
		result := runAnalysis(t, program(
			assign("u", offsetLookup("_GET", "id")),
			assign("x", stringLit("ok")),
			ifStmt(variable("c"), block(assign("x", variable("u"))), nil),
			assign("r", call("mysql_query", variable("x"))),
		), testPatterns())
		assert.True(t, result.Vulnerable)
	})

	t.Run("branch cannot clean tainted pre-state", func(t *testing.T) {
		t.Parallel()
		result := runAnalysis(t, program(
			assign("x", offsetLookup("_GET", "id")),
			ifStmt(variable("c"), block(assign("x", stringLit("ok"))), nil),
			assign("r", call("mysql_query", variable("x"))),
		), testPatterns())
		assert.True(t, result.Vulnerable)
	})
}

func TestConditionalBranchesStartFromTheSameSnapshot(t *testing.T) {
	t.Parallel()

	// The then branch's binding of $x must not be visible to the else
	// branch, which reads $x before any assignment reaches it.
	result := runAnalysis(t, program(
		assign("u", offsetLookup("_GET", "id")),
		ifStmt(variable("c"),
			block(assign("x", variable("u"))),
			block(assign("y", variable("x"))),
		),
		assign("r", call("mysql_query", variable("y"))),
	), testPatterns())

	assert.False(t, result.Vulnerable)
}

func TestConditionalElseIfChain(t *testing.T) {
	t.Parallel()

	// if ($a) { $x = "ok"; } elseif ($b) { $x = $u; } else { $x = "ok"; }
	result := runAnalysis(t, program(
		assign("u", offsetLookup("_GET", "id")),
		ifStmt(variable("a"),
			block(assign("x", stringLit("ok"))),
			ifStmt(variable("b"),
				block(assign("x", variable("u"))),
				block(assign("x", stringLit("ok"))),
			),
		),
		assign("r", call("mysql_query", variable("x"))),
	), testPatterns())

	assert.True(t, result.Vulnerable)
}

// -- Guard literal heuristic --

func TestGuardLiteralTaintsMatchingBranchLiteral(t *testing.T) {
	t.Parallel()

	// if ($role == "admin") { $x = "admin"; } else { $x = "guest"; }
	result := runAnalysis(t, program(
		ifStmt(eq(variable("role"), stringLit("admin")),
			block(assign("x", stringLit("admin"))),
			block(assign("x", stringLit("guest"))),
		),
		assign("r", call("mysql_query", variable("x"))),
	), testPatterns())

	assert.True(t, result.Vulnerable)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "x", result.Findings[0].Variable)
}

func TestGuardLiteralHeuristicDisabled(t *testing.T) {
	t.Parallel()

	result := runAnalysis(t, program(
		ifStmt(eq(variable("role"), stringLit("admin")),
			block(assign("x", stringLit("admin"))),
			nil,
		),
		assign("r", call("mysql_query", variable("x"))),
	), testPatterns(), WithGuardLiteralHeuristic(false))

	assert.False(t, result.Vulnerable)
}

func TestGuardLiteralAcceptsEitherSide(t *testing.T) {
	t.Parallel()

	// "admin" == $role also arms the heuristic.
	result := runAnalysis(t, program(
		ifStmt(eq(stringLit("admin"), variable("role")),
			block(assign("x", stringLit("admin"))),
			nil,
		),
		assign("r", call("mysql_query", variable("x"))),
	), testPatterns())

	assert.True(t, result.Vulnerable)
}

func TestGuardLiteralRequiresEqualityOperator(t *testing.T) {
	t.Parallel()

	result := runAnalysis(t, program(
		ifStmt(binOp("!=", variable("role"), stringLit("admin")),
			block(assign("x", stringLit("admin"))),
			nil,
		),
		assign("r", call("mysql_query", variable("x"))),
	), testPatterns())

	assert.False(t, result.Vulnerable)
}

func TestGuardLiteralClearedAfterConditional(t *testing.T) {
	t.Parallel()

	// The same literal outside the conditional is plain data again.
	result := runAnalysis(t, program(
		ifStmt(eq(variable("role"), stringLit("admin")),
			block(assign("x", stringLit("admin"))),
			nil,
		),
		assign("y", stringLit("admin")),
		assign("r", call("mysql_query", variable("y"))),
	), testPatterns())

	assert.False(t, result.Vulnerable)
}

func TestGuardLiteralSurvivesNestedConditionalWithoutOwnGuard(t *testing.T) {
	t.Parallel()

	// The inner if has no equality test of its own, so the outer guard
	// literal still applies inside it.
	result := runAnalysis(t, program(
		ifStmt(eq(variable("role"), stringLit("admin")),
			block(ifStmt(variable("deep"),
				block(assign("x", stringLit("admin"))),
				nil,
			)),
			nil,
		),
		assign("r", call("mysql_query", variable("x"))),
	), testPatterns())

	assert.True(t, result.Vulnerable)
}

func TestGuardLiteralNestedConditionalReplacesGuard(t *testing.T) {
	t.Parallel()

	// Inside the inner branches only the inner literal counts; the outer
	// literal is restored once the inner conditional finishes.
	result := runAnalysis(t, program(
		ifStmt(eq(variable("a"), stringLit("outer")),
			block(ifStmt(eq(variable("b"), stringLit("inner")),
				block(
					assign("v", stringLit("inner")),
					assign("w", stringLit("outer")),
				),
				nil,
			)),
			nil,
		),
		assign("r1", call("mysql_query", variable("v"))),
		assign("r2", call("mysql_query", variable("w"))),
	), testPatterns(), WithBlockStrategy(BlockAll))

	assert.True(t, result.Vulnerable)
	assert.Equal(t, []string{"SQL Injection"}, result.ViolatedPatterns)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "v", result.Findings[0].Variable)
}

// -- Block strategies --

func TestBranchFirstMatchModelsOnlyFirstAssignment(t *testing.T) {
	t.Parallel()

	build := func() []*ast.Node {
		return []*ast.Node{
			assign("u", offsetLookup("_GET", "id")),
			ifStmt(variable("c"),
				block(
					assign("x", variable("u")),
					assign("y", variable("u")),
				),
				nil,
			),
		}
	}

	t.Run("first assignment is modeled", func(t *testing.T) {
		t.Parallel()
		stmts := append(build(), assign("r", call("mysql_query", variable("x"))))
		result := runAnalysis(t, program(stmts...), testPatterns())
		assert.True(t, result.Vulnerable)
	})

	t.Run("later statements are not", func(t *testing.T) {
		t.Parallel()
		stmts := append(build(), assign("r", call("mysql_query", variable("y"))))
		result := runAnalysis(t, program(stmts...), testPatterns())
		assert.False(t, result.Vulnerable)
	})

	t.Run("block strategy all models every statement", func(t *testing.T) {
		t.Parallel()
		stmts := append(build(), assign("r", call("mysql_query", variable("y"))))
		result := runAnalysis(t, program(stmts...), testPatterns(), WithBlockStrategy(BlockAll))
		assert.True(t, result.Vulnerable)
	})
}

func TestBranchFirstMatchSkipsLeadingNonMatchingStatements(t *testing.T) {
	t.Parallel()

	result := runAnalysis(t, program(
		assign("u", offsetLookup("_GET", "id")),
		ifStmt(variable("c"),
			block(
				echoStmt(stringLit("checking")),
				assign("x", variable("u")),
			),
			nil,
		),
		assign("r", call("mysql_query", variable("x"))),
	), testPatterns())

	assert.True(t, result.Vulnerable)
}

// -- Loops --

func TestLoopPropagatesTaintTransitively(t *testing.T) {
	t.Parallel()

	// The copy chain is ordered against the data flow, so each pass moves
	// the taint one link. The fixed point lands within |variables|+1 passes.
	result := runAnalysis(t, program(
		assign("a", offsetLookup("_GET", "x")),
		whileStmt(variable("c"), block(
			assign("d", variable("b")),
			assign("b", variable("a")),
		)),
		assign("r", call("mysql_query", variable("d"))),
	), testPatterns())

	assert.True(t, result.Vulnerable)
	assert.Equal(t, []string{"SQL Injection"}, result.ViolatedPatterns)
}

func TestLoopStopsWhenTaintStopsGrowing(t *testing.T) {
	t.Parallel()

	// The body overwrites the tainted variable with a literal. The
	// environment changes on the first pass but the tainted count shrinks,
	// so iteration must stop rather than chase an oscillation.
	result := runAnalysis(t, program(
		assign("u", offsetLookup("_GET", "a")),
		whileStmt(variable("c"), block(
			assign("u", stringLit("fixed")),
			assign("v", variable("u")),
		)),
		assign("r", call("mysql_query", variable("v"))),
	), testPatterns())

	assert.False(t, result.Vulnerable)
}

func TestLoopWithStableBodyRunsOnce(t *testing.T) {
	t.Parallel()

	result := runAnalysis(t, program(
		assign("u", offsetLookup("_GET", "a")),
		whileStmt(variable("c"), block(
			assign("v", variable("u")),
		)),
		assign("r", call("mysql_query", variable("v"))),
	), testPatterns())

	assert.True(t, result.Vulnerable)
	// One propagation pass plus one stabilization pass; the sink outside
	// the loop fires exactly once.
	assert.Equal(t, []string{"SQL Injection"}, result.ViolatedPatterns)
}

func TestLoopBodyConditionalJoins(t *testing.T) {
	t.Parallel()

	result := runAnalysis(t, program(
		assign("u", offsetLookup("_GET", "a")),
		whileStmt(variable("c"), block(
			ifStmt(variable("d"), block(assign("x", variable("u"))), nil),
		)),
		assign("r", call("mysql_query", variable("x"))),
	), testPatterns())

	assert.True(t, result.Vulnerable)
}

func TestLoopIgnoresOtherStatementKindsByDefault(t *testing.T) {
	t.Parallel()

	result := runAnalysis(t, program(
		whileStmt(variable("c"), block(
			echoStmt(offsetLookup("_GET", "x")),
		)),
	), testPatterns())

	assert.False(t, result.Vulnerable)
}

func TestLoopBlockStrategyAllDispatchesEveryKind(t *testing.T) {
	t.Parallel()

	result := runAnalysis(t, program(
		whileStmt(variable("c"), block(
			echoStmt(offsetLookup("_GET", "x")),
		)),
	), testPatterns(), WithBlockStrategy(BlockAll))

	assert.True(t, result.Vulnerable)
	assert.Equal(t, []string{"Cross Site Scripting"}, result.ViolatedPatterns)
}

func TestLoopWithoutBodyIsCountedMalformed(t *testing.T) {
	t.Parallel()

	result := runAnalysis(t, program(
		whileStmt(variable("c"), nil),
	), testPatterns())

	assert.False(t, result.Vulnerable)
	assert.Equal(t, 1, result.Diagnostics.MalformedNodes)
}

func TestLoopBareStatementBody(t *testing.T) {
	t.Parallel()

	// A single statement standing in for a block behaves like a
	// one-statement block.
	result := runAnalysis(t, program(
		assign("u", offsetLookup("_GET", "a")),
		whileStmt(variable("c"), assign("v", variable("u"))),
		assign("r", call("mysql_query", variable("v"))),
	), testPatterns())

	assert.True(t, result.Vulnerable)
}

// Filename: php/definitions.go
// Shared vocabulary for the PHP taint engine: passthrough callees, the echo
// sink name, and the branch block strategies.
package php

import (
	"fmt"
)

// echoSinkName is the sink identifier catalogs use for direct output
// statements (`echo $_GET[...]`), as opposed to function-call sinks.
const echoSinkName = "echo"

// entryPointSigil is prepended to offset-lookup names before catalog
// matching. The AST wire format drops the PHP sigil ("_GET"); the catalog
// keeps it ("$_GET").
const entryPointSigil = "$"

// passthroughCallees forward the taint of their first argument unchanged.
// They are extraction helpers: they neither sanitize nor act as sinks.
var passthroughCallees = map[string]struct{}{
	"substr": {},
}

// isPassthroughCallee reports whether the named function is a taint
// passthrough.
func isPassthroughCallee(name string) bool {
	_, ok := passthroughCallees[name]
	return ok
}

// BlockStrategy selects how many statements of a branch or loop block the
// engine models.
type BlockStrategy string

const (
	// BlockFirstMatch models a branch block as its first assign or nested
	// if statement only. This is the classic single-effective-statement
	// approximation.
	BlockFirstMatch BlockStrategy = "first-match"

	// BlockAll dispatches every statement in branch and loop blocks.
	BlockAll BlockStrategy = "all"
)

// ParseBlockStrategy maps a configuration string onto a BlockStrategy.
func ParseBlockStrategy(s string) (BlockStrategy, error) {
	switch BlockStrategy(s) {
	case BlockFirstMatch, BlockAll:
		return BlockStrategy(s), nil
	case "":
		return BlockFirstMatch, nil
	default:
		return "", fmt.Errorf("unknown block strategy %q (want %q or %q)", s, BlockFirstMatch, BlockAll)
	}
}

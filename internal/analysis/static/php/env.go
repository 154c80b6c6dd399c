package php

import (
	"maps"
)

// taintEnv maps variable names (sigil stripped) to their taint flag. Reading
// an absent variable is the permissive default: untainted, never an error.
type taintEnv map[string]bool

// lookup returns the variable's current taint, defaulting to untainted.
func (e taintEnv) lookup(name string) bool {
	return e[name]
}

// bind records the variable's taint, establishing its presence so later
// branch merges see it even when the value is untainted.
func (e taintEnv) bind(name string, tainted bool) {
	e[name] = tainted
}

// snapshot returns an independent copy of the environment.
func (e taintEnv) snapshot() taintEnv {
	return maps.Clone(e)
}

// equal reports whether two environments bind the same variables to the
// same taint flags.
func (e taintEnv) equal(other taintEnv) bool {
	return maps.Equal(e, other)
}

// taintedCount returns the number of variables currently tainted.
func (e taintEnv) taintedCount() int {
	count := 0
	for _, tainted := range e {
		if tainted {
			count++
		}
	}
	return count
}

// mergeEnvs joins two branch environments: the union of their variables,
// each taint OR-ed across branches with absence reading as untainted. This
// over-approximates "either branch may have executed".
func mergeEnvs(a, b taintEnv) taintEnv {
	merged := make(taintEnv, len(a))
	for name, tainted := range a {
		merged[name] = tainted || b[name]
	}
	for name, tainted := range b {
		if _, ok := merged[name]; !ok {
			merged[name] = tainted
		}
	}
	return merged
}

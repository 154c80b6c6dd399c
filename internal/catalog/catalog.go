// Package catalog holds the vulnerability pattern catalog: named triples of
// entry points, sanitizers and sinks that drive the taint analysis. Patterns
// are immutable after construction; the engine narrows its own per-run view
// and never writes back into a catalog.
package catalog

import (
	"fmt"
)

// Pattern describes one vulnerability class. EntryPoints use the catalog
// convention of keeping the PHP sigil ("$_GET"), while the AST wire format
// drops it; the engine bridges the two.
type Pattern struct {
	Name        string   `json:"name"`
	EntryPoints []string `json:"entryPoints"`
	Sanitizers  []string `json:"sanitizers"`
	Sinks       []string `json:"sinks"`

	entryPoints map[string]struct{}
	sanitizers  map[string]struct{}
	sinks       map[string]struct{}
}

// New builds a Pattern and precomputes its membership sets.
func New(name string, entryPoints, sanitizers, sinks []string) *Pattern {
	p := &Pattern{
		Name:        name,
		EntryPoints: entryPoints,
		Sanitizers:  sanitizers,
		Sinks:       sinks,
	}
	p.index()
	return p
}

func (p *Pattern) index() {
	p.entryPoints = toSet(p.EntryPoints)
	p.sanitizers = toSet(p.Sanitizers)
	p.sinks = toSet(p.Sinks)
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// IsEntryPoint reports whether name (sigil included) is one of the pattern's
// entry points.
func (p *Pattern) IsEntryPoint(name string) bool {
	_, ok := p.entryPoints[name]
	return ok
}

// IsSanitizer reports whether the callee name is one of the pattern's
// sanitizing functions.
func (p *Pattern) IsSanitizer(name string) bool {
	_, ok := p.sanitizers[name]
	return ok
}

// IsSink reports whether the callee name is one of the pattern's sinks.
func (p *Pattern) IsSink(name string) bool {
	_, ok := p.sinks[name]
	return ok
}

// Validate checks that the pattern can actually fire during an analysis.
func (p *Pattern) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pattern has no name")
	}
	if len(p.entryPoints) == 0 {
		return fmt.Errorf("pattern %q has no entry points", p.Name)
	}
	if len(p.sinks) == 0 {
		return fmt.Errorf("pattern %q has no sinks", p.Name)
	}
	return nil
}

// Default returns the built-in catalog covering the two classic web
// vulnerability classes in superglobal form.
func Default() []*Pattern {
	return []*Pattern{
		New("SQL Injection",
			[]string{"$_GET", "$_POST", "$_COOKIE", "$_REQUEST"},
			[]string{"mysql_real_escape_string", "mysqli_real_escape_string", "addslashes"},
			[]string{"mysql_query", "mysqli_query", "pg_query"},
		),
		New("Cross Site Scripting",
			[]string{"$_GET", "$_POST", "$_COOKIE", "$_REQUEST"},
			[]string{"htmlspecialchars", "htmlentities", "strip_tags"},
			[]string{"echo", "print", "printf"},
		),
	}
}

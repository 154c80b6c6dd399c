// Package ast defines the slice AST consumed by the static analysis engine.
// Trees are either decoded from the JSON wire format (decode.go) or built by
// the PHP frontend in internal/parser. Nodes are read-only once built; the
// engine borrows the tree for the duration of one run and never mutates it.
package ast

// Node kinds recognized by the engine. Anything else is carried through
// verbatim and treated as a non-tainting no-op downstream.
const (
	KindProgram      = "program"
	KindAssign       = "assign"
	KindEcho         = "echo"
	KindIf           = "if"
	KindWhile        = "while"
	KindBin          = "bin"
	KindCall         = "call"
	KindOffsetLookup = "offsetlookup"
	KindVariable     = "variable"
	KindString       = "string"
	KindEncapsed     = "encapsed"
	KindBlock        = "block"
	KindName         = "name"
)

// Location is a 1-based source position, attached when the frontend knows it.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Node is a polymorphic tree node tagged by Kind. Only the fields relevant
// to a given kind are populated; absent fields are nil/empty and callers are
// expected to tolerate that (missing alternate branch, missing bindings).
type Node struct {
	Kind string `json:"kind"`

	// Name carries identifier payloads: variable names (sigil stripped,
	// "u" for $u), callee names on "name" nodes.
	Name string `json:"name,omitempty"`

	// Type is the operator symbol on "bin" nodes ("." for concatenation).
	Type string `json:"type,omitempty"`

	// Value is the literal payload of "string" nodes. On "encapsed" nodes
	// the wire field of the same name holds the interpolated parts instead;
	// those land in Parts (see UnmarshalJSON in decode.go).
	Value string `json:"-"`

	// Parts holds the interpolated sub-nodes of an "encapsed" string.
	Parts []*Node `json:"-"`

	What      *Node   `json:"what,omitempty"`
	Offset    *Node   `json:"offset,omitempty"`
	Left      *Node   `json:"left,omitempty"`
	Right     *Node   `json:"right,omitempty"`
	Test      *Node   `json:"test,omitempty"`
	Body      *Node   `json:"body,omitempty"`
	Alternate *Node   `json:"alternate,omitempty"`
	Arguments []*Node `json:"arguments,omitempty"`
	Children  []*Node `json:"children,omitempty"`

	Loc *Location `json:"loc,omitempty"`
}

// CalleeName resolves the target name of a "call" or "offsetlookup" node via
// its What child. The second return reports whether a name was present.
func (n *Node) CalleeName() (string, bool) {
	if n == nil || n.What == nil || n.What.Name == "" {
		return "", false
	}
	return n.What.Name, true
}

// Line returns the node's source line, or 0 when no location is attached.
func (n *Node) Line() int {
	if n == nil || n.Loc == nil {
		return 0
	}
	return n.Loc.Line
}

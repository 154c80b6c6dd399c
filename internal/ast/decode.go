package ast

import (
	"bytes"
	"fmt"
	"io"

	json "github.com/json-iterator/go"
)

// nodeWire mirrors Node for decoding. The value field is deferred because
// the wire format overloads it: a JSON string on "string" nodes, an array of
// nodes on "encapsed" nodes.
type nodeWire struct {
	Kind      string          `json:"kind"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Value     json.RawMessage `json:"value"`
	What      *Node           `json:"what"`
	Offset    *Node           `json:"offset"`
	Left      *Node           `json:"left"`
	Right     *Node           `json:"right"`
	Test      *Node           `json:"test"`
	Body      *Node           `json:"body"`
	Alternate *Node           `json:"alternate"`
	Arguments []*Node         `json:"arguments"`
	Children  []*Node         `json:"children"`
	Loc       *Location       `json:"loc"`
}

// UnmarshalJSON decodes one node, resolving the overloaded value field.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w nodeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	n.Kind = w.Kind
	n.Name = w.Name
	n.Type = w.Type
	n.What = w.What
	n.Offset = w.Offset
	n.Left = w.Left
	n.Right = w.Right
	n.Test = w.Test
	n.Body = w.Body
	n.Alternate = w.Alternate
	n.Arguments = w.Arguments
	n.Children = w.Children
	n.Loc = w.Loc

	raw := bytes.TrimSpace(w.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	switch raw[0] {
	case '"':
		return json.Unmarshal(raw, &n.Value)
	case '[':
		return json.Unmarshal(raw, &n.Parts)
	default:
		// Numeric and boolean literals are not modeled; keep the node but
		// drop the payload so evaluation falls through to the safe default.
		return nil
	}
}

// Decode reads a JSON-encoded slice AST and returns its root node.
func Decode(r io.Reader) (*Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read slice: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes parses a JSON-encoded slice AST from memory.
func DecodeBytes(data []byte) (*Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty slice input")
	}
	root := &Node{}
	if err := json.Unmarshal(data, root); err != nil {
		return nil, fmt.Errorf("failed to decode slice AST: %w", err)
	}
	return root, nil
}

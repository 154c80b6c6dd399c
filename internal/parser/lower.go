// Filename: parser/lower.go
// Lowering from the Tree-sitter PHP concrete syntax tree to the engine's
// slice vocabulary. Anything outside that vocabulary keeps its grammar type
// name so the engine can count it as an unrecognized node instead of
// guessing at its semantics.
package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/lancet-cli/internal/ast"
)

// lowerer carries the source bytes every content extraction needs.
type lowerer struct {
	source []byte
}

// lowerProgram maps the root node onto a program slice. PHP framing nodes
// (open tags, inline HTML, comments) are not statements and are dropped.
func (l *lowerer) lowerProgram(root *sitter.Node) *ast.Node {
	program := &ast.Node{Kind: ast.KindProgram, Loc: location(root)}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "php_tag", "text", "text_interpolation", "comment":
			continue
		}
		program.Children = append(program.Children, l.lowerStatement(child))
	}
	return program
}

// lowerStatement maps one statement node. Statement kinds the engine does
// not model are passed through with their grammar type so they surface in
// the run's diagnostics.
func (l *lowerer) lowerStatement(node *sitter.Node) *ast.Node {
	if node == nil {
		return nil
	}

	switch node.Type() {
	case "expression_statement":
		inner := node.NamedChild(0)
		if inner == nil {
			return &ast.Node{Kind: node.Type(), Loc: location(node)}
		}
		return l.lowerStatement(inner)

	case "assignment_expression":
		return l.lowerAssignment(node)

	case "echo_statement":
		return l.lowerEcho(node)

	case "if_statement":
		return l.lowerIf(node)

	case "while_statement":
		return l.lowerWhile(node)

	case "compound_statement":
		blk := &ast.Node{Kind: ast.KindBlock, Loc: location(node)}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "comment" {
				continue
			}
			blk.Children = append(blk.Children, l.lowerStatement(child))
		}
		return blk

	default:
		// Expressions standing as statements (a bare call, an increment)
		// lower as expressions; everything else keeps its grammar type.
		if lowered := l.lowerExpression(node); lowered != nil {
			return lowered
		}
		return &ast.Node{Kind: node.Type(), Loc: location(node)}
	}
}

func (l *lowerer) lowerAssignment(node *sitter.Node) *ast.Node {
	left := childByFieldOrIndex(node, "left", 0)
	right := childByFieldOrIndex(node, "right", 1)
	return &ast.Node{
		Kind:  ast.KindAssign,
		Left:  l.lowerExpression(left),
		Right: l.lowerExpression(right),
		Loc:   location(node),
	}
}

// lowerEcho collects the echoed expressions. `echo $a, $b;` parses the list
// as one sequence expression, which flattens to individual arguments.
func (l *lowerer) lowerEcho(node *sitter.Node) *ast.Node {
	echo := &ast.Node{Kind: ast.KindEcho, Loc: location(node)}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "sequence_expression" {
			for j := 0; j < int(child.NamedChildCount()); j++ {
				echo.Arguments = append(echo.Arguments, l.lowerExpression(child.NamedChild(j)))
			}
			continue
		}
		echo.Arguments = append(echo.Arguments, l.lowerExpression(child))
	}
	return echo
}

// lowerIf maps an if statement with its elseif/else chain. The clauses
// arrive as trailing children; they rebuild here as a right-nested chain of
// if nodes.
func (l *lowerer) lowerIf(node *sitter.Node) *ast.Node {
	out := &ast.Node{
		Kind: ast.KindIf,
		Test: l.lowerCondition(node),
		Body: l.lowerStatement(guardedBody(node)),
		Loc:  location(node),
	}

	current := out
	for i := 0; i < int(node.NamedChildCount()); i++ {
		clause := node.NamedChild(i)
		switch clause.Type() {
		case "else_if_clause":
			next := &ast.Node{
				Kind: ast.KindIf,
				Test: l.lowerCondition(clause),
				Body: l.lowerStatement(guardedBody(clause)),
				Loc:  location(clause),
			}
			current.Alternate = next
			current = next
		case "else_clause":
			current.Alternate = l.lowerStatement(childByFieldOrIndex(clause, "body", 0))
		}
	}
	return out
}

func (l *lowerer) lowerWhile(node *sitter.Node) *ast.Node {
	return &ast.Node{
		Kind: ast.KindWhile,
		Test: l.lowerCondition(node),
		Body: l.lowerStatement(guardedBody(node)),
		Loc:  location(node),
	}
}

// lowerCondition unwraps the parenthesized condition of an if, elseif or
// while. Grammar versions disagree on whether `condition` is a field, so the
// fallback scans for the parenthesized child.
func (l *lowerer) lowerCondition(node *sitter.Node) *ast.Node {
	cond := node.ChildByFieldName("condition")
	if cond == nil {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if child := node.NamedChild(i); child.Type() == "parenthesized_expression" {
				cond = child
				break
			}
		}
	}
	if cond == nil {
		return nil
	}
	return l.lowerExpression(cond)
}

// guardedBody finds the body statement of an if, elseif or while: the
// `body` field when the grammar defines one, otherwise the first named
// child that is neither the condition nor a trailing clause.
func guardedBody(node *sitter.Node) *sitter.Node {
	if body := node.ChildByFieldName("body"); body != nil {
		return body
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "parenthesized_expression", "else_if_clause", "else_clause", "comment":
			continue
		}
		return child
	}
	return nil
}

// lowerExpression maps one expression node, or returns nil when the node is
// no expression at all.
func (l *lowerer) lowerExpression(node *sitter.Node) *ast.Node {
	if node == nil {
		return nil
	}

	switch node.Type() {
	case "parenthesized_expression":
		return l.lowerExpression(node.NamedChild(0))

	case "variable_name":
		return &ast.Node{
			Kind: ast.KindVariable,
			Name: strings.TrimPrefix(l.content(node), "$"),
			Loc:  location(node),
		}

	case "subscript_expression":
		return &ast.Node{
			Kind:   ast.KindOffsetLookup,
			What:   l.lowerExpression(node.NamedChild(0)),
			Offset: l.lowerExpression(node.NamedChild(1)),
			Loc:    location(node),
		}

	case "function_call_expression":
		return l.lowerCall(node)

	case "binary_expression":
		operator := node.ChildByFieldName("operator")
		opText := ""
		if operator != nil {
			opText = l.content(operator)
		}
		return &ast.Node{
			Kind:  ast.KindBin,
			Type:  opText,
			Left:  l.lowerExpression(childByFieldOrIndex(node, "left", 0)),
			Right: l.lowerExpression(childByFieldOrIndex(node, "right", 1)),
			Loc:   location(node),
		}

	case "string":
		return &ast.Node{
			Kind:  ast.KindString,
			Value: unquote(l.content(node)),
			Loc:   location(node),
		}

	case "encapsed_string":
		return l.lowerEncapsed(node)

	case "assignment_expression":
		// Assignment in expression position still lowers as an assignment
		// so chained forms keep their effect.
		return l.lowerAssignment(node)

	case "name":
		return &ast.Node{Kind: ast.KindName, Name: l.content(node), Loc: location(node)}

	default:
		if isStatementType(node.Type()) {
			return nil
		}
		return &ast.Node{Kind: node.Type(), Loc: location(node)}
	}
}

// lowerCall maps a function call. The callee lowers to a bare name node;
// dynamic callees ($fn(...)) keep their expression shape and stay
// unresolvable by name, which the engine treats as malformed.
func (l *lowerer) lowerCall(node *sitter.Node) *ast.Node {
	out := &ast.Node{Kind: ast.KindCall, Loc: location(node)}

	callee := childByFieldOrIndex(node, "function", 0)
	if callee != nil && callee.Type() == "name" {
		out.What = &ast.Node{Kind: ast.KindName, Name: l.content(callee), Loc: location(callee)}
	} else if callee != nil {
		out.What = l.lowerExpression(callee)
	}

	args := node.ChildByFieldName("arguments")
	if args == nil {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if child := node.NamedChild(i); child.Type() == "arguments" {
				args = child
				break
			}
		}
	}
	if args == nil {
		return out
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		// The grammar wraps each expression in an argument node.
		if arg.Type() == "argument" && arg.NamedChildCount() > 0 {
			arg = arg.NamedChild(0)
		}
		out.Arguments = append(out.Arguments, l.lowerExpression(arg))
	}
	return out
}

// lowerEncapsed maps a double-quoted string. The grammar parses every
// double-quoted string this way; one without interpolated variables is just
// a literal and folds down to a plain string node.
func (l *lowerer) lowerEncapsed(node *sitter.Node) *ast.Node {
	out := &ast.Node{Kind: ast.KindEncapsed, Loc: location(node)}
	interpolated := false
	for i := 0; i < int(node.NamedChildCount()); i++ {
		part := node.NamedChild(i)
		switch part.Type() {
		case "variable_name":
			interpolated = true
			out.Parts = append(out.Parts, l.lowerExpression(part))
		default:
			out.Parts = append(out.Parts, &ast.Node{
				Kind:  ast.KindString,
				Value: l.content(part),
				Loc:   location(part),
			})
		}
	}

	if !interpolated {
		// The raw content is authoritative here; grammar versions differ on
		// which text fragments surface as named children.
		return &ast.Node{Kind: ast.KindString, Value: unquote(l.content(node)), Loc: location(node)}
	}
	return out
}

func (l *lowerer) content(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return node.Content(l.source)
}

// childByFieldOrIndex prefers the grammar's field name and falls back to the
// named child index when the field is absent.
func childByFieldOrIndex(node *sitter.Node, field string, index int) *sitter.Node {
	if node == nil {
		return nil
	}
	if child := node.ChildByFieldName(field); child != nil {
		return child
	}
	if index < int(node.NamedChildCount()) {
		return node.NamedChild(index)
	}
	return nil
}

// isStatementType reports whether the grammar type is statement-like, so
// expression lowering can refuse it.
func isStatementType(sitterType string) bool {
	return strings.HasSuffix(sitterType, "_statement")
}

// unquote strips one layer of string delimiters.
func unquote(raw string) string {
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if first == last && (first == '\'' || first == '"') {
			return raw[1 : len(raw)-1]
		}
	}
	return raw
}

func location(node *sitter.Node) *ast.Location {
	if node == nil {
		return nil
	}
	point := node.StartPoint()
	return &ast.Location{
		Line:   int(point.Row) + 1,
		Column: int(point.Column),
	}
}

// Filename: parser/parser.go
// Package parser turns PHP source into the slice tree consumed by the
// analysis engine. Tree-sitter produces the concrete syntax tree; the
// lowering pass in this package reduces it to the small statement and
// expression vocabulary the engine models.
package parser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/internal/ast"
)

// Parser converts PHP source text into slice trees.
type Parser struct {
	logger *zap.Logger
}

// New creates a Parser.
func New(logger *zap.Logger) *Parser {
	return &Parser{
		logger: logger.Named("php_parser"),
	}
}

// Parse builds the slice tree for one PHP source file. Tree-sitter is error
// tolerant, so syntactically broken regions degrade to unrecognized nodes
// instead of failing the whole file; a hard parse failure is returned as an
// error.
func (p *Parser) Parse(ctx context.Context, filename string, source []byte) (*ast.Node, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(php.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter failed to parse %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned no root for %s", filename)
	}
	if root.HasError() {
		p.logger.Warn("Source contains syntax errors; analyzing the parseable portion",
			zap.String("filename", filename),
		)
	}

	l := &lowerer{source: source}
	program := l.lowerProgram(root)

	p.logger.Debug("Lowered source to slice tree",
		zap.String("filename", filename),
		zap.Int("statements", len(program.Children)),
	)
	return program, nil
}

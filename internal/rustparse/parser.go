// Package rustparse parses Rust source with tree-sitter and converts the
// concrete syntax tree into the parser-neutral items of package syntax.
package rustparse

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/jward/apicheck/internal/syntax"
)

var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

// Language returns the tree-sitter Rust grammar, initialized on first use.
func Language() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = rust.GetLanguage()
	})
	return grammar
}

// ParseError reports a syntax error found in a source file. Line and Column
// are 1-based.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Missing string
}

func (e *ParseError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("rustparse: %s:%d:%d: syntax error: missing %s", e.Path, e.Line, e.Column, e.Missing)
	}
	return fmt.Sprintf("rustparse: %s:%d:%d: syntax error", e.Path, e.Line, e.Column)
}

// Parser parses Rust source files. A Parser holds no per-file state and may
// be reused; each call creates its own tree-sitter parser.
type Parser struct {
	lang *sitter.Language
}

// New returns a Parser for the Rust grammar.
func New() *Parser {
	return &Parser{lang: Language()}
}

// Parse converts src into a syntax.File. Any error or missing node in the
// tree is reported as a *ParseError; recovered trees are never returned.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*syntax.File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("rustparse: parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if bad := firstError(root); bad != nil {
			pt := bad.StartPoint()
			perr := &ParseError{Path: path, Line: int(pt.Row) + 1, Column: int(pt.Column) + 1}
			if bad.IsMissing() {
				perr.Missing = bad.Type()
			}
			return nil, perr
		}
	}

	c := &converter{src: src}
	items, inner := c.items(root)
	return &syntax.File{Path: path, Attrs: inner, Items: items}, nil
}

// firstError returns the first ERROR or MISSING node in document order.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstError(n.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}

package parser

import (
	"context"
	"fmt"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/r2md/pkg/types"
)

// Parser builds concrete syntax trees through tree-sitter and copies the
// parts the chunker needs into plain Go values
type Parser struct {
	timeout time.Duration
}

// Option configures a Parser
type Option func(*Parser)

// WithTimeout bounds a single parse. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Parser) {
		p.timeout = d
	}
}

// New creates a new Parser instance
func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Node is one direct child of the syntax tree root
type Node struct {
	Kind      string
	StartByte int
	EndByte   int
	StartLine int // 1-based
	EndLine   int // 1-based

	// Kinds of the node's named children, in order
	ChildKinds []string
}

// Tree is the top level of a parsed file
type Tree struct {
	Language types.Language
	Nodes    []Node

	// HasError is set when the grammar recovered from syntax errors. The
	// nodes are still usable.
	HasError bool
}

// Parse parses src with the grammar for lang. A grammar that cannot be
// loaded yields a *GrammarLoadError; a parse that produces no tree, is
// cancelled, or panics yields a *types.ParseError.
func (p *Parser) Parse(ctx context.Context, lang types.Language, src []byte) (tree *Tree, err error) {
	language, err := loadGrammar(lang)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, &types.ParseError{Language: lang, Message: "parse not started", Err: err}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			tree = nil
			err = &types.ParseError{Language: lang, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	sp := sitter.NewParser()
	defer sp.Close()
	sp.SetLanguage(language)

	st, err := sp.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, &types.ParseError{Language: lang, Message: "parse aborted", Err: err}
	}
	if st == nil {
		return nil, &types.ParseError{Language: lang, Message: "no syntax tree produced"}
	}
	defer st.Close()

	root := st.RootNode()
	if root == nil {
		return nil, &types.ParseError{Language: lang, Message: "syntax tree has no root"}
	}

	return &Tree{
		Language: lang,
		Nodes:    topLevel(root),
		HasError: root.HasError(),
	}, nil
}

// topLevel copies the root's direct children
func topLevel(root *sitter.Node) []Node {
	count := int(root.ChildCount())
	nodes := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		nodes = append(nodes, Node{
			Kind:       child.Type(),
			StartByte:  int(child.StartByte()),
			EndByte:    int(child.EndByte()),
			StartLine:  int(child.StartPoint().Row) + 1,
			EndLine:    int(child.EndPoint().Row) + 1,
			ChildKinds: namedChildKinds(child),
		})
	}
	return nodes
}

func namedChildKinds(n *sitter.Node) []string {
	count := int(n.NamedChildCount())
	if count == 0 {
		return nil
	}
	kinds := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if c := n.NamedChild(i); c != nil {
			kinds = append(kinds, c.Type())
		}
	}
	return kinds
}

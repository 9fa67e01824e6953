// Package parser is the only place r2md talks to tree-sitter.
//
// Grammars are registered in a fixed table and loaded lazily, once per
// language per process. Parse copies the root's direct children (kind, byte
// range, line range and named child kinds) into plain Go values, so no
// tree-sitter handle outlives a call.
//
// # Basic Usage
//
//	p := parser.New(parser.WithTimeout(5 * time.Second))
//	tree, err := p.Parse(ctx, types.LangRust, src)
//	if err != nil {
//	    // *parser.GrammarLoadError or *types.ParseError
//	}
//
//	for _, n := range tree.Nodes {
//	    fmt.Printf("%s %d-%d\n", n.Kind, n.StartByte, n.EndByte)
//	}
//
// # Error Handling
//
// Syntax errors are non-fatal: the grammar recovers, Tree.HasError is set
// and the nodes are still returned. A parse that yields no tree, is
// cancelled through its context, exceeds the configured timeout, or panics
// inside the grammar boundary returns a *types.ParseError. Callers degrade
// that file instead of failing the run.
package parser

package chunker

import (
	"context"

	"github.com/dshills/r2md/internal/parser"
	"github.com/dshills/r2md/pkg/types"
)

// exportStatement wraps declarations in the JavaScript family grammars
const exportStatement = "export_statement"

// syntactic chunks a file into its interesting top-level declarations
type syntactic struct {
	lang    types.Language // tag on emitted chunks
	grammar types.Language // parser grammar key
	kinds   kindSet

	// exports makes an export statement interesting when it wraps an
	// interesting declaration
	exports bool
}

func (s *syntactic) Language() types.Language {
	return s.lang
}

func (s *syntactic) Chunk(ctx context.Context, p *parser.Parser, text string) ([]types.CodeChunk, error) {
	tree, err := p.Parse(ctx, s.grammar, []byte(text))
	if err != nil {
		return wholeFile(text, s.lang), err
	}

	chunks := make([]types.CodeChunk, 0, len(tree.Nodes))
	for _, n := range tree.Nodes {
		if !s.interesting(n) {
			continue
		}
		if n.StartByte < 0 || n.EndByte > len(text) || n.StartByte > n.EndByte {
			continue
		}
		chunks = append(chunks, types.CodeChunk{
			Text:     text[n.StartByte:n.EndByte],
			Language: s.lang,
		})
	}

	if len(chunks) == 0 {
		return wholeFile(text, s.lang), nil
	}
	return chunks, nil
}

func (s *syntactic) interesting(n parser.Node) bool {
	if s.kinds.has(n.Kind) {
		return true
	}
	if !s.exports || n.Kind != exportStatement {
		return false
	}
	for _, k := range n.ChildKinds {
		if s.kinds.has(k) {
			return true
		}
	}
	return false
}

// wholeFile is the single chunk emitted when no declaration is found
func wholeFile(text string, lang types.Language) []types.CodeChunk {
	return []types.CodeChunk{{Text: text, Language: lang}}
}

package chunker

import (
	"context"
	"strings"
	"unicode"

	"github.com/dshills/r2md/internal/parser"
	"github.com/dshills/r2md/pkg/types"
)

// triggers open a new fallback chunk when a left-trimmed line starts with one
var triggers = []string{"function", "class", "def ", "fn ", "func "}

// fallback splits text on declaration-looking lines without a grammar
type fallback struct {
	ext string
}

func (f fallback) Language() types.Language {
	return types.FallbackLanguage(f.ext)
}

func (f fallback) Chunk(_ context.Context, _ *parser.Parser, text string) ([]types.CodeChunk, error) {
	return Fallback(text, f.ext), nil
}

// Fallback splits text at trigger lines. Line terminators are kept, so the
// chunks concatenate back to text exactly. Empty text yields one empty chunk.
func Fallback(text, ext string) []types.CodeChunk {
	lang := types.FallbackLanguage(ext)
	if text == "" {
		return wholeFile(text, lang)
	}

	var (
		chunks []types.CodeChunk
		buf    strings.Builder
	)
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		chunks = append(chunks, types.CodeChunk{Text: buf.String(), Language: lang})
		buf.Reset()
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		if isTrigger(line) {
			flush()
		}
		buf.WriteString(line)
	}
	flush()

	return chunks
}

func isTrigger(line string) bool {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	for _, t := range triggers {
		if strings.HasPrefix(trimmed, t) {
			return true
		}
	}
	return false
}

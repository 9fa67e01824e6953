package budget

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dshills/r2md/internal/tokenizer"
	"github.com/dshills/r2md/pkg/types"
)

// Window is a half-open token range [Start, End)
type Window struct {
	Start int
	End   int
}

// Len returns the number of tokens in the window
func (w Window) Len() int {
	return w.End - w.Start
}

// Windows partitions n tokens into consecutive windows of at most m tokens.
// Only the last window may be shorter. n <= 0 or m <= 0 yields nil.
func Windows(n, m int) []Window {
	if n <= 0 || m <= 0 {
		return nil
	}
	out := make([]Window, 0, (n+m-1)/m)
	for start := 0; start < n; start += m {
		end := start + m
		if end > n {
			end = n
		}
		out = append(out, Window{Start: start, End: end})
	}
	return out
}

// Splitter re-splits chunks that exceed a token budget
type Splitter struct {
	codec     tokenizer.Codec
	maxTokens int
}

// NewSplitter creates a splitter with a budget of maxTokens per chunk
func NewSplitter(codec tokenizer.Codec, maxTokens int) (*Splitter, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInvalidMaxTokens, maxTokens)
	}
	return &Splitter{codec: codec, maxTokens: maxTokens}, nil
}

// MaxTokens returns the per-chunk budget
func (s *Splitter) MaxTokens() int {
	return s.maxTokens
}

// Split returns chunks with every over-budget chunk replaced by its token
// windows, in order. A chunk that cannot be encoded passes through.
func (s *Splitter) Split(chunks []types.CodeChunk) []types.CodeChunk {
	out := make([]types.CodeChunk, 0, len(chunks))
	for _, c := range chunks {
		parts, err := s.SplitChunk(c)
		if err != nil {
			log.Warn().Err(err).Str("language", string(c.Language)).Msg("chunk not split")
			out = append(out, c)
			continue
		}
		out = append(out, parts...)
	}
	return out
}

// SplitChunk splits one chunk into windows of at most MaxTokens tokens. A
// window that fails to decode becomes an empty chunk and is logged; only an
// encode failure is returned.
func (s *Splitter) SplitChunk(c types.CodeChunk) ([]types.CodeChunk, error) {
	ids, err := s.codec.Encode(c.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunk: %w", err)
	}
	if len(ids) <= s.maxTokens {
		return []types.CodeChunk{c}, nil
	}

	windows := Windows(len(ids), s.maxTokens)
	out := make([]types.CodeChunk, 0, len(windows))
	for i, w := range windows {
		text, err := s.codec.Decode(ids[w.Start:w.End])
		if err != nil {
			log.Warn().Err(err).Int("window", i).Int("start", w.Start).Int("end", w.End).
				Msg("window decode failed, emitting empty chunk")
			text = ""
		}
		out = append(out, types.CodeChunk{Text: text, Language: c.Language})
	}
	return out, nil
}

// SplitFile applies Split to a file's chunks in place
func (s *Splitter) SplitFile(cf *types.ChunkedFile) {
	cf.Chunks = s.Split(cf.Chunks)
}

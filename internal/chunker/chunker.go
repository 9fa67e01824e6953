package chunker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dshills/r2md/internal/parser"
	"github.com/dshills/r2md/pkg/types"
)

// Strategy turns one file's text into ordered chunks. A non-nil error means
// the strategy degraded to a whole-file chunk; the chunks are still valid.
type Strategy interface {
	Language() types.Language
	Chunk(ctx context.Context, p *parser.Parser, text string) ([]types.CodeChunk, error)
}

// Chunker creates chunks from source files, choosing a strategy per extension
type Chunker struct {
	parser *parser.Parser
}

// New creates a new Chunker instance
func New(opts ...parser.Option) *Chunker {
	return &Chunker{
		parser: parser.New(opts...),
	}
}

// Chunk returns the ordered chunks of text. It never fails: parse and grammar
// failures degrade to a single whole-file chunk.
func (c *Chunker) Chunk(ctx context.Context, text, ext string) []types.CodeChunk {
	chunks, _ := StrategyFor(ext).Chunk(ctx, c.parser, text)
	return chunks
}

// ChunkFile chunks one file entry. The returned file is always usable; a
// non-nil error records why it was degraded to a whole-file chunk.
func (c *Chunker) ChunkFile(ctx context.Context, entry types.FileEntry) (*types.ChunkedFile, error) {
	strategy := StrategyFor(entry.Extension())

	chunks, err := strategy.Chunk(ctx, c.parser, entry.Content)
	cf := &types.ChunkedFile{
		Path:     entry.RelativePath,
		Language: strategy.Language(),
		Content:  entry.Content,
		Chunks:   chunks,
	}
	if err != nil {
		log.Warn().Err(err).Str("file", entry.RelativePath).Msg("syntactic chunking degraded to whole file")
		return cf, fmt.Errorf("failed to chunk %s: %w", entry.RelativePath, err)
	}

	log.Debug().Str("file", entry.RelativePath).Int("chunks", len(chunks)).Msg("chunked")
	return cf, nil
}

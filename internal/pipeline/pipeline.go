package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/r2md/internal/budget"
	"github.com/dshills/r2md/internal/chunker"
	"github.com/dshills/r2md/internal/depgraph"
	"github.com/dshills/r2md/internal/parser"
	"github.com/dshills/r2md/internal/tokenizer"
	"github.com/dshills/r2md/pkg/types"
)

// Pipeline coordinates the run: chunk -> split -> graph -> sort
type Pipeline struct {
	chunker *chunker.Chunker
	config  Config

	// Worker pool configuration
	workers int
}

// Config contains configuration for a pipeline run
type Config struct {
	Workers          int           // Number of concurrent workers (default: runtime.NumCPU())
	MaxContextTokens int           // Per-chunk token budget, 0 disables splitting
	SplitRatio       float64       // Prompt share of each sample (default: 0.8)
	Tokenizer        string        // Vocabulary selector (default: cl100k_base)
	ParseTimeout     time.Duration // Per-file parse bound, 0 disables
	EncodeCacheSize  int           // LRU entries in front of the tokenizer (default: 4096)

	// AllowCycles keeps scan order, instead of failing, when the
	// dependency graph has a cycle
	AllowCycles bool
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() Config {
	return Config{
		Workers:    runtime.NumCPU(),
		SplitRatio: budget.DefaultSplitRatio,
		Tokenizer:  tokenizer.DefaultName,
	}
}

// Statistics contains statistics about a run
type Statistics struct {
	FilesProcessed int
	FilesSyntactic int // chunked with a grammar
	FilesFallback  int // chunked by the line fallback
	FilesDegraded  int // grammar files emitted whole after a parse failure
	ChunksCreated  int
	ChunksSplit    int // chunks that exceeded the token budget
	Edges          int
	Samples        int
	CycleIgnored   bool
	Duration       time.Duration
	ErrorMessages  []string
}

// Result is the ordered output of Run
type Result struct {
	Files []*types.ChunkedFile // dependency order
	Edges []depgraph.Edge
	Stats *Statistics
}

// Order returns the file paths of the result in output order
func (r *Result) Order() []string {
	out := make([]string, len(r.Files))
	for i, f := range r.Files {
		out[i] = f.Path
	}
	return out
}

// New creates a pipeline. A nil config uses DefaultConfig. The split ratio
// is checked here so no file is touched with an invalid one; a zero ratio
// in an explicit config is rejected, not defaulted.
func New(config *Config) (*Pipeline, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Tokenizer == "" {
		cfg.Tokenizer = tokenizer.DefaultName
	}
	if cfg.MaxContextTokens < 0 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInvalidMaxTokens, cfg.MaxContextTokens)
	}
	if err := budget.ValidateRatio(cfg.SplitRatio); err != nil {
		return nil, err
	}

	var opts []parser.Option
	if cfg.ParseTimeout > 0 {
		opts = append(opts, parser.WithTimeout(cfg.ParseTimeout))
	}

	return &Pipeline{
		chunker: chunker.New(opts...),
		config:  cfg,
		workers: cfg.Workers,
	}, nil
}

// Config returns the effective configuration
func (p *Pipeline) Config() Config {
	return p.config
}

// codec loads the configured tokenizer behind an encode cache
func (p *Pipeline) codec() (tokenizer.Codec, error) {
	enc, err := tokenizer.Load(p.config.Tokenizer)
	if err != nil {
		return nil, err
	}
	return tokenizer.NewCached(enc, p.config.EncodeCacheSize)
}

// Run chunks every file, splits over-budget chunks when a budget is set,
// and orders the result by dependency. File-local failures are recorded in
// the statistics; tokenizer load failures and cycles abort the run.
func (p *Pipeline) Run(ctx context.Context, files []types.FileEntry) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	var splitter *budget.Splitter
	if p.config.MaxContextTokens > 0 {
		enc, err := p.codec()
		if err != nil {
			return nil, fmt.Errorf("failed to load tokenizer: %w", err)
		}
		splitter, err = budget.NewSplitter(enc, p.config.MaxContextTokens)
		if err != nil {
			return nil, err
		}
	}

	chunked, err := p.chunkFiles(ctx, files, splitter, stats)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk files: %w", err)
	}

	graph, err := depgraph.Build(ctx, files, p.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	stats.Edges = graph.EdgeCount()

	ordered, err := p.order(graph, chunked, stats)
	if err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	log.Info().
		Int("files", stats.FilesProcessed).
		Int("chunks", stats.ChunksCreated).
		Int("edges", stats.Edges).
		Dur("duration", stats.Duration).
		Msg("pipeline finished")

	return &Result{
		Files: ordered,
		Edges: graph.Edges(),
		Stats: stats,
	}, nil
}

func (p *Pipeline) order(graph *depgraph.Graph, chunked []*types.ChunkedFile, stats *Statistics) ([]*types.ChunkedFile, error) {
	order, err := depgraph.Sort(graph)
	if err == nil {
		return depgraph.Reorder(chunked, func(cf *types.ChunkedFile) string { return cf.Path }, order), nil
	}

	var cycle *types.CycleError
	if p.config.AllowCycles && errors.As(err, &cycle) {
		log.Warn().Err(err).Msg("dependency cycle, keeping scan order")
		stats.CycleIgnored = true
		stats.ErrorMessages = append(stats.ErrorMessages, err.Error())
		return chunked, nil
	}
	return nil, fmt.Errorf("failed to order files: %w", err)
}

// chunkFiles chunks files concurrently. Results keep the input order.
func (p *Pipeline) chunkFiles(ctx context.Context, files []types.FileEntry, splitter *budget.Splitter, stats *Statistics) ([]*types.ChunkedFile, error) {
	// Create worker pool with semaphore
	semaphore := make(chan struct{}, p.workers)
	results := make([]*types.ChunkedFile, len(files))

	// Track progress with atomic counters
	var (
		processed int32
		syntactic int32
		fallback  int32
		degraded  int32
		chunks    int32
		split     int32
	)

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex // Protect stats.ErrorMessages

	for i := range files {
		select {
		case <-gctx.Done():
			return nil, gctx.Err()
		case semaphore <- struct{}{}:
			// Acquire semaphore
		}

		g.Go(func() error {
			defer func() { <-semaphore }()

			entry := files[i]
			cf, err := p.chunker.ChunkFile(gctx, entry)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				atomic.AddInt32(&degraded, 1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", entry.RelativePath, err))
				mu.Unlock()
			}

			if chunker.IsSyntactic(entry.Extension()) {
				atomic.AddInt32(&syntactic, 1)
			} else {
				atomic.AddInt32(&fallback, 1)
			}

			if splitter != nil {
				before := len(cf.Chunks)
				splitter.SplitFile(cf)
				if grown := len(cf.Chunks) - before; grown > 0 {
					atomic.AddInt32(&split, int32(grown))
				}
			}

			results[i] = cf
			atomic.AddInt32(&processed, 1)
			atomic.AddInt32(&chunks, int32(len(cf.Chunks)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Update statistics
	stats.FilesProcessed = int(processed)
	stats.FilesSyntactic = int(syntactic)
	stats.FilesFallback = int(fallback)
	stats.FilesDegraded = int(degraded)
	stats.ChunksCreated = int(chunks)
	stats.ChunksSplit = int(split)

	return results, nil
}

// Order returns the dependency order of files without chunking them
func (p *Pipeline) Order(ctx context.Context, files []types.FileEntry) ([]string, error) {
	graph, err := depgraph.Build(ctx, files, p.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	order, err := depgraph.Sort(graph)
	if err != nil {
		return nil, fmt.Errorf("failed to order files: %w", err)
	}
	return order, nil
}

// Samples sorts files by dependency and cuts one training sample per file
// with at least two tokens. The ratio was validated by New.
func (p *Pipeline) Samples(ctx context.Context, files []types.FileEntry) ([]types.TrainingSample, *Statistics, error) {
	startTime := time.Now()

	enc, err := p.codec()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	sampler, err := budget.NewSampler(enc, p.config.SplitRatio)
	if err != nil {
		return nil, nil, err
	}

	sorted, err := depgraph.SortEntries(ctx, files, p.workers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to order files: %w", err)
	}

	samples, err := sampler.SampleFiles(ctx, sorted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sample files: %w", err)
	}

	stats := &Statistics{
		FilesProcessed: len(files),
		Samples:        len(samples),
		Duration:       time.Since(startTime),
		ErrorMessages:  make([]string, 0),
	}
	return samples, stats, nil
}

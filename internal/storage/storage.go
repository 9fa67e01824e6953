package storage

import (
	"context"
	"time"

	"github.com/dshills/r2md/pkg/types"
)

// Storage defines the interface for persisting exported runs
type Storage interface {
	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	GetLatestRun(ctx context.Context, rootPath string) (*Run, error)
	ListRuns(ctx context.Context) ([]*Run, error)
	FinishRun(ctx context.Context, run *Run) error
	DeleteRunsByRoot(ctx context.Context, rootPath string) (deletedCount int, err error)

	// File operations
	InsertFile(ctx context.Context, file *File) error
	ListFiles(ctx context.Context, runID string) ([]*File, error)

	// Chunk operations
	InsertChunk(ctx context.Context, chunk *Chunk) error
	ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error)

	// Edge operations
	InsertEdge(ctx context.Context, edge *Edge) error
	ListEdges(ctx context.Context, runID string) ([]*Edge, error)

	// Sample operations
	InsertSample(ctx context.Context, sample *Sample) error
	ListSamples(ctx context.Context, runID string) ([]*Sample, error)

	// Status operations
	GetStatus(ctx context.Context, runID string) (*RunStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Run is one export of a root directory
type Run struct {
	ID               string // uuid, assigned by CreateRun when empty
	RootPath         string
	Tokenizer        string
	MaxContextTokens int
	SplitRatio       float64
	TotalFiles       int
	TotalChunks      int
	TotalEdges       int
	TotalSamples     int
	StartedAt        time.Time
	FinishedAt       time.Time // zero until FinishRun
}

// File is one file of a run, in output order
type File struct {
	ID          int64
	RunID       string
	Position    int
	FilePath    string // Relative to the run root
	Language    string
	Content     string   // Full file text
	ContentHash [32]byte // SHA-256 of Content
	SizeBytes   int64
}

// Chunk is one chunk of a file, in chunk order
type Chunk struct {
	ID       int64
	FileID   int64
	Position int
	Language string
	Content  string
}

// Edge records that FromPath depends on ToPath
type Edge struct {
	ID       int64
	RunID    string
	FromPath string
	ToPath   string
}

// Sample is a stored training sample
type Sample struct {
	ID       int64
	RunID    string
	Position int
	types.TrainingSample
}

// RunStatus contains statistics about a stored run
type RunStatus struct {
	Run            *Run
	FilesCount     int
	ChunksCount    int
	EdgesCount     int
	SamplesCount   int
	DatabaseSizeMB float64
}

// ToChunkedFile rebuilds the pipeline view of a stored file
func (f *File) ToChunkedFile(chunks []*Chunk) *types.ChunkedFile {
	cf := &types.ChunkedFile{
		Path:     f.FilePath,
		Language: types.Language(f.Language),
		Content:  f.Content,
		Chunks:   make([]types.CodeChunk, 0, len(chunks)),
	}
	for _, c := range chunks {
		cf.Chunks = append(cf.Chunks, types.CodeChunk{Text: c.Content, Language: types.Language(c.Language)})
	}
	return cf
}

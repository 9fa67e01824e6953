package storage

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dshills/r2md/internal/depgraph"
	"github.com/dshills/r2md/pkg/types"
)

// Export is everything one run writes to the database
type Export struct {
	Run     *Run
	Files   []*types.ChunkedFile // output order
	Edges   []Edge               // RunID is filled in by SaveExport
	Samples []types.TrainingSample
}

// EdgesFrom converts dependency graph edges into unsaved edge rows
func EdgesFrom(edges []depgraph.Edge) []Edge {
	out := make([]Edge, len(edges))
	for i, e := range edges {
		out[i] = Edge{FromPath: e.From, ToPath: e.To}
	}
	return out
}

// SaveExport replaces every stored run of exp.Run.RootPath with exp in one
// transaction. exp.Run.ID is assigned when empty.
func SaveExport(ctx context.Context, s Storage, exp *Export) (err error) {
	if exp == nil || exp.Run == nil {
		return fmt.Errorf("export has no run")
	}
	run := exp.Run

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	replaced, err := tx.DeleteRunsByRoot(ctx, run.RootPath)
	if err != nil {
		return err
	}
	if err = tx.CreateRun(ctx, run); err != nil {
		return err
	}

	run.TotalFiles, run.TotalChunks = 0, 0
	for pos, cf := range exp.Files {
		text := cf.Source()
		file := &File{
			RunID:       run.ID,
			Position:    pos,
			FilePath:    cf.Path,
			Language:    string(cf.Language),
			Content:     text,
			ContentHash: sha256.Sum256([]byte(text)),
			SizeBytes:   int64(len(text)),
		}
		if err = tx.InsertFile(ctx, file); err != nil {
			return err
		}
		for i, c := range cf.Chunks {
			chunk := &Chunk{FileID: file.ID, Position: i, Language: string(c.Language), Content: c.Text}
			if err = tx.InsertChunk(ctx, chunk); err != nil {
				return err
			}
		}
		run.TotalFiles++
		run.TotalChunks += len(cf.Chunks)
	}

	for i := range exp.Edges {
		edge := exp.Edges[i]
		edge.RunID = run.ID
		if err = tx.InsertEdge(ctx, &edge); err != nil {
			return err
		}
	}
	run.TotalEdges = len(exp.Edges)

	for pos, ts := range exp.Samples {
		if err = tx.InsertSample(ctx, &Sample{RunID: run.ID, Position: pos, TrainingSample: ts}); err != nil {
			return err
		}
	}
	run.TotalSamples = len(exp.Samples)

	if err = tx.FinishRun(ctx, run); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}

	log.Debug().
		Str("run", run.ID).
		Str("root", run.RootPath).
		Int("replaced", replaced).
		Int("files", run.TotalFiles).
		Msg("export saved")
	return nil
}

// LoadFiles returns the stored files of a run as chunked files, in output order
func LoadFiles(ctx context.Context, s Storage, runID string) ([]*types.ChunkedFile, error) {
	files, err := s.ListFiles(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	out := make([]*types.ChunkedFile, 0, len(files))
	for _, f := range files {
		chunks, err := s.ListChunksByFile(ctx, f.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list chunks of %s: %w", f.FilePath, err)
		}
		out = append(out, f.ToChunkedFile(chunks))
	}
	return out, nil
}

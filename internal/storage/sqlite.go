package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Run operations

const runColumns = `id, root_path, tokenizer, max_context_tokens, split_ratio,
	total_files, total_chunks, total_edges, total_samples, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var tokenizer sql.NullString
	var ratio sql.NullFloat64
	var finishedAt sql.NullTime
	err := row.Scan(
		&run.ID, &run.RootPath, &tokenizer, &run.MaxContextTokens, &ratio,
		&run.TotalFiles, &run.TotalChunks, &run.TotalEdges, &run.TotalSamples,
		&run.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Tokenizer = tokenizer.String
	run.SplitRatio = ratio.Float64
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return &run, nil
}

// createRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	query := `
		INSERT INTO runs (id, root_path, tokenizer, max_context_tokens, split_ratio, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		run.ID, run.RootPath, run.Tokenizer, run.MaxContextTokens, run.SplitRatio, run.StartedAt)
	if err != nil {
		if _, getErr := s.getRunWithQuerier(ctx, q, run.ID); getErr == nil {
			return fmt.Errorf("run %s: %w", run.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) CreateRun(ctx context.Context, run *Run) error {
	return s.createRunWithQuerier(ctx, s.querier(), run)
}

// getRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getRunWithQuerier(ctx context.Context, q querier, runID string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	run, err := scanRun(q.QueryRowContext(ctx, query, runID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStorage) GetRun(ctx context.Context, runID string) (*Run, error) {
	return s.getRunWithQuerier(ctx, s.querier(), runID)
}

// getLatestRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getLatestRunWithQuerier(ctx context.Context, q querier, rootPath string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE root_path = ? ORDER BY started_at DESC LIMIT 1`
	run, err := scanRun(q.QueryRowContext(ctx, query, rootPath))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStorage) GetLatestRun(ctx context.Context, rootPath string) (*Run, error) {
	return s.getLatestRunWithQuerier(ctx, s.querier(), rootPath)
}

// listRunsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listRunsWithQuerier(ctx context.Context, q querier) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, root_path`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStorage) ListRuns(ctx context.Context) ([]*Run, error) {
	return s.listRunsWithQuerier(ctx, s.querier())
}

// finishRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) finishRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	query := `
		UPDATE runs
		SET total_files = ?, total_chunks = ?, total_edges = ?, total_samples = ?, finished_at = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query,
		run.TotalFiles, run.TotalChunks, run.TotalEdges, run.TotalSamples, run.FinishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) FinishRun(ctx context.Context, run *Run) error {
	return s.finishRunWithQuerier(ctx, s.querier(), run)
}

// deleteRunsByRootWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteRunsByRootWithQuerier(ctx context.Context, q querier, rootPath string) (int, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM runs WHERE root_path = ?", rootPath)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStorage) DeleteRunsByRoot(ctx context.Context, rootPath string) (int, error) {
	return s.deleteRunsByRootWithQuerier(ctx, s.querier(), rootPath)
}

// File operations

// insertFileWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertFileWithQuerier(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (run_id, position, file_path, language, content, content_hash, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		file.RunID, file.Position, file.FilePath, file.Language, file.Content, file.ContentHash[:], file.SizeBytes)
	if err != nil {
		return fmt.Errorf("failed to insert file %s: %w", file.FilePath, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	file.ID = id
	return nil
}

func (s *SQLiteStorage) InsertFile(ctx context.Context, file *File) error {
	return s.insertFileWithQuerier(ctx, s.querier(), file)
}

// listFilesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, runID string) ([]*File, error) {
	query := `
		SELECT id, run_id, position, file_path, language, content, content_hash, size_bytes
		FROM files
		WHERE run_id = ?
		ORDER BY position
	`
	rows, err := q.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		var file File
		var hash []byte
		var size sql.NullInt64
		if err := rows.Scan(&file.ID, &file.RunID, &file.Position, &file.FilePath,
			&file.Language, &file.Content, &hash, &size); err != nil {
			return nil, err
		}
		copy(file.ContentHash[:], hash)
		file.SizeBytes = size.Int64
		files = append(files, &file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, runID string) ([]*File, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), runID)
}

// Chunk operations

// insertChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	query := `
		INSERT INTO chunks (file_id, position, language, content)
		VALUES (?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query, chunk.FileID, chunk.Position, chunk.Language, chunk.Content)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	chunk.ID = id
	return nil
}

func (s *SQLiteStorage) InsertChunk(ctx context.Context, chunk *Chunk) error {
	return s.insertChunkWithQuerier(ctx, s.querier(), chunk)
}

// listChunksByFileWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listChunksByFileWithQuerier(ctx context.Context, q querier, fileID int64) ([]*Chunk, error) {
	query := `
		SELECT id, file_id, position, language, content
		FROM chunks
		WHERE file_id = ?
		ORDER BY position
	`
	rows, err := q.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		var chunk Chunk
		if err := rows.Scan(&chunk.ID, &chunk.FileID, &chunk.Position, &chunk.Language, &chunk.Content); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error) {
	return s.listChunksByFileWithQuerier(ctx, s.querier(), fileID)
}

// Edge operations

// insertEdgeWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertEdgeWithQuerier(ctx context.Context, q querier, edge *Edge) error {
	query := `
		INSERT INTO edges (run_id, from_path, to_path)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, from_path, to_path) DO UPDATE SET to_path = excluded.to_path
		RETURNING id
	`
	if err := q.QueryRowContext(ctx, query, edge.RunID, edge.FromPath, edge.ToPath).Scan(&edge.ID); err != nil {
		return fmt.Errorf("failed to insert edge %s -> %s: %w", edge.FromPath, edge.ToPath, err)
	}
	return nil
}

func (s *SQLiteStorage) InsertEdge(ctx context.Context, edge *Edge) error {
	return s.insertEdgeWithQuerier(ctx, s.querier(), edge)
}

// listEdgesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listEdgesWithQuerier(ctx context.Context, q querier, runID string) ([]*Edge, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, run_id, from_path, to_path FROM edges WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []*Edge
	for rows.Next() {
		var edge Edge
		if err := rows.Scan(&edge.ID, &edge.RunID, &edge.FromPath, &edge.ToPath); err != nil {
			return nil, err
		}
		edges = append(edges, &edge)
	}
	return edges, rows.Err()
}

func (s *SQLiteStorage) ListEdges(ctx context.Context, runID string) ([]*Edge, error) {
	return s.listEdgesWithQuerier(ctx, s.querier(), runID)
}

// Sample operations

// insertSampleWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertSampleWithQuerier(ctx context.Context, q querier, sample *Sample) error {
	query := `
		INSERT INTO samples (run_id, position, prompt, completion, prompt_tokens, completion_tokens, tokenizer)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		sample.RunID, sample.Position, sample.Prompt, sample.Completion,
		sample.PromptTokens, sample.CompletionTokens, sample.Tokenizer)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	sample.ID = id
	return nil
}

func (s *SQLiteStorage) InsertSample(ctx context.Context, sample *Sample) error {
	return s.insertSampleWithQuerier(ctx, s.querier(), sample)
}

// listSamplesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listSamplesWithQuerier(ctx context.Context, q querier, runID string) ([]*Sample, error) {
	query := `
		SELECT id, run_id, position, prompt, completion, prompt_tokens, completion_tokens, tokenizer
		FROM samples
		WHERE run_id = ?
		ORDER BY position
	`
	rows, err := q.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*Sample
	for rows.Next() {
		var sample Sample
		if err := rows.Scan(&sample.ID, &sample.RunID, &sample.Position, &sample.Prompt, &sample.Completion,
			&sample.PromptTokens, &sample.CompletionTokens, &sample.Tokenizer); err != nil {
			return nil, err
		}
		samples = append(samples, &sample)
	}
	return samples, rows.Err()
}

func (s *SQLiteStorage) ListSamples(ctx context.Context, runID string) ([]*Sample, error) {
	return s.listSamplesWithQuerier(ctx, s.querier(), runID)
}

// Status operations

// getStatusWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier, runID string) (*RunStatus, error) {
	run, err := s.getRunWithQuerier(ctx, q, runID)
	if err != nil {
		return nil, err
	}
	status := &RunStatus{Run: run}

	counts := []struct {
		dest  *int
		query string
	}{
		{&status.FilesCount, "SELECT COUNT(*) FROM files WHERE run_id = ?"},
		{&status.ChunksCount, `
			SELECT COUNT(*) FROM chunks c
			JOIN files f ON c.file_id = f.id
			WHERE f.run_id = ?
		`},
		{&status.EdgesCount, "SELECT COUNT(*) FROM edges WHERE run_id = ?"},
		{&status.SamplesCount, "SELECT COUNT(*) FROM samples WHERE run_id = ?"},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query, runID).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context, runID string) (*RunStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier(), runID)
}

// Transaction implementations use the transaction querier for every call

func (t *sqliteTx) CreateRun(ctx context.Context, run *Run) error {
	return t.storage.createRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) GetRun(ctx context.Context, runID string) (*Run, error) {
	return t.storage.getRunWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) GetLatestRun(ctx context.Context, rootPath string) (*Run, error) {
	return t.storage.getLatestRunWithQuerier(ctx, t.querier(), rootPath)
}

func (t *sqliteTx) ListRuns(ctx context.Context) ([]*Run, error) {
	return t.storage.listRunsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) FinishRun(ctx context.Context, run *Run) error {
	return t.storage.finishRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) DeleteRunsByRoot(ctx context.Context, rootPath string) (int, error) {
	return t.storage.deleteRunsByRootWithQuerier(ctx, t.querier(), rootPath)
}

func (t *sqliteTx) InsertFile(ctx context.Context, file *File) error {
	return t.storage.insertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) ListFiles(ctx context.Context, runID string) ([]*File, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) InsertChunk(ctx context.Context, chunk *Chunk) error {
	return t.storage.insertChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error) {
	return t.storage.listChunksByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) InsertEdge(ctx context.Context, edge *Edge) error {
	return t.storage.insertEdgeWithQuerier(ctx, t.querier(), edge)
}

func (t *sqliteTx) ListEdges(ctx context.Context, runID string) ([]*Edge, error) {
	return t.storage.listEdgesWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) InsertSample(ctx context.Context, sample *Sample) error {
	return t.storage.insertSampleWithQuerier(ctx, t.querier(), sample)
}

func (t *sqliteTx) ListSamples(ctx context.Context, runID string) ([]*Sample, error) {
	return t.storage.listSamplesWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) GetStatus(ctx context.Context, runID string) (*RunStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

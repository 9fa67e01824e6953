package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/dshills/r2md/internal/budget"
	"github.com/dshills/r2md/internal/collector"
	"github.com/dshills/r2md/internal/pipeline"
	"github.com/dshills/r2md/internal/storage"
	"github.com/dshills/r2md/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeNoSourceFiles = -32001 // Path holds no recognized source files
	ErrorCodeRunInProgress = -32002 // Another run is already in progress
	ErrorCodeCycleDetected = -32003 // Imports form a cycle
)

// maxErrorsReported caps the error list returned to the client
const maxErrorsReported = 5

// handleChunkRepository handles the chunk_repository tool invocation
func (s *Server) handleChunkRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := pathArgs(request)
	if err != nil {
		return nil, err
	}

	maxTokens := getIntDefault(args, "max_context_tokens", s.config.MaxContextTokens)
	if maxTokens < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_context_tokens cannot be negative", map[string]interface{}{
			"param": "max_context_tokens",
			"value": maxTokens,
		})
	}
	includeChunks := getBoolDefault(args, "include_chunks", false)
	save := getBoolDefault(args, "save", true)

	if !s.lock.TryAcquire() {
		return nil, newMCPError(ErrorCodeRunInProgress, "another run is in progress", nil)
	}
	defer s.lock.Release()

	files, err := s.collect(ctx, path)
	if err != nil {
		return nil, err
	}

	cfg := s.pipelineConfig()
	cfg.MaxContextTokens = maxTokens
	cfg.AllowCycles = getBoolDefault(args, "allow_cycles", false)

	p, err := pipeline.New(&cfg)
	if err != nil {
		return nil, toolError(err)
	}
	result, err := p.Run(ctx, files)
	if err != nil {
		return nil, toolError(err)
	}

	response := map[string]interface{}{
		"path":            path,
		"files_processed": result.Stats.FilesProcessed,
		"files_syntactic": result.Stats.FilesSyntactic,
		"files_fallback":  result.Stats.FilesFallback,
		"files_degraded":  result.Stats.FilesDegraded,
		"chunks_created":  result.Stats.ChunksCreated,
		"chunks_split":    result.Stats.ChunksSplit,
		"edges":           result.Stats.Edges,
		"order":           result.Order(),
		"duration_ms":     result.Stats.Duration.Milliseconds(),
	}
	if result.Stats.CycleIgnored {
		response["cycle_ignored"] = true
	}
	addErrors(response, result.Stats.ErrorMessages)

	if includeChunks {
		chunks := make([]map[string]interface{}, 0, result.Stats.ChunksCreated)
		for _, f := range result.Files {
			for i, c := range f.Chunks {
				chunks = append(chunks, map[string]interface{}{
					"file":     f.Path,
					"index":    i,
					"language": string(c.Language),
					"text":     c.Text,
				})
			}
		}
		response["chunks"] = chunks
	}

	if save {
		exp := &storage.Export{
			Run: &storage.Run{
				RootPath:         path,
				Tokenizer:        cfg.Tokenizer,
				MaxContextTokens: maxTokens,
				SplitRatio:       cfg.SplitRatio,
			},
			Files: result.Files,
			Edges: storage.EdgesFrom(result.Edges),
		}
		if err := storage.SaveExport(ctx, s.storage, exp); err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to save run", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["run_id"] = exp.Run.ID
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDependencyOrder handles the dependency_order tool invocation
func (s *Server) handleDependencyOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, path, err := pathArgs(request)
	if err != nil {
		return nil, err
	}

	files, err := s.collect(ctx, path)
	if err != nil {
		return nil, err
	}

	cfg := s.pipelineConfig()
	p, err := pipeline.New(&cfg)
	if err != nil {
		return nil, toolError(err)
	}
	order, err := p.Order(ctx, files)
	if err != nil {
		return nil, toolError(err)
	}

	response := map[string]interface{}{
		"path":  path,
		"files": len(order),
		"order": order,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGenerateSamples handles the generate_samples tool invocation
func (s *Server) handleGenerateSamples(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := pathArgs(request)
	if err != nil {
		return nil, err
	}

	cfg := s.pipelineConfig()
	if v, ok := args["split_ratio"].(float64); ok {
		if err := budget.ValidateRatio(v); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
				"param": "split_ratio",
				"value": v,
			})
		}
		cfg.SplitRatio = v
	}
	cfg.Tokenizer = getStringDefault(args, "tokenizer", cfg.Tokenizer)

	output := getStringDefault(args, "output", "")
	if output != "" && !filepath.IsAbs(output) {
		return nil, newMCPError(ErrorCodeInvalidParams, "output must be absolute", map[string]interface{}{
			"param": "output",
			"value": output,
		})
	}

	p, err := pipeline.New(&cfg)
	if err != nil {
		return nil, toolError(err)
	}

	if !s.lock.TryAcquire() {
		return nil, newMCPError(ErrorCodeRunInProgress, "another run is in progress", nil)
	}
	defer s.lock.Release()

	files, err := s.collect(ctx, path)
	if err != nil {
		return nil, err
	}

	samples, stats, err := p.Samples(ctx, files)
	if err != nil {
		return nil, toolError(err)
	}

	response := map[string]interface{}{
		"path":            path,
		"tokenizer":       p.Config().Tokenizer,
		"split_ratio":     p.Config().SplitRatio,
		"files_processed": stats.FilesProcessed,
		"samples":         stats.Samples,
		"duration_ms":     stats.Duration.Milliseconds(),
	}

	if output != "" {
		if err := budget.WriteSamples(output, samples); err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to write samples", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["output"] = output
	} else {
		response["training_samples"] = samples
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := pathArgs(request)
	if err != nil {
		return nil, err
	}
	includeContent := getBoolDefault(args, "include_content", false)

	run, err := s.storage.GetLatestRun(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"chunked": false,
			"path":    path,
			"message": "Repository not chunked. Use chunk_repository tool to chunk this repository.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get run", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status, err := s.storage.GetStatus(ctx, run.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	files, err := storage.LoadFiles(ctx, s.storage, run.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load files", map[string]interface{}{
			"error": err.Error(),
		})
	}
	order := make([]string, len(files))
	for i, f := range files {
		order[i] = f.Path
	}

	runInfo := map[string]interface{}{
		"id":                 run.ID,
		"path":               run.RootPath,
		"tokenizer":          run.Tokenizer,
		"max_context_tokens": run.MaxContextTokens,
		"split_ratio":        run.SplitRatio,
		"started_at":         run.StartedAt.Format(time.RFC3339),
	}
	if !run.FinishedAt.IsZero() {
		runInfo["finished_at"] = run.FinishedAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"chunked": true,
		"run":     runInfo,
		"statistics": map[string]interface{}{
			"files_count":   status.FilesCount,
			"chunks_count":  status.ChunksCount,
			"edges_count":   status.EdgesCount,
			"samples_count": status.SamplesCount,
			"db_size_mb":    fmt.Sprintf("%.2f", status.DatabaseSizeMB),
		},
		"order":           order,
		"run_in_progress": s.lock.Held(),
	}
	if includeContent {
		stored := make([]map[string]interface{}, len(files))
		for i, f := range files {
			stored[i] = map[string]interface{}{
				"path":     f.Path,
				"language": f.Language,
				"chunks":   len(f.Chunks),
				"content":  f.Source(),
			}
		}
		response["files"] = stored
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// collect gathers the recognized files under path
func (s *Server) collect(ctx context.Context, path string) ([]types.FileEntry, error) {
	files, err := s.newCollector().Collect(ctx, path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to collect files", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if len(files) == 0 {
		return nil, newMCPError(ErrorCodeNoSourceFiles, "no recognized source files", map[string]interface{}{
			"path": path,
		})
	}
	return files, nil
}

// Helper functions

// pathArgs extracts the arguments map and the validated path parameter
func pathArgs(request mcp.CallToolRequest) (map[string]interface{}, string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	// Validate path exists and is accessible
	if err := validatePath(path); err != nil {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return args, filepath.Clean(path), nil
}

// toolError maps a pipeline failure onto an MCP error
func toolError(err error) error {
	var cycle *types.CycleError
	switch {
	case errors.As(err, &cycle):
		return newMCPError(ErrorCodeCycleDetected, "imports form a cycle", map[string]interface{}{
			"cycle":     cycle.Cycle,
			"remaining": cycle.Remaining,
		})
	case errors.Is(err, types.ErrInvalidSplitRatio),
		errors.Is(err, types.ErrTokenizerLoad),
		errors.Is(err, types.ErrInvalidMaxTokens):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	log.Error().Err(err).Msg("run failed")
	return newMCPError(ErrorCodeInternalError, "run failed", map[string]interface{}{
		"error": err.Error(),
	})
}

func addErrors(response map[string]interface{}, messages []string) {
	if len(messages) == 0 {
		return
	}
	if len(messages) > maxErrorsReported {
		response["errors"] = messages[:maxErrorsReported]
		response["error_count"] = len(messages)
		return
	}
	response["errors"] = messages
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path is an accessible directory holding at least
// one recognized source file
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	// Check if path exists
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	// Check if it's a directory
	if !info.IsDir() {
		return ErrNotDirectory
	}

	// Check if directory is readable
	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	found := false
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if collector.Recognized(types.ExtensionOf(p)) {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	if !found {
		return ErrNoSourceFiles
	}

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNoSourceFiles   = errors.New("directory does not contain recognized source files")
)

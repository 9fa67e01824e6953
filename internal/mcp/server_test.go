package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/r2md/internal/config"
	"github.com/dshills/r2md/pkg/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "r2md.db")
	cfg.Workers = 2

	server, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return server
}

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decodeResult(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireCode(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok, "expected *MCPError, got %T", err)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

var pythonRepo = map[string]string{
	"base.py": "VALUE = 42\n",
	"app.py":  "import base\n\ndef main():\n    return base.VALUE\n",
	"util.py": "from app import main\n\nprint(main())\n",
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t)
	assert.NotNil(t, server.mcp)
	assert.NotNil(t, server.storage)
	assert.NotNil(t, server.config)
}

func TestNewServer_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "r2md.db")
	cfg.SplitRatio = 1.5

	_, err := NewServer(cfg)
	assert.Error(t, err)
}

func TestResolveDBPath(t *testing.T) {
	got, err := resolveDBPath(":memory:")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", got)

	dir := t.TempDir()
	got, err = resolveDBPath(filepath.Join(dir, "nested", "r2md.db"))
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, "nested"))
	assert.Equal(t, filepath.Join(dir, "nested", "r2md.db"), got)

	t.Setenv("HOME", dir)
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err = resolveDBPath("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".r2md", "r2md.db"), got)
}

func TestHandleChunkRepository(t *testing.T) {
	server := newTestServer(t)
	root := writeRepo(t, pythonRepo)
	ctx := context.Background()

	res, err := server.handleChunkRepository(ctx, callRequest("chunk_repository", map[string]interface{}{
		"path":           root,
		"include_chunks": true,
	}))
	require.NoError(t, err)

	out := decodeResult(t, res)
	assert.Equal(t, float64(3), out["files_processed"])
	assert.Equal(t, float64(2), out["edges"])
	assert.Equal(t, []interface{}{"base.py", "app.py", "util.py"}, out["order"])
	assert.NotEmpty(t, out["run_id"])
	assert.NotEmpty(t, out["chunks"])
	assert.False(t, server.lock.Held(), "lock must be released")

	res, err = server.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{"path": root}))
	require.NoError(t, err)
	status := decodeResult(t, res)
	assert.Equal(t, true, status["chunked"])

	stats := status["statistics"].(map[string]interface{})
	assert.Equal(t, float64(3), stats["files_count"])
	assert.Equal(t, float64(2), stats["edges_count"])

	run := status["run"].(map[string]interface{})
	assert.Equal(t, out["run_id"], run["id"])
	assert.Equal(t, []interface{}{"base.py", "app.py", "util.py"}, status["order"])
	assert.NotContains(t, status, "files")
}

func TestHandleGetStatus_IncludeContent(t *testing.T) {
	server := newTestServer(t)
	root := writeRepo(t, pythonRepo)
	ctx := context.Background()

	_, err := server.handleChunkRepository(ctx, callRequest("chunk_repository", map[string]interface{}{"path": root}))
	require.NoError(t, err)

	res, err := server.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{
		"path":            root,
		"include_content": true,
	}))
	require.NoError(t, err)
	status := decodeResult(t, res)

	files, ok := status["files"].([]interface{})
	require.True(t, ok, "files must be a list")
	require.Len(t, files, 3)

	tests := []struct {
		idx  int
		path string
	}{
		{0, "base.py"},
		{1, "app.py"},
		{2, "util.py"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := files[tt.idx].(map[string]interface{})
			assert.Equal(t, tt.path, f["path"])
			assert.Equal(t, "python", f["language"])
			assert.Equal(t, pythonRepo[tt.path], f["content"])
		})
	}
}

func TestHandleChunkRepository_NoSave(t *testing.T) {
	server := newTestServer(t)
	root := writeRepo(t, pythonRepo)
	ctx := context.Background()

	res, err := server.handleChunkRepository(ctx, callRequest("chunk_repository", map[string]interface{}{
		"path": root,
		"save": false,
	}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.NotContains(t, out, "run_id")
	assert.NotContains(t, out, "chunks")

	res, err = server.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{"path": root}))
	require.NoError(t, err)
	assert.Equal(t, false, decodeResult(t, res)["chunked"])
}

func TestHandleChunkRepository_Cycle(t *testing.T) {
	server := newTestServer(t)
	root := writeRepo(t, map[string]string{
		"a.py": "import b\n",
		"b.py": "import a\n",
	})
	ctx := context.Background()

	_, err := server.handleChunkRepository(ctx, callRequest("chunk_repository", map[string]interface{}{"path": root}))
	mcpErr := requireCode(t, err, ErrorCodeCycleDetected)
	data := mcpErr.Data.(map[string]interface{})
	assert.NotEmpty(t, data["cycle"])
	assert.False(t, server.lock.Held())

	res, err := server.handleChunkRepository(ctx, callRequest("chunk_repository", map[string]interface{}{
		"path":         root,
		"allow_cycles": true,
	}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, true, out["cycle_ignored"])
	assert.Equal(t, []interface{}{"a.py", "b.py"}, out["order"])
}

func TestHandleChunkRepository_RunInProgress(t *testing.T) {
	server := newTestServer(t)
	root := writeRepo(t, pythonRepo)

	require.True(t, server.lock.TryAcquire())
	defer server.lock.Release()

	_, err := server.handleChunkRepository(context.Background(), callRequest("chunk_repository", map[string]interface{}{"path": root}))
	requireCode(t, err, ErrorCodeRunInProgress)

	_, err = server.handleGenerateSamples(context.Background(), callRequest("generate_samples", map[string]interface{}{"path": root}))
	requireCode(t, err, ErrorCodeRunInProgress)
}

func TestHandleChunkRepository_InvalidParams(t *testing.T) {
	server := newTestServer(t)
	root := writeRepo(t, pythonRepo)
	ctx := context.Background()

	tests := []struct {
		name string
		args interface{}
		code int
	}{
		{"arguments not an object", "nope", ErrorCodeInvalidParams},
		{"missing path", map[string]interface{}{}, ErrorCodeInvalidParams},
		{"relative path", map[string]interface{}{"path": "repo"}, ErrorCodeInvalidParams},
		{"missing directory", map[string]interface{}{"path": filepath.Join(root, "missing")}, ErrorCodeInvalidParams},
		{"negative budget", map[string]interface{}{"path": root, "max_context_tokens": float64(-1)}, ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mcp.CallToolRequest{}
			req.Params.Name = "chunk_repository"
			req.Params.Arguments = tt.args
			_, err := server.handleChunkRepository(ctx, req)
			requireCode(t, err, tt.code)
		})
	}
}

func TestHandleDependencyOrder(t *testing.T) {
	server := newTestServer(t)
	root := writeRepo(t, pythonRepo)

	res, err := server.handleDependencyOrder(context.Background(), callRequest("dependency_order", map[string]interface{}{"path": root}))
	require.NoError(t, err)

	out := decodeResult(t, res)
	assert.Equal(t, float64(3), out["files"])
	assert.Equal(t, []interface{}{"base.py", "app.py", "util.py"}, out["order"])
}

func TestHandleGenerateSamples_Inline(t *testing.T) {
	server := newTestServer(t)
	root := writeRepo(t, pythonRepo)

	res, err := server.handleGenerateSamples(context.Background(), callRequest("generate_samples", map[string]interface{}{
		"path":        root,
		"split_ratio": 0.5,
	}))
	require.NoError(t, err)

	out := decodeResult(t, res)
	assert.Equal(t, 0.5, out["split_ratio"])
	assert.Equal(t, "cl100k_base", out["tokenizer"])
	assert.Equal(t, float64(3), out["samples"])

	samples := out["training_samples"].([]interface{})
	require.Len(t, samples, 3)
	first := samples[0].(map[string]interface{})
	assert.Equal(t, "VALUE = 42\n", first["prompt"].(string)+first["completion"].(string))
}

func TestHandleGenerateSamples_Output(t *testing.T) {
	server := newTestServer(t)
	root := writeRepo(t, pythonRepo)
	output := filepath.Join(t.TempDir(), "samples.json")

	res, err := server.handleGenerateSamples(context.Background(), callRequest("generate_samples", map[string]interface{}{
		"path":   root,
		"output": output,
	}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, output, out["output"])
	assert.NotContains(t, out, "training_samples")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var samples []types.TrainingSample
	require.NoError(t, json.Unmarshal(data, &samples))
	assert.Len(t, samples, 3)
}

func TestHandleGenerateSamples_InvalidParams(t *testing.T) {
	server := newTestServer(t)
	root := writeRepo(t, pythonRepo)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"ratio of one", map[string]interface{}{"path": root, "split_ratio": 1.0}},
		{"ratio of zero", map[string]interface{}{"path": root, "split_ratio": 0.0}},
		{"relative output", map[string]interface{}{"path": root, "output": "samples.json"}},
		{"unknown tokenizer", map[string]interface{}{"path": root, "tokenizer": "no-such-vocab"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := server.handleGenerateSamples(ctx, callRequest("generate_samples", tt.args))
			requireCode(t, err, ErrorCodeInvalidParams)
		})
	}
}

func TestValidatePath(t *testing.T) {
	withSource := writeRepo(t, map[string]string{"src/lib.rs": "pub fn x() {}\n"})
	withoutSource := writeRepo(t, map[string]string{"README.md": "# hi\n"})
	file := filepath.Join(withSource, "src", "lib.rs")

	tests := []struct {
		name string
		path string
		want error
	}{
		{"valid", withSource, nil},
		{"empty", "", ErrPathRequired},
		{"relative", "src", ErrPathNotAbsolute},
		{"missing", filepath.Join(withSource, "nope"), ErrPathNotFound},
		{"file", file, ErrNotDirectory},
		{"no source files", withoutSource, ErrNoSourceFiles},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]interface{}{
		"flag":   true,
		"float":  float64(12),
		"int":    7,
		"name":   "o200k_base",
		"empty":  "",
		"string": 3,
	}

	assert.True(t, getBoolDefault(args, "flag", false))
	assert.True(t, getBoolDefault(args, "missing", true))
	assert.Equal(t, 12, getIntDefault(args, "float", 0))
	assert.Equal(t, 7, getIntDefault(args, "int", 0))
	assert.Equal(t, 5, getIntDefault(args, "missing", 5))
	assert.Equal(t, "o200k_base", getStringDefault(args, "name", "x"))
	assert.Equal(t, "x", getStringDefault(args, "empty", "x"))
	assert.Equal(t, "x", getStringDefault(args, "string", "x"))
}

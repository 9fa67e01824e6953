package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the repository root",
}

// chunkRepositoryTool returns the tool definition for chunk_repository
func chunkRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "chunk_repository",
		Description: "Chunk a repository's source files at syntactic boundaries, order them by dependency and save the run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty,
				"max_context_tokens": map[string]interface{}{
					"type":        "integer",
					"description": "Split chunks longer than this many tokens (0 disables splitting)",
					"minimum":     0,
				},
				"allow_cycles": map[string]interface{}{
					"type":        "boolean",
					"description": "Keep scan order instead of failing when imports form a cycle",
					"default":     false,
				},
				"include_chunks": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, return the text of every chunk",
					"default":     false,
				},
				"save": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, replace the stored run for this path",
					"default":     true,
				},
			},
			Required: []string{"path"},
		},
	}
}

// dependencyOrderTool returns the tool definition for dependency_order
func dependencyOrderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "dependency_order",
		Description: "List a repository's source files with every file after the files it imports",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty,
				"include_content": map[string]interface{}{
					"type":        "boolean",
					"description": "Return the stored text of every file",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// generateSamplesTool returns the tool definition for generate_samples
func generateSamplesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "generate_samples",
		Description: "Cut one prompt/completion training sample per source file at a token ratio",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty,
				"split_ratio": map[string]interface{}{
					"type":             "number",
					"description":      "Share of each file's tokens that goes to the prompt",
					"default":          0.8,
					"exclusiveMinimum": 0,
					"exclusiveMaximum": 1,
				},
				"tokenizer": map[string]interface{}{
					"type":        "string",
					"description": "Vocabulary name, e.g. cl100k_base, o200k_base or tiktoken-go:cl100k_base",
				},
				"output": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of a JSON file to write; samples are returned inline when omitted",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Show the stored run for a repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty,
			},
			Required: []string{"path"},
		},
	}
}

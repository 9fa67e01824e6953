// Package mcp implements the Model Context Protocol (MCP) server for r2md.
//
// The server exposes four tools to AI coding assistants:
//   - chunk_repository: Chunk a repository, order it by dependency and save the run
//   - dependency_order: List the files of a repository in dependency order
//   - generate_samples: Cut prompt/completion training samples from every file
//   - get_status: Show the stored run for a repository
//
// The server speaks JSON-RPC 2.0 over stdio and is started with:
//
//	r2md serve
//
// # Tool: chunk_repository
//
//	Request:
//	{
//	  "name": "chunk_repository",
//	  "arguments": {
//	    "path": "/path/to/repo",
//	    "max_context_tokens": 2048,
//	    "include_chunks": false
//	  }
//	}
//
//	Response:
//	{
//	  "files_processed": 42,
//	  "chunks_created": 318,
//	  "chunks_split": 4,
//	  "edges": 57,
//	  "order": ["src/util.rs", "src/lib.rs", "src/main.rs"],
//	  "run_id": "9b7c..."
//	}
//
// # Tool: generate_samples
//
//	Request:
//	{
//	  "name": "generate_samples",
//	  "arguments": {
//	    "path": "/path/to/repo",
//	    "split_ratio": 0.8,
//	    "output": "/tmp/samples.json"
//	  }
//	}
//
// Without output the samples are returned inline as training_samples.
//
// # Error Handling
//
// Errors carry a JSON-RPC code:
//   - -32602: Invalid params (missing path, bad ratio, unknown tokenizer)
//   - -32603: Internal error (database, filesystem)
//   - -32001: No recognized source files under path
//   - -32002: Another chunk or sample run is in progress
//   - -32003: Imports form a cycle; data holds the cycle
//
// The server logs to stderr; stdout is reserved for the protocol.
package mcp

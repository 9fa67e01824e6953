// Package types provides shared type definitions for the r2md pipeline.
//
// This package defines the values that flow between the chunker, the
// dependency graph, the token budgeter and the exporters.
//
// # Core Types
//
// FileEntry is one candidate file as handed over by the collector:
//
//	entry := types.FileEntry{
//	    RelativePath: "src/lib.rs",
//	    Content:      source,
//	}
//
// CodeChunk is a contiguous span of one file, tagged with the language it
// was parsed as. Chunks of a file keep source order:
//
//	chunk := types.CodeChunk{
//	    Text:     "fn main() {}",
//	    Language: types.LangRust,
//	}
//
// ChunkedFile groups a file's chunks after chunking and splitting, and is
// what the exporters consume in dependency order.
//
// TrainingSample is a prompt/completion pair cut at a token boundary. Its
// JSON form is the sample file format:
//
//	{"prompt": "...", "completion": "...", "prompt_tokens": 8,
//	 "completion_tokens": 2, "tokenizer": "cl100k_base"}
//
// # Errors
//
// Sentinel errors identify each failure class and typed errors carry the
// details:
//
//	var cycle *types.CycleError
//	if errors.As(err, &cycle) {
//	    fmt.Println(strings.Join(cycle.Cycle, " -> "))
//	}
//
//	if errors.Is(err, types.ErrInvalidSplitRatio) {
//	    // rejected before any file was processed
//	}
package types

// Package chunker splits source files into top-level declaration chunks.
//
// A fixed dispatch table maps file extensions to strategies. Each syntactic
// strategy parses the file with its tree-sitter grammar and emits one chunk
// per interesting direct child of the root, in document order:
//
//	c := chunker.New()
//	chunks := c.Chunk(ctx, "fn main() {}", "rs")
//	// [{Text: "fn main() {}", Language: rust}]
//
// # Degradation
//
// A file whose grammar cannot be loaded, whose parse fails, or which has no
// interesting declarations is emitted as one chunk holding the whole file,
// tagged with the language. Files with an unregistered extension go through
// the fallback chunker, which starts a new chunk at every line that looks
// like a declaration (function, class, def, fn, func). Fallback chunks
// concatenate back to the original text byte for byte.
//
// Nested declarations are never split out: only the root's direct children
// are inspected.
package chunker

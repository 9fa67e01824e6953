// Package tokenizer provides the BPE vocabularies used for token budgeting.
//
// Load resolves a selector once per process and hands every caller the
// same immutable codec:
//
//	enc, err := tokenizer.Load("cl100k_base")
//	ids, err := enc.Encode("fn main() {}")
//	text, err := enc.Decode(ids[:2])
//
// Plain encoding names (cl100k_base, o200k_base, p50k_base, p50k_edit,
// r50k_base) and model names (gpt-4o, gpt-4, ...) use vocabularies
// compiled into the binary. A "tiktoken-go:" prefix selects the backend
// that downloads the vocabulary on first use instead.
//
// Decode failures wrap types.ErrDecodeFailure; load failures wrap
// types.ErrTokenizerLoad.
package tokenizer

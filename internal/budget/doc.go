// Package budget enforces token budgets on chunks and cuts training samples.
//
// A Splitter re-encodes each chunk and replaces any chunk longer than the
// budget with consecutive, non-overlapping windows of at most that many
// tokens. The windows partition the token sequence exactly:
//
//	s, _ := budget.NewSplitter(enc, 2048)
//	chunks = s.Split(chunks) // a 6000-token chunk becomes 2048, 2048, 1904
//
// A Sampler cuts whole files at ceil(total * ratio) tokens into a prompt
// and a completion. Files with fewer than two tokens are skipped and the
// ratio is checked before anything is encoded.
package budget

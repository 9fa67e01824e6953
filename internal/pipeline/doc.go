// Package pipeline runs the ingestion stages over a set of collected files.
//
// Run chunks every file on a bounded worker pool, re-splits chunks that
// exceed the token budget, extracts import edges and returns the chunked
// files in dependency order (dependencies first):
//
//	cfg := pipeline.DefaultConfig()
//	cfg.MaxContextTokens = 2048
//	p, err := pipeline.New(&cfg)
//	res, err := p.Run(ctx, files)
//	for _, f := range res.Files {
//	    fmt.Println(f.Path, len(f.Chunks))
//	}
//
// Samples orders the same files and cuts one prompt/completion pair per
// file at the configured split ratio.
//
// Per-file chunking problems never fail a run. They are counted in
// Statistics.FilesDegraded and described in Statistics.ErrorMessages. A
// dependency cycle fails the run unless Config.AllowCycles is set, and a
// tokenizer that cannot be loaded always does.
package pipeline

// Package config loads r2md settings.
//
// Settings are layered: built-in defaults, then the first of r2md.yml,
// r2md.yaml or r2md.toml found in the working directory, then a .env file,
// then R2MD_* environment variables. Command-line flags are applied last by
// the caller.
//
//	# r2md.yml
//	max_context_tokens: 2048
//	split_ratio: 0.75
//	ignore_patterns:
//	  - generated/
//	  - "**/*_test.go"
package config

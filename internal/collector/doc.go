// Package collector walks root directories and reads the text files the
// rest of the tool works on.
//
// A file is collected when its extension is recognized, it is not hidden,
// it is no larger than the size cap (5 MiB by default), no ignore pattern
// or root .gitignore rule matches it, and its content is valid UTF-8.
// Dependency, build and VCS folders are never entered. Files are returned
// in lexical walk order with slash-separated paths relative to their root.
package collector

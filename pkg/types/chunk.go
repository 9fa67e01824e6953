package types

import (
	"path"
	"strings"
)

// Language tags a chunk with the language it was parsed as. Files without a
// grammar are tagged with their lower-cased extension instead.
type Language string

const (
	LangRust       Language = "rust"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJava       Language = "java"
	LangCpp        Language = "cpp"
	LangGo         Language = "go"

	// LangText is used for fallback chunks of files with no extension
	LangText Language = "text"
)

// CodeChunk is a contiguous, non-overlapping span of one file's text
type CodeChunk struct {
	Text     string
	Language Language
}

// FileEntry is one candidate file handed to the pipeline
type FileEntry struct {
	RelativePath string // slash separated, unique within a run
	Content      string
}

// Extension returns the lower-cased extension of the entry's path without the dot
func (f FileEntry) Extension() string {
	return ExtensionOf(f.RelativePath)
}

// ExtensionOf returns the lower-cased extension of p without the leading dot
func ExtensionOf(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

// ChunkedFile is a file re-emitted as its ordered list of chunks. Syntactic
// chunks need not cover the whole file, so Content keeps the text it was
// chunked from.
type ChunkedFile struct {
	Path     string
	Language Language
	Content  string
	Chunks   []CodeChunk
}

// Text concatenates the file's chunks in order
func (cf *ChunkedFile) Text() string {
	var b strings.Builder
	for _, c := range cf.Chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

// Source returns the file's full text, falling back to its chunks when the
// content was not kept
func (cf *ChunkedFile) Source() string {
	if cf.Content != "" {
		return cf.Content
	}
	return cf.Text()
}

// FallbackLanguage returns the tag used for files chunked without a grammar
func FallbackLanguage(ext string) Language {
	if ext == "" {
		return LangText
	}
	return Language(strings.ToLower(ext))
}

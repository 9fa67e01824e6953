// Package render writes ordered, chunked files as Markdown and converts the
// Markdown to HTML with goldmark.
package render

package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dshills/r2md/pkg/types"
)

// Document is one Markdown export
type Document struct {
	Trees []string             // one directory listing per root
	Files []*types.ChunkedFile // output order
}

// Options controls how code sections are written
type Options struct {
	// ChunkFences writes every chunk of a multi-chunk file in its own
	// fenced block instead of one block per file
	ChunkFences bool
}

// Markdown writes doc to w. Each root gets a "Repository Markdown Export"
// header with its directory structure, followed by one "Code" section with
// a heading and fenced block per file. Only ChunkFences splits a file into
// its chunks; otherwise the block holds the whole source.
func Markdown(w io.Writer, doc Document, opts Options) error {
	bw := bufio.NewWriter(w)

	for _, tree := range doc.Trees {
		bw.WriteString("# Repository Markdown Export\n\n")
		bw.WriteString("## Directory Structure\n\n")
		writeFence(bw, "", tree)
		bw.WriteString("\n")
	}

	bw.WriteString("## Code\n\n")
	for _, f := range doc.Files {
		fmt.Fprintf(bw, "### `%s`\n\n", f.Path)
		info := fenceInfo(f.Language)
		if opts.ChunkFences && len(f.Chunks) > 1 {
			for _, c := range f.Chunks {
				writeFence(bw, info, c.Text)
				bw.WriteString("\n")
			}
			continue
		}
		writeFence(bw, info, f.Source())
		bw.WriteString("\n")
	}

	return bw.Flush()
}

// Stream writes files to w as they come, without directory structure. It is
// used when output is piped.
func Stream(w io.Writer, files []*types.ChunkedFile) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("# r2md Streaming Output\n\n")
	for _, f := range files {
		fmt.Fprintf(bw, "### `%s`\n\n", f.Path)
		writeFence(bw, "", f.Source())
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// WriteMarkdownFile renders doc to path, replacing any existing file
func WriteMarkdownFile(path string, doc Document, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Markdown(f, doc, opts); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// writeFence writes body in a fenced block long enough that no backtick run
// inside body closes it
func writeFence(w *bufio.Writer, info, body string) {
	fence := strings.Repeat("`", max(3, longestRun(body, '`')+1))
	w.WriteString(fence)
	w.WriteString(info)
	w.WriteString("\n")
	w.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		w.WriteString("\n")
	}
	w.WriteString(fence)
	w.WriteString("\n")
}

func fenceInfo(lang types.Language) string {
	if lang == "" || lang == types.LangText {
		return "plaintext"
	}
	return string(lang)
}

func longestRun(s string, c byte) int {
	best, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			run++
			best = max(best, run)
		} else {
			run = 0
		}
	}
	return best
}

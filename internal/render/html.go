package render

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// HTML converts Markdown source to a standalone HTML page titled title
func HTML(w io.Writer, title string, source []byte) error {
	var body bytes.Buffer
	if err := markdown.Convert(source, &body); err != nil {
		return fmt.Errorf("failed to convert markdown: %w", err)
	}

	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(title), body.Bytes())
	return err
}

// WriteHTMLFile renders doc as Markdown and writes its HTML conversion to path
func WriteHTMLFile(path, title string, doc Document, opts Options) error {
	var src bytes.Buffer
	if err := Markdown(&src, doc, opts); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := HTML(f, title, src.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// HTMLPath returns the HTML output path that goes with a Markdown path
func HTMLPath(mdPath string) string {
	if len(mdPath) > 3 && mdPath[len(mdPath)-3:] == ".md" {
		return mdPath[:len(mdPath)-3] + ".html"
	}
	return mdPath + ".html"
}

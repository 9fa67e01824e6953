package collector

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Tree renders the directory listing of root used in the Markdown export:
//
//	- project/
//	  - src/
//	    - src/main.rs
//
// Hidden entries, skipped folders and files that would not be collected are
// left out. Ignore patterns and .gitignore do not apply.
func (c *Collector) Tree(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	listing := New(Options{MaxFileSize: c.opts.MaxFileSize})

	var b strings.Builder
	fmt.Fprintf(&b, "- %s/\n", filepath.Base(abs))

	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil || p == abs {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		indent := strings.Repeat("  ", strings.Count(rel, "/")+1)

		if d.IsDir() {
			if skipFolder(d.Name()) {
				return filepath.SkipDir
			}
			fmt.Fprintf(&b, "%s- %s/\n", indent, rel)
			return nil
		}
		if !d.Type().IsRegular() || listing.skipFile(p, rel, d) != "" {
			return nil
		}
		fmt.Fprintf(&b, "%s- %s\n", indent, rel)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/dshills/r2md/pkg/types"
)

// DefaultMaxFileSize is the largest file collected, in bytes
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

// ErrNotDirectory is returned by Tree for a root that is not a directory
var ErrNotDirectory = errors.New("not a directory")

// Options controls which files are collected
type Options struct {
	// IgnorePatterns skip any file whose path contains one of them. Patterns
	// with glob characters are also matched against the root-relative path
	// with doublestar semantics.
	IgnorePatterns []string

	// MaxFileSize defaults to DefaultMaxFileSize
	MaxFileSize int64

	// NoGitignore disables the root .gitignore
	NoGitignore bool
}

// Collector walks root directories and returns their recognized text files
type Collector struct {
	opts Options
}

// New creates a collector
func New(opts Options) *Collector {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	return &Collector{opts: opts}
}

// Collect walks every root in order and returns the collected files in walk
// order. Roots that are not directories are skipped. A relative path that an
// earlier root already produced is prefixed with the later root's name.
func (c *Collector) Collect(ctx context.Context, roots ...string) ([]types.FileEntry, error) {
	var out []types.FileEntry
	seen := make(map[string]struct{})

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			log.Warn().Str("root", root).Msg("not a directory, skipped")
			continue
		}

		entries, err := c.collectRoot(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("failed to collect %s: %w", root, err)
		}

		for _, e := range entries {
			if _, dup := seen[e.RelativePath]; dup {
				renamed := path.Join(rootName(root), e.RelativePath)
				if _, dup := seen[renamed]; dup {
					log.Warn().Str("file", e.RelativePath).Str("root", root).Msg("duplicate path, skipped")
					continue
				}
				log.Debug().Str("file", e.RelativePath).Str("as", renamed).Msg("duplicate path renamed")
				e.RelativePath = renamed
			}
			seen[e.RelativePath] = struct{}{}
			out = append(out, e)
		}
	}

	log.Debug().Int("files", len(out)).Int("roots", len(roots)).Msg("collection finished")
	return out, nil
}

func (c *Collector) collectRoot(ctx context.Context, root string) ([]types.FileEntry, error) {
	var gi *gitignore
	if !c.opts.NoGitignore {
		var err error
		gi, err = loadGitignore(root)
		if err != nil {
			log.Warn().Err(err).Str("root", root).Msg("could not read .gitignore")
		}
	}

	var files []types.FileEntry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == root {
				return err
			}
			log.Debug().Err(err).Str("path", p).Msg("unreadable entry, skipped")
			return nil
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipFolder(d.Name()) || gi.match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if reason := c.skipFile(p, rel, d); reason != "" {
			log.Debug().Str("file", rel).Str("reason", reason).Msg("file skipped")
			return nil
		}
		if gi.match(rel, false) {
			log.Debug().Str("file", rel).Str("reason", "gitignore").Msg("file skipped")
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			log.Debug().Err(err).Str("file", rel).Msg("unreadable file, skipped")
			return nil
		}
		if !utf8.Valid(data) {
			log.Debug().Str("file", rel).Msg("not valid UTF-8, skipped")
			return nil
		}

		files = append(files, types.FileEntry{RelativePath: rel, Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// skipFolder reports whether a directory named name is never entered
func skipFolder(name string) bool {
	return strings.HasPrefix(name, ".") || skipFolders.has(name)
}

// skipFile returns why a file is not collected, or "" to collect it
func (c *Collector) skipFile(full, rel string, d fs.DirEntry) string {
	if strings.HasPrefix(d.Name(), ".") {
		return "hidden"
	}

	ext := types.ExtensionOf(rel)
	if !recognized.has(ext) {
		if binary.has(ext) {
			return "binary"
		}
		return "unrecognized extension"
	}

	if c.ignored(filepath.ToSlash(full), rel) {
		return "ignore pattern"
	}

	info, err := d.Info()
	if err == nil && info.Size() > c.opts.MaxFileSize {
		return "too large"
	}
	return ""
}

func (c *Collector) ignored(full, rel string) bool {
	for _, pat := range c.opts.IgnorePatterns {
		if pat == "" {
			continue
		}
		if strings.Contains(full, pat) {
			return true
		}
		if hasGlob(pat) && globMatch(pat, rel) {
			return true
		}
	}
	return false
}

func rootName(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return filepath.Base(root)
}

package collector

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/rs/zerolog/log"
)

// gitignore holds the patterns of one root .gitignore. Negations and nested
// .gitignore files are not supported.
type gitignore struct {
	rules []ignoreRule
}

type ignoreRule struct {
	pattern string // doublestar pattern over root-relative slash paths
	dirOnly bool
}

// loadGitignore reads root/.gitignore. A missing file yields nil, which
// matches nothing.
func loadGitignore(root string) (*gitignore, error) {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gi := &gitignore{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "!") {
			log.Debug().Str("pattern", line).Msg("gitignore negation not supported")
			continue
		}
		gi.rules = append(gi.rules, parseIgnoreRule(line))
	}
	return gi, scanner.Err()
}

func parseIgnoreRule(line string) ignoreRule {
	var r ignoreRule
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	// a pattern with an inner slash is anchored at the root
	if strings.Contains(line, "/") {
		r.pattern = strings.TrimPrefix(line, "/")
	} else {
		r.pattern = "**/" + line
	}
	return r
}

func (g *gitignore) match(rel string, isDir bool) bool {
	if g == nil {
		return false
	}
	for _, r := range g.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if globMatch(r.pattern, rel) {
			return true
		}
	}
	return false
}

func hasGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// globMatch matches a slash path, treating a malformed pattern as no match
func globMatch(pattern, rel string) bool {
	ok, err := doublestar.Match(pattern, rel)
	if err != nil {
		log.Debug().Err(err).Str("pattern", pattern).Msg("bad glob pattern")
		return false
	}
	return ok
}

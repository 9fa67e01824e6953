package depgraph

import (
	"path"
	"strings"
)

// extractor maps one trimmed source line to candidate file paths. importer
// is the relative path of the file being scanned.
type extractor func(line, importer string) []string

var (
	jsImports = quotedImport(".js")
	tsImports = quotedImport(".ts")
)

// extractors is keyed by lower-cased extension. Extensions missing here add
// no edges. Read only after init.
var extractors = map[string]extractor{
	"rs": rustImport,

	"py":  pythonImport,
	"pyi": pythonImport,

	"js":  jsImports,
	"mjs": jsImports,
	"cjs": jsImports,
	"jsx": jsImports,

	"ts":  tsImports,
	"mts": tsImports,
	"cts": tsImports,
	"tsx": tsImports,

	"java": javaImport,

	"c":   includeDirective,
	"h":   includeDirective,
	"cc":  includeDirective,
	"cpp": includeDirective,
	"cxx": includeDirective,
	"hh":  includeDirective,
	"hpp": includeDirective,
	"hxx": includeDirective,
}

// Scan returns the normalized candidate paths referenced by content, in
// the order they appear. Duplicates are kept; the graph drops them.
func Scan(relPath, ext, content string) []string {
	extract, ok := extractors[ext]
	if !ok {
		return nil
	}

	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, cand := range extract(line, relPath) {
			if norm := normalize(cand, relPath); norm != "" {
				out = append(out, norm)
			}
		}
	}
	return out
}

// use a::b::c;  ->  a/b/c.rs
func rustImport(line, _ string) []string {
	rest, ok := strings.CutPrefix(line, "use ")
	if !ok {
		return nil
	}
	rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), ";"))
	if rest == "" {
		return nil
	}
	return []string{withExt(strings.ReplaceAll(rest, "::", "/"), ".rs")}
}

// import a.b / from a.b import c  ->  a/b.py
// from ..pkg import x             ->  <importer dir>/../pkg.py
func pythonImport(line, importer string) []string {
	if !strings.HasPrefix(line, "import ") && !strings.HasPrefix(line, "from ") {
		return nil
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil
	}
	module := strings.TrimSuffix(fields[1], ",")

	dots := len(module) - len(strings.TrimLeft(module, "."))
	module = module[dots:]
	if module == "" {
		return nil
	}
	candidate := withExt(strings.ReplaceAll(module, ".", "/"), ".py")
	if dots == 0 {
		return []string{candidate}
	}

	dir := path.Dir(importer)
	for i := 1; i < dots; i++ {
		dir = path.Join(dir, "..")
	}
	return rooted(path.Join(dir, candidate))
}

// import x from "./y"  ->  ./y<ext>, unless already .js or .ts
func quotedImport(ext string) extractor {
	return func(line, _ string) []string {
		if !strings.HasPrefix(line, "import ") {
			return nil
		}
		spec, ok := quoted(line, "\"'`")
		if !ok || spec == "" {
			return nil
		}
		if strings.HasSuffix(spec, ".js") || strings.HasSuffix(spec, ".ts") {
			return []string{spec}
		}
		return []string{spec + ext}
	}
}

// import [static] a.b.C;  ->  a/b/C.java
func javaImport(line, _ string) []string {
	rest, ok := strings.CutPrefix(line, "import ")
	if !ok {
		return nil
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, "static ")
	rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), ";"))
	if rest == "" {
		return nil
	}
	return []string{strings.ReplaceAll(rest, ".", "/") + ".java"}
}

// #include "a/b.h" resolves against the including file's directory, then
// against the root
func includeDirective(line, importer string) []string {
	rest, ok := strings.CutPrefix(line, "#include")
	if !ok {
		return nil
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, `"`) {
		return nil
	}
	spec, ok := quoted(rest, `"`)
	if !ok || spec == "" {
		return nil
	}
	return append(rooted(path.Join(path.Dir(importer), spec)), spec)
}

// rooted drops an already resolved path that escapes the root
func rooted(p string) []string {
	if p == ".." || strings.HasPrefix(p, "../") {
		return nil
	}
	return []string{p}
}

// quoted returns the text between the first quote character in line and
// the next occurrence of the same character
func quoted(line, quotes string) (string, bool) {
	start := strings.IndexAny(line, quotes)
	if start < 0 {
		return "", false
	}
	q := line[start]
	end := strings.IndexByte(line[start+1:], q)
	if end < 0 {
		return "", false
	}
	return line[start+1 : start+1+end], true
}

func withExt(p, ext string) string {
	if strings.HasSuffix(p, ext) {
		return p
	}
	return p + ext
}

// normalize makes a candidate comparable with node paths. Relative specs
// ("./x", "../x") resolve against the importer's directory.
func normalize(candidate, importer string) string {
	if strings.HasPrefix(candidate, "./") || strings.HasPrefix(candidate, "../") {
		candidate = path.Join(path.Dir(importer), candidate)
	}
	candidate = path.Clean(candidate)
	candidate = strings.TrimPrefix(candidate, "./")
	candidate = strings.TrimPrefix(candidate, "/")
	if candidate == "." || candidate == "" || strings.HasPrefix(candidate, "../") {
		return ""
	}
	return candidate
}

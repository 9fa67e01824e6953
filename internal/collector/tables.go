package collector

// recognized lists the extensions that are collected. It covers every
// extension the chunker has a grammar for plus common text-based languages
// that are chunked by the line fallback.
var recognized = newSet(
	"rs",
	"py", "pyi",
	"js", "mjs", "cjs", "jsx",
	"ts", "mts", "cts", "tsx",
	"c", "h",
	"cpp", "hpp", "cc", "cxx", "hh", "hxx",
	"java",
	"cs",
	"go",
	"rb",
	"php",
	"swift",
	"kt", "kts",
	"m", "mm",
	"sh",
	"bat",
	"fs",
	"vb",
	"scala",
)

// binary extensions are skipped without reading
var binary = newSet(
	"jpg", "jpeg", "png", "gif", "exe", "dll", "so", "dylib", "pdf", "mp4", "mov", "zip", "tar",
	"gz", "bz2", "7z", "class", "jar", "psd", "obj", "lib", "a", "iso", "ico", "ttf", "woff",
	"woff2", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "apk", "msi", "o", "out", "bin", "map",
	"lock", "pkl", "npy", "rdata",
)

// skipFolders are dependency, build and VCS directories that are never entered
var skipFolders = newSet(
	".git", ".svn", ".hg", ".idea", ".vscode",
	"node_modules", "target", ".fingerprint", "build", "dist",
	"venv", ".venv", "__pycache__",
	"bin", "obj", "out", "vendor",
)

type set map[string]struct{}

func newSet(items ...string) set {
	s := make(set, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

// Recognized reports whether files with the lower-cased extension ext are collected
func Recognized(ext string) bool {
	return recognized.has(ext)
}

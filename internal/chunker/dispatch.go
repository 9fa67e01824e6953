package chunker

import (
	"strings"

	"github.com/dshills/r2md/internal/parser"
	"github.com/dshills/r2md/pkg/types"
)

// kindSet is the set of top-level node kinds that become chunks
type kindSet map[string]struct{}

func newKindSet(kinds ...string) kindSet {
	s := make(kindSet, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

func (s kindSet) has(kind string) bool {
	_, ok := s[kind]
	return ok
}

var (
	rustKinds = newKindSet(
		"function_item", "struct_item", "enum_item", "impl_item", "trait_item", "mod_item",
	)
	pythonKinds = newKindSet(
		"function_definition", "class_definition", "decorated_definition",
	)
	javascriptKinds = newKindSet(
		"function_declaration", "generator_function_declaration", "class_declaration",
	)
	typescriptKinds = newKindSet(
		"function_declaration", "generator_function_declaration", "class_declaration",
		"abstract_class_declaration", "interface_declaration", "enum_declaration",
		"type_alias_declaration",
	)
	javaKinds = newKindSet(
		"class_declaration", "interface_declaration", "enum_declaration",
		"record_declaration", "annotation_type_declaration",
	)
	cppKinds = newKindSet(
		"function_definition", "class_specifier", "struct_specifier",
		"namespace_definition", "enum_specifier", "template_declaration",
	)
	goKinds = newKindSet(
		"function_declaration", "method_declaration", "type_declaration",
	)
)

var (
	rustStrategy   = &syntactic{lang: types.LangRust, grammar: types.LangRust, kinds: rustKinds}
	pythonStrategy = &syntactic{lang: types.LangPython, grammar: types.LangPython, kinds: pythonKinds}
	javascriptStrategy = &syntactic{
		lang: types.LangJavaScript, grammar: types.LangJavaScript, kinds: javascriptKinds, exports: true,
	}
	typescriptStrategy = &syntactic{
		lang: types.LangTypeScript, grammar: types.LangTypeScript, kinds: typescriptKinds, exports: true,
	}
	tsxStrategy = &syntactic{
		lang: types.LangTypeScript, grammar: parser.LangTSX, kinds: typescriptKinds, exports: true,
	}
	javaStrategy = &syntactic{lang: types.LangJava, grammar: types.LangJava, kinds: javaKinds}
	cppStrategy  = &syntactic{lang: types.LangCpp, grammar: types.LangCpp, kinds: cppKinds}
	goStrategy   = &syntactic{lang: types.LangGo, grammar: types.LangGo, kinds: goKinds}
)

// dispatch maps lower-cased extensions to their strategy. Anything missing
// goes to the fallback chunker. Read only after init.
var dispatch = map[string]*syntactic{
	"rs": rustStrategy,

	"py":  pythonStrategy,
	"pyi": pythonStrategy,

	"js":  javascriptStrategy,
	"mjs": javascriptStrategy,
	"cjs": javascriptStrategy,
	"jsx": javascriptStrategy,

	"ts":  typescriptStrategy,
	"mts": typescriptStrategy,
	"cts": typescriptStrategy,
	"tsx": tsxStrategy,

	"java": javaStrategy,

	"c":   cppStrategy,
	"h":   cppStrategy,
	"cc":  cppStrategy,
	"cpp": cppStrategy,
	"cxx": cppStrategy,
	"hh":  cppStrategy,
	"hpp": cppStrategy,
	"hxx": cppStrategy,

	"go": goStrategy,
}

// StrategyFor returns the strategy registered for ext, or the fallback
// strategy when there is none
func StrategyFor(ext string) Strategy {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if s, ok := dispatch[ext]; ok {
		return s
	}
	return fallback{ext: ext}
}

// IsSyntactic reports whether files with ext are chunked with a grammar
func IsSyntactic(ext string) bool {
	_, ok := dispatch[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ok
}

// LanguageFor returns the language tag chunks of ext files carry
func LanguageFor(ext string) types.Language {
	return StrategyFor(ext).Language()
}

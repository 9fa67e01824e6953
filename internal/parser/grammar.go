package parser

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/dshills/r2md/pkg/types"
)

// LangTSX selects the TSX dialect of the TypeScript grammar
const LangTSX types.Language = "tsx"

// ErrUnsupportedLanguage is returned for languages with no registered grammar
var ErrUnsupportedLanguage = errors.New("no grammar registered for language")

// GrammarLoadError reports a grammar that could not be loaded. Every file of
// that language fails the same way for the rest of the process.
type GrammarLoadError struct {
	Language types.Language
	Reason   string
}

func (e *GrammarLoadError) Error() string {
	return fmt.Sprintf("%s: %s: %s", types.ErrGrammarLoad, e.Language, e.Reason)
}

func (e *GrammarLoadError) Unwrap() error {
	return types.ErrGrammarLoad
}

// grammar is loaded at most once per process
type grammar struct {
	load func() *sitter.Language

	once sync.Once
	lang *sitter.Language
	err  error
}

func (g *grammar) get(name types.Language) (*sitter.Language, error) {
	g.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				g.lang = nil
				g.err = &GrammarLoadError{Language: name, Reason: fmt.Sprintf("panic: %v", r)}
			}
		}()
		g.lang = g.load()
		if g.lang == nil {
			g.err = &GrammarLoadError{Language: name, Reason: "grammar returned nil"}
		}
	})
	return g.lang, g.err
}

// grammars is fixed at init and only read afterwards
var grammars = map[types.Language]*grammar{
	types.LangRust:       {load: rust.GetLanguage},
	types.LangPython:     {load: python.GetLanguage},
	types.LangJavaScript: {load: javascript.GetLanguage},
	types.LangTypeScript: {load: typescript.GetLanguage},
	LangTSX:              {load: tsx.GetLanguage},
	types.LangJava:       {load: java.GetLanguage},
	types.LangCpp:        {load: cpp.GetLanguage},
	types.LangGo:         {load: golang.GetLanguage},
}

// Supported reports whether a grammar is registered for lang
func Supported(lang types.Language) bool {
	_, ok := grammars[lang]
	return ok
}

// Languages returns the registered grammar names in sorted order
func Languages() []types.Language {
	langs := make([]types.Language, 0, len(grammars))
	for l := range grammars {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

func loadGrammar(lang types.Language) (*sitter.Language, error) {
	g, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return g.get(lang)
}

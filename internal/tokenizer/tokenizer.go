package tokenizer

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dshills/r2md/pkg/types"
)

const (
	// DefaultName is the vocabulary used when none is configured
	DefaultName = "cl100k_base"

	// DownloadPrefix selects the backend that fetches vocabularies at
	// runtime, e.g. "tiktoken-go:cl100k_base"
	DownloadPrefix = "tiktoken-go:"
)

// Backend modules and the versions go.mod pins, used when the binary
// carries no build info
const (
	embeddedModule   = "github.com/tiktoken-go/tokenizer"
	embeddedPinned   = "v0.7.0"
	downloadedModule = "github.com/pkoukk/tiktoken-go"
	downloadedPinned = "v0.1.6"
)

// Codec encodes text to token ids and back with one fixed vocabulary.
// Implementations are immutable and safe for concurrent use.
type Codec interface {
	Name() string
	// Version names the library behind the vocabulary, e.g.
	// "tiktoken-go/tokenizer v0.7.0". It may be empty.
	Version() string
	Encode(text string) ([]uint, error)
	Decode(ids []uint) (string, error)
}

type entry struct {
	once  sync.Once
	codec Codec
	err   error
}

// registry holds one codec per selector for the life of the process
var registry = struct {
	sync.Mutex
	codecs map[string]*entry
}{codecs: make(map[string]*entry)}

// Load returns the shared codec for name, loading it on first use. An empty
// name selects DefaultName. Failures wrap types.ErrTokenizerLoad and are
// remembered: later calls with the same name fail the same way.
func Load(name string) (Codec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}

	registry.Lock()
	e, ok := registry.codecs[name]
	if !ok {
		e = &entry{}
		registry.codecs[name] = e
	}
	registry.Unlock()

	e.once.Do(func() {
		e.codec, e.err = open(name)
		if e.err != nil {
			log.Error().Err(e.err).Str("tokenizer", name).Msg("tokenizer load failed")
			return
		}
		log.Debug().Str("tokenizer", name).Msg("tokenizer loaded")
	})
	return e.codec, e.err
}

func open(name string) (Codec, error) {
	if enc, ok := strings.CutPrefix(name, DownloadPrefix); ok {
		c, err := openDownloaded(name, enc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrTokenizerLoad, name, err)
		}
		return c, nil
	}

	c, err := openEmbedded(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrTokenizerLoad, name, err)
	}
	return c, nil
}

// Identity returns "name@version", or just the name when c reports no
// version
func Identity(c Codec) string {
	if v := c.Version(); v != "" {
		return c.Name() + "@" + v
	}
	return c.Name()
}

// libraryVersion describes module as "<path without host> <version>",
// preferring the version linked into the binary
func libraryVersion(module, pinned string) string {
	version := pinned
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path != module {
				continue
			}
			if dep.Replace != nil {
				dep = dep.Replace
			}
			if dep.Version != "" && dep.Version != "(devel)" {
				version = dep.Version
			}
			break
		}
	}
	return strings.TrimPrefix(module, "github.com/") + " " + version
}

// Count returns the number of tokens c encodes text into
func Count(c Codec, text string) (int, error) {
	ids, err := c.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

package tokenizer

import (
	"fmt"

	tiktoken "github.com/tiktoken-go/tokenizer"

	"github.com/dshills/r2md/pkg/types"
)

// embedded wraps a vocabulary compiled into the binary
type embedded struct {
	name    string
	version string
	enc     tiktoken.Codec
}

// openEmbedded accepts an encoding name (cl100k_base, o200k_base, ...) or
// a model name (gpt-4o, gpt-3.5-turbo, ...)
func openEmbedded(name string) (Codec, error) {
	enc, err := tiktoken.Get(tiktoken.Encoding(name))
	if err != nil {
		var mErr error
		enc, mErr = tiktoken.ForModel(tiktoken.Model(name))
		if mErr != nil {
			return nil, err
		}
	}
	return &embedded{name: name, version: libraryVersion(embeddedModule, embeddedPinned), enc: enc}, nil
}

func (e *embedded) Name() string {
	return e.name
}

func (e *embedded) Version() string {
	return e.version
}

func (e *embedded) Encode(text string) ([]uint, error) {
	if text == "" {
		return []uint{}, nil
	}
	ids, _, err := e.enc.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("failed to encode: %w", err)
	}
	return ids, nil
}

func (e *embedded) Decode(ids []uint) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	text, err := e.enc.Decode(ids)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrDecodeFailure, err)
	}
	return text, nil
}

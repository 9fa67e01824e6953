package tokenizer

import (
	"context"
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/dshills/r2md/pkg/types"
)

// downloaded wraps a tiktoken-go encoding. The vocabulary is fetched on
// first load and cached under TIKTOKEN_CACHE_DIR when that is set.
type downloaded struct {
	name    string
	version string
	enc     *tiktoken.Tiktoken
}

// knownEncodings are the names tiktoken-go can fetch
var knownEncodings = map[string]struct{}{
	"cl100k_base": {},
	"o200k_base":  {},
	"p50k_base":   {},
	"p50k_edit":   {},
	"r50k_base":   {},
}

func openDownloaded(name, encoding string) (Codec, error) {
	if _, ok := knownEncodings[encoding]; !ok {
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}

	// The first load of an encoding goes over the network
	enc, err := retryWithBackoff(context.Background(), downloadRetry, func() (*tiktoken.Tiktoken, error) {
		return tiktoken.GetEncoding(encoding)
	})
	if err != nil {
		return nil, fmt.Errorf("get encoding %s: %w", encoding, err)
	}
	return &downloaded{name: name, version: libraryVersion(downloadedModule, downloadedPinned), enc: enc}, nil
}

func (d *downloaded) Name() string {
	return d.name
}

func (d *downloaded) Version() string {
	return d.version
}

func (d *downloaded) Encode(text string) ([]uint, error) {
	raw := d.enc.Encode(text, nil, nil)
	ids := make([]uint, len(raw))
	for i, id := range raw {
		ids[i] = uint(id)
	}
	return ids, nil
}

func (d *downloaded) Decode(ids []uint) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", types.ErrDecodeFailure, r)
		}
	}()

	raw := make([]int, len(ids))
	for i, id := range ids {
		raw[i] = int(id)
	}
	return d.enc.Decode(raw), nil
}

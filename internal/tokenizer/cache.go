package tokenizer

import (
	"crypto/sha256"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of encoded texts kept by NewCached
const DefaultCacheSize = 4096

// Cached memoizes Encode results of the wrapped codec. Cached slices are
// never handed out directly, so callers may modify what they receive.
type Cached struct {
	Codec
	cache *lru.Cache[[32]byte, []uint]
}

// NewCached wraps c with an LRU encode cache of the given size
func NewCached(c Codec, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[[32]byte, []uint](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create encode cache: %w", err)
	}
	return &Cached{Codec: c, cache: cache}, nil
}

// Encode returns the cached ids for text, encoding on a miss
func (c *Cached) Encode(text string) ([]uint, error) {
	key := sha256.Sum256([]byte(text))
	if ids, ok := c.cache.Get(key); ok {
		return slices.Clone(ids), nil
	}

	ids, err := c.Codec.Encode(text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, slices.Clone(ids))
	return ids, nil
}

// Len returns the number of cached entries
func (c *Cached) Len() int {
	return c.cache.Len()
}

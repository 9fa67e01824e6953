package tokenizer

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/r2md/pkg/types"
)

func TestLoad_Default(t *testing.T) {
	enc, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, enc.Name())

	again, err := Load("cl100k_base")
	require.NoError(t, err)
	assert.Same(t, enc, again, "codecs are loaded once per name")
}

func TestIdentity(t *testing.T) {
	enc, err := Load(DefaultName)
	require.NoError(t, err)

	tests := []struct {
		name       string
		codec      Codec
		wantPrefix string
	}{
		{"embedded vocabulary", enc, "cl100k_base@tiktoken-go/tokenizer v"},
		{"cached codec keeps identity", mustCached(t, enc), "cl100k_base@tiktoken-go/tokenizer v"},
		{"no version", &countingCodec{}, "counting"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(Identity(tt.codec), tt.wantPrefix), Identity(tt.codec))
		})
	}
	assert.Equal(t, "counting", Identity(&countingCodec{}))
}

func TestLibraryVersion(t *testing.T) {
	assert.Equal(t, "example.com/lib v1.2.3", libraryVersion("example.com/lib", "v1.2.3"))
	assert.True(t, strings.HasPrefix(libraryVersion(embeddedModule, embeddedPinned), "tiktoken-go/tokenizer v"))
}

func mustCached(t *testing.T, c Codec) Codec {
	t.Helper()
	cached, err := NewCached(c, 8)
	require.NoError(t, err)
	return cached
}

func TestLoad_ModelName(t *testing.T) {
	enc, err := Load("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", enc.Name())

	base, err := Load(DefaultName)
	require.NoError(t, err)

	a, err := enc.Encode("func main() {}")
	require.NoError(t, err)
	b, err := base.Encode("func main() {}")
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("no_such_vocab")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrTokenizerLoad))
	assert.Contains(t, err.Error(), "no_such_vocab")

	_, err2 := Load("no_such_vocab")
	assert.Equal(t, err, err2)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	enc, err := Load(DefaultName)
	require.NoError(t, err)

	inputs := []string{
		"hello world",
		"fn main() {\n    println!(\"hi\");\n}\n",
		strings.Repeat("def f(x):\n    return x * 2\n", 20),
	}
	for _, in := range inputs {
		ids, err := enc.Encode(in)
		require.NoError(t, err)
		require.NotEmpty(t, ids)

		out, err := enc.Decode(ids)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestEncode_KnownIDs(t *testing.T) {
	enc, err := Load(DefaultName)
	require.NoError(t, err)

	ids, err := enc.Encode("hello world")
	require.NoError(t, err)
	assert.Equal(t, []uint{15339, 1917}, ids)
}

func TestEncode_Empty(t *testing.T) {
	enc, err := Load(DefaultName)
	require.NoError(t, err)

	ids, err := enc.Encode("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	text, err := enc.Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, "", text)

	n, err := Count(enc, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoad_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	codecs := make([]Codec, 8)
	for i := range codecs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := Load("p50k_base")
			if err == nil {
				codecs[i] = c
			}
		}()
	}
	wg.Wait()

	for _, c := range codecs {
		assert.Same(t, codecs[0], c)
	}
}

type countingCodec struct {
	calls atomic.Int32
}

func (c *countingCodec) Name() string { return "counting" }

func (c *countingCodec) Version() string { return "" }

func (c *countingCodec) Encode(text string) ([]uint, error) {
	c.calls.Add(1)
	ids := make([]uint, len(text))
	for i := range text {
		ids[i] = uint(text[i])
	}
	return ids, nil
}

func (c *countingCodec) Decode(ids []uint) (string, error) {
	b := make([]byte, len(ids))
	for i, id := range ids {
		b[i] = byte(id)
	}
	return string(b), nil
}

func TestCached(t *testing.T) {
	inner := &countingCodec{}
	c, err := NewCached(inner, 2)
	require.NoError(t, err)
	assert.Equal(t, "counting", c.Name())

	first, err := c.Encode("abc")
	require.NoError(t, err)
	first[0] = 0 // must not poison the cache

	second, err := c.Encode("abc")
	require.NoError(t, err)
	assert.Equal(t, []uint{'a', 'b', 'c'}, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, c.Len())

	_, _ = c.Encode("d")
	_, _ = c.Encode("e")
	assert.Equal(t, 2, c.Len())

	text, err := c.Decode(second)
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
}

func TestNewCached_DefaultSize(t *testing.T) {
	c, err := NewCached(&countingCodec{}, 0)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

package budget

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/r2md/internal/tokenizer"
	"github.com/dshills/r2md/pkg/types"
)

// byteCodec treats every byte as one token
type byteCodec struct {
	failDecode func(ids []uint) bool
	failEncode bool
}

func (c *byteCodec) Name() string { return "bytes" }

func (c *byteCodec) Version() string { return "" }

func (c *byteCodec) Encode(text string) ([]uint, error) {
	if c.failEncode {
		return nil, errors.New("encode broken")
	}
	ids := make([]uint, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = uint(text[i])
	}
	return ids, nil
}

func (c *byteCodec) Decode(ids []uint) (string, error) {
	if c.failDecode != nil && c.failDecode(ids) {
		return "", types.ErrDecodeFailure
	}
	b := make([]byte, len(ids))
	for i, id := range ids {
		b[i] = byte(id)
	}
	return string(b), nil
}

func TestWindows(t *testing.T) {
	tests := []struct {
		n, m int
		want []int
	}{
		{6000, 2048, []int{2048, 2048, 1904}},
		{4096, 2048, []int{2048, 2048}},
		{1, 2048, []int{1}},
		{5, 1, []int{1, 1, 1, 1, 1}},
		{0, 10, nil},
		{10, 0, nil},
	}

	for _, tt := range tests {
		windows := Windows(tt.n, tt.m)
		var lens []int
		next := 0
		for _, w := range windows {
			assert.Equal(t, next, w.Start, "windows must be contiguous")
			next = w.End
			lens = append(lens, w.Len())
		}
		assert.Equal(t, tt.want, lens, "n=%d m=%d", tt.n, tt.m)
	}
}

func TestWindows_PartitionLaw(t *testing.T) {
	for n := 1; n <= 300; n += 7 {
		for m := 1; m <= 64; m += 5 {
			sum := 0
			for _, w := range Windows(n, m) {
				assert.LessOrEqual(t, w.Len(), m)
				assert.Positive(t, w.Len())
				sum += w.Len()
			}
			assert.Equal(t, n, sum)
		}
	}
}

func TestNewSplitter_InvalidBudget(t *testing.T) {
	_, err := NewSplitter(&byteCodec{}, 0)
	assert.ErrorIs(t, err, types.ErrInvalidMaxTokens)

	_, err = NewSplitter(&byteCodec{}, -5)
	assert.ErrorIs(t, err, types.ErrInvalidMaxTokens)
}

func TestSplitChunk_SixThousandTokens(t *testing.T) {
	s, err := NewSplitter(&byteCodec{}, 2048)
	require.NoError(t, err)
	assert.Equal(t, 2048, s.MaxTokens())

	text := strings.Repeat("abcdef", 1000)
	parts, err := s.SplitChunk(types.CodeChunk{Text: text, Language: types.LangRust})
	require.NoError(t, err)

	require.Len(t, parts, 3)
	assert.Len(t, parts[0].Text, 2048)
	assert.Len(t, parts[1].Text, 2048)
	assert.Len(t, parts[2].Text, 1904)

	var joined strings.Builder
	for _, p := range parts {
		assert.Equal(t, types.LangRust, p.Language)
		joined.WriteString(p.Text)
	}
	assert.Equal(t, text, joined.String())
}

func TestSplit_PassThroughAndOrder(t *testing.T) {
	s, err := NewSplitter(&byteCodec{}, 4)
	require.NoError(t, err)

	in := []types.CodeChunk{
		{Text: "abcd", Language: "a"},
		{Text: "efghij", Language: "b"},
		{Text: "k", Language: "c"},
	}
	out := s.Split(in)

	assert.Equal(t, []types.CodeChunk{
		{Text: "abcd", Language: "a"},
		{Text: "efgh", Language: "b"},
		{Text: "ij", Language: "b"},
		{Text: "k", Language: "c"},
	}, out)
}

func TestSplit_DecodeFailureYieldsEmptyWindow(t *testing.T) {
	codec := &byteCodec{failDecode: func(ids []uint) bool { return ids[0] == 'x' }}
	s, err := NewSplitter(codec, 3)
	require.NoError(t, err)

	out := s.Split([]types.CodeChunk{{Text: "abcxyzdef", Language: "t"}})
	require.Len(t, out, 3)
	assert.Equal(t, "abc", out[0].Text)
	assert.Equal(t, "", out[1].Text)
	assert.Equal(t, "def", out[2].Text)
}

func TestSplit_EncodeFailurePassesThrough(t *testing.T) {
	s, err := NewSplitter(&byteCodec{failEncode: true}, 1)
	require.NoError(t, err)

	in := []types.CodeChunk{{Text: "abcdef", Language: "t"}}
	assert.Equal(t, in, s.Split(in))
}

func TestSplitFile(t *testing.T) {
	s, err := NewSplitter(&byteCodec{}, 2)
	require.NoError(t, err)

	cf := &types.ChunkedFile{Path: "a.txt", Chunks: []types.CodeChunk{{Text: "abcde"}}}
	s.SplitFile(cf)
	assert.Len(t, cf.Chunks, 3)
	assert.Equal(t, "abcde", cf.Text())
}

func TestSplit_RealTokenizerPartition(t *testing.T) {
	enc, err := tokenizer.Load(tokenizer.DefaultName)
	require.NoError(t, err)

	text := strings.Repeat("fn compute(x: u64) -> u64 {\n    x.wrapping_mul(31) ^ 0xdeadbeef\n}\n", 40)
	ids, err := enc.Encode(text)
	require.NoError(t, err)
	require.Greater(t, len(ids), 100)

	s, err := NewSplitter(enc, 64)
	require.NoError(t, err)
	parts, err := s.SplitChunk(types.CodeChunk{Text: text, Language: types.LangRust})
	require.NoError(t, err)

	assert.Len(t, parts, (len(ids)+63)/64)

	full, err := enc.Decode(ids)
	require.NoError(t, err)
	var joined strings.Builder
	for _, p := range parts {
		joined.WriteString(p.Text)
	}
	assert.Equal(t, full, joined.String())
}

func TestValidateRatio(t *testing.T) {
	for _, r := range []float64{0, 1, -0.1, 1.5, math.NaN(), math.Inf(1)} {
		err := ValidateRatio(r)
		require.Error(t, err, "ratio %v", r)
		assert.ErrorIs(t, err, types.ErrInvalidSplitRatio)

		var ratioErr *types.SplitRatioError
		require.True(t, errors.As(err, &ratioErr))
	}
	for _, r := range []float64{0.001, 0.5, 0.8, 0.999} {
		assert.NoError(t, ValidateRatio(r))
	}
}

func TestPromptLength(t *testing.T) {
	assert.Equal(t, 8, PromptLength(10, 0.8))
	assert.Equal(t, 2, PromptLength(2, 0.8))
	assert.Equal(t, 1, PromptLength(2, 0.3))
	assert.Equal(t, 1, PromptLength(2, 1e-12))
	assert.Equal(t, 3, PromptLength(5, 0.5))
	assert.Equal(t, 70, PromptLength(100, 0.7))
}

func TestNewSampler_RejectsRatio(t *testing.T) {
	_, err := NewSampler(&byteCodec{}, 1.0)
	assert.ErrorIs(t, err, types.ErrInvalidSplitRatio)
}

func TestSample_TenTokens(t *testing.T) {
	s, err := NewSampler(&byteCodec{}, 0.8)
	require.NoError(t, err)

	sample, ok, err := s.Sample("0123456789")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "01234567", sample.Prompt)
	assert.Equal(t, "89", sample.Completion)
	assert.Equal(t, 8, sample.PromptTokens)
	assert.Equal(t, 2, sample.CompletionTokens)
	assert.Equal(t, "bytes", sample.Tokenizer)
	assert.NoError(t, sample.Validate())
}

func TestSample_SkipsShortFiles(t *testing.T) {
	s, err := NewSampler(&byteCodec{}, 0.8)
	require.NoError(t, err)

	for _, content := range []string{"", "x"} {
		_, ok, err := s.Sample(content)
		require.NoError(t, err)
		assert.False(t, ok, "content %q", content)
	}
}

func TestSample_DecodeFailureKeepsSample(t *testing.T) {
	codec := &byteCodec{failDecode: func(ids []uint) bool { return len(ids) > 0 && ids[0] == 'a' }}
	s, err := NewSampler(codec, 0.5)
	require.NoError(t, err)

	sample, ok, err := s.Sample("abcd")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "", sample.Prompt)
	assert.Equal(t, "cd", sample.Completion)
	assert.Equal(t, 4, sample.TotalTokens())
}

func TestSampleFiles_Accounting(t *testing.T) {
	enc, err := tokenizer.Load(tokenizer.DefaultName)
	require.NoError(t, err)
	s, err := NewSampler(enc, 0.8)
	require.NoError(t, err)

	files := []types.FileEntry{
		{RelativePath: "a.py", Content: "def a():\n    return [i * i for i in range(10)]\n"},
		{RelativePath: "empty.py", Content: ""},
		{RelativePath: "b.rs", Content: "fn main() { println!(\"hello\"); }\n"},
	}

	samples, err := s.SampleFiles(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	for i, f := range []types.FileEntry{files[0], files[2]} {
		total, err := tokenizer.Count(enc, f.Content)
		require.NoError(t, err)
		assert.Equal(t, total, samples[i].PromptTokens+samples[i].CompletionTokens)
		assert.Equal(t, PromptLength(total, 0.8), samples[i].PromptTokens)
		assert.Equal(t, tokenizer.Identity(enc), samples[i].Tokenizer)
		assert.True(t, strings.HasPrefix(samples[i].Tokenizer, "cl100k_base@tiktoken-go/tokenizer v"), samples[i].Tokenizer)
		assert.Equal(t, f.Content, samples[i].Prompt+samples[i].Completion)
	}
}

func TestSampleFiles_Cancelled(t *testing.T) {
	s, err := NewSampler(&byteCodec{}, 0.8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SampleFiles(ctx, []types.FileEntry{{RelativePath: "a", Content: "abc"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.json")
	require.NoError(t, os.WriteFile(path, []byte("stale content"), 0o644))

	samples := []types.TrainingSample{{
		Prompt: "fn main", Completion: "() {}", PromptTokens: 2, CompletionTokens: 1, Tokenizer: "cl100k_base",
	}}
	require.NoError(t, WriteSamples(path, samples))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, "fn main", raw[0]["prompt"])
	assert.Equal(t, "() {}", raw[0]["completion"])
	assert.Equal(t, float64(2), raw[0]["prompt_tokens"])
	assert.Equal(t, float64(1), raw[0]["completion_tokens"])
	assert.Equal(t, "cl100k_base", raw[0]["tokenizer"])

	require.NoError(t, WriteSamples(path, nil))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
}

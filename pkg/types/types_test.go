package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionOf(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"src/lib.rs", "rs"},
		{"pkg/Main.JAVA", "java"},
		{"Makefile", ""},
		{"a/b.c/readme", ""},
		{"x.tar.gz", "gz"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtensionOf(tt.path))
			assert.Equal(t, tt.want, FileEntry{RelativePath: tt.path}.Extension())
		})
	}
}

func TestFallbackLanguage(t *testing.T) {
	assert.Equal(t, LangText, FallbackLanguage(""))
	assert.Equal(t, Language("md"), FallbackLanguage("MD"))
}

func TestChunkedFileText(t *testing.T) {
	cf := &ChunkedFile{
		Path: "a.py",
		Chunks: []CodeChunk{
			{Text: "def a():\n", Language: LangPython},
			{Text: "    pass\n", Language: LangPython},
		},
	}
	assert.Equal(t, "def a():\n    pass\n", cf.Text())
}

func TestChunkedFileSource(t *testing.T) {
	tests := []struct {
		name string
		file ChunkedFile
		want string
	}{
		{
			name: "content wins over chunks",
			file: ChunkedFile{
				Content: "use std::io;\n\nfn a() {}\n",
				Chunks:  []CodeChunk{{Text: "fn a() {}\n"}},
			},
			want: "use std::io;\n\nfn a() {}\n",
		},
		{
			name: "chunks when content is missing",
			file: ChunkedFile{Chunks: []CodeChunk{{Text: "a\n"}, {Text: "b\n"}}},
			want: "a\nb\n",
		},
		{
			name: "empty file",
			file: ChunkedFile{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.file.Source())
		})
	}
}

func TestCycleError(t *testing.T) {
	err := fmt.Errorf("sort: %w", &CycleError{
		Cycle:     []string{"a.rs", "b.rs", "a.rs"},
		Remaining: []string{"a.rs", "b.rs"},
	})

	assert.True(t, errors.Is(err, ErrCycleDetected))

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a.rs", "b.rs"}, cycle.Remaining)
	assert.Contains(t, err.Error(), "a.rs -> b.rs -> a.rs")
}

func TestSplitRatioError(t *testing.T) {
	err := &SplitRatioError{Ratio: 1.0}
	assert.True(t, errors.Is(err, ErrInvalidSplitRatio))
	assert.Contains(t, err.Error(), "got 1")
}

func TestParseError(t *testing.T) {
	cause := errors.New("timeout")
	err := &ParseError{File: "x.rs", Language: LangRust, Message: "no tree", Err: cause}

	assert.True(t, errors.Is(err, ErrParseFailure))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "parse x.rs (rust): no tree", err.Error())

	bare := &ParseError{Language: LangPython, Message: "no tree"}
	assert.True(t, errors.Is(bare, ErrParseFailure))
	assert.Equal(t, "parse python: no tree", bare.Error())
}

func TestTrainingSampleValidate(t *testing.T) {
	tests := []struct {
		name    string
		sample  TrainingSample
		wantErr error
	}{
		{
			name:   "valid",
			sample: TrainingSample{PromptTokens: 8, CompletionTokens: 2, Tokenizer: "cl100k_base"},
		},
		{
			name:    "empty prompt",
			sample:  TrainingSample{PromptTokens: 0, CompletionTokens: 2, Tokenizer: "cl100k_base"},
			wantErr: ErrEmptyPrompt,
		},
		{
			name:    "negative completion",
			sample:  TrainingSample{PromptTokens: 1, CompletionTokens: -1, Tokenizer: "cl100k_base"},
			wantErr: ErrNegativeTokens,
		},
		{
			name:    "missing tokenizer",
			sample:  TrainingSample{PromptTokens: 1},
			wantErr: ErrMissingTokenizer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sample.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	s := TrainingSample{PromptTokens: 8, CompletionTokens: 2}
	assert.Equal(t, 10, s.TotalTokens())
}

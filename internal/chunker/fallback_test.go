package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/r2md/pkg/types"
)

func TestFallback(t *testing.T) {
	tests := []struct {
		name string
		text string
		ext  string
		want []string
	}{
		{
			name: "no trigger",
			text: "hello\nworld\n",
			ext:  "md",
			want: []string{"hello\nworld\n"},
		},
		{
			name: "splits at each trigger",
			text: "intro\nfunction a() {}\n  class B\ndef c():\nend",
			want: []string{"intro\n", "function a() {}\n", "  class B\n", "def c():\nend"},
		},
		{
			name: "leading trigger does not emit empty chunk",
			text: "def a():\n  pass\n",
			ext:  "rb",
			want: []string{"def a():\n  pass\n"},
		},
		{
			name: "keyword prefix without space is not a trigger",
			text: "define x\ndefault y\n",
			want: []string{"define x\ndefault y\n"},
		},
		{
			name: "fn and func triggers",
			text: "// header\nfn a() {}\nfunc b() {}\n",
			ext:  "zig",
			want: []string{"// header\n", "fn a() {}\n", "func b() {}\n"},
		},
		{
			name: "tab indented trigger",
			text: "x = 1\n\tfunction y() {}\n",
			ext:  "lua",
			want: []string{"x = 1\n", "\tfunction y() {}\n"},
		},
		{
			name: "crlf endings kept",
			text: "a\r\nclass B\r\n",
			ext:  "vb",
			want: []string{"a\r\n", "class B\r\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Fallback(tt.text, tt.ext)

			got := make([]string, 0, len(chunks))
			for _, c := range chunks {
				got = append(got, c.Text)
				assert.Equal(t, types.FallbackLanguage(tt.ext), c.Language)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, strings.Join(got, ""))
		})
	}
}

func TestFallback_Empty(t *testing.T) {
	chunks := Fallback("", "txt")
	require.Len(t, chunks, 1)
	assert.Equal(t, "", chunks[0].Text)
	assert.Equal(t, types.Language("txt"), chunks[0].Language)
}

func TestFallback_Completeness(t *testing.T) {
	inputs := []string{
		"",
		"\n\n\n",
		"no newline at end",
		"class A\n\n\nclass B\n",
		"function\nfunction\nfunction",
		strings.Repeat("def f():\n    pass\n", 50),
	}

	for _, in := range inputs {
		var b strings.Builder
		for _, c := range Fallback(in, "x") {
			b.WriteString(c.Text)
		}
		assert.Equal(t, in, b.String())
	}
}

func TestFallback_NonEmptyChunks(t *testing.T) {
	for _, c := range Fallback("a\nclass B\nclass C\n", "") {
		assert.NotEmpty(t, c.Text)
	}
}

package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeKeepsByteSpans(t *testing.T) {
	text := "The Quick brown fox jumps over the lazy dog"
	tokens := Tokenize(text)

	require.Len(t, tokens, 7)
	want := []string{"quick", "brown", "fox", "jump", "over", "lazi", "dog"}
	for i, tok := range tokens {
		assert.Equal(t, want[i], tok.Term)
		assert.Equal(t, i, tok.Position)
	}
	assert.Equal(t, "Quick", text[tokens[0].Start:tokens[0].End])
	assert.Equal(t, "jumps", text[tokens[3].Start:tokens[3].End])
	assert.Equal(t, "dog", text[tokens[6].Start:tokens[6].End])
}

func TestTokenizeUnicodeOffsets(t *testing.T) {
	text := "café, naïve résumé"
	tokens := Tokenize(text)

	require.Len(t, tokens, 3)
	assert.Equal(t, "café", text[tokens[0].Start:tokens[0].End])
	assert.Equal(t, "naïve", text[tokens[1].Start:tokens[1].End])
	assert.Equal(t, len(text), tokens[2].End)
}

func TestTokenizeFiltersShortAndStopWords(t *testing.T) {
	assert.Empty(t, Tokenize("a I to the of"))
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("  ,.;  "))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Running", "run"},
		{"Dogs", "dog"},
		{"the", ""},
		{"x", ""},
		{"fox", "fox"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestTermsAndStopWords(t *testing.T) {
	assert.Equal(t, []string{"black", "cat"}, Terms("the black cats"))
	assert.True(t, IsStopWord("The"))
	assert.False(t, IsStopWord("cat"))
}

func BenchmarkTokenizeLongText(b *testing.B) {
	text := strings.Repeat(`Information retrieval systems form the backbone of modern search
        infrastructure. These systems combine tokenization, stemming, and stop word
        removal to normalize text into searchable terms. `, 20)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = Tokenize(text)
	}
}

func TestSurfaceKeepsEveryWord(t *testing.T) {
	tokens := Surface("The Quick, a fox")
	require.Len(t, tokens, 4)
	assert.Equal(t, "The", tokens[0].Term)
	assert.Equal(t, "a", tokens[2].Term)
	assert.Equal(t, 3, tokens[3].Position)
	assert.Equal(t, 13, tokens[3].Start)
}

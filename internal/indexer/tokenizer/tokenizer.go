// Package tokenizer provides the text analysis shared by indexing and query
// parsing. It lower-cases input, splits on non-alphanumeric boundaries,
// removes stop-words and short tokens, and stems with the Snowball English
// stemmer. Every token keeps the byte span of the word it came from so term
// vectors can point back into the stored text.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	snowballeng "github.com/kljensen/snowball/english"
)

const minTokenLength = 2

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Token is one analyzed term with the byte span [Start, End) of its source
// word and its position among the kept tokens.
type Token struct {
	Term     string
	Start    int
	End      int
	Position int
}

// Tokenize analyzes text into stemmed, lower-cased tokens with stop-words
// removed. Positions count kept tokens only.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/8)
	pos := 0
	for _, w := range words(text) {
		term := Normalize(text[w[0]:w[1]])
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Start:    w[0],
			End:      w[1],
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Surface splits text into words without any filtering or normalization.
// Snippet fields use it so their reconstruction reads like the source.
func Surface(text string) []Token {
	spans := words(text)
	tokens := make([]Token, len(spans))
	for i, w := range spans {
		tokens[i] = Token{Term: text[w[0]:w[1]], Start: w[0], End: w[1], Position: i}
	}
	return tokens
}

// Terms returns only the analyzed term strings of text.
func Terms(text string) []string {
	tokens := Tokenize(text)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Term
	}
	return out
}

// Normalize analyzes a single word. It returns "" when the word is dropped
// by the stop-word or length filters.
func Normalize(word string) string {
	word = strings.ToLower(word)
	if len(word) < minTokenLength {
		return ""
	}
	if _, isStop := stopWords[word]; isStop {
		return ""
	}
	return snowballeng.Stem(word, false)
}

// IsStopWord reports whether the lower-cased word is filtered at index time.
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}

func words(text string) [][2]int {
	var spans [][2]int
	start := -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			spans = append(spans, [2]int{start, i})
			start = -1
		}
		i += size
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(text)})
	}
	return spans
}

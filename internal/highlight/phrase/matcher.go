// Package phrase matches flattened query terms against a reconstructed token
// sequence and weights every hit.
package phrase

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/fraglist"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/tokensource"
)

// Stats are the collection statistics used to weight terms. A nil *Stats,
// or one with no documents, weights every term by its boost alone.
type Stats struct {
	TotalDocs int64
	DocFreq   map[string]int64
}

// Matcher is built once per field per document and is not safe for
// concurrent use.
type Matcher struct {
	weights map[string]float64
}

// NewMatcher indexes terms by text. When field matching is off the same text
// can arrive from several fields; the highest boost wins.
func NewMatcher(terms []query.FlatTerm, stats *Stats) *Matcher {
	m := &Matcher{weights: make(map[string]float64, len(terms))}
	for _, t := range terms {
		w := t.Boost * idfFactor(stats, t.Text)
		if cur, ok := m.weights[t.Text]; !ok || w > cur {
			m.weights[t.Text] = w
		}
	}
	return m
}

// Empty reports whether no term can ever match.
func (m *Matcher) Empty() bool {
	return len(m.weights) == 0
}

// Weight returns the weight of term, or 0 when it is not a query term.
func (m *Matcher) Weight(term string) float64 {
	return m.weights[term]
}

// Match returns one PhraseMatch per token whose text is a query term, in
// token order.
func (m *Matcher) Match(tokens []tokensource.Token) []fraglist.PhraseMatch {
	var matches []fraglist.PhraseMatch
	for _, tok := range tokens {
		if w, ok := m.weights[tok.Text]; ok {
			matches = append(matches, fraglist.PhraseMatch{
				Start:  tok.Start,
				End:    tok.End,
				Weight: w,
				Terms:  []string{tok.Text},
			})
		}
	}
	return matches
}

// MatchStream drains s and matches what it yields.
func (m *Matcher) MatchStream(s *tokensource.Stream) []fraglist.PhraseMatch {
	var tokens []tokensource.Token
	for tok := range s.All() {
		tokens = append(tokens, tok)
	}
	return m.Match(tokens)
}

// idfFactor is 1 + the BM25 inverse document frequency, so a term present
// in every document still carries its boost.
func idfFactor(stats *Stats, term string) float64 {
	if stats == nil || stats.TotalDocs <= 0 {
		return 1
	}
	return 1 + computeIDF(stats.TotalDocs, stats.DocFreq[term])
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	if docFreq > totalDocs {
		docFreq = totalDocs
	}
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

package phrase

import (
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/tokensource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokens() []tokensource.Token {
	return []tokensource.Token{
		{Text: "quick", Start: 4, End: 9, PositionIncrement: 0},
		{Text: "brown", Start: 10, End: 15, PositionIncrement: 1},
		{Text: "fox", Start: 16, End: 19, PositionIncrement: 2},
		{Text: "quick", Start: 30, End: 35, PositionIncrement: 5},
	}
}

func TestMatchWithoutStats(t *testing.T) {
	m := NewMatcher([]query.FlatTerm{
		{Field: "content", Text: "quick", Boost: 1},
		{Field: "content", Text: "fox", Boost: 2},
	}, nil)

	matches := m.Match(tokens())
	require.Len(t, matches, 3)
	assert.Equal(t, 4, matches[0].Start)
	assert.Equal(t, 1.0, matches[0].Weight)
	assert.Equal(t, []string{"fox"}, matches[1].Terms)
	assert.Equal(t, 2.0, matches[1].Weight)
	assert.Equal(t, 30, matches[2].Start)
}

func TestMatchKeepsHighestBoostAcrossFields(t *testing.T) {
	m := NewMatcher([]query.FlatTerm{
		{Field: "title", Text: "fox", Boost: 3},
		{Field: "content", Text: "fox", Boost: 1},
	}, nil)
	assert.Equal(t, 3.0, m.Weight("fox"))
	assert.Equal(t, 0.0, m.Weight("dog"))
}

func TestMatchWeightsByIDF(t *testing.T) {
	stats := &Stats{TotalDocs: 10, DocFreq: map[string]int64{"quick": 10, "fox": 1}}
	m := NewMatcher([]query.FlatTerm{
		{Text: "quick", Boost: 1},
		{Text: "fox", Boost: 1},
	}, stats)

	assert.Equal(t, 1.0, m.Weight("quick"), "term in every document keeps its boost")
	assert.InDelta(t, 1+math.Log(9/1.5+1), m.Weight("fox"), 1e-9)
	assert.Greater(t, m.Weight("fox"), m.Weight("quick"))
}

func TestMatchStream(t *testing.T) {
	b := tokensource.NewBuilder("content")
	b.Add("dog", 0, 3, 0)
	b.Add("cat", 4, 7, 1)
	stream, err := tokensource.NewStream(b.Vector(), false)
	require.NoError(t, err)

	m := NewMatcher([]query.FlatTerm{{Text: "cat", Boost: 1}}, nil)
	matches := m.MatchStream(stream)
	require.Len(t, matches, 1)
	assert.Equal(t, 4, matches[0].Start)
	assert.Empty(t, m.MatchStream(stream), "stream is single pass")
}

func TestEmptyMatcher(t *testing.T) {
	m := NewMatcher(nil, nil)
	assert.True(t, m.Empty())
	assert.Empty(t, m.Match(tokens()))
}

package query

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDictionary struct {
	terms map[string][]string
	err   error
	calls int
}

func (d *fakeDictionary) Expand(_ context.Context, field, pattern string) ([]string, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	var out []string
	for _, term := range d.terms[field] {
		if MatchWildcard(pattern, term) {
			out = append(out, term)
		}
	}
	return out, nil
}

func (d *fakeDictionary) Generation(context.Context) (int64, error) {
	return 1, d.err
}

func texts(set *FlatTermSet) []string {
	out := make([]string, 0, set.Len())
	for _, t := range set.Terms() {
		out = append(out, t.Text)
	}
	sort.Strings(out)
	return out
}

func TestFlattenNearSpanWithDuplicate(t *testing.T) {
	q := &BooleanQuery{
		Should: []Query{
			&SpanNearQuery{
				Clauses: []Query{
					&TermQuery{Field: "content", Text: "cat"},
					&TermQuery{Field: "content", Text: "dog"},
				},
				Slop:    2,
				InOrder: true,
			},
			&TermQuery{Field: "content", Text: "cat"},
		},
	}

	set, err := NewFlattener(nil, true).Flatten(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"cat", "dog"}, texts(set))
	assert.True(t, set.Contains("content", "cat"))
	assert.True(t, set.Contains("content", "dog"))
}

func TestFlattenSpanWildcardSuppressesDuplicates(t *testing.T) {
	q := &BooleanQuery{Must: []Query{
		&TermQuery{Field: "content", Text: "cattle"},
		&SpanWildcardQuery{Field: "content", Pattern: "cat*", Terms: []string{"cat", "cattle", "catalog"}},
	}}

	set, err := NewFlattener(nil, true).Flatten(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "catalog", "cattle"}, texts(set))
}

func TestFlattenMultiPhraseRewritesAgainstDictionary(t *testing.T) {
	dict := &fakeDictionary{terms: map[string][]string{
		"content": {"black", "blue", "cat", "dog"},
	}}
	q := &MultiPhraseQuery{
		Field: "content",
		Slots: [][]string{{"bl*"}, {"cat", "dog"}},
	}

	set, err := NewFlattener(dict, true).Flatten(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"black", "blue", "cat", "dog"}, texts(set))
	assert.Equal(t, 1, dict.calls, "literal slot entries need no lookup")
}

func TestFlattenMultiPhraseDictionaryFailure(t *testing.T) {
	dict := &fakeDictionary{err: errors.New("segment closed")}
	q := &BooleanQuery{Should: []Query{
		&TermQuery{Field: "content", Text: "cat"},
		&MultiPhraseQuery{Field: "content", Slots: [][]string{{"do*"}}},
	}}

	set, err := NewFlattener(dict, true).Flatten(context.Background(), q)
	assert.Nil(t, set)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIndexRead))
	assert.Equal(t, 1, dict.calls, "no internal retry")
}

func TestFlattenMultiPhraseWithoutDictionary(t *testing.T) {
	_, err := NewFlattener(nil, true).Flatten(context.Background(),
		&MultiPhraseQuery{Field: "content", Slots: [][]string{{"cat"}}})
	assert.True(t, errors.Is(err, apperrors.ErrIndexRead))
}

func TestFlattenDefaultDecomposition(t *testing.T) {
	q := &FunctionScoreQuery{Query: &ConstantScoreQuery{Query: &BooleanQuery{
		Must:    []Query{&PhraseQuery{Field: "title", Terms: []string{"quick", "fox"}}},
		Filter:  []Query{&DisjunctionMaxQuery{Disjuncts: []Query{&TermQuery{Field: "title", Text: "lazy"}}}},
		Should:  []Query{&BoostQuery{Query: &TermQuery{Field: "title", Text: "dog", Boost: 2}, Boost: 3}},
		MustNot: []Query{&TermQuery{Field: "title", Text: "cat"}},
	}}}

	set, err := NewFlattener(nil, true).Flatten(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"dog", "fox", "lazy", "quick"}, texts(set))
	assert.False(t, set.Contains("title", "cat"), "prohibited clauses are not highlighted")

	for _, term := range set.Terms() {
		if term.Text == "dog" {
			assert.Equal(t, 6.0, term.Boost)
		} else {
			assert.Equal(t, 1.0, term.Boost)
		}
	}
}

func TestFlattenIgnoresMatchAll(t *testing.T) {
	set, err := NewFlattener(nil, false).Flatten(context.Background(), &MatchAllQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestForFieldHonoursFieldMatch(t *testing.T) {
	q := &BooleanQuery{Should: []Query{
		&TermQuery{Field: "title", Text: "cat"},
		&TermQuery{Field: "content", Text: "dog"},
	}}

	strict, err := NewFlattener(nil, true).Flatten(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, strict.ForField("title"), 1)
	assert.Equal(t, "cat", strict.ForField("title")[0].Text)

	loose, err := NewFlattener(nil, false).Flatten(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, loose.ForField("title"), 2)
}

func TestFlatTermSetJSON(t *testing.T) {
	set := NewFlatTermSet(true)
	set.Add(FlatTerm{Field: "content", Text: "cat"})
	set.Add(FlatTerm{Field: "content", Text: "dog", Boost: 2})

	data, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded FlatTermSet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.FieldMatch())
	assert.Equal(t, set.Terms(), decoded.Terms())
	assert.False(t, decoded.Add(FlatTerm{Field: "content", Text: "cat"}))
}

func TestResolveSpanWildcard(t *testing.T) {
	dict := &fakeDictionary{terms: map[string][]string{"content": {"cat", "catalog", "dog"}}}
	original := &SpanNearQuery{Clauses: []Query{
		&SpanWildcardQuery{Field: "content", Pattern: "cat*"},
		&TermQuery{Field: "content", Text: "dog"},
	}}

	resolved, err := Resolve(context.Background(), original, dict)
	require.NoError(t, err)

	near := resolved.(*SpanNearQuery)
	assert.Equal(t, []string{"cat", "catalog"}, near.Clauses[0].(*SpanWildcardQuery).Terms)
	assert.Nil(t, original.Clauses[0].(*SpanWildcardQuery).Terms, "input tree untouched")

	set, err := NewFlattener(dict, true).Flatten(context.Background(), resolved)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "catalog", "dog"}, texts(set))
}

func TestResolveFailure(t *testing.T) {
	dict := &fakeDictionary{err: errors.New("down")}
	_, err := Resolve(context.Background(), &SpanWildcardQuery{Field: "content", Pattern: "c*"}, dict)
	assert.True(t, errors.Is(err, apperrors.ErrIndexRead))
}

func TestMatchWildcard(t *testing.T) {
	tests := []struct {
		pattern, term string
		want          bool
	}{
		{"cat*", "catalog", true},
		{"cat*", "cat", true},
		{"c?t", "cat", true},
		{"c?t", "cart", false},
		{"*log", "catalog", true},
		{"c*t*g", "catalog", true},
		{"dog", "dog", true},
		{"dog", "dogs", false},
		{"*", "", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchWildcard(tt.pattern, tt.term), "%s ~ %s", tt.pattern, tt.term)
	}
	assert.Equal(t, "ca", LiteralPrefix("ca?t*"))
	assert.True(t, IsWildcard("ca*"))
	assert.False(t, IsWildcard("cat"))
}

func TestQueryString(t *testing.T) {
	q := &BooleanQuery{
		Must:   []Query{&PhraseQuery{Field: "content", Terms: []string{"black", "cat"}, Slop: 1}},
		Should: []Query{&TermQuery{Field: "title", Text: "dog", Boost: 2}},
	}
	assert.Equal(t, `(+content:"black cat"~1 title:dog^2)`, q.String())
	assert.Equal(t, `spanNear([content:cat, spanWildcard(content:do*)], 3, true)`,
		(&SpanNearQuery{Clauses: []Query{
			&TermQuery{Field: "content", Text: "cat"},
			&SpanWildcardQuery{Field: "content", Pattern: "do*"},
		}, Slop: 3, InOrder: true}).String())
}

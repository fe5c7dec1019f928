package fraglist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermBuilderOneFragmentPerMatch(t *testing.T) {
	matches := []PhraseMatch{
		{Start: 0, End: 5, Weight: 1},
		{Start: 10, End: 15, Weight: 2},
	}

	list := TermBuilder{}.Build(matches, 100)
	require.Len(t, list.Fragments, 2)
	assert.Equal(t, 100, list.FragCharSize)
	for i, m := range matches {
		f := list.Fragments[i]
		assert.Equal(t, m.Start, f.Start)
		assert.Equal(t, m.End, f.End)
		assert.Equal(t, []PhraseMatch{m}, f.Matches)
	}
}

func TestTermBuilderKeepsOverlapsAndOrder(t *testing.T) {
	matches := []PhraseMatch{
		{Start: 20, End: 30, Weight: 1},
		{Start: 0, End: 8, Weight: 1},
		{Start: 4, End: 12, Weight: 1},
	}

	list := TermBuilder{}.Build(matches, 1)
	require.Len(t, list.Fragments, 3)
	assert.Equal(t, 20, list.Fragments[0].Start)
	assert.Equal(t, 0, list.Fragments[1].Start)
	assert.Equal(t, 4, list.Fragments[2].Start)
}

func TestTermBuilderEmpty(t *testing.T) {
	list := TermBuilder{}.Build(nil, 100)
	assert.Empty(t, list.Fragments)
}

func TestSimpleBuilderWindowsMatches(t *testing.T) {
	matches := []PhraseMatch{
		{Start: 50, End: 55, Weight: 1},
		{Start: 10, End: 14, Weight: 1},
		{Start: 20, End: 25, Weight: 2},
	}

	list := SimpleBuilder{}.Build(matches, 30)
	require.Len(t, list.Fragments, 2)

	first := list.Fragments[0]
	assert.Equal(t, 4, first.Start)
	assert.Equal(t, 34, first.End)
	assert.Len(t, first.Matches, 2)
	assert.Equal(t, 3.0, first.Score())

	second := list.Fragments[1]
	assert.Equal(t, 44, second.Start)
	assert.Len(t, second.Matches, 1)
}

func TestSimpleBuilderClampsSmallHint(t *testing.T) {
	list := SimpleBuilder{}.Build([]PhraseMatch{{Start: 0, End: 3, Weight: 1}}, 1)
	require.Len(t, list.Fragments, 1)
	assert.Equal(t, DefaultMargin*minFragCharMul, list.FragCharSize)
	assert.Equal(t, 0, list.Fragments[0].Start)
}

func TestForPolicy(t *testing.T) {
	assert.IsType(t, SimpleBuilder{}, ForPolicy("simple"))
	assert.IsType(t, TermBuilder{}, ForPolicy("term"))
	assert.IsType(t, TermBuilder{}, ForPolicy(""))
}

package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/tokensource"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAnalyzer() *Analyzer {
	return NewAnalyzer(map[string]Mapping{
		"title":           {TermVector: true, Store: true},
		"content":         {TermVector: true, Store: true},
		"ingress":         {Store: true},
		"ingress.snippet": {TermVector: true, Analyzer: "snippet", Source: "ingress"},
	})
}

func put(t *testing.T, idx *MemoryIndex, id string, fields map[string][]string) {
	t.Helper()
	doc := testAnalyzer().Analyze(&Document{ID: id, Fields: fields})
	require.NoError(t, idx.Put(context.Background(), doc))
}

func TestAnalyzeFollowsMappings(t *testing.T) {
	doc := testAnalyzer().Analyze(&Document{ID: "d1", Fields: map[string][]string{
		"title":   {"Black cats"},
		"ingress": {"The quick fox"},
		"extra":   {"kept"},
	}})

	require.NotNil(t, doc.Fields["title"].Vector)
	assert.Equal(t, []string{"Black cats"}, doc.Fields["title"].Values)
	assert.Nil(t, doc.Fields["ingress"].Vector)
	assert.Nil(t, doc.Fields["extra"].Vector)

	snippet := doc.Fields["ingress.snippet"]
	require.NotNil(t, snippet)
	assert.Nil(t, snippet.Values)
	tokens, err := tokensource.Reconstruct(snippet.Vector, false)
	require.NoError(t, err)
	assert.Equal(t, "The quick fox", tokensource.Excerpt(tokens))
}

func TestBuildVectorMultivaluedOffsets(t *testing.T) {
	values := []string{"red fox", "blue dog"}
	pv := BuildVector("content", values, "")

	shifted, err := tokensource.Reconstruct(pv, true)
	require.NoError(t, err)
	concat := strings.Join(values, ValueSeparator(true))
	require.Len(t, shifted, 4)
	for _, tok := range shifted {
		assert.Equal(t, tok.Text, concat[tok.Start:tok.End])
	}
	assert.Equal(t, 1, shifted[2].ValueIndex())

	plain, err := tokensource.Reconstruct(pv, false)
	require.NoError(t, err)
	joined := strings.Join(values, ValueSeparator(false))
	for _, tok := range plain {
		assert.Equal(t, tok.Text, joined[tok.Start:tok.End])
	}
}

func TestMemoryIndexPutGetDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	put(t, idx, "d1", map[string][]string{"content": {"black cats"}})

	doc, err := idx.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", doc.ID)

	count, err := idx.DocCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Positive(t, idx.Size())

	require.NoError(t, idx.Delete(ctx, "d1"))
	_, err = idx.Get(ctx, "d1")
	assert.True(t, errors.Is(err, apperrors.ErrDocumentNotFound))
	assert.True(t, errors.Is(idx.Delete(ctx, "d1"), apperrors.ErrDocumentNotFound))

	terms, err := idx.Expand(ctx, "content", "*")
	require.NoError(t, err)
	assert.Empty(t, terms)
}

func TestMemoryIndexRejectsMissingID(t *testing.T) {
	err := NewMemoryIndex().Put(context.Background(), &StoredDocument{})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestMemoryIndexExpand(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	put(t, idx, "d1", map[string][]string{"content": {"cat catalog dog"}})
	put(t, idx, "d2", map[string][]string{"content": {"catnip"}, "title": {"category"}})

	terms, err := idx.Expand(ctx, "content", "cat*")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "catalog", "catnip"}, terms)

	terms, err = idx.Expand(ctx, "content", "?og")
	require.NoError(t, err)
	assert.Equal(t, []string{"dog"}, terms)

	terms, err = idx.Expand(ctx, "missing", "cat*")
	require.NoError(t, err)
	assert.Empty(t, terms)
}

func TestMemoryIndexGenerationAndDocFreq(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	g0, _ := idx.Generation(ctx)

	put(t, idx, "d1", map[string][]string{"content": {"cat dog"}})
	put(t, idx, "d2", map[string][]string{"content": {"cat"}})
	g1, _ := idx.Generation(ctx)
	assert.Greater(t, g1, g0)

	df, err := idx.DocFreq(ctx, "content", []string{"cat", "dog", "eel"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"cat": 2, "dog": 1, "eel": 0}, df)

	put(t, idx, "d1", map[string][]string{"content": {"eel"}})
	df, err = idx.DocFreq(ctx, "content", []string{"cat", "dog", "eel"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"cat": 1, "dog": 0, "eel": 1}, df)

	idx.Reset()
	count, _ := idx.DocCount(ctx)
	assert.Zero(t, count)
}

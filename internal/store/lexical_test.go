package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLexical(t *testing.T) *LexicalIndex {
	t.Helper()
	idx, err := NewLexicalIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestLexicalSearchMatchesChunkText(t *testing.T) {
	idx := newTestLexical(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Document{
		{ChunkID: "c1", Title: "billing.md", Chunk: "invoices are sent monthly"},
		{ChunkID: "c2", Title: "deploy.md", Chunk: "rolling deployment strategy"},
	}))

	results, err := idx.Search(ctx, "deployment", nil, false, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].ChunkID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestLexicalSearchTitleFieldOnly(t *testing.T) {
	idx := newTestLexical(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Document{
		{ChunkID: "c1", Title: "billing.md", Chunk: "mentions deployment in passing"},
		{ChunkID: "c2", Title: "deployment.md", Chunk: "unrelated body text"},
	}))

	results, err := idx.Search(ctx, "deployment", []string{"title"}, false, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].ChunkID)
}

func TestLexicalPhraseSearch(t *testing.T) {
	idx := newTestLexical(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Document{
		{ChunkID: "c1", Title: "a", Chunk: "the quick brown fox"},
		{ChunkID: "c2", Title: "b", Chunk: "the brown and quick fox"},
	}))

	results, err := idx.Search(ctx, "quick brown", []string{"chunk"}, true, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestLexicalDeleteRemovesFromResults(t *testing.T) {
	idx := newTestLexical(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Document{
		{ChunkID: "c1", Title: "a", Chunk: "searchable text"},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"c1", "missing-id"}))

	results, err := idx.Search(ctx, "searchable", nil, false, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	count, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

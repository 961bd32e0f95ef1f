package searchidx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalIndex(t *testing.T) *LocalIndex {
	t.Helper()
	idx, err := NewLocalIndex(LocalConfig{Dimensions: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func uploadTestDocs(t *testing.T, idx *LocalIndex) {
	t.Helper()
	results, err := idx.Upload(context.Background(), []Document{
		{ChunkID: "c1", ParentID: "p1", Title: "billing.md", Chunk: "invoices are generated monthly", Vector: []float32{1, 0, 0}},
		{ChunkID: "c2", ParentID: "p1", Title: "billing.md", Chunk: "refunds take five days", Vector: []float32{0.9, 0.1, 0}},
		{ChunkID: "c3", ParentID: "p2", Title: "deploy.md", Chunk: "rolling deployment strategy", Vector: []float32{0, 0, 1}},
	})
	require.NoError(t, err)
	for _, r := range results {
		require.True(t, r.Succeeded, r.ErrorMessage)
	}
}

func TestLocalFieldNamesMatchSchema(t *testing.T) {
	idx := newTestLocalIndex(t)
	names, err := idx.FieldNames(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"chunk_id", "parent_id", "chunk", "title", "text_vector", "meta_data"},
		names)
}

func TestLocalHybridSearchFusesBothLegs(t *testing.T) {
	idx := newTestLocalIndex(t)
	uploadTestDocs(t, idx)

	hits, err := idx.Search(context.Background(), SearchRequest{
		Text:     "invoices monthly",
		Vector:   []float32{1, 0, 0},
		K:        10,
		Top:      10,
		Semantic: true,
	})
	require.NoError(t, err)

	require.NotEmpty(t, hits)
	assert.Equal(t, "c1", hits[0].Document.ChunkID)
	assert.InDelta(t, 4.0, hits[0].RerankerScore, 1e-3)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestLocalSemanticRerankOrdersByVectorSimilarity(t *testing.T) {
	idx := newTestLocalIndex(t)
	uploadTestDocs(t, idx)

	// Lexically "deployment" only matches c3, but the query vector points
	// at the billing chunks; the reranker puts them first anyway.
	hits, err := idx.Search(context.Background(), SearchRequest{
		Text:     "deployment refunds invoices",
		Vector:   []float32{1, 0, 0},
		K:        10,
		Top:      10,
		Semantic: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "c1", hits[0].Document.ChunkID)
}

func TestLocalTitleOnlyPhraseSearch(t *testing.T) {
	idx := newTestLocalIndex(t)
	uploadTestDocs(t, idx)

	hits, err := idx.Search(context.Background(), SearchRequest{
		Text:         "billing.md",
		SearchFields: []string{FieldTitle},
		Phrase:       true,
		Top:          10,
	})
	require.NoError(t, err)

	require.Len(t, hits, 2)
	for _, hit := range hits {
		assert.Equal(t, "billing.md", hit.Document.Title)
	}
}

func TestLocalExactTitleFilterLookup(t *testing.T) {
	idx := newTestLocalIndex(t)
	uploadTestDocs(t, idx)

	hits, err := idx.Search(context.Background(), SearchRequest{
		Filter: map[string]string{FieldTitle: "billing.md"},
		Top:    100,
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// Similar but unequal titles never match.
	hits, err = idx.Search(context.Background(), SearchRequest{
		Filter: map[string]string{FieldTitle: "billing"},
		Top:    100,
	})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLocalDeleteIsIdempotent(t *testing.T) {
	idx := newTestLocalIndex(t)
	uploadTestDocs(t, idx)

	ctx := context.Background()
	results, err := idx.Delete(ctx, []string{"c1", "never-existed"})
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, r.Succeeded)
	}

	hits, err := idx.Search(ctx, SearchRequest{
		Filter: map[string]string{FieldTitle: "billing.md"},
		Top:    100,
	})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestLocalUploadReportsPerDocumentFailures(t *testing.T) {
	idx := newTestLocalIndex(t)

	results, err := idx.Upload(context.Background(), []Document{
		{ChunkID: "good", Title: "a.md", Chunk: "text", Vector: []float32{1, 0, 0}},
		{ChunkID: "bad-dims", Title: "a.md", Chunk: "text", Vector: []float32{1}},
		{Title: "a.md", Chunk: "no id"},
	})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.True(t, results[0].Succeeded)
	assert.False(t, results[1].Succeeded)
	assert.Contains(t, results[1].ErrorMessage, "dimensions")
	assert.False(t, results[2].Succeeded)
}

func TestLocalPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := NewLocalIndex(LocalConfig{Dir: dir, Dimensions: 3})
	require.NoError(t, err)
	_, err = idx.Upload(ctx, []Document{
		{ChunkID: "c1", Title: "a.md", Chunk: "persisted chunk", Vector: []float32{1, 0, 0}},
	})
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	reopened, err := NewLocalIndex(LocalConfig{Dir: dir, Dimensions: 3})
	require.NoError(t, err)
	defer reopened.Close()

	// The vector graph is rebuilt from the document store on open.
	hits, err := reopened.Search(ctx, SearchRequest{Vector: []float32{1, 0, 0}, K: 5, Top: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].Document.ChunkID)
}

func TestLocalDirectoryLockRejectsSecondOpen(t *testing.T) {
	dir := t.TempDir()

	idx, err := NewLocalIndex(LocalConfig{Dir: dir, Dimensions: 3})
	require.NoError(t, err)
	defer idx.Close()

	_, err = NewLocalIndex(LocalConfig{Dir: dir, Dimensions: 3})
	assert.Error(t, err)
}

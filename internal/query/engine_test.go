package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/internal/searchidx"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int   { return 2 }
func (fakeEmbedder) ModelName() string { return "fake" }
func (fakeEmbedder) Close() error      { return nil }

type fakeIndex struct {
	hits    []searchidx.Hit
	lastReq searchidx.SearchRequest
}

func (f *fakeIndex) FieldNames(context.Context) ([]string, error) {
	return searchidx.RequiredFields(), nil
}

func (f *fakeIndex) Upload(context.Context, []searchidx.Document) ([]searchidx.IndexResult, error) {
	return nil, nil
}

func (f *fakeIndex) Delete(context.Context, []string) ([]searchidx.IndexResult, error) {
	return nil, nil
}

func (f *fakeIndex) Search(_ context.Context, req searchidx.SearchRequest) ([]searchidx.Hit, error) {
	f.lastReq = req
	return f.hits, nil
}

func (f *fakeIndex) Close() error { return nil }

func rankedHits() []searchidx.Hit {
	return []searchidx.Hit{
		{Document: searchidx.Document{Title: "billing.md", Chunk: "invoices are\nsent monthly", Metadata: `{"chunk_index": 0,
"total_chunks": 2}`}, RerankerScore: 3.2},
		{Document: searchidx.Document{Title: "billing.md", Chunk: "refunds take\n\nfive days"}, RerankerScore: 2.1},
		{Document: searchidx.Document{Title: "deploy.md", Chunk: "rolling deployments"}, RerankerScore: 1.4},
		{Document: searchidx.Document{Title: "noise.md", Chunk: "barely related"}, RerankerScore: 1.0},
		{Document: searchidx.Document{Title: "junk.md", Chunk: "unrelated"}, RerankerScore: 0.3},
	}
}

func TestSearchDropsLowRerankerScores(t *testing.T) {
	idx := &fakeIndex{hits: rankedHits()}
	engine := New(idx, fakeEmbedder{})

	results, err := engine.Search(context.Background(), "how do invoices work")
	require.NoError(t, err)

	// Scores at or below the floor are gone, including the exact 1.0.
	require.Len(t, results, 3)
	assert.Equal(t, "billing.md", results[0].Title)
	assert.InDelta(t, 3.2, results[0].Score, 1e-9)
}

func TestSearchFlattensNewlines(t *testing.T) {
	idx := &fakeIndex{hits: rankedHits()}
	engine := New(idx, fakeEmbedder{})

	results, err := engine.Search(context.Background(), "refunds")
	require.NoError(t, err)

	assert.Equal(t, "invoices are sent monthly", results[0].Chunk)
	assert.Equal(t, "refunds take five days", results[1].Chunk)
}

func TestSearchCarriesMetadata(t *testing.T) {
	idx := &fakeIndex{hits: rankedHits()}
	engine := New(idx, fakeEmbedder{})

	results, err := engine.Search(context.Background(), "invoices")
	require.NoError(t, err)

	// Metadata rides along with each chunk, flattened like the chunk text.
	require.NotEmpty(t, results)
	assert.Equal(t, `{"chunk_index": 0, "total_chunks": 2}`, results[0].Metadata)

	// And the request asks the index for it.
	assert.Contains(t, idx.lastReq.Select, searchidx.FieldMetadata)
}

func TestSearchFlattensTitles(t *testing.T) {
	idx := &fakeIndex{hits: []searchidx.Hit{
		{Document: searchidx.Document{Title: "release\nnotes.md", Chunk: "changelog"}, RerankerScore: 2.0},
	}}
	engine := New(idx, fakeEmbedder{})

	results, err := engine.Search(context.Background(), "changelog")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "release notes.md", results[0].Title)

	titles, err := engine.Titles(context.Background(), "changelog")
	require.NoError(t, err)
	assert.Equal(t, []string{"release notes.md"}, titles)
}

func TestSearchBuildsHybridSemanticRequest(t *testing.T) {
	idx := &fakeIndex{}
	engine := New(idx, fakeEmbedder{})

	_, err := engine.Search(context.Background(), "anything")
	require.NoError(t, err)

	assert.Equal(t, "anything", idx.lastReq.Text)
	assert.Equal(t, []float32{0.1, 0.2}, idx.lastReq.Vector)
	assert.Equal(t, DefaultK, idx.lastReq.K)
	assert.Equal(t, DefaultK, idx.lastReq.Top)
	assert.True(t, idx.lastReq.Semantic)
}

func TestTitlesDeduplicatesByFirstOccurrence(t *testing.T) {
	idx := &fakeIndex{hits: rankedHits()}
	engine := New(idx, fakeEmbedder{})

	titles, err := engine.Titles(context.Background(), "everything")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing.md", "deploy.md"}, titles)
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	engine := New(&fakeIndex{}, fakeEmbedder{})
	_, err := engine.Search(context.Background(), "   ")
	assert.Error(t, err)
}

func TestSearchNoRelevantHitsReturnsEmpty(t *testing.T) {
	idx := &fakeIndex{hits: []searchidx.Hit{
		{Document: searchidx.Document{Title: "junk.md", Chunk: "unrelated"}, RerankerScore: 0.9},
	}}
	engine := New(idx, fakeEmbedder{})

	results, err := engine.Search(context.Background(), "unanswerable")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMarshalResultsIndentedJSON(t *testing.T) {
	out, err := MarshalResults([]Result{{Title: "a.md", Chunk: "text", Score: 2.5}})
	require.NoError(t, err)
	assert.Contains(t, out, "\n  {")
	assert.Contains(t, out, `"title": "a.md"`)
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocs() []Document {
	return []Document{
		{ChunkID: "c1", ParentID: "p1", Title: "guide.md", Chunk: "first chunk", Metadata: `{"path":"guide.md"}`, Vector: []float32{0.1, 0.2}},
		{ChunkID: "c2", ParentID: "p1", Title: "guide.md", Chunk: "second chunk", Vector: []float32{0.3, 0.4}},
		{ChunkID: "c3", ParentID: "p2", Title: "notes.txt", Chunk: "other document"},
	}
}

func TestDocStorePutGetRoundTrip(t *testing.T) {
	s, err := NewDocStore("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, testDocs()))

	docs, err := s.Get(ctx, []string{"c1", "c2"})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	byID := map[string]Document{}
	for _, d := range docs {
		byID[d.ChunkID] = d
	}
	assert.Equal(t, "first chunk", byID["c1"].Chunk)
	assert.Equal(t, `{"path":"guide.md"}`, byID["c1"].Metadata)
	assert.Equal(t, []float32{0.1, 0.2}, byID["c1"].Vector)
	assert.Equal(t, []float32{0.3, 0.4}, byID["c2"].Vector)
}

func TestDocStoreUpsertReplaces(t *testing.T) {
	s, err := NewDocStore("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, testDocs()))
	require.NoError(t, s.Put(ctx, []Document{
		{ChunkID: "c1", ParentID: "p1", Title: "guide.md", Chunk: "rewritten", Vector: []float32{0.9, 0.9}},
	}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	docs, err := s.Get(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "rewritten", docs[0].Chunk)
	assert.Equal(t, []float32{0.9, 0.9}, docs[0].Vector)
}

func TestDocStoreDeleteMissingIDsOK(t *testing.T) {
	s, err := NewDocStore("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, testDocs()))
	require.NoError(t, s.Delete(ctx, []string{"c2", "does-not-exist"}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDocStorePersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	ctx := context.Background()

	s, err := NewDocStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, testDocs()))
	require.NoError(t, s.Close())

	reopened, err := NewDocStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	docs, err := reopened.All(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestDocStoreRejectsEmptyChunkID(t *testing.T) {
	s, err := NewDocStore("")
	require.NoError(t, err)
	defer s.Close()

	err = s.Put(context.Background(), []Document{{Chunk: "orphan"}})
	assert.Error(t, err)
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorSearchRanksByCosineSimilarity(t *testing.T) {
	idx, err := NewVectorIndex(3)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, idx.Add(ctx,
		[]string{"c1", "c2", "c3"},
		[][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0.9, 0.1, 0},
		}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Equal(t, "c3", results[1].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestVectorAddReplacesExistingID(t *testing.T) {
	idx, err := NewVectorIndex(2)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []string{"c1"}, [][]float32{{1, 0}}))
	require.NoError(t, idx.Add(ctx, []string{"c1"}, [][]float32{{0, 1}}))

	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
}

func TestVectorDeleteHidesFromSearch(t *testing.T) {
	idx, err := NewVectorIndex(2)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []string{"c1", "c2"}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, idx.Delete(ctx, []string{"c1"}))

	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].ChunkID)
}

func TestVectorDimensionMismatch(t *testing.T) {
	idx, err := NewVectorIndex(3)
	require.NoError(t, err)

	ctx := context.Background()
	err = idx.Add(ctx, []string{"c1"}, [][]float32{{1, 0}})
	assert.Error(t, err)

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestVectorSearchEmptyIndex(t *testing.T) {
	idx, err := NewVectorIndex(2)
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

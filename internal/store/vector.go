package store

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndex is an in-memory HNSW index over chunk embeddings. It is
// rebuilt from the document store on open, so it never persists itself.
type VectorIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int

	// coder/hnsw keys nodes by uint64; map both ways to chunk IDs.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// VectorResult is one nearest-neighbor hit. Score is cosine similarity
// mapped to the 0-1 range.
type VectorResult struct {
	ChunkID string
	Score   float64
}

// NewVectorIndex creates an empty vector index for the given dimensionality.
func NewVectorIndex(dimensions int) (*VectorIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("vector index dimensions must be positive, got %d", dimensions)
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &VectorIndex{
		graph:      graph,
		dimensions: dimensions,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
	}, nil
}

// Add inserts vectors keyed by chunk ID. Re-adding an existing ID replaces
// its vector.
func (v *VectorIndex) Add(ctx context.Context, chunkIDs []string, vectors [][]float32) error {
	if len(chunkIDs) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(chunkIDs), len(vectors))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for i, vec := range vectors {
		if len(vec) != v.dimensions {
			return fmt.Errorf("vector for %s has %d dimensions, index expects %d",
				chunkIDs[i], len(vec), v.dimensions)
		}
	}

	for i, id := range chunkIDs {
		// Lazy replacement: orphan the old graph node rather than deleting
		// it, coder/hnsw misbehaves when the last node is removed.
		if oldKey, exists := v.idMap[id]; exists {
			delete(v.keyMap, oldKey)
			delete(v.idMap, id)
		}

		key := v.nextKey
		v.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)

		v.graph.Add(hnsw.MakeNode(key, vec))
		v.idMap[id] = key
		v.keyMap[key] = id
	}
	return nil
}

// Search returns up to k nearest neighbors of query by cosine similarity.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(query) != v.dimensions {
		return nil, fmt.Errorf("query has %d dimensions, index expects %d", len(query), v.dimensions)
	}
	if v.graph.Len() == 0 {
		return []VectorResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	// Over-fetch to compensate for lazily deleted nodes still in the graph.
	nodes := v.graph.Search(normalized, k+v.graph.Len()-len(v.idMap))

	results := make([]VectorResult, 0, k)
	for _, node := range nodes {
		id, ok := v.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := v.graph.Distance(normalized, node.Value)
		// Cosine distance ranges 0-2; fold to a 0-1 similarity.
		results = append(results, VectorResult{ChunkID: id, Score: float64(1 - distance/2)})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Delete removes vectors by chunk ID using lazy deletion.
func (v *VectorIndex) Delete(ctx context.Context, chunkIDs []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, id := range chunkIDs {
		if key, exists := v.idMap[id]; exists {
			delete(v.keyMap, key)
			delete(v.idMap, id)
		}
	}
	return nil
}

// Count returns the number of live vectors.
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// Dimensions returns the index's vector dimensionality.
func (v *VectorIndex) Dimensions() int { return v.dimensions }

func normalizeInPlace(vec []float32) {
	var sumSquares float64
	for _, val := range vec {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= inv
	}
}

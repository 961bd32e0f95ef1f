// Package embed turns chunk text into embedding vectors in rate-limited
// batches with retry and backoff.
package embed

import (
	"context"
	"time"
)

// Embedding defaults. Batch size respects upstream request-size limits; the
// inter-batch pause is proactive rate-limit avoidance, not backoff.
const (
	// DefaultBatchSize is the number of texts per embedding request.
	DefaultBatchSize = 30

	// DefaultDimensions matches text-embedding-3-small / ada-002 output.
	DefaultDimensions = 1536

	// DefaultInterBatchPause is the fixed pause between successful batches.
	DefaultInterBatchPause = 1 * time.Second

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 60 * time.Second
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The returned
	// slice has exactly one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int

	// ModelName returns the model or deployment identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// Package searchidx defines the document index abstraction and its two
// implementations: a hosted Azure AI Search index reached over REST, and a
// fully local index built from a lexical store, a vector store, and a
// document store.
package searchidx

import "context"

// Index field names. Ingestion and retrieval both address documents through
// these six fields; an index missing any of them is unusable.
const (
	FieldChunkID  = "chunk_id"
	FieldParentID = "parent_id"
	FieldChunk    = "chunk"
	FieldTitle    = "title"
	FieldVector   = "text_vector"
	FieldMetadata = "meta_data"
)

// RequiredFields lists every field the pipeline reads or writes.
func RequiredFields() []string {
	return []string{FieldChunkID, FieldParentID, FieldChunk, FieldTitle, FieldVector, FieldMetadata}
}

// Document is one indexed chunk.
type Document struct {
	ChunkID  string    `json:"chunk_id"`
	ParentID string    `json:"parent_id"`
	Title    string    `json:"title"`
	Chunk    string    `json:"chunk"`
	Vector   []float32 `json:"text_vector,omitempty"`
	Metadata string    `json:"meta_data,omitempty"`
}

// SearchRequest describes one retrieval call. Text drives the lexical leg,
// Vector the nearest-neighbor leg; setting both yields a hybrid search.
type SearchRequest struct {
	Text string

	// SearchFields restricts the lexical match to the named fields.
	// Empty means all searchable fields.
	SearchFields []string

	// Phrase treats Text as an exact phrase instead of free terms.
	Phrase bool

	// Filter is an exact-match equality filter, field name to value.
	Filter map[string]string

	// Select names the fields to return. Empty means all.
	Select []string

	// Top caps the number of hits returned.
	Top int

	// Vector and K configure the nearest-neighbor leg.
	Vector []float32
	K      int

	// Semantic requests reranking of the fused result list.
	Semantic bool
}

// Hit is one search result. RerankerScore is only populated for semantic
// requests and lives on a 0-4 scale.
type Hit struct {
	Document      Document
	Score         float64
	RerankerScore float64
}

// IndexResult is the per-document outcome of an upload or delete batch.
type IndexResult struct {
	Key          string
	Succeeded    bool
	StatusCode   int
	ErrorMessage string
}

// Index is the document index used by ingestion and retrieval.
type Index interface {
	// FieldNames returns the names of the index's retrievable fields.
	FieldNames(ctx context.Context) ([]string, error)

	// Upload upserts documents and reports per-document outcomes.
	// A non-nil error means the whole batch failed to reach the index.
	Upload(ctx context.Context, docs []Document) ([]IndexResult, error)

	// Delete removes documents by chunk ID. Deleting an absent ID succeeds.
	Delete(ctx context.Context, chunkIDs []string) ([]IndexResult, error)

	// Search executes a lexical, vector, or hybrid query.
	Search(ctx context.Context, req SearchRequest) ([]Hit, error)

	Close() error
}

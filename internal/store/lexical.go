package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// LexicalIndex wraps Bleve for BM25 keyword search over chunk text and
// titles.
type LexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// lexicalDocument is the shape Bleve indexes.
type lexicalDocument struct {
	Title string `json:"title"`
	Chunk string `json:"chunk"`
}

// LexicalResult is one keyword hit.
type LexicalResult struct {
	ChunkID string
	Score   float64
}

func lexicalMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Store = false
	textField.IncludeTermVectors = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", textField)
	doc.AddFieldMappingsAt("chunk", textField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// NewLexicalIndex opens or creates a Bleve index at path. An empty path
// creates an in-memory index for testing.
func NewLexicalIndex(path string) (*LexicalIndex, error) {
	var idx bleve.Index
	var err error

	if path == "" {
		idx, err = bleve.NewMemOnly(lexicalMapping())
	} else if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create lexical index directory: %w", err)
		}
		idx, err = bleve.New(path, lexicalMapping())
	} else {
		idx, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}

	return &LexicalIndex{index: idx, path: path}, nil
}

// Add indexes documents, replacing any existing entries with the same IDs.
func (l *LexicalIndex) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("lexical index is closed")
	}

	batch := l.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ChunkID, lexicalDocument{Title: doc.Title, Chunk: doc.Chunk}); err != nil {
			return fmt.Errorf("index chunk %s: %w", doc.ChunkID, err)
		}
	}
	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("apply lexical batch: %w", err)
	}
	return nil
}

// Delete removes documents by chunk ID. Absent IDs are not an error.
func (l *LexicalIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("lexical index is closed")
	}

	batch := l.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("apply lexical delete batch: %w", err)
	}
	return nil
}

// Search runs a keyword query. fields restricts matching to the named fields
// ("title", "chunk"); empty matches both. phrase requires the terms to appear
// adjacent and in order.
func (l *LexicalIndex) Search(ctx context.Context, text string, fields []string, phrase bool, limit int) ([]LexicalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}

	if len(fields) == 0 {
		fields = []string{"title", "chunk"}
	}
	if limit <= 0 {
		limit = 50
	}

	perField := make([]query.Query, 0, len(fields))
	for _, field := range fields {
		if phrase {
			q := bleve.NewMatchPhraseQuery(text)
			q.SetField(field)
			perField = append(perField, q)
		} else {
			q := bleve.NewMatchQuery(text)
			q.SetField(field)
			perField = append(perField, q)
		}
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(perField...))
	req.Size = limit

	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	results := make([]LexicalResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, LexicalResult{ChunkID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Count returns the number of indexed documents.
func (l *LexicalIndex) Count() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0, fmt.Errorf("lexical index is closed")
	}
	return l.index.DocCount()
}

// Close closes the underlying Bleve index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.index.Close()
}

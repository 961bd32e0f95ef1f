// Package query answers questions against the search index with hybrid
// retrieval: a lexical leg and a vector leg fused by the index, then
// semantically reranked.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quillsearch/quill/internal/embed"
	"github.com/quillsearch/quill/internal/searchidx"
)

const (
	// DefaultK is the nearest-neighbor count for the vector leg and the
	// result cap for the fused list.
	DefaultK = 50

	// rerankerFloor drops hits the reranker scored as barely relevant.
	// Reranker scores live on a 0-4 scale; anything at or below 1 is
	// noise in practice.
	rerankerFloor = 1.0
)

// Result is one retrieved chunk.
type Result struct {
	Title    string  `json:"title"`
	Chunk    string  `json:"chunk,omitempty"`
	Score    float64 `json:"score"`
	Metadata string  `json:"metadata,omitempty"`
}

// Engine runs retrieval queries.
type Engine struct {
	index    searchidx.Index
	embedder embed.Embedder
	k        int
}

// New creates a query engine.
func New(index searchidx.Index, embedder embed.Embedder) *Engine {
	return &Engine{index: index, embedder: embedder, k: DefaultK}
}

// Search embeds the query, runs a hybrid semantic search, and returns the
// chunks the reranker considered relevant. Chunk text is flattened to single
// lines so results embed cleanly in prompt or log contexts.
func (e *Engine) Search(ctx context.Context, text string) ([]Result, error) {
	hits, err := e.search(ctx, text)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Title:    flatten(hit.Document.Title),
			Chunk:    flatten(hit.Document.Chunk),
			Score:    hit.RerankerScore,
			Metadata: flatten(hit.Document.Metadata),
		})
	}

	slog.Debug("query_answered",
		slog.String("query", text),
		slog.Int("hits", len(hits)),
		slog.Int("returned", len(results)))
	return results, nil
}

// Titles runs the same retrieval but returns only the distinct source
// titles, ordered by first occurrence in the ranked results.
func (e *Engine) Titles(ctx context.Context, text string) ([]string, error) {
	hits, err := e.search(ctx, text)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(hits))
	titles := make([]string, 0, len(hits))
	for _, hit := range hits {
		if title := flatten(hit.Document.Title); title != "" && !seen[title] {
			seen[title] = true
			titles = append(titles, title)
		}
	}
	return titles, nil
}

func (e *Engine) search(ctx context.Context, text string) ([]searchidx.Hit, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("query text is empty")
	}

	vector, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := e.index.Search(ctx, searchidx.SearchRequest{
		Text:     text,
		Select:   []string{searchidx.FieldTitle, searchidx.FieldChunk, searchidx.FieldMetadata},
		Top:      e.k,
		Vector:   vector,
		K:        e.k,
		Semantic: true,
	})
	if err != nil {
		return nil, err
	}

	relevant := hits[:0]
	for _, hit := range hits {
		if hit.RerankerScore > rerankerFloor {
			relevant = append(relevant, hit)
		}
	}
	return relevant, nil
}

// flatten collapses all whitespace runs, newlines included, to single
// spaces.
func flatten(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// MarshalResults renders results as indented JSON for CLI and tool output.
func MarshalResults(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(data), nil
}

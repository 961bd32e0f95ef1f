// Package syncer reconciles freshly split documents with the search index.
// Replacement is scoped per title: every chunk already indexed under a title
// is removed before the new chunks are uploaded.
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	qerrors "github.com/quillsearch/quill/internal/errors"
	"github.com/quillsearch/quill/internal/searchidx"
)

const (
	// DefaultUploadBatchSize is the number of documents per upload call.
	DefaultUploadBatchSize = 10

	// DefaultLookupCap bounds how many existing chunks one title lookup
	// can return.
	DefaultLookupCap = 1000

	// maxFailureSamples caps how many per-document errors are logged per
	// batch.
	maxFailureSamples = 5
)

// Stats summarizes one replacement. FailureSamples holds at most
// maxFailureSamples per-document error descriptions.
type Stats struct {
	Deleted        int
	Uploaded       int
	Failed         int
	FailureSamples []string
}

// Syncer writes documents to a search index.
type Syncer struct {
	index     searchidx.Index
	indexName string
	batchSize int
	lookupCap int
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithBatchSize overrides the upload batch size.
func WithBatchSize(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLookupCap overrides the existing-chunk lookup cap.
func WithLookupCap(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.lookupCap = n
		}
	}
}

// New creates a Syncer over the given index. indexName only labels errors
// and log lines.
func New(index searchidx.Index, indexName string, opts ...Option) *Syncer {
	s := &Syncer{
		index:     index,
		indexName: indexName,
		batchSize: DefaultUploadBatchSize,
		lookupCap: DefaultLookupCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifySchema checks that the index exposes every field the pipeline needs.
// It runs once before any write; a missing field fails the whole run rather
// than producing documents the index would silently drop.
func (s *Syncer) VerifySchema(ctx context.Context) error {
	names, err := s.index.FieldNames(ctx)
	if err != nil {
		return fmt.Errorf("verify schema: %w", err)
	}

	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}

	var missing []string
	for _, required := range searchidx.RequiredFields() {
		if !present[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return qerrors.SchemaMismatch(s.indexName, missing)
	}
	return nil
}

// Replace removes every chunk indexed under title and uploads docs in its
// place. Per-document upload failures are non-fatal: they are counted,
// sampled into the log, and reported in Stats.
func (s *Syncer) Replace(ctx context.Context, title string, docs []searchidx.Document) (Stats, error) {
	var stats Stats

	existing, err := s.existingChunkIDs(ctx, title)
	if err != nil {
		return stats, err
	}

	if len(existing) > 0 {
		deleted, err := s.deleteChunks(ctx, existing)
		if err != nil {
			return stats, err
		}
		stats.Deleted = deleted
	}

	for start := 0; start < len(docs); start += s.batchSize {
		end := start + s.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		results, err := s.index.Upload(ctx, batch)
		if err != nil {
			return stats, fmt.Errorf("upload batch for %q: %w", title, err)
		}

		batchFailed := 0
		for _, r := range results {
			if r.Succeeded {
				stats.Uploaded++
				continue
			}
			stats.Failed++
			batchFailed++
			if len(stats.FailureSamples) < maxFailureSamples {
				stats.FailureSamples = append(stats.FailureSamples,
					fmt.Sprintf("%s: %s", r.Key, r.ErrorMessage))
			}
		}
		if batchFailed > 0 {
			slog.Warn("upload_batch_partial_failure",
				slog.String("title", title),
				slog.Int("failed", batchFailed),
				slog.Int("batch_size", len(batch)),
				slog.Any("samples", stats.FailureSamples))
		}
	}

	slog.Info("title_replaced",
		slog.String("title", title),
		slog.Int("deleted", stats.Deleted),
		slog.Int("uploaded", stats.Uploaded),
		slog.Int("failed", stats.Failed))
	return stats, nil
}

// existingChunkIDs finds the chunks currently indexed under title. The
// phrase search over-matches on tokenized titles, so results are narrowed
// to exact title equality before their IDs are collected.
func (s *Syncer) existingChunkIDs(ctx context.Context, title string) ([]string, error) {
	hits, err := s.index.Search(ctx, searchidx.SearchRequest{
		Text:         title,
		Phrase:       true,
		SearchFields: []string{searchidx.FieldTitle},
		Select:       []string{searchidx.FieldChunkID, searchidx.FieldTitle},
		Top:          s.lookupCap,
	})
	if err != nil {
		return nil, fmt.Errorf("look up existing chunks for %q: %w", title, err)
	}

	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Document.Title == title {
			ids = append(ids, hit.Document.ChunkID)
		}
	}
	return ids, nil
}

// deleteChunks removes chunk IDs in batches sized by the lookup cap.
// Deleting an ID the index no longer holds counts as success.
func (s *Syncer) deleteChunks(ctx context.Context, chunkIDs []string) (int, error) {
	deleted := 0
	for start := 0; start < len(chunkIDs); start += s.lookupCap {
		end := start + s.lookupCap
		if end > len(chunkIDs) {
			end = len(chunkIDs)
		}

		results, err := s.index.Delete(ctx, chunkIDs[start:end])
		if err != nil {
			return deleted, fmt.Errorf("delete stale chunks: %w", err)
		}
		for _, r := range results {
			if r.Succeeded {
				deleted++
			}
		}
	}
	return deleted, nil
}

// Package pipeline drives ingestion end to end: scan, read, split, embed,
// and synchronize with the search index.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/quillsearch/quill/internal/embed"
	qerrors "github.com/quillsearch/quill/internal/errors"
	"github.com/quillsearch/quill/internal/identity"
	"github.com/quillsearch/quill/internal/reader"
	"github.com/quillsearch/quill/internal/scanner"
	"github.com/quillsearch/quill/internal/searchidx"
	"github.com/quillsearch/quill/internal/splitter"
	"github.com/quillsearch/quill/internal/syncer"
)

// Summary aggregates one ingestion run.
type Summary struct {
	FilesScanned   int
	FilesIndexed   int
	FilesSkipped   int
	ChunksUploaded int
	ChunksFailed   int
	ChunksDeleted  int
}

// Runner ingests files into the search index.
type Runner struct {
	splitters *splitter.Cache
	embedder  embed.Embedder
	syncer    *syncer.Syncer
	maxChars  int
	overlap   int
}

// New creates a Runner. maxChars and overlap configure chunking and are
// clamped by the splitter.
func New(embedder embed.Embedder, sync *syncer.Syncer, maxChars, overlap int) *Runner {
	return &Runner{
		splitters: splitter.NewCache(),
		embedder:  embedder,
		syncer:    sync,
		maxChars:  maxChars,
		overlap:   overlap,
	}
}

// Run ingests every supported file under root. The index schema is verified
// once up front; a mismatch aborts before any document is touched. Files
// that vanish mid-run are skipped, embedding failures abort the run before
// the affected file's index state is modified, and per-document upload
// rejections are logged but do not stop the run.
func (r *Runner) Run(ctx context.Context, root string) (Summary, error) {
	var summary Summary

	if err := r.syncer.VerifySchema(ctx); err != nil {
		return summary, err
	}

	files, err := scanner.Scan(root)
	if err != nil {
		return summary, err
	}
	slog.Info("ingestion_started", slog.String("root", root), slog.Int("files", len(files)))

	for _, path := range files {
		summary.FilesScanned++

		title, docs, err := r.prepare(ctx, path)
		if err != nil {
			if qerrors.HasCode(err, qerrors.ErrCodeFileUnavailable) {
				slog.Warn("file_skipped", slog.String("path", path), slog.String("error", err.Error()))
				summary.FilesSkipped++
				continue
			}
			return summary, fmt.Errorf("prepare %s: %w", path, err)
		}
		if len(docs) == 0 {
			slog.Debug("file_empty", slog.String("path", path))
			summary.FilesSkipped++
			continue
		}

		stats, err := r.syncer.Replace(ctx, title, docs)
		summary.ChunksDeleted += stats.Deleted
		summary.ChunksUploaded += stats.Uploaded
		summary.ChunksFailed += stats.Failed
		if err != nil {
			return summary, fmt.Errorf("synchronize %s: %w", path, err)
		}
		if stats.Failed > 0 {
			slog.Error("partial_upload",
				slog.String("path", path),
				slog.String("error", qerrors.PartialUpload(stats.Failed, stats.FailureSamples).Error()))
		}
		summary.FilesIndexed++
	}

	slog.Info("ingestion_finished",
		slog.Int("files_scanned", summary.FilesScanned),
		slog.Int("files_indexed", summary.FilesIndexed),
		slog.Int("files_skipped", summary.FilesSkipped),
		slog.Int("chunks_uploaded", summary.ChunksUploaded),
		slog.Int("chunks_failed", summary.ChunksFailed))
	return summary, nil
}

// prepare turns one file into index documents: identity, extraction,
// chunking, then embedding. Nothing is written here, so an embedding
// failure leaves the index untouched for this file.
func (r *Runner) prepare(ctx context.Context, path string) (string, []searchidx.Document, error) {
	parentID, err := identity.ParentID(path)
	if err != nil {
		return "", nil, err
	}
	title := identity.Title(path)

	content := reader.Read(path)
	if content == "" {
		return title, nil, nil
	}

	chunks := r.splitters.Get(r.maxChars, r.overlap).Split(content)
	if len(chunks) == 0 {
		return title, nil, nil
	}

	vectors, err := r.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return "", nil, err
	}
	if len(vectors) != len(chunks) {
		return "", nil, qerrors.CountMismatch(len(chunks), len(vectors))
	}

	docs := make([]searchidx.Document, 0, len(chunks))
	for i, chunk := range chunks {
		metadata, err := identity.Metadata(path, map[string]any{
			"chunk_index":  i,
			"total_chunks": len(chunks),
		})
		if err != nil {
			return "", nil, err
		}
		docs = append(docs, searchidx.Document{
			ChunkID:  chunkID(parentID, i),
			ParentID: parentID,
			Title:    title,
			Chunk:    chunk,
			Vector:   vectors[i],
			Metadata: metadata,
		})
	}

	slog.Debug("file_prepared",
		slog.String("path", path),
		slog.String("parent_id", parentID),
		slog.Int("chunks", len(docs)))
	return title, docs, nil
}

// chunkID derives a stable per-chunk key from the parent identity, with a
// random suffix so retried uploads of a renamed file never collide.
func chunkID(parentID string, index int) string {
	return parentID + "-" + strconv.Itoa(index) + "-" + uuid.NewString()[:8]
}

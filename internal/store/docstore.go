// Package store provides the persistence building blocks for the local index
// backend: a SQLite document store, a Bleve lexical index, and an in-memory
// HNSW vector index hydrated from the document store.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO
)

// Document is one chunk as persisted by the local backend.
type Document struct {
	ChunkID  string
	ParentID string
	Title    string
	Chunk    string
	Metadata string
	Vector   []float32
}

// DocStore persists documents, including their vectors, in SQLite. It is the
// source of truth for the local backend; the lexical and vector indexes are
// derived from it.
type DocStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

const docStoreSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id  TEXT PRIMARY KEY,
	parent_id TEXT NOT NULL,
	title     TEXT NOT NULL,
	chunk     TEXT NOT NULL,
	meta_data TEXT NOT NULL DEFAULT '',
	vector    BLOB
);
CREATE INDEX IF NOT EXISTS idx_chunks_parent ON chunks(parent_id);
CREATE INDEX IF NOT EXISTS idx_chunks_title ON chunks(title);
`

// NewDocStore opens or creates the document store at path. An empty path
// creates an in-memory store for testing.
func NewDocStore(path string) (*DocStore, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create docstore directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open docstore: %w", err)
	}

	// WAL mode must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(docStoreSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create docstore schema: %w", err)
	}

	return &DocStore{db: db, path: path}, nil
}

// Put upserts documents in a single transaction.
func (s *DocStore) Put(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("docstore is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin docstore tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, parent_id, title, chunk, meta_data, vector)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			parent_id = excluded.parent_id,
			title     = excluded.title,
			chunk     = excluded.chunk,
			meta_data = excluded.meta_data,
			vector    = excluded.vector`)
	if err != nil {
		return fmt.Errorf("prepare docstore upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, doc := range docs {
		if doc.ChunkID == "" {
			return fmt.Errorf("document without chunk_id")
		}
		if _, err := stmt.ExecContext(ctx, doc.ChunkID, doc.ParentID, doc.Title,
			doc.Chunk, doc.Metadata, encodeVector(doc.Vector)); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", doc.ChunkID, err)
		}
	}

	return tx.Commit()
}

// Get returns the documents with the given chunk IDs. Missing IDs are
// silently omitted.
func (s *DocStore) Get(ctx context.Context, chunkIDs []string) ([]Document, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("docstore is closed")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunkIDs)), ",")
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, parent_id, title, chunk, meta_data, vector
		 FROM chunks WHERE chunk_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDocuments(rows)
}

// All returns every stored document. Used to hydrate the vector and lexical
// indexes when the local backend opens.
func (s *DocStore) All(ctx context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("docstore is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, parent_id, title, chunk, meta_data, vector FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("query all chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDocuments(rows)
}

// FindByTitle returns the documents whose title exactly equals title.
func (s *DocStore) FindByTitle(ctx context.Context, title string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("docstore is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, parent_id, title, chunk, meta_data, vector
		 FROM chunks WHERE title = ?`, title)
	if err != nil {
		return nil, fmt.Errorf("query chunks by title: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDocuments(rows)
}

// Delete removes documents by chunk ID. Absent IDs are not an error.
func (s *DocStore) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("docstore is closed")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunkIDs)), ",")
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE chunk_id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *DocStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("docstore is closed")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *DocStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var doc Document
		var blob []byte
		if err := rows.Scan(&doc.ChunkID, &doc.ParentID, &doc.Title,
			&doc.Chunk, &doc.Metadata, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		doc.Vector = decodeVector(blob)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}

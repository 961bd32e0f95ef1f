package searchidx

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/quillsearch/quill/internal/store"
)

// LocalConfig configures the local index backend.
type LocalConfig struct {
	// Dir is the data directory. Empty runs everything in memory.
	Dir        string
	Dimensions int
}

// LocalIndex implements Index on local storage: SQLite for documents, Bleve
// for keyword search, and an HNSW graph for vector search. The vector graph
// is rebuilt from the document store on open.
type LocalIndex struct {
	docs    *store.DocStore
	lexical *store.LexicalIndex
	vectors *store.VectorIndex
	lock    *flock.Flock
}

var _ Index = (*LocalIndex)(nil)

// NewLocalIndex opens the local index, taking an exclusive file lock on the
// data directory so concurrent processes cannot corrupt it.
func NewLocalIndex(cfg LocalConfig) (*LocalIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("local index requires positive dimensions, got %d", cfg.Dimensions)
	}

	var lock *flock.Flock
	docsPath, lexicalPath := "", ""
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		lock = flock.New(filepath.Join(cfg.Dir, "index.lock"))
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire index lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("index directory %s is locked by another process", cfg.Dir)
		}
		docsPath = filepath.Join(cfg.Dir, "docs.db")
		lexicalPath = filepath.Join(cfg.Dir, "lexical.bleve")
	}

	docs, err := store.NewDocStore(docsPath)
	if err != nil {
		unlock(lock)
		return nil, err
	}
	lexical, err := store.NewLexicalIndex(lexicalPath)
	if err != nil {
		_ = docs.Close()
		unlock(lock)
		return nil, err
	}
	vectors, err := store.NewVectorIndex(cfg.Dimensions)
	if err != nil {
		_ = lexical.Close()
		_ = docs.Close()
		unlock(lock)
		return nil, err
	}

	idx := &LocalIndex{docs: docs, lexical: lexical, vectors: vectors, lock: lock}
	if err := idx.hydrate(context.Background()); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("hydrate vector index: %w", err)
	}
	return idx, nil
}

// hydrate rebuilds the in-memory vector graph from persisted documents.
func (l *LocalIndex) hydrate(ctx context.Context) error {
	docs, err := l.docs.All(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(docs))
	vectors := make([][]float32, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Vector) == l.vectors.Dimensions() {
			ids = append(ids, doc.ChunkID)
			vectors = append(vectors, doc.Vector)
		}
	}
	return l.vectors.Add(ctx, ids, vectors)
}

// FieldNames reports the fixed local schema.
func (l *LocalIndex) FieldNames(ctx context.Context) ([]string, error) {
	return RequiredFields(), nil
}

// Upload upserts documents across all three stores, reporting per-document
// outcomes the way a hosted index would.
func (l *LocalIndex) Upload(ctx context.Context, docs []Document) ([]IndexResult, error) {
	results := make([]IndexResult, 0, len(docs))
	valid := make([]store.Document, 0, len(docs))

	for _, doc := range docs {
		if doc.ChunkID == "" {
			results = append(results, IndexResult{
				Succeeded: false, StatusCode: 400, ErrorMessage: "document missing chunk_id",
			})
			continue
		}
		if len(doc.Vector) > 0 && len(doc.Vector) != l.vectors.Dimensions() {
			results = append(results, IndexResult{
				Key: doc.ChunkID, Succeeded: false, StatusCode: 400,
				ErrorMessage: fmt.Sprintf("vector has %d dimensions, index expects %d",
					len(doc.Vector), l.vectors.Dimensions()),
			})
			continue
		}
		valid = append(valid, store.Document{
			ChunkID:  doc.ChunkID,
			ParentID: doc.ParentID,
			Title:    doc.Title,
			Chunk:    doc.Chunk,
			Metadata: doc.Metadata,
			Vector:   doc.Vector,
		})
		results = append(results, IndexResult{Key: doc.ChunkID, Succeeded: true, StatusCode: 200})
	}

	if len(valid) == 0 {
		return results, nil
	}

	if err := l.docs.Put(ctx, valid); err != nil {
		return nil, err
	}
	if err := l.lexical.Add(ctx, valid); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(valid))
	vectors := make([][]float32, 0, len(valid))
	for _, doc := range valid {
		if len(doc.Vector) > 0 {
			ids = append(ids, doc.ChunkID)
			vectors = append(vectors, doc.Vector)
		}
	}
	if err := l.vectors.Add(ctx, ids, vectors); err != nil {
		return nil, err
	}
	return results, nil
}

// Delete removes documents from all three stores. Absent IDs succeed.
func (l *LocalIndex) Delete(ctx context.Context, chunkIDs []string) ([]IndexResult, error) {
	if err := l.docs.Delete(ctx, chunkIDs); err != nil {
		return nil, err
	}
	if err := l.lexical.Delete(ctx, chunkIDs); err != nil {
		return nil, err
	}
	if err := l.vectors.Delete(ctx, chunkIDs); err != nil {
		return nil, err
	}

	results := make([]IndexResult, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		results = append(results, IndexResult{Key: id, Succeeded: true, StatusCode: 200})
	}
	return results, nil
}

// Search runs the lexical and vector legs in parallel, fuses them with
// reciprocal rank fusion, and optionally reranks by vector similarity.
func (l *LocalIndex) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	top := req.Top
	if top <= 0 {
		top = 50
	}

	// A pure filter lookup needs no ranking at all.
	if req.Text == "" && len(req.Vector) == 0 {
		return l.filterOnly(ctx, req, top)
	}

	fetch := top
	if req.K > fetch {
		fetch = req.K
	}

	var lexResults []store.LexicalResult
	var vecResults []store.VectorResult

	g, gctx := errgroup.WithContext(ctx)
	if req.Text != "" {
		g.Go(func() error {
			var err error
			lexResults, err = l.lexical.Search(gctx, req.Text, req.SearchFields, req.Phrase, fetch)
			return err
		})
	}
	if len(req.Vector) > 0 {
		g.Go(func() error {
			var err error
			vecResults, err = l.vectors.Search(gctx, req.Vector, fetch)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := rrfFuse(lexResults, vecResults)

	ids := make([]string, 0, len(fused))
	for _, f := range fused {
		ids = append(ids, f.chunkID)
	}
	docs, err := l.docs.Get(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]store.Document, len(docs))
	for _, d := range docs {
		byID[d.ChunkID] = d
	}

	hits := make([]Hit, 0, len(fused))
	for _, f := range fused {
		doc, ok := byID[f.chunkID]
		if !ok {
			continue
		}
		if !matchesFilter(doc, req.Filter) {
			continue
		}
		hit := Hit{
			Document: Document{
				ChunkID:  doc.ChunkID,
				ParentID: doc.ParentID,
				Title:    doc.Title,
				Chunk:    doc.Chunk,
				Metadata: doc.Metadata,
			},
			Score: f.score,
		}
		if req.Semantic {
			hit.RerankerScore = rerankerScore(req.Vector, doc.Vector)
		}
		hits = append(hits, hit)
	}

	if req.Semantic {
		sort.SliceStable(hits, func(i, j int) bool {
			return hits[i].RerankerScore > hits[j].RerankerScore
		})
	}
	if len(hits) > top {
		hits = hits[:top]
	}
	return hits, nil
}

// filterOnly serves exact-match lookups without a ranked query.
func (l *LocalIndex) filterOnly(ctx context.Context, req SearchRequest, top int) ([]Hit, error) {
	title, ok := req.Filter[FieldTitle]
	if !ok {
		return nil, fmt.Errorf("local index filter lookup requires a title filter")
	}

	docs, err := l.docs.FindByTitle(ctx, title)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(docs))
	for _, doc := range docs {
		if !matchesFilter(doc, req.Filter) {
			continue
		}
		hits = append(hits, Hit{Document: Document{
			ChunkID:  doc.ChunkID,
			ParentID: doc.ParentID,
			Title:    doc.Title,
			Chunk:    doc.Chunk,
			Metadata: doc.Metadata,
		}})
		if len(hits) == top {
			break
		}
	}
	return hits, nil
}

func matchesFilter(doc store.Document, filter map[string]string) bool {
	for field, value := range filter {
		switch field {
		case FieldChunkID:
			if doc.ChunkID != value {
				return false
			}
		case FieldParentID:
			if doc.ParentID != value {
				return false
			}
		case FieldTitle:
			if doc.Title != value {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// rerankerScore maps cosine similarity between the query and document
// vectors onto the 0-4 relevance scale hosted rerankers use.
func rerankerScore(query, doc []float32) float64 {
	if len(query) == 0 || len(doc) != len(query) {
		return 0
	}
	var dot, qNorm, dNorm float64
	for i := range query {
		dot += float64(query[i]) * float64(doc[i])
		qNorm += float64(query[i]) * float64(query[i])
		dNorm += float64(doc[i]) * float64(doc[i])
	}
	if qNorm == 0 || dNorm == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(qNorm) * math.Sqrt(dNorm))
	if sim < 0 {
		sim = 0
	}
	return 4 * sim
}

// Close releases every store and the directory lock.
func (l *LocalIndex) Close() error {
	var firstErr error
	if err := l.lexical.Close(); err != nil {
		firstErr = err
	}
	if err := l.docs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	unlock(l.lock)
	return firstErr
}

func unlock(lock *flock.Flock) {
	if lock != nil {
		_ = lock.Unlock()
	}
}

const rrfConstant = 60

type fusedResult struct {
	chunkID string
	score   float64
	lexRank int
	vecRank int
}

// rrfFuse combines the two ranked lists with reciprocal rank fusion.
// Documents missing from one list contribute at one past that list's end.
func rrfFuse(lex []store.LexicalResult, vec []store.VectorResult) []fusedResult {
	if len(lex) == 0 && len(vec) == 0 {
		return nil
	}

	scores := make(map[string]*fusedResult, len(lex)+len(vec))
	get := func(id string) *fusedResult {
		if r, ok := scores[id]; ok {
			return r
		}
		r := &fusedResult{chunkID: id}
		scores[id] = r
		return r
	}

	for rank, r := range lex {
		f := get(r.ChunkID)
		f.lexRank = rank + 1
		f.score += 1 / float64(rrfConstant+rank+1)
	}
	for rank, r := range vec {
		f := get(r.ChunkID)
		f.vecRank = rank + 1
		f.score += 1 / float64(rrfConstant+rank+1)
	}

	missingRank := len(lex)
	if len(vec) > missingRank {
		missingRank = len(vec)
	}
	missingRank++
	for _, f := range scores {
		if f.lexRank == 0 || f.vecRank == 0 {
			f.score += 1 / float64(rrfConstant+missingRank)
		}
	}

	fused := make([]fusedResult, 0, len(scores))
	for _, f := range scores {
		fused = append(fused, *f)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].chunkID < fused[j].chunkID
	})
	return fused
}

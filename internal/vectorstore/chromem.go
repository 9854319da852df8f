package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// ChromemStore implements Store on an embedded chromem-go database. It is
// used for zero-infrastructure local mode and as the backend in tests.
// Embeddings are always supplied by the caller, so the collection-level
// embedding function is never invoked.
type ChromemStore struct {
	// db is the embedded chromem database.
	db *chromem.DB
	// mu serializes collection create/delete against lookups.
	mu sync.Mutex
}

// NewChromem creates an in-memory ChromemStore.
func NewChromem() *ChromemStore {
	return &ChromemStore{db: chromem.NewDB()}
}

// NewChromemPersistent creates a ChromemStore persisted under dir.
func NewChromemPersistent(dir string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open chromem db: %w", err)
	}
	return &ChromemStore{db: db}, nil
}

// noEmbed is installed as the collection embedding function. Every code
// path supplies pre-computed vectors, so a call to it means a wiring bug.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("vectorstore: embedding must be pre-computed")
}

// CreateCollection ensures the project's collection exists and returns its
// handle. Idempotent.
func (s *ChromemStore) CreateCollection(_ context.Context, projectID string, _ int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle := HandleFor(projectID)
	if _, err := s.db.GetOrCreateCollection(handle, nil, noEmbed); err != nil {
		return "", core.Wrap(err, core.CodeVectorStoreUnavailable, "create collection %q", handle)
	}
	return handle, nil
}

// collection returns the named collection or nil when absent.
func (s *ChromemStore) collection(handle string) *chromem.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.GetCollection(handle, noEmbed)
}

// Upsert stores or replaces a batch of points.
func (s *ChromemStore) Upsert(ctx context.Context, handle string, points []Point) error {
	col := s.collection(handle)
	if col == nil {
		return core.E(core.CodeVectorStoreUnavailable, "collection %q does not exist", handle)
	}

	docs := make([]chromem.Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, chromem.Document{
			ID:        p.ID,
			Content:   p.Payload.Content,
			Embedding: p.Vector,
			Metadata: map[string]string{
				"document_id":   p.Payload.DocumentID,
				"project_id":    p.Payload.ProjectID,
				"chunk_index":   strconv.Itoa(p.Payload.ChunkIndex),
				"filename":      p.Payload.Metadata.Filename,
				"original_name": p.Payload.Metadata.OriginalName,
				"mime_type":     p.Payload.Metadata.MimeType,
				"chunk_size":    strconv.Itoa(p.Payload.Metadata.ChunkSize),
				"total_chunks":  strconv.Itoa(p.Payload.Metadata.TotalChunks),
				"created_at":    p.Payload.Metadata.CreatedAt,
			},
		})
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return mapChromemErr(err, "upsert %d points into %q", len(points), handle)
	}
	return nil
}

// Search returns up to k matches with score >= threshold, sorted by
// descending score with deterministic tie-breaking.
func (s *ChromemStore) Search(ctx context.Context, handle string, vector []float32, k int, threshold float64) ([]Match, error) {
	col := s.collection(handle)
	if col == nil {
		return nil, core.E(core.CodeVectorStoreUnavailable, "collection %q does not exist", handle)
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, mapChromemErr(err, "search %q", handle)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		if float64(r.Similarity) < threshold {
			continue
		}
		matches = append(matches, Match{
			ID:      r.ID,
			Score:   r.Similarity,
			Payload: payloadFromMetadata(r.Content, r.Metadata),
		})
	}
	sortMatches(matches)
	return matches, nil
}

// DeleteByDocument removes every point whose payload references documentID.
// Idempotent; a missing collection is a no-op.
func (s *ChromemStore) DeleteByDocument(ctx context.Context, handle, documentID string) error {
	col := s.collection(handle)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return mapChromemErr(err, "delete document %s from %q", documentID, handle)
	}
	return nil
}

// DeleteCollection destroys the collection and all of its points.
// Idempotent.
func (s *ChromemStore) DeleteCollection(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(handle); err != nil {
		return mapChromemErr(err, "delete collection %q", handle)
	}
	return nil
}

// Stats reports the collection's point count. The embedded store has no
// separate indexing stage, so indexed equals total.
func (s *ChromemStore) Stats(_ context.Context, handle string) (*Stats, error) {
	col := s.collection(handle)
	if col == nil {
		return nil, core.E(core.CodeVectorStoreUnavailable, "collection %q does not exist", handle)
	}
	n := uint64(col.Count())
	return &Stats{PointsCount: n, IndexedCount: n, Status: "green"}, nil
}

// Close releases resources; the embedded store holds none beyond memory.
func (s *ChromemStore) Close() error { return nil }

// payloadFromMetadata reconstructs a Payload from a chromem result.
func payloadFromMetadata(content string, meta map[string]string) Payload {
	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	return Payload{
		DocumentID: meta["document_id"],
		ProjectID:  meta["project_id"],
		Content:    content,
		ChunkIndex: atoi(meta["chunk_index"]),
		Metadata: ChunkMetadata{
			Filename:     meta["filename"],
			OriginalName: meta["original_name"],
			MimeType:     meta["mime_type"],
			ChunkSize:    atoi(meta["chunk_size"]),
			TotalChunks:  atoi(meta["total_chunks"]),
			CreatedAt:    meta["created_at"],
		},
	}
}

// mapChromemErr classifies an embedded-store failure: mismatched vector
// lengths mean the collection and the request disagree on dimensionality.
func mapChromemErr(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if strings.Contains(err.Error(), "same length") || strings.Contains(err.Error(), "dimension") {
		return core.Wrap(err, core.CodeVectorStoreCorrupt, "%s", msg)
	}
	return core.Wrap(err, core.CodeVectorStoreUnavailable, "%s", msg)
}

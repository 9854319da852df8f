// Package vectorstore encapsulates the vector database behind a narrow
// gateway: per-project collections, point upsert, filtered deletion, and
// cosine similarity search with a score threshold. Two implementations are
// provided — Qdrant for deployments and an embedded chromem-go store for
// zero-infrastructure local mode and tests.
package vectorstore

import (
	"context"
	"sort"
)

// HandleFor returns the collection handle for a project. Handles are
// created lazily on first ingest and never change afterwards.
func HandleFor(projectID string) string {
	return "project_" + projectID
}

// ChunkMetadata is the descriptive metadata carried on every point payload.
type ChunkMetadata struct {
	// Filename is the stored filename of the source document.
	Filename string `json:"filename"`
	// OriginalName is the filename as uploaded.
	OriginalName string `json:"original_name"`
	// MimeType is the declared content type.
	MimeType string `json:"mime_type"`
	// ChunkSize is the character length of this chunk.
	ChunkSize int `json:"chunk_size"`
	// TotalChunks is the number of chunks the document split into.
	TotalChunks int `json:"total_chunks"`
	// CreatedAt is the RFC 3339 ingest timestamp.
	CreatedAt string `json:"created_at"`
}

// Payload is the structured payload stored with every point. DocumentID and
// ProjectID are duplicated here deliberately so retrieval results carry
// back-pointers without a relational join.
type Payload struct {
	// DocumentID is the owning document.
	DocumentID string `json:"document_id"`
	// ProjectID is the owning project.
	ProjectID string `json:"project_id"`
	// Content is the chunk text.
	Content string `json:"content"`
	// ChunkIndex is the chunk's ordinal within the document.
	ChunkIndex int `json:"chunk_index"`
	// Metadata is the descriptive chunk metadata.
	Metadata ChunkMetadata `json:"metadata"`
}

// Point is one (id, vector, payload) record.
type Point struct {
	// ID is a stable UUID generated fresh per ingest batch.
	ID string
	// Vector is the chunk embedding.
	Vector []float32
	// Payload is the structured chunk payload.
	Payload Payload
}

// Match is one similarity search result.
type Match struct {
	// ID is the matched point id.
	ID string
	// Score is the cosine similarity score.
	Score float32
	// Payload is the matched point's payload.
	Payload Payload
}

// Stats reports collection health.
type Stats struct {
	// PointsCount is the number of points in the collection.
	PointsCount uint64
	// IndexedCount is the number of vectors indexed for search.
	IndexedCount uint64
	// Status is the backend-reported collection status.
	Status string
}

// Store is the vector store gateway contract. Implementations must be safe
// for concurrent use.
type Store interface {
	// CreateCollection ensures the project's collection exists and returns
	// its handle. Idempotent: an existing collection returns its handle
	// unchanged.
	CreateCollection(ctx context.Context, projectID string, dimensions int) (string, error)
	// Upsert stores or replaces a batch of points.
	Upsert(ctx context.Context, handle string, points []Point) error
	// Search returns up to k matches with score >= threshold, sorted by
	// descending score. Ties break on lower chunk index, then lower id.
	Search(ctx context.Context, handle string, vector []float32, k int, threshold float64) ([]Match, error)
	// DeleteByDocument removes every point whose payload references the
	// document. Idempotent.
	DeleteByDocument(ctx context.Context, handle, documentID string) error
	// DeleteCollection destroys the collection and all of its points.
	DeleteCollection(ctx context.Context, handle string) error
	// Stats reports the collection's point counts and status.
	Stats(ctx context.Context, handle string) (*Stats, error)
	// Close releases backend resources.
	Close() error
}

// sortMatches orders matches by descending score, breaking ties on lower
// chunk index and then lower id so result order is fully deterministic.
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Payload.ChunkIndex != matches[j].Payload.ChunkIndex {
			return matches[i].Payload.ChunkIndex < matches[j].Payload.ChunkIndex
		}
		return matches[i].ID < matches[j].ID
	})
}

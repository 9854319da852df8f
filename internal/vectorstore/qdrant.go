package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string
	// Port is the Qdrant gRPC port (default: 6334).
	Port int
	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string
	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements Store backed by a Qdrant instance. Collections are
// created per project with cosine distance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client
}

// NewQdrant creates a QdrantStore from the given config.
func NewQdrant(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to create qdrant client: %w", err)
	}
	return &QdrantStore{client: client}, nil
}

// NewQdrantFromEnv creates a QdrantStore from QDRANT_HOST, QDRANT_PORT,
// QDRANT_API_KEY, and QDRANT_TLS.
func NewQdrantFromEnv() (*QdrantStore, error) {
	return NewQdrant(QdrantConfig{
		Host:   config.EnvStr("QDRANT_HOST", "localhost"),
		Port:   config.EnvInt("QDRANT_PORT", 6334),
		APIKey: config.EnvStr("QDRANT_API_KEY", ""),
		UseTLS: config.EnvBool("QDRANT_TLS"),
	})
}

// CreateCollection ensures the project's collection exists with the given
// dimensionality and cosine distance, returning its handle. Idempotent.
func (s *QdrantStore) CreateCollection(ctx context.Context, projectID string, dimensions int) (string, error) {
	handle := HandleFor(projectID)

	exists, err := s.client.CollectionExists(ctx, handle)
	if err != nil {
		return "", mapQdrantErr(err, "check collection %q", handle)
	}
	if exists {
		return handle, nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: handle,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return "", mapQdrantErr(err, "create collection %q", handle)
	}
	return handle, nil
}

// Upsert stores or replaces a batch of points. The write waits for
// completion so a subsequent search observes the new points.
func (s *QdrantStore) Upsert(ctx context.Context, handle string, points []Point) error {
	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": p.Payload.DocumentID,
				"project_id":  p.Payload.ProjectID,
				"content":     p.Payload.Content,
				"chunk_index": int64(p.Payload.ChunkIndex),
				"metadata": map[string]any{
					"filename":      p.Payload.Metadata.Filename,
					"original_name": p.Payload.Metadata.OriginalName,
					"mime_type":     p.Payload.Metadata.MimeType,
					"chunk_size":    int64(p.Payload.Metadata.ChunkSize),
					"total_chunks":  int64(p.Payload.Metadata.TotalChunks),
					"created_at":    p.Payload.Metadata.CreatedAt,
				},
			}),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: handle,
		Points:         qdrantPoints,
		Wait:           &wait,
	})
	if err != nil {
		return mapQdrantErr(err, "upsert %d points into %q", len(points), handle)
	}
	return nil
}

// Search returns up to k matches with score >= threshold, sorted by
// descending score with deterministic tie-breaking.
func (s *QdrantStore) Search(ctx context.Context, handle string, vector []float32, k int, threshold float64) ([]Match, error) {
	limit := uint64(k)
	scoreThreshold := float32(threshold)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: handle,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		ScoreThreshold: &scoreThreshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, mapQdrantErr(err, "search %q", handle)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			ID:      r.Id.GetUuid(),
			Score:   r.Score,
			Payload: payloadFromQdrant(r.Payload),
		})
	}
	sortMatches(matches)
	return matches, nil
}

// DeleteByDocument removes every point whose payload references documentID.
// Deleting from a collection that lacks the document is a no-op.
func (s *QdrantStore) DeleteByDocument(ctx context.Context, handle, documentID string) error {
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: handle,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID),
			},
		}),
		Wait: &wait,
	})
	if err != nil {
		return mapQdrantErr(err, "delete document %s from %q", documentID, handle)
	}
	return nil
}

// DeleteCollection destroys the collection and all of its points.
func (s *QdrantStore) DeleteCollection(ctx context.Context, handle string) error {
	if err := s.client.DeleteCollection(ctx, handle); err != nil {
		return mapQdrantErr(err, "delete collection %q", handle)
	}
	return nil
}

// Stats reports the collection's point counts and status.
func (s *QdrantStore) Stats(ctx context.Context, handle string) (*Stats, error) {
	info, err := s.client.GetCollectionInfo(ctx, handle)
	if err != nil {
		return nil, mapQdrantErr(err, "stats for %q", handle)
	}

	stats := &Stats{Status: info.GetStatus().String()}
	if v := info.GetPointsCount(); v != 0 {
		stats.PointsCount = v
	}
	if v := info.GetIndexedVectorsCount(); v != 0 {
		stats.IndexedCount = v
	}
	return stats, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// payloadFromQdrant reconstructs a Payload from a Qdrant value map.
func payloadFromQdrant(values map[string]*qdrant.Value) Payload {
	var p Payload
	if values == nil {
		return p
	}
	p.DocumentID = values["document_id"].GetStringValue()
	p.ProjectID = values["project_id"].GetStringValue()
	p.Content = values["content"].GetStringValue()
	p.ChunkIndex = int(values["chunk_index"].GetIntegerValue())
	if meta := values["metadata"].GetStructValue(); meta != nil {
		fields := meta.GetFields()
		p.Metadata = ChunkMetadata{
			Filename:     fields["filename"].GetStringValue(),
			OriginalName: fields["original_name"].GetStringValue(),
			MimeType:     fields["mime_type"].GetStringValue(),
			ChunkSize:    int(fields["chunk_size"].GetIntegerValue()),
			TotalChunks:  int(fields["total_chunks"].GetIntegerValue()),
			CreatedAt:    fields["created_at"].GetStringValue(),
		}
	}
	return p
}

// mapQdrantErr classifies a Qdrant failure: InvalidArgument means the
// collection schema and the request disagree (dimension mismatch — operator
// intervention required); anything else is treated as transient.
func mapQdrantErr(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if st, ok := status.FromError(err); ok && st.Code() == codes.InvalidArgument {
		return core.Wrap(err, core.CodeVectorStoreCorrupt, "%s", msg)
	}
	return core.Wrap(err, core.CodeVectorStoreUnavailable, "%s", msg)
}

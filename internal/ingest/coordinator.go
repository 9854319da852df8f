// Package ingest orchestrates the document ingestion pipeline: fetch raw
// bytes, extract text, split into chunks, embed, and index into the
// project's vector collection. The coordinator maintains the invariant that
// a processed document's indexed chunks exactly reflect its current text.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
	"github.com/Rafael-Dagostim/studyflow-go/internal/embedder"
	"github.com/Rafael-Dagostim/studyflow-go/internal/loader"
	"github.com/Rafael-Dagostim/studyflow-go/internal/logging"
	"github.com/Rafael-Dagostim/studyflow-go/internal/objstore"
	"github.com/Rafael-Dagostim/studyflow-go/internal/splitter"
	"github.com/Rafael-Dagostim/studyflow-go/internal/store"
	"github.com/Rafael-Dagostim/studyflow-go/internal/vectorstore"
)

// embedBatchSize bounds how many chunks go to the embedding provider per
// request.
const embedBatchSize = 100

// Result reports a successful (or already processed) ingest.
type Result struct {
	// DocumentID is the ingested document.
	DocumentID string `json:"documentId"`
	// ChunksProcessed is the number of chunks indexed.
	ChunksProcessed int `json:"chunksProcessed"`
	// CollectionHandle is the project's collection.
	CollectionHandle string `json:"collectionHandle"`
	// ProcessingTime is the wall-clock duration of the ingest.
	ProcessingTime time.Duration `json:"processingTime"`
	// AlreadyProcessed reports an early no-op return: the document's
	// chunks were already indexed.
	AlreadyProcessed bool `json:"alreadyProcessed,omitempty"`
}

// ProjectResult is one entry of a project-wide ingest report.
type ProjectResult struct {
	// DocumentID is the document this entry covers.
	DocumentID string `json:"documentId"`
	// Filename is the document's source filename.
	Filename string `json:"filename"`
	// Result is set on success.
	Result *Result `json:"result,omitempty"`
	// Error holds the failure message when the document failed; a failed
	// document never aborts the rest of the project.
	Error string `json:"error,omitempty"`
}

// Coordinator drives documents from "uploaded" to "processed".
type Coordinator struct {
	// store is the relational store.
	store store.Store
	// objects holds the raw document bytes.
	objects objstore.Storage
	// embedder converts chunk text to vectors.
	embedder embedder.Embedder
	// vectors is the vector store gateway.
	vectors vectorstore.Store
	// split produces the chunk sequence for a document's text.
	split *splitter.Splitter

	// docLocks serializes ingest/reingest/delete per document id.
	docLocks *keyedMutex
	// collectionFlight collapses concurrent collection creation per project
	// so a project never ends up with two collections.
	collectionFlight singleflight.Group
}

// NewCoordinator constructs a Coordinator from its dependencies.
func NewCoordinator(st store.Store, objects objstore.Storage, emb embedder.Embedder, vectors vectorstore.Store, split *splitter.Splitter) (*Coordinator, error) {
	if st == nil || objects == nil || emb == nil || vectors == nil {
		return nil, fmt.Errorf("ingest: all dependencies must be non-nil")
	}
	if split == nil {
		split = splitter.New(splitter.Config{})
	}
	return &Coordinator{
		store:    st,
		objects:  objects,
		embedder: emb,
		vectors:  vectors,
		split:    split,
		docLocks: newKeyedMutex(),
	}, nil
}

// Ingest brings a document from "uploaded" to "processed". A document whose
// chunks are already indexed returns early with AlreadyProcessed set.
// Concurrent ingests of the same document serialize.
func (c *Coordinator) Ingest(ctx context.Context, documentID string) (*Result, error) {
	unlock := c.docLocks.Lock(documentID)
	defer unlock()
	return c.ingestLocked(ctx, documentID)
}

// ingestLocked runs the ingest pipeline with the document lock held.
func (c *Coordinator) ingestLocked(ctx context.Context, documentID string) (*Result, error) {
	start := time.Now()
	log := logging.Component(ctx, "ingest")

	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Processed() {
		return &Result{
			DocumentID:       doc.ID,
			CollectionHandle: vectorstore.HandleFor(doc.ProjectID),
			AlreadyProcessed: true,
		}, nil
	}

	text := doc.ExtractedText
	if text == "" {
		raw, err := c.objects.Get(ctx, doc.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("ingest: fetch raw bytes for %s: %w", doc.ID, err)
		}
		text, err = loader.Load(raw, doc.ContentType, doc.Filename)
		if err != nil {
			return nil, err
		}
		if err := c.store.SetExtractedText(ctx, doc.ID, text); err != nil {
			return nil, err
		}
	}

	handle, err := c.ensureCollection(ctx, doc.ProjectID)
	if err != nil {
		return nil, err
	}

	chunks := c.split.Split(text)
	if len(chunks) == 0 {
		return nil, core.E(core.CodeEmptyContent, "document %s split to zero chunks", doc.ID)
	}

	vectors, err := c.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	points := buildPoints(doc, chunks, vectors)

	// Chunk ids are fresh per batch, so a retried ingest would otherwise
	// duplicate points. Clearing the document's points first makes the
	// upsert idempotent.
	if err := c.vectors.DeleteByDocument(ctx, handle, doc.ID); err != nil {
		return nil, err
	}
	if err := c.vectors.Upsert(ctx, handle, points); err != nil {
		return nil, err
	}

	if err := c.store.MarkProcessed(ctx, doc.ID, time.Now()); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	log.Info("ingest: document processed",
		slog.String("document_id", doc.ID),
		slog.Int("chunks", len(chunks)),
		slog.Duration("elapsed", elapsed),
	)

	return &Result{
		DocumentID:       doc.ID,
		ChunksProcessed:  len(chunks),
		CollectionHandle: handle,
		ProcessingTime:   elapsed,
	}, nil
}

// Reingest drops the document's indexed chunks and extracted text, then
// runs a fresh ingest against the current raw bytes.
func (c *Coordinator) Reingest(ctx context.Context, documentID string) (*Result, error) {
	unlock := c.docLocks.Lock(documentID)
	defer unlock()

	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	project, err := c.store.GetProject(ctx, doc.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.CollectionHandle != "" {
		if err := c.vectors.DeleteByDocument(ctx, project.CollectionHandle, doc.ID); err != nil {
			return nil, err
		}
	}
	if err := c.store.ClearProcessed(ctx, doc.ID); err != nil {
		return nil, err
	}
	return c.ingestLocked(ctx, documentID)
}

// Delete removes the document's indexed chunks and raw bytes. The caller
// deletes the document record afterwards.
func (c *Coordinator) Delete(ctx context.Context, documentID string) error {
	unlock := c.docLocks.Lock(documentID)
	defer unlock()

	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	project, err := c.store.GetProject(ctx, doc.ProjectID)
	if err != nil {
		return err
	}
	if project.CollectionHandle != "" {
		if err := c.vectors.DeleteByDocument(ctx, project.CollectionHandle, doc.ID); err != nil {
			return err
		}
	}
	if err := c.objects.Delete(ctx, doc.StorageKey); err != nil {
		return err
	}
	return nil
}

// IngestProject ingests every unprocessed document of the project
// sequentially. A failed document is reported in its entry and never
// prevents the remaining documents from being ingested.
func (c *Coordinator) IngestProject(ctx context.Context, projectID string) ([]ProjectResult, error) {
	docs, err := c.store.ListUnprocessedDocuments(ctx, projectID)
	if err != nil {
		return nil, err
	}

	results := make([]ProjectResult, 0, len(docs))
	for _, doc := range docs {
		entry := ProjectResult{DocumentID: doc.ID, Filename: doc.Filename}
		res, err := c.Ingest(ctx, doc.ID)
		if err != nil {
			entry.Error = err.Error()
			logging.Component(ctx, "ingest").Warn("ingest: document failed",
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()),
			)
		} else {
			entry.Result = res
		}
		results = append(results, entry)
	}
	return results, nil
}

// DestroyProject removes the project's collection and every document's raw
// bytes ahead of the relational cascade.
func (c *Coordinator) DestroyProject(ctx context.Context, projectID string) error {
	project, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	docs, err := c.store.ListDocuments(ctx, projectID)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := c.objects.Delete(ctx, doc.StorageKey); err != nil {
			return err
		}
	}
	if project.CollectionHandle != "" {
		if err := c.vectors.DeleteCollection(ctx, project.CollectionHandle); err != nil {
			return err
		}
	}
	return c.store.DeleteProject(ctx, projectID)
}

// ensureCollection returns the project's collection handle, creating the
// collection and persisting the handle on first use. Concurrent callers
// for the same project share one flight.
func (c *Coordinator) ensureCollection(ctx context.Context, projectID string) (string, error) {
	project, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	if project.CollectionHandle != "" {
		return project.CollectionHandle, nil
	}

	handle, err, _ := c.collectionFlight.Do(projectID, func() (any, error) {
		h, err := c.vectors.CreateCollection(ctx, projectID, c.embedder.Dimensions())
		if err != nil {
			return "", err
		}
		if err := c.store.SetCollectionHandle(ctx, projectID, h); err != nil {
			return "", err
		}
		return h, nil
	})
	if err != nil {
		return "", err
	}
	return handle.(string), nil
}

// embedChunks embeds the chunk texts in bounded batches.
func (c *Coordinator) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := c.embedder.EmbedBatch(ctx, chunks[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// buildPoints assembles vector store points with fresh UUIDs and the chunk
// payload metadata.
func buildPoints(doc *core.Document, chunks []string, vectors [][]float32) []vectorstore.Point {
	createdAt := time.Now().UTC().Format(time.RFC3339)
	points := make([]vectorstore.Point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, vectorstore.Point{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: vectorstore.Payload{
				DocumentID: doc.ID,
				ProjectID:  doc.ProjectID,
				Content:    chunk,
				ChunkIndex: i,
				Metadata: vectorstore.ChunkMetadata{
					Filename:     doc.StorageKey,
					OriginalName: doc.Filename,
					MimeType:     doc.ContentType,
					ChunkSize:    len(chunk),
					TotalChunks:  len(chunks),
					CreatedAt:    createdAt,
				},
			},
		})
	}
	return points
}

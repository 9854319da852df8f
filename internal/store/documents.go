package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// CreateDocument persists a new document record, assigning ID and creation
// time when unset.
func (s *SQLite) CreateDocument(ctx context.Context, d *core.Document) (*core.Document, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	const q = `INSERT INTO documents (id, project_id, filename, content_type, size, storage_key, extracted_text, processed_at, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		d.ID, d.ProjectID, d.Filename, d.ContentType, d.Size, d.StorageKey,
		d.ExtractedText, unixMilliPtr(d.ProcessedAt), d.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("store: create document: %w", err)
	}
	return d, nil
}

// GetDocument returns the document with the given id.
func (s *SQLite) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	const q = `SELECT id, project_id, filename, content_type, size, storage_key, extracted_text, processed_at, created_at
	           FROM documents WHERE id = ?`
	d, err := scanDocument(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.E(core.CodeNotFound, "document %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	return d, nil
}

// ListDocuments returns the project's documents, oldest first.
func (s *SQLite) ListDocuments(ctx context.Context, projectID string) ([]*core.Document, error) {
	const q = `SELECT id, project_id, filename, content_type, size, storage_key, extracted_text, processed_at, created_at
	           FROM documents WHERE project_id = ? ORDER BY created_at, id`
	return s.queryDocuments(ctx, q, projectID)
}

// ListUnprocessedDocuments returns the project's documents with no
// processed timestamp, oldest first.
func (s *SQLite) ListUnprocessedDocuments(ctx context.Context, projectID string) ([]*core.Document, error) {
	const q = `SELECT id, project_id, filename, content_type, size, storage_key, extracted_text, processed_at, created_at
	           FROM documents WHERE project_id = ? AND processed_at IS NULL ORDER BY created_at, id`
	return s.queryDocuments(ctx, q, projectID)
}

// SetExtractedText stores the document's flattened text.
func (s *SQLite) SetExtractedText(ctx context.Context, documentID, text string) error {
	return s.execOne(ctx, "set extracted text",
		`UPDATE documents SET extracted_text = ? WHERE id = ?`, text, documentID)
}

// MarkProcessed sets the document's processed timestamp.
func (s *SQLite) MarkProcessed(ctx context.Context, documentID string, at time.Time) error {
	return s.execOne(ctx, "mark processed",
		`UPDATE documents SET processed_at = ? WHERE id = ?`, at.UnixMilli(), documentID)
}

// ClearProcessed clears the processed timestamp and extracted text.
func (s *SQLite) ClearProcessed(ctx context.Context, documentID string) error {
	return s.execOne(ctx, "clear processed",
		`UPDATE documents SET processed_at = NULL, extracted_text = '' WHERE id = ?`, documentID)
}

// ReplaceRawBytes updates the document's storage key and size after a
// re-upload. New raw bytes invalidate the extracted text and the processed
// timestamp.
func (s *SQLite) ReplaceRawBytes(ctx context.Context, documentID, storageKey string, size int64) error {
	return s.execOne(ctx, "replace raw bytes",
		`UPDATE documents SET storage_key = ?, size = ?, extracted_text = '', processed_at = NULL WHERE id = ?`,
		storageKey, size, documentID)
}

// DeleteDocument removes the document record.
func (s *SQLite) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	return nil
}

// execOne runs an update expected to touch exactly one row, translating a
// zero-row result into NotFound.
func (s *SQLite) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %s: %w", op, err)
	}
	if n == 0 {
		return core.E(core.CodeNotFound, "%s: no matching row", op)
	}
	return nil
}

// queryDocuments runs a document query and scans all rows.
func (s *SQLite) queryDocuments(ctx context.Context, query string, args ...any) ([]*core.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	var docs []*core.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	return docs, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument reads one document row.
func scanDocument(row rowScanner) (*core.Document, error) {
	var d core.Document
	var processedAt sql.NullInt64
	var createdAt int64
	err := row.Scan(&d.ID, &d.ProjectID, &d.Filename, &d.ContentType, &d.Size,
		&d.StorageKey, &d.ExtractedText, &processedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	if processedAt.Valid {
		t := time.UnixMilli(processedAt.Int64)
		d.ProcessedAt = &t
	}
	d.CreatedAt = time.UnixMilli(createdAt)
	return &d, nil
}

// unixMilliPtr converts an optional time to a nullable millisecond value.
func unixMilliPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

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

// CreateProject persists a new project, assigning ID and creation time when
// unset.
func (s *SQLite) CreateProject(ctx context.Context, p *core.Project) (*core.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	const q = `INSERT INTO projects (id, owner_id, name, subject, description, collection_handle, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		p.ID, p.OwnerID, p.Name, p.Subject, p.Description, p.CollectionHandle, p.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("store: create project: %w", err)
	}
	return p, nil
}

// GetProject returns the project with the given id.
func (s *SQLite) GetProject(ctx context.Context, id string) (*core.Project, error) {
	const q = `SELECT id, owner_id, name, subject, description, collection_handle, created_at
	           FROM projects WHERE id = ?`
	var p core.Project
	var createdAt int64
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.Subject, &p.Description, &p.CollectionHandle, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.E(core.CodeNotFound, "project %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get project: %w", err)
	}
	p.CreatedAt = time.UnixMilli(createdAt)
	return &p, nil
}

// SetCollectionHandle records the project's collection handle. The handle
// is write-once: once set it is never reassigned, so a conflicting second
// write fails and an identical one is a no-op.
func (s *SQLite) SetCollectionHandle(ctx context.Context, projectID, handle string) error {
	const q = `UPDATE projects SET collection_handle = ?
	           WHERE id = ? AND (collection_handle = '' OR collection_handle = ?)`
	res, err := s.db.ExecContext(ctx, q, handle, projectID, handle)
	if err != nil {
		return fmt.Errorf("store: set collection handle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: set collection handle: %w", err)
	}
	if n == 0 {
		// Either the project is missing or the handle is already set to a
		// different value.
		p, getErr := s.GetProject(ctx, projectID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("store: project %s already has collection %q", projectID, p.CollectionHandle)
	}
	return nil
}

// DeleteProject removes the project; documents, conversations, and
// generated files cascade via foreign keys.
func (s *SQLite) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete project: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// CreateFile persists a new generated file record, assigning ID and
// creation time when unset. CurrentVersion defaults to 1.
func (s *SQLite) CreateFile(ctx context.Context, f *core.GeneratedFile) (*core.GeneratedFile, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	if f.CurrentVersion == 0 {
		f.CurrentVersion = 1
	}
	const q = `INSERT INTO generated_files (id, project_id, owner_id, file_name, display_name, file_type, format, current_version, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, f.ID, f.ProjectID, f.OwnerID, f.FileName,
		f.DisplayName, string(f.Type), string(f.Format), f.CurrentVersion, f.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("store: create file: %w", err)
	}
	return f, nil
}

// GetFile returns the generated file with the given id.
func (s *SQLite) GetFile(ctx context.Context, id string) (*core.GeneratedFile, error) {
	const q = fileSelect + ` WHERE id = ?`
	f, err := scanFile(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.E(core.CodeNotFound, "file %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get file: %w", err)
	}
	return f, nil
}

// GetFileByName returns the project's file with the given slug.
func (s *SQLite) GetFileByName(ctx context.Context, projectID, fileName string) (*core.GeneratedFile, error) {
	const q = fileSelect + ` WHERE project_id = ? AND file_name = ?`
	f, err := scanFile(s.db.QueryRowContext(ctx, q, projectID, fileName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.E(core.CodeNotFound, "file %q not found in project %s", fileName, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get file by name: %w", err)
	}
	return f, nil
}

// ListFiles returns the project's generated files, newest first.
func (s *SQLite) ListFiles(ctx context.Context, projectID string) ([]*core.GeneratedFile, error) {
	const q = fileSelect + ` WHERE project_id = ? ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list files: %w", err)
	}
	defer rows.Close()

	var out []*core.GeneratedFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan file: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list files: %w", err)
	}
	return out, nil
}

// SetCurrentVersion updates the file's current version pointer.
func (s *SQLite) SetCurrentVersion(ctx context.Context, fileID string, version int) error {
	return s.execOne(ctx, "set current version",
		`UPDATE generated_files SET current_version = ? WHERE id = ?`, version, fileID)
}

// DeleteFile removes the file; versions cascade via foreign keys.
func (s *SQLite) DeleteFile(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM generated_files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete file: %w", err)
	}
	return nil
}

// CreateVersion persists a new file version row.
func (s *SQLite) CreateVersion(ctx context.Context, v *core.GeneratedFileVersion) (*core.GeneratedFileVersion, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	if v.Status == "" {
		v.Status = core.StatusPending
	}
	sources, err := marshalSources(v.Sources)
	if err != nil {
		return nil, err
	}
	const q = `INSERT INTO file_versions (id, file_id, version, prompt, base_version, storage_key, size, page_count, status, error_message, generation_ms, sources, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q, v.ID, v.FileID, v.Version, v.Prompt, v.BaseVersion,
		v.StorageKey, v.Size, v.PageCount, string(v.Status), v.ErrorMessage,
		v.GenerationTime.Milliseconds(), sources, v.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("store: create version: %w", err)
	}
	return v, nil
}

// GetVersion returns the given version of a file.
func (s *SQLite) GetVersion(ctx context.Context, fileID string, version int) (*core.GeneratedFileVersion, error) {
	const q = versionSelect + ` WHERE file_id = ? AND version = ?`
	v, err := scanVersion(s.db.QueryRowContext(ctx, q, fileID, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.E(core.CodeNotFound, "version %d of file %s not found", version, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get version: %w", err)
	}
	return v, nil
}

// ListVersions returns the file's versions in ascending version order.
func (s *SQLite) ListVersions(ctx context.Context, fileID string) ([]*core.GeneratedFileVersion, error) {
	const q = versionSelect + ` WHERE file_id = ? ORDER BY version`
	rows, err := s.db.QueryContext(ctx, q, fileID)
	if err != nil {
		return nil, fmt.Errorf("store: list versions: %w", err)
	}
	defer rows.Close()

	var out []*core.GeneratedFileVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan version: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list versions: %w", err)
	}
	return out, nil
}

// CompleteVersion records a finished generation on the version row.
func (s *SQLite) CompleteVersion(ctx context.Context, v *core.GeneratedFileVersion) error {
	sources, err := marshalSources(v.Sources)
	if err != nil {
		return err
	}
	return s.execOne(ctx, "complete version",
		`UPDATE file_versions SET storage_key = ?, size = ?, page_count = ?, status = ?, error_message = '', generation_ms = ?, sources = ?
		 WHERE file_id = ? AND version = ?`,
		v.StorageKey, v.Size, v.PageCount, string(core.StatusCompleted),
		v.GenerationTime.Milliseconds(), sources, v.FileID, v.Version)
}

// FailVersion marks the version failed with an error message.
func (s *SQLite) FailVersion(ctx context.Context, fileID string, version int, errMsg string) error {
	return s.execOne(ctx, "fail version",
		`UPDATE file_versions SET status = ?, error_message = ? WHERE file_id = ? AND version = ?`,
		string(core.StatusFailed), errMsg, fileID, version)
}

const fileSelect = `SELECT id, project_id, owner_id, file_name, display_name, file_type, format, current_version, created_at FROM generated_files`

const versionSelect = `SELECT id, file_id, version, prompt, base_version, storage_key, size, page_count, status, error_message, generation_ms, sources, created_at FROM file_versions`

// scanFile reads one generated file row.
func scanFile(row rowScanner) (*core.GeneratedFile, error) {
	var f core.GeneratedFile
	var fileType, format string
	var createdAt int64
	err := row.Scan(&f.ID, &f.ProjectID, &f.OwnerID, &f.FileName, &f.DisplayName,
		&fileType, &format, &f.CurrentVersion, &createdAt)
	if err != nil {
		return nil, err
	}
	f.Type = core.FileType(fileType)
	f.Format = core.FileFormat(format)
	f.CreatedAt = time.UnixMilli(createdAt)
	return &f, nil
}

// scanVersion reads one file version row.
func scanVersion(row rowScanner) (*core.GeneratedFileVersion, error) {
	var v core.GeneratedFileVersion
	var status string
	var generationMs, createdAt int64
	var sources sql.NullString
	err := row.Scan(&v.ID, &v.FileID, &v.Version, &v.Prompt, &v.BaseVersion,
		&v.StorageKey, &v.Size, &v.PageCount, &status, &v.ErrorMessage,
		&generationMs, &sources, &createdAt)
	if err != nil {
		return nil, err
	}
	v.Status = core.JobStatus(status)
	v.GenerationTime = time.Duration(generationMs) * time.Millisecond
	v.CreatedAt = time.UnixMilli(createdAt)
	if sources.Valid && sources.String != "" {
		if err := json.Unmarshal([]byte(sources.String), &v.Sources); err != nil {
			return nil, fmt.Errorf("store: unmarshal version sources: %w", err)
		}
	}
	return &v, nil
}

// marshalSources encodes a source snapshot as JSON, or nil when empty.
func marshalSources(sources []core.Source) (any, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("store: marshal sources: %w", err)
	}
	return string(data), nil
}

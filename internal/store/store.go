// Package store provides the SQLite-backed relational store for StudyFlow
// entities: projects, documents, conversations, messages, generated files,
// and file versions. Deletes cascade down the ownership tree
// (project → documents/conversations/files → messages/versions).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// Store is the relational persistence contract consumed by the ingestion
// coordinator, the RAG engine, the memory manager, and the file generator.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateProject persists a new project and returns it with ID and
	// timestamps assigned.
	CreateProject(ctx context.Context, p *core.Project) (*core.Project, error)
	// GetProject returns the project with the given id.
	GetProject(ctx context.Context, id string) (*core.Project, error)
	// SetCollectionHandle records the project's collection handle. The
	// handle is write-once: a second call with a different handle fails.
	SetCollectionHandle(ctx context.Context, projectID, handle string) error
	// DeleteProject removes the project and cascades to its documents,
	// conversations, and generated files.
	DeleteProject(ctx context.Context, id string) error

	// CreateDocument persists a new document record.
	CreateDocument(ctx context.Context, d *core.Document) (*core.Document, error)
	// GetDocument returns the document with the given id.
	GetDocument(ctx context.Context, id string) (*core.Document, error)
	// ListDocuments returns the project's documents, oldest first.
	ListDocuments(ctx context.Context, projectID string) ([]*core.Document, error)
	// ListUnprocessedDocuments returns the project's documents with no
	// processed timestamp, oldest first.
	ListUnprocessedDocuments(ctx context.Context, projectID string) ([]*core.Document, error)
	// SetExtractedText stores the document's flattened text.
	SetExtractedText(ctx context.Context, documentID, text string) error
	// MarkProcessed sets the document's processed timestamp.
	MarkProcessed(ctx context.Context, documentID string, at time.Time) error
	// ClearProcessed clears the processed timestamp and extracted text,
	// forcing the next ingest to re-load the raw bytes.
	ClearProcessed(ctx context.Context, documentID string) error
	// ReplaceRawBytes updates the document's storage key and size after a
	// re-upload, clearing processed state per the document invariants.
	ReplaceRawBytes(ctx context.Context, documentID, storageKey string, size int64) error
	// DeleteDocument removes the document record.
	DeleteDocument(ctx context.Context, id string) error

	// CreateConversation persists a new conversation.
	CreateConversation(ctx context.Context, c *core.Conversation) (*core.Conversation, error)
	// GetConversation returns the conversation with the given id.
	GetConversation(ctx context.Context, id string) (*core.Conversation, error)
	// ListConversations returns the project's conversations, newest first.
	ListConversations(ctx context.Context, projectID string) ([]*core.Conversation, error)
	// AppendMessage persists a message at the end of the conversation log.
	AppendMessage(ctx context.Context, m *core.Message) (*core.Message, error)
	// Messages returns the conversation's messages in insertion order.
	Messages(ctx context.Context, conversationID string) ([]*core.Message, error)

	// CreateFile persists a new generated file record.
	CreateFile(ctx context.Context, f *core.GeneratedFile) (*core.GeneratedFile, error)
	// GetFile returns the generated file with the given id.
	GetFile(ctx context.Context, id string) (*core.GeneratedFile, error)
	// GetFileByName returns the project's file with the given slug, or a
	// NotFound error.
	GetFileByName(ctx context.Context, projectID, fileName string) (*core.GeneratedFile, error)
	// ListFiles returns the project's generated files, newest first.
	ListFiles(ctx context.Context, projectID string) ([]*core.GeneratedFile, error)
	// SetCurrentVersion updates the file's current version pointer.
	SetCurrentVersion(ctx context.Context, fileID string, version int) error
	// DeleteFile removes the file and cascades to its versions.
	DeleteFile(ctx context.Context, id string) error

	// CreateVersion persists a new file version row.
	CreateVersion(ctx context.Context, v *core.GeneratedFileVersion) (*core.GeneratedFileVersion, error)
	// GetVersion returns the given version of a file.
	GetVersion(ctx context.Context, fileID string, version int) (*core.GeneratedFileVersion, error)
	// ListVersions returns the file's versions in ascending version order.
	ListVersions(ctx context.Context, fileID string) ([]*core.GeneratedFileVersion, error)
	// CompleteVersion records a finished generation on the version row.
	CompleteVersion(ctx context.Context, v *core.GeneratedFileVersion) error
	// FailVersion marks the version failed with an error message.
	FailVersion(ctx context.Context, fileID string, version int, errMsg string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying database handle.
	Close() error
}

// SQLite is a Store backed by a local SQLite database.
type SQLite struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// DefaultDBPath returns the default path for the StudyFlow database,
// resolving to ~/.studyflow/studyflow.db and creating the directory if
// needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".studyflow")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "studyflow.db"), nil
}

// Open opens (or creates) a SQLite store at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLite, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLite) migrate() error {
	const ddl = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS projects (
    id                TEXT    PRIMARY KEY,
    owner_id          TEXT    NOT NULL,
    name              TEXT    NOT NULL,
    subject           TEXT    NOT NULL DEFAULT '',
    description       TEXT    NOT NULL DEFAULT '',
    collection_handle TEXT    NOT NULL DEFAULT '',
    created_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
    id             TEXT    PRIMARY KEY,
    project_id     TEXT    NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    filename       TEXT    NOT NULL,
    content_type   TEXT    NOT NULL,
    size           INTEGER NOT NULL,
    storage_key    TEXT    NOT NULL,
    extracted_text TEXT    NOT NULL DEFAULT '',
    processed_at   INTEGER,
    created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_project ON documents (project_id, created_at);

CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT    PRIMARY KEY,
    project_id TEXT    NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    title      TEXT    NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_project ON conversations (project_id, created_at);

CREATE TABLE IF NOT EXISTS messages (
    id              TEXT    PRIMARY KEY,
    conversation_id TEXT    NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    seq             INTEGER NOT NULL,
    role            TEXT    NOT NULL CHECK(role IN ('USER','ASSISTANT')),
    content         TEXT    NOT NULL,
    metadata        TEXT,
    created_at      INTEGER NOT NULL,
    UNIQUE (conversation_id, seq)
);

CREATE TABLE IF NOT EXISTS generated_files (
    id              TEXT    PRIMARY KEY,
    project_id      TEXT    NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    owner_id        TEXT    NOT NULL,
    file_name       TEXT    NOT NULL,
    display_name    TEXT    NOT NULL,
    file_type       TEXT    NOT NULL,
    format          TEXT    NOT NULL,
    current_version INTEGER NOT NULL DEFAULT 1,
    created_at      INTEGER NOT NULL,
    UNIQUE (project_id, file_name)
);

CREATE TABLE IF NOT EXISTS file_versions (
    id              TEXT    PRIMARY KEY,
    file_id         TEXT    NOT NULL REFERENCES generated_files(id) ON DELETE CASCADE,
    version         INTEGER NOT NULL,
    prompt          TEXT    NOT NULL,
    base_version    INTEGER NOT NULL DEFAULT 0,
    storage_key     TEXT    NOT NULL DEFAULT '',
    size            INTEGER NOT NULL DEFAULT 0,
    page_count      INTEGER NOT NULL DEFAULT 0,
    status          TEXT    NOT NULL,
    error_message   TEXT    NOT NULL DEFAULT '',
    generation_ms   INTEGER NOT NULL DEFAULT 0,
    sources         TEXT,
    created_at      INTEGER NOT NULL,
    UNIQUE (file_id, version)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Ping verifies the store is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

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

// CreateConversation persists a new conversation, assigning ID and creation
// time when unset.
func (s *SQLite) CreateConversation(ctx context.Context, c *core.Conversation) (*core.Conversation, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	const q = `INSERT INTO conversations (id, project_id, title, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, c.ID, c.ProjectID, c.Title, c.CreatedAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("store: create conversation: %w", err)
	}
	return c, nil
}

// GetConversation returns the conversation with the given id.
func (s *SQLite) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	const q = `SELECT id, project_id, title, created_at FROM conversations WHERE id = ?`
	var c core.Conversation
	var createdAt int64
	err := s.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.ProjectID, &c.Title, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.E(core.CodeNotFound, "conversation %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get conversation: %w", err)
	}
	c.CreatedAt = time.UnixMilli(createdAt)
	return &c, nil
}

// ListConversations returns the project's conversations, newest first.
func (s *SQLite) ListConversations(ctx context.Context, projectID string) ([]*core.Conversation, error) {
	const q = `SELECT id, project_id, title, created_at FROM conversations
	           WHERE project_id = ? ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	defer rows.Close()

	var out []*core.Conversation
	for rows.Next() {
		var c core.Conversation
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan conversation: %w", err)
		}
		c.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	return out, nil
}

// AppendMessage persists a message at the end of the conversation log.
// Sequence numbers are assigned inside a transaction so insertion order is
// total even under concurrent writers.
func (s *SQLite) AppendMessage(ctx context.Context, m *core.Message) (*core.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	var metadata any
	if m.Metadata != nil {
		data, err := json.Marshal(m.Metadata)
		if err != nil {
			return nil, fmt.Errorf("store: marshal message metadata: %w", err)
		}
		metadata = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: append message: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	const seqQ = `SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?`
	if err := tx.QueryRowContext(ctx, seqQ, m.ConversationID).Scan(&seq); err != nil {
		return nil, fmt.Errorf("store: next message seq: %w", err)
	}

	const q = `INSERT INTO messages (id, conversation_id, seq, role, content, metadata, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, m.ID, m.ConversationID, seq, string(m.Role), m.Content, metadata, m.CreatedAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("store: append message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: append message: %w", err)
	}
	return m, nil
}

// Messages returns the conversation's messages in insertion order.
func (s *SQLite) Messages(ctx context.Context, conversationID string) ([]*core.Message, error) {
	const q = `SELECT id, conversation_id, role, content, metadata, created_at
	           FROM messages WHERE conversation_id = ? ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []*core.Message
	for rows.Next() {
		var m core.Message
		var role string
		var metadata sql.NullString
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.Role = core.Role(role)
		m.CreatedAt = time.UnixMilli(createdAt)
		if metadata.Valid && metadata.String != "" {
			var md core.MessageMetadata
			if err := json.Unmarshal([]byte(metadata.String), &md); err != nil {
				return nil, fmt.Errorf("store: unmarshal message metadata: %w", err)
			}
			m.Metadata = &md
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	return out, nil
}

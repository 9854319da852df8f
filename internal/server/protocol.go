package server

import (
	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// Client → server event types.
const (
	evStart             = "start"
	evListConversations = "list_conversations"
	evLoadConversation  = "load_conversation"
)

// Server → client event types.
const (
	evStatus              = "status"
	evConversationCreated = "conversation_created"
	evUserMessage         = "user_message"
	evStreamStart         = "stream_start"
	evStreamChunk         = "stream_chunk"
	evStreamComplete      = "stream_complete"
	evError               = "error"
	evConversationList    = "conversation_list"
	evConversationLoaded  = "conversation_loaded"
	evFileProgress        = "file_progress"
)

// Streaming stages reported through status events.
const (
	stageValidating   = "validating"
	stageConversation = "conversation"
	stageMemory       = "memory"
	stageEmbedding    = "embedding"
	stageSearch       = "search"
	stageGenerating   = "generating"
	stageSaving       = "saving"
	stageCompleted    = "completed"
)

// clientEvent is the envelope for every client → server message.
type clientEvent struct {
	// Type selects the operation.
	Type string `json:"type"`
	// ProjectID scopes start and list operations.
	ProjectID string `json:"projectId,omitempty"`
	// Message is the user's question (start).
	Message string `json:"message,omitempty"`
	// ConversationID continues an existing conversation (start) or selects
	// one to load.
	ConversationID string `json:"conversationId,omitempty"`
}

// statusEvent reports pipeline progress.
type statusEvent struct {
	Type    string `json:"type"`
	Stage   string `json:"stage"`
	Message string `json:"message,omitempty"`
}

// conversationCreatedEvent announces a freshly created conversation.
type conversationCreatedEvent struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Title string `json:"title"`
}

// messageEvent echoes a persisted message.
type messageEvent struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// sourcePreview is the truncated source attribution sent on stream_start.
type sourcePreview struct {
	DocumentID     string  `json:"documentId"`
	Filename       string  `json:"filename"`
	ContentPreview string  `json:"contentPreview"`
	Score          float32 `json:"score"`
	ChunkIndex     int     `json:"chunkIndex"`
}

// streamStartEvent opens the token stream.
type streamStartEvent struct {
	Type           string          `json:"type"`
	SourcesPreview []sourcePreview `json:"sourcesPreview"`
}

// streamChunkEvent carries one incremental content delta.
type streamChunkEvent struct {
	Type string `json:"type"`
	// Content is the incremental delta.
	Content string `json:"content"`
	// FullContent is the accumulated answer so far.
	FullContent string `json:"fullContent"`
}

// streamCompleteEvent closes the token stream.
type streamCompleteEvent struct {
	Type       string        `json:"type"`
	MessageID  string        `json:"messageId"`
	Content    string        `json:"content"`
	TokensUsed int           `json:"tokensUsed"`
	Sources    []core.Source `json:"sources"`
}

// errorEvent reports a failure to the client.
type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// conversationSummary is one entry of a conversation listing.
type conversationSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
}

// conversationListEvent answers list_conversations.
type conversationListEvent struct {
	Type          string                `json:"type"`
	Conversations []conversationSummary `json:"conversations"`
}

// conversationLoadedEvent answers load_conversation.
type conversationLoadedEvent struct {
	Type     string         `json:"type"`
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Messages []messageEvent `json:"messages"`
}

// fileProgressEvent forwards a file generation progress update.
type fileProgressEvent struct {
	Type     string `json:"type"`
	FileID   string `json:"fileId"`
	Version  int    `json:"version"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

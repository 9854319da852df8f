package core

import "time"

// Project is the top-level unit of ownership. Each project has at most one
// vector store collection, created lazily on first ingest.
type Project struct {
	// ID is the project's stable identifier.
	ID string
	// OwnerID identifies the teacher who owns this project.
	OwnerID string
	// Name is the display name.
	Name string
	// Subject is the academic subject the project covers.
	Subject string
	// Description is an optional free-text description.
	Description string
	// CollectionHandle names the project's vector store collection.
	// Empty until the first successful ingest; never reassigned once set.
	CollectionHandle string
	// CreatedAt is when the project was created.
	CreatedAt time.Time
}

// Document is an uploaded source file belonging to a project.
type Document struct {
	// ID is the document's stable identifier.
	ID string
	// ProjectID is the owning project.
	ProjectID string
	// Filename is the source filename as uploaded.
	Filename string
	// ContentType is the declared MIME type.
	ContentType string
	// Size is the raw byte size.
	Size int64
	// StorageKey locates the raw bytes in object storage.
	StorageKey string
	// ExtractedText is the flattened text content. Empty until the document
	// has been loaded at least once.
	ExtractedText string
	// ProcessedAt is set iff the document's current chunks are present in
	// the project collection. Updating the raw bytes clears it.
	ProcessedAt *time.Time
	// CreatedAt is when the document record was created.
	CreatedAt time.Time
}

// Processed reports whether the document's chunks are currently indexed.
func (d *Document) Processed() bool { return d.ProcessedAt != nil }

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message sent by the student or teacher.
	RoleUser Role = "USER"
	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "ASSISTANT"
)

// Conversation is an ordered message log scoped to a project.
type Conversation struct {
	// ID is the conversation's stable identifier.
	ID string
	// ProjectID is the owning project.
	ProjectID string
	// Title is an optional display title.
	Title string
	// CreatedAt is when the conversation was created.
	CreatedAt time.Time
}

// MessageMetadata captures token usage and retrieval sources for assistant
// messages. It is persisted opaquely alongside the message.
type MessageMetadata struct {
	// TokensUsed is the total token count reported (or estimated) for the
	// generation that produced this message.
	TokensUsed int `json:"tokensUsed,omitempty"`
	// Sources are the retrieval sources the answer was grounded in.
	Sources []Source `json:"sources,omitempty"`
}

// Message is a single turn in a conversation.
type Message struct {
	// ID is the message's stable identifier.
	ID string
	// ConversationID is the owning conversation.
	ConversationID string
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
	// Metadata holds token usage and sources for assistant messages.
	Metadata *MessageMetadata
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// Source is one retrieved chunk backing an answer, carried on assistant
// message metadata and on generated file versions.
type Source struct {
	// DocumentID is the source document.
	DocumentID string `json:"documentId"`
	// Filename is the source document's filename.
	Filename string `json:"filename"`
	// ContentPreview is the first 200 characters of the chunk text.
	ContentPreview string `json:"contentPreview"`
	// Score is the cosine similarity score of the match.
	Score float32 `json:"score"`
	// ChunkIndex is the chunk's ordinal within its document.
	ChunkIndex int `json:"chunkIndex"`
}

// FileType enumerates the kinds of generated educational artifacts.
type FileType string

const (
	FileTypeStudyGuide FileType = "study-guide"
	FileTypeQuiz       FileType = "quiz"
	FileTypeSummary    FileType = "summary"
	FileTypeLessonPlan FileType = "lesson-plan"
	FileTypeCustom     FileType = "custom"
)

// FileFormat enumerates the supported artifact output formats.
type FileFormat string

const (
	FormatPDF      FileFormat = "pdf"
	FormatMarkdown FileFormat = "markdown"
)

// JobStatus tracks the lifecycle of a generated file version.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusGenerating JobStatus = "generating"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// GeneratedFile is a versioned artifact produced by the file generator.
// (ProjectID, FileName) is unique.
type GeneratedFile struct {
	// ID is the file's stable identifier.
	ID string
	// ProjectID is the owning project.
	ProjectID string
	// OwnerID identifies the requesting teacher.
	OwnerID string
	// FileName is the stable slug derived from DisplayName.
	FileName string
	// DisplayName is the human-facing name.
	DisplayName string
	// Type is the artifact kind.
	Type FileType
	// Format is the artifact output format.
	Format FileFormat
	// CurrentVersion is the latest created version number.
	CurrentVersion int
	// CreatedAt is when the file record was created.
	CreatedAt time.Time
}

// GeneratedFileVersion is one immutable snapshot of a generated file.
// Version numbers are dense, starting at 1.
type GeneratedFileVersion struct {
	// ID is the version row's stable identifier.
	ID string
	// FileID is the owning generated file.
	FileID string
	// Version is the monotonically increasing version number.
	Version int
	// Prompt is the originating prompt (or edit prompt).
	Prompt string
	// BaseVersion is the version a new version was started from; 0 for
	// the first version. It is recorded even when the base content could
	// not be reused and the job ran as a fresh generation.
	BaseVersion int
	// StorageKey locates the artifact bytes in object storage. Empty while
	// the version is pending.
	StorageKey string
	// Size is the artifact byte size.
	Size int64
	// PageCount is the rendered page count for PDF artifacts; 0 otherwise.
	PageCount int
	// Status is the generation job status.
	Status JobStatus
	// ErrorMessage describes the failure when Status is failed.
	ErrorMessage string
	// GenerationTime is the recorded wall-clock duration of the generation.
	GenerationTime time.Duration
	// Sources is a snapshot of the retrieval sources used.
	Sources []Source
	// CreatedAt is when the version row was created.
	CreatedAt time.Time
}

// ChatMessage is one LLM-ready (role, content) item. Memory output, RAG
// prompts, and provider calls all exchange this shape.
type ChatMessage struct {
	// Role is "system", "user", or "assistant".
	Role string
	// Content is the message text.
	Content string
}

// Chat message role strings as expected by chat completion providers.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// TokenUsage reports prompt/completion token counts from a chat completion.
type TokenUsage struct {
	// PromptTokens is the token count of the input messages.
	PromptTokens int
	// CompletionTokens is the token count of the generated output.
	CompletionTokens int
	// TotalTokens is the provider-reported total.
	TotalTokens int
}

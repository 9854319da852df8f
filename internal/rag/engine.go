// Package rag implements the retrieval-augmented query engine: it embeds a
// question, retrieves the most similar chunks from the project's vector
// collection, assembles a context-bounded prompt (optionally including
// conversation memory), and invokes the chat model with source attribution.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
	"github.com/Rafael-Dagostim/studyflow-go/internal/embedder"
	"github.com/Rafael-Dagostim/studyflow-go/internal/logging"
	"github.com/Rafael-Dagostim/studyflow-go/internal/memory"
	"github.com/Rafael-Dagostim/studyflow-go/internal/provider"
	"github.com/Rafael-Dagostim/studyflow-go/internal/store"
	"github.com/Rafael-Dagostim/studyflow-go/internal/vectorstore"
)

// NoResultsMessage is returned verbatim when retrieval finds nothing above
// the similarity threshold.
const NoResultsMessage = "Desculpe, não encontrei informações relevantes nos documentos do projeto " +
	"para responder à sua pergunta. Tente reformular ou envie mais materiais."

// systemPreamble describes the assistant's role ahead of the retrieved
// context.
const systemPreamble = "Você é um assistente educacional que responde perguntas de alunos com base " +
	"nos materiais enviados pelo professor. Responda em português, de forma clara e " +
	"didática, usando apenas as informações dos documentos de contexto abaixo. " +
	"Quando a resposta não estiver nos documentos, diga isso explicitamente."

// previewLen is the number of characters of chunk content carried on a
// source attribution.
const previewLen = 200

// QueryResult is the outcome of a RAG query.
type QueryResult struct {
	// Answer is the model's completion (or the fixed no-results message).
	Answer string `json:"answer"`
	// Sources attribute the retrieved chunks, in retrieval order.
	Sources []core.Source `json:"sources"`
	// TokensUsed is the total token count of the generation; zero when no
	// model call was made.
	TokensUsed int `json:"tokensUsed"`
}

// Engine answers questions against a project's indexed documents.
type Engine struct {
	// store resolves projects and conversations.
	store store.Store
	// vectors performs similarity search.
	vectors vectorstore.Store
	// embedder embeds query text.
	embedder embedder.Embedder
	// model generates answers.
	model provider.ChatModel
	// memory builds conversation context.
	memory *memory.Manager
	// settings holds retrieval parameters.
	settings config.RAGSettings
}

// NewEngine constructs an Engine from its dependencies and settings.
func NewEngine(st store.Store, vectors vectorstore.Store, emb embedder.Embedder, model provider.ChatModel, mem *memory.Manager, settings config.RAGSettings) (*Engine, error) {
	if st == nil || vectors == nil || emb == nil || model == nil {
		return nil, fmt.Errorf("rag: all dependencies must be non-nil")
	}
	if settings.MaxChunks <= 0 {
		settings.MaxChunks = 5
	}
	if settings.SimilarityThreshold <= 0 {
		settings.SimilarityThreshold = 0.4
	}
	return &Engine{
		store:    st,
		vectors:  vectors,
		embedder: emb,
		model:    model,
		memory:   mem,
		settings: settings,
	}, nil
}

// EmbedQuery embeds the question text.
func (e *Engine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.EmbedQuery(ctx, text)
}

// Search runs the similarity search for a project. It fails with NotIndexed
// when the project has no collection.
func (e *Engine) Search(ctx context.Context, projectID string, vector []float32) ([]vectorstore.Match, error) {
	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.CollectionHandle == "" {
		return nil, core.E(core.CodeNotIndexed, "project %s has no indexed documents", projectID)
	}
	return e.vectors.Search(ctx, project.CollectionHandle, vector,
		e.settings.MaxChunks, e.settings.SimilarityThreshold)
}

// Retrieve embeds the question and searches the project's collection.
func (e *Engine) Retrieve(ctx context.Context, projectID, text string) ([]vectorstore.Match, error) {
	vector, err := e.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return e.Search(ctx, projectID, vector)
}

// Query answers a stateless question against the project's documents.
func (e *Engine) Query(ctx context.Context, projectID, text string) (*QueryResult, error) {
	matches, err := e.Retrieve(ctx, projectID, text)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &QueryResult{Answer: NoResultsMessage, Sources: []core.Source{}}, nil
	}

	messages := BuildPrompt(nil, matches, text)
	completion, err := e.model.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	logging.Component(ctx, "rag").Debug("rag: query answered",
		slog.String("project_id", projectID),
		slog.Int("sources", len(matches)),
		slog.Int("tokens", completion.Usage.TotalTokens),
	)

	return &QueryResult{
		Answer:     completion.Content,
		Sources:    SourcesFromMatches(matches),
		TokensUsed: completion.Usage.TotalTokens,
	}, nil
}

// QueryWithMemory answers a question inside an ongoing conversation. When
// retrieval finds nothing, the model still answers from the conversation
// memory alone (no context preamble).
func (e *Engine) QueryWithMemory(ctx context.Context, projectID, text, conversationID string) (*QueryResult, error) {
	var memoryMsgs []core.ChatMessage
	if e.memory != nil && conversationID != "" {
		var err error
		memoryMsgs, err = e.memory.Build(ctx, conversationID)
		if err != nil {
			return nil, err
		}
	}

	matches, err := e.Retrieve(ctx, projectID, text)
	if err != nil {
		return nil, err
	}

	messages := BuildPrompt(memoryMsgs, matches, text)
	completion, err := e.model.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		Answer:     completion.Content,
		Sources:    SourcesFromMatches(matches),
		TokensUsed: completion.Usage.TotalTokens,
	}, nil
}

// EducationalType selects a question rewrite for educational intents.
type EducationalType string

const (
	EducationalQuestion    EducationalType = "question"
	EducationalSummary     EducationalType = "summary"
	EducationalQuiz        EducationalType = "quiz"
	EducationalExplanation EducationalType = "explanation"
)

// educationalPrefixes rewrites the student's text per intent. The
// "question" intent passes the text through unchanged.
var educationalPrefixes = map[EducationalType]string{
	EducationalSummary:     "Por favor, faça um resumo detalhado sobre: ",
	EducationalQuiz:        "Crie questões de múltipla escolha com 4 alternativas sobre: ",
	EducationalExplanation: "Explique detalhadamente o conceito e forneça exemplos práticos sobre: ",
}

// EducationalQuery rewrites the text per the educational intent and
// dispatches to QueryWithMemory (when a conversation is given) or Query.
func (e *Engine) EducationalQuery(ctx context.Context, projectID, text string, kind EducationalType, conversationID string) (*QueryResult, error) {
	if prefix, ok := educationalPrefixes[kind]; ok {
		text = prefix + text
	}
	if conversationID != "" {
		return e.QueryWithMemory(ctx, projectID, text, conversationID)
	}
	return e.Query(ctx, projectID, text)
}

// BuildPrompt assembles the chat message list: the context preamble (when
// any chunk was retrieved), the conversation memory, then the user
// question.
func BuildPrompt(memoryMsgs []core.ChatMessage, matches []vectorstore.Match, question string) []core.ChatMessage {
	var messages []core.ChatMessage
	if len(matches) > 0 {
		var sb strings.Builder
		sb.WriteString(systemPreamble)
		sb.WriteString("\n\nContext Documents:\n")
		for i, m := range matches {
			fmt.Fprintf(&sb, "--- Document %d ---\n%s\n", i+1, m.Payload.Content)
		}
		messages = append(messages, core.ChatMessage{Role: core.ChatRoleSystem, Content: sb.String()})
	}
	messages = append(messages, memoryMsgs...)
	messages = append(messages, core.ChatMessage{Role: core.ChatRoleUser, Content: question})
	return messages
}

// SourcesFromMatches converts retrieval matches into source attributions,
// preserving retrieval order.
func SourcesFromMatches(matches []vectorstore.Match) []core.Source {
	sources := make([]core.Source, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, core.Source{
			DocumentID:     m.Payload.DocumentID,
			Filename:       m.Payload.Metadata.OriginalName,
			ContentPreview: Preview(m.Payload.Content),
			Score:          m.Score,
			ChunkIndex:     m.Payload.ChunkIndex,
		})
	}
	return sources
}

// Preview truncates chunk content to the attribution preview length.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLen {
		return content
	}
	return string(runes[:previewLen]) + "…"
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// Default chat model configuration.
const (
	// DefaultChatModel is the completion model used when none is configured.
	DefaultChatModel = "gpt-4o-mini"
	// DefaultMaxTokens caps tokens generated per completion.
	DefaultMaxTokens = 4000

	// streamAttempts is the number of tries for streaming completions.
	// Streaming restarts are visible to the client, so only one retry.
	streamAttempts = 2
)

// OpenAIChatModel implements ChatModel on top of the OpenAI chat
// completions API.
type OpenAIChatModel struct {
	// client is the shared OpenAI API client.
	client *openai.Client
	// model is the chat completion model name.
	model string
	// maxTokens caps tokens generated per completion.
	maxTokens int
}

// Config holds the settings for constructing an OpenAIChatModel.
type Config struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the chat model name. Defaults to DefaultChatModel.
	Model string
	// MaxTokens caps generated tokens. Defaults to DefaultMaxTokens.
	MaxTokens int
}

// NewOpenAI constructs an OpenAIChatModel from the given config.
func NewOpenAI(cfg Config) (*OpenAIChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider: OPENAI_API_KEY must be set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &OpenAIChatModel{
		client:    openai.NewClient(cfg.APIKey),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// NewOpenAIFromEnv constructs an OpenAIChatModel from OPENAI_API_KEY,
// OPENAI_CHAT_MODEL, and OPENAI_MAX_TOKENS.
func NewOpenAIFromEnv() (*OpenAIChatModel, error) {
	return NewOpenAI(Config{
		APIKey:    config.EnvStr("OPENAI_API_KEY", ""),
		Model:     config.EnvStr("OPENAI_CHAT_MODEL", DefaultChatModel),
		MaxTokens: config.EnvInt("OPENAI_MAX_TOKENS", DefaultMaxTokens),
	})
}

// toRequest converts core chat messages into an OpenAI completion request.
func (m *OpenAIChatModel) toRequest(messages []core.ChatMessage) openai.ChatCompletionRequest {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:     m.model,
		Messages:  out,
		MaxTokens: m.maxTokens,
	}
}

// Complete runs a synchronous chat completion.
func (m *OpenAIChatModel) Complete(ctx context.Context, messages []core.ChatMessage) (*Completion, error) {
	resp, err := m.client.CreateChatCompletion(ctx, m.toRequest(messages))
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.Wrap(ctx.Err(), core.CodeCancelled, "chat completion cancelled")
		}
		return nil, fmt.Errorf("provider: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider: chat completion returned no choices")
	}
	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Usage: core.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Stream runs a streaming chat completion. onDelta is invoked for each
// incremental content delta; the accumulated completion is returned once
// the stream ends. A stream that fails before the first delta is retried
// once; failures mid-stream surface immediately.
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []core.ChatMessage, onDelta StreamFunc) (*Completion, error) {
	var lastErr error
	for attempt := 0; attempt < streamAttempts; attempt++ {
		completion, delivered, err := m.streamOnce(ctx, messages, onDelta)
		if err == nil {
			return completion, nil
		}
		if ctx.Err() != nil {
			return nil, core.Wrap(ctx.Err(), core.CodeCancelled, "chat stream cancelled")
		}
		if delivered {
			// Part of the answer already reached the client; restarting
			// would duplicate output.
			return nil, fmt.Errorf("provider: chat stream interrupted: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("provider: chat stream failed after %d attempts: %w", streamAttempts, lastErr)
}

// streamOnce performs a single streaming completion attempt. delivered
// reports whether any delta reached onDelta.
func (m *OpenAIChatModel) streamOnce(ctx context.Context, messages []core.ChatMessage, onDelta StreamFunc) (*Completion, bool, error) {
	req := m.toRequest(messages)
	req.Stream = true

	stream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, false, err
	}
	defer stream.Close()

	var full []byte
	delivered := false
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, delivered, err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full = append(full, delta...)
		delivered = true
		if err := onDelta(delta); err != nil {
			return nil, delivered, err
		}
	}

	content := string(full)
	// Streaming responses do not carry usage; estimate so callers can still
	// record token accounting.
	promptTokens := core.EstimateMessages(messages)
	completionTokens := core.EstimateTokens(content)
	return &Completion{
		Content: content,
		Usage: core.TokenUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, delivered, nil
}

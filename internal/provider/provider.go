// Package provider defines the chat model contract used by the RAG engine,
// the memory manager, and the file generator, together with its OpenAI
// implementation. Both synchronous completion and token streaming are
// supported; streaming calls retry once on transient failures.
package provider

import (
	"context"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// Completion is the result of a chat completion call.
type Completion struct {
	// Content is the generated text.
	Content string
	// Usage reports prompt/completion token counts. For streamed
	// completions where the provider omits usage, counts are estimated.
	Usage core.TokenUsage
}

// StreamFunc receives each incremental content delta of a streamed
// completion. Returning an error aborts the stream.
type StreamFunc func(delta string) error

// ChatModel is the chat completion provider contract. Implementations must
// be safe for concurrent use.
type ChatModel interface {
	// Complete runs a synchronous chat completion.
	Complete(ctx context.Context, messages []core.ChatMessage) (*Completion, error)
	// Stream runs a streaming chat completion, invoking onDelta per token
	// batch, and returns the accumulated completion.
	Stream(ctx context.Context, messages []core.ChatMessage, onDelta StreamFunc) (*Completion, error)
}

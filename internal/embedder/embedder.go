// Package embedder converts text into dense vector embeddings through the
// OpenAI embeddings API. All provider calls are wrapped in bounded retry
// with exponential backoff; input text is never logged or attached to error
// messages.
package embedder

import (
	"context"
	"time"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// Default embedding configuration.
const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"
	// DefaultDimensions is the output dimension of DefaultModel.
	DefaultDimensions = 1536

	// retryAttempts is the total number of tries per provider call.
	retryAttempts = 3
)

// retryBaseDelay is the first backoff delay; it doubles per attempt.
// A variable so tests can shorten it.
var retryBaseDelay = time.Second

// Embedder maps text to fixed-dimension float vectors. Implementations must
// be safe for concurrent use.
type Embedder interface {
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimensions is the vector length this embedder produces.
	Dimensions() int
}

// Dimensions resolves the effective embedding dimension from the
// environment. Callers that pre-create vector collections use this rather
// than hardcoding a value.
func Dimensions() int {
	return config.EnvInt("EMBEDDING_DIMENSIONS", DefaultDimensions)
}

// withRetry runs fn up to retryAttempts times with exponential backoff,
// honoring context cancellation between attempts. The last provider error is
// wrapped as EmbeddingUnavailable.
func withRetry(ctx context.Context, fn func() error) error {
	delay := retryBaseDelay
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return core.Wrap(ctx.Err(), core.CodeCancelled, "embedding cancelled")
			case <-time.After(delay):
			}
			delay *= 2
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return core.Wrap(ctx.Err(), core.CodeCancelled, "embedding cancelled")
		}
	}
	return core.Wrap(lastErr, core.CodeEmbeddingUnavailable,
		"embedding provider failed after %d attempts", retryAttempts)
}

package embedder

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
)

// OpenAIEmbedder implements Embedder on top of the OpenAI embeddings API.
// It is safe for concurrent use.
type OpenAIEmbedder struct {
	// client is the shared OpenAI API client.
	client *openai.Client
	// model is the embedding model name.
	model string
	// dimensions is the vector length produced by model.
	dimensions int
}

// Config holds the settings for constructing an OpenAIEmbedder.
type Config struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the embedding model name. Defaults to DefaultModel.
	Model string
	// Dimensions is the vector length. Defaults to DefaultDimensions.
	Dimensions int
}

// NewOpenAI constructs an OpenAIEmbedder from the given config.
func NewOpenAI(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedder: OPENAI_API_KEY must be set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &OpenAIEmbedder{
		client:     openai.NewClient(cfg.APIKey),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// NewOpenAIFromEnv constructs an OpenAIEmbedder from OPENAI_API_KEY,
// OPENAI_EMBEDDING_MODEL, and EMBEDDING_DIMENSIONS.
func NewOpenAIFromEnv() (*OpenAIEmbedder, error) {
	return NewOpenAI(Config{
		APIKey:     config.EnvStr("OPENAI_API_KEY", ""),
		Model:      config.EnvStr("OPENAI_EMBEDDING_MODEL", DefaultModel),
		Dimensions: config.EnvInt("EMBEDDING_DIMENSIONS", DefaultDimensions),
	})
}

// EmbedBatch returns one vector per input text, in input order. Provider
// failures are retried with exponential backoff before surfacing as
// EmbeddingUnavailable.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	err := withRetry(ctx, func() error {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("embedder: expected %d embeddings, got %d", len(texts), len(resp.Data))
		}
		// The API may return data out of order; place by index.
		vectors = make([][]float32, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(texts) {
				return fmt.Errorf("embedder: index %d out of range [0, %d)", d.Index, len(texts))
			}
			vectors[d.Index] = d.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string. It is equivalent to
// EmbedBatch([text])[0].
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimensions is the vector length this embedder produces.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

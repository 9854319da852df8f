package config

import (
	"os"
	"strconv"
)

// EnvStr returns the env var value or def when unset/empty.
func EnvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt returns the env var parsed as int, or def when unset or malformed.
func EnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvFloat returns the env var parsed as float64, or def when unset or
// malformed.
func EnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// EnvBool returns true when the env var is "true" or "1".
func EnvBool(key string) bool {
	v := os.Getenv(key)
	return v == "true" || v == "1"
}

// RAGSettings is the resolved chunking and retrieval configuration.
type RAGSettings struct {
	// ChunkSize is the maximum characters per chunk.
	ChunkSize int
	// ChunkOverlap is the characters carried between adjacent chunks.
	ChunkOverlap int
	// MaxChunks is the retrieval top-k.
	MaxChunks int
	// SimilarityThreshold is the minimum cosine score for a match.
	SimilarityThreshold float64
}

// RAGFromEnv resolves RAG settings from the environment, applying the standard defaults.
func RAGFromEnv() RAGSettings {
	return RAGSettings{
		ChunkSize:           EnvInt("RAG_CHUNK_SIZE", 1000),
		ChunkOverlap:        EnvInt("RAG_CHUNK_OVERLAP", 200),
		MaxChunks:           EnvInt("RAG_MAX_CHUNKS", 5),
		SimilarityThreshold: EnvFloat("RAG_SIMILARITY_THRESHOLD", 0.4),
	}
}

// MemorySettings is the resolved conversation memory configuration.
type MemorySettings struct {
	// MaxTokens is the memory token budget per request.
	MaxTokens int
	// MaxMessages is the maximum recent messages kept verbatim.
	MaxMessages int
	// SummaryThreshold is the message count above which hybrid memory is used.
	SummaryThreshold int
	// EntityThreshold is the minimum term frequency for entity extraction.
	EntityThreshold int
}

// MemoryFromEnv resolves memory settings from the environment with standard
// defaults.
func MemoryFromEnv() MemorySettings {
	return MemorySettings{
		MaxTokens:        EnvInt("MEMORY_MAX_TOKENS", 1500),
		MaxMessages:      EnvInt("MEMORY_MAX_MESSAGES", 20),
		SummaryThreshold: EnvInt("MEMORY_SUMMARY_THRESHOLD", 10),
		EntityThreshold:  EnvInt("MEMORY_ENTITY_THRESHOLD", 2),
	}
}

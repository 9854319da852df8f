// Package config provides YAML-based configuration for studyflow.
// Configuration is loaded with a layered precedence: defaults → YAML file →
// env vars. Environment variables always win, so container deployments that
// configure everything through the environment are unaffected by a stray
// config file.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. STUDYFLOW_CONFIG environment variable
//  3. ~/.studyflow/config.yaml
//  4. ./studyflow.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming.
type Config struct {
	// OpenAI configures the model provider (chat + embeddings).
	OpenAI OpenAIConfig `yaml:"openai"`

	// RAG configures chunking and retrieval parameters.
	RAG RAGConfig `yaml:"rag"`

	// Memory configures conversation memory budgets.
	Memory MemoryConfig `yaml:"memory"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Storage configures the S3-compatible object storage.
	Storage StorageConfig `yaml:"storage"`

	// Database configures the relational store.
	Database DatabaseConfig `yaml:"database"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// OpenAIConfig holds model provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// ChatModel is the chat completion model name.
	ChatModel string `yaml:"chat_model"`
	// EmbeddingModel is the embedding model name.
	EmbeddingModel string `yaml:"embedding_model"`
	// MaxTokens caps tokens generated per chat completion.
	MaxTokens int `yaml:"max_tokens"`
	// EmbeddingDimensions overrides the embedding vector size.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// RAGConfig holds chunking and retrieval settings.
type RAGConfig struct {
	// ChunkSize is the maximum characters per chunk.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the characters carried over between adjacent chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`
	// MaxChunks is the retrieval top-k.
	MaxChunks int `yaml:"max_chunks"`
	// SimilarityThreshold is the minimum cosine score for a match.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// MemoryConfig holds conversation memory budgets.
type MemoryConfig struct {
	// MaxTokens is the memory token budget per request.
	MaxTokens int `yaml:"max_tokens"`
	// MaxMessages is the maximum recent messages kept verbatim.
	MaxMessages int `yaml:"max_messages"`
	// SummaryThreshold is the message count above which hybrid memory kicks in.
	SummaryThreshold int `yaml:"summary_threshold"`
	// EntityThreshold is the minimum term frequency for entity extraction.
	EntityThreshold int `yaml:"entity_threshold"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// StorageConfig holds S3-compatible object storage settings.
type StorageConfig struct {
	// Endpoint is the S3 endpoint URL (empty for AWS).
	Endpoint string `yaml:"endpoint"`
	// Region is the S3 region.
	Region string `yaml:"region"`
	// Bucket is the bucket holding raw uploads and generated artifacts.
	Bucket string `yaml:"bucket"`
	// AccessKey is the access key id. Prefer env var S3_ACCESS_KEY.
	AccessKey string `yaml:"access_key"`
	// SecretKey is the secret access key. Prefer env var S3_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
}

// DatabaseConfig holds relational store settings.
type DatabaseConfig struct {
	// Path is the SQLite database path.
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var
	// STUDYFLOW_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"OPENAI_API_KEY", func(c *Config) string { return c.OpenAI.APIKey }},
	{"OPENAI_CHAT_MODEL", func(c *Config) string { return c.OpenAI.ChatModel }},
	{"OPENAI_EMBEDDING_MODEL", func(c *Config) string { return c.OpenAI.EmbeddingModel }},
	{"OPENAI_MAX_TOKENS", func(c *Config) string { return intStr(c.OpenAI.MaxTokens) }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.OpenAI.EmbeddingDimensions) }},
	{"RAG_CHUNK_SIZE", func(c *Config) string { return intStr(c.RAG.ChunkSize) }},
	{"RAG_CHUNK_OVERLAP", func(c *Config) string { return intStr(c.RAG.ChunkOverlap) }},
	{"RAG_MAX_CHUNKS", func(c *Config) string { return intStr(c.RAG.MaxChunks) }},
	{"RAG_SIMILARITY_THRESHOLD", func(c *Config) string { return floatStr(c.RAG.SimilarityThreshold) }},
	{"MEMORY_MAX_TOKENS", func(c *Config) string { return intStr(c.Memory.MaxTokens) }},
	{"MEMORY_MAX_MESSAGES", func(c *Config) string { return intStr(c.Memory.MaxMessages) }},
	{"MEMORY_SUMMARY_THRESHOLD", func(c *Config) string { return intStr(c.Memory.SummaryThreshold) }},
	{"MEMORY_ENTITY_THRESHOLD", func(c *Config) string { return intStr(c.Memory.EntityThreshold) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"S3_ENDPOINT", func(c *Config) string { return c.Storage.Endpoint }},
	{"S3_REGION", func(c *Config) string { return c.Storage.Region }},
	{"S3_BUCKET", func(c *Config) string { return c.Storage.Bucket }},
	{"S3_ACCESS_KEY", func(c *Config) string { return c.Storage.AccessKey }},
	{"S3_SECRET_KEY", func(c *Config) string { return c.Storage.SecretKey }},
	{"STUDYFLOW_DB", func(c *Config) string { return c.Database.Path }},
	{"SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"STUDYFLOW_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("STUDYFLOW_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".studyflow", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("studyflow.yaml"); err == nil {
		return "studyflow.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// floatStr converts a float64 to string, returning "" for zero values.
func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"log/slog"
)

// discardLogger returns a logger whose output is thrown away.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func Test_Load_AppliesYAMLToEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "studyflow.yaml")
	yaml := `
rag:
  chunk_size: 800
  similarity_threshold: 0.55
qdrant:
  host: qdrant.internal
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("RAG_CHUNK_SIZE", "")
	os.Unsetenv("RAG_CHUNK_SIZE")
	t.Setenv("RAG_SIMILARITY_THRESHOLD", "")
	os.Unsetenv("RAG_SIMILARITY_THRESHOLD")
	t.Setenv("QDRANT_HOST", "")
	os.Unsetenv("QDRANT_HOST")

	loaded, err := Load(path, discardLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != path {
		t.Errorf("loaded path: want %s, got %s", path, loaded)
	}
	if got := os.Getenv("RAG_CHUNK_SIZE"); got != "800" {
		t.Errorf("RAG_CHUNK_SIZE: want 800, got %q", got)
	}
	if got := os.Getenv("RAG_SIMILARITY_THRESHOLD"); got != "0.55" {
		t.Errorf("RAG_SIMILARITY_THRESHOLD: want 0.55, got %q", got)
	}
	if got := os.Getenv("QDRANT_HOST"); got != "qdrant.internal" {
		t.Errorf("QDRANT_HOST: want qdrant.internal, got %q", got)
	}
}

func Test_Load_EnvAlwaysWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "studyflow.yaml")
	if err := os.WriteFile(path, []byte("qdrant:\n  host: from-yaml\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("QDRANT_HOST", "from-env")

	if _, err := Load(path, discardLogger()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("QDRANT_HOST"); got != "from-env" {
		t.Errorf("QDRANT_HOST: env must win, got %q", got)
	}
}

func Test_Load_MissingFileIsNotAnError(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), discardLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != "" {
		t.Errorf("loaded path: want empty, got %q", loaded)
	}
}

func Test_RAGFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"RAG_CHUNK_SIZE", "RAG_CHUNK_OVERLAP", "RAG_MAX_CHUNKS", "RAG_SIMILARITY_THRESHOLD"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	s := RAGFromEnv()
	if s.ChunkSize != 1000 || s.ChunkOverlap != 200 || s.MaxChunks != 5 || s.SimilarityThreshold != 0.4 {
		t.Errorf("unexpected defaults: %+v", s)
	}
}

func Test_MemoryFromEnv_Overrides(t *testing.T) {
	t.Setenv("MEMORY_MAX_TOKENS", "2000")
	t.Setenv("MEMORY_SUMMARY_THRESHOLD", "4")

	s := MemoryFromEnv()
	if s.MaxTokens != 2000 {
		t.Errorf("MaxTokens: want 2000, got %d", s.MaxTokens)
	}
	if s.SummaryThreshold != 4 {
		t.Errorf("SummaryThreshold: want 4, got %d", s.SummaryThreshold)
	}
	if s.MaxMessages != 20 {
		t.Errorf("MaxMessages default: want 20, got %d", s.MaxMessages)
	}
}

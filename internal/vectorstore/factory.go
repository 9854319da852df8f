package vectorstore

import (
	"os"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
)

// NewFromEnv constructs the vector store selected by the environment:
// a QdrantStore when QDRANT_HOST is set, otherwise an embedded chromem
// store (persistent when CHROMEM_DIR is set, in-memory otherwise).
func NewFromEnv() (Store, error) {
	if os.Getenv("QDRANT_HOST") != "" {
		return NewQdrantFromEnv()
	}
	if dir := config.EnvStr("CHROMEM_DIR", ""); dir != "" {
		return NewChromemPersistent(dir)
	}
	return NewChromem(), nil
}

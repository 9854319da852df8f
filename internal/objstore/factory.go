package objstore

import (
	"context"
	"os"
)

// NewFromEnv constructs the object storage selected by the environment: an
// S3Store when S3_BUCKET is set, otherwise an in-memory store. The
// in-memory fallback is only suitable for local experimentation — objects
// do not survive a restart.
func NewFromEnv(ctx context.Context) (Storage, error) {
	if os.Getenv("S3_BUCKET") != "" {
		return NewS3FromEnv(ctx)
	}
	return NewMemory(), nil
}

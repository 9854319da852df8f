package objstore

import (
	"context"
	"testing"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

func Test_Memory_UploadGetRoundTrip(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	if err := m.Upload(ctx, "docs/a.txt", []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	got, err := m.Get(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("want hello, got %q", got)
	}
}

func Test_Memory_GetMissingIsNotFound(t *testing.T) {
	t.Parallel()
	m := NewMemory()

	_, err := m.Get(context.Background(), "nope")
	if !core.IsCode(err, core.CodeNotFound) {
		t.Errorf("want NotFound, got %v", err)
	}
}

func Test_Memory_DeleteIsIdempotent(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	m.Upload(ctx, "k", []byte("v"), "")
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Errorf("second delete: %v", err)
	}
	ok, _ := m.Exists(ctx, "k")
	if ok {
		t.Error("object still exists after delete")
	}
}

func Test_Memory_CopyAndIsolation(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	original := []byte("v1")
	m.Upload(ctx, "src", original, "")
	if err := m.Copy(ctx, "src", "dst"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	// Mutating the caller's slice must not corrupt stored bytes.
	original[0] = 'X'
	got, _ := m.Get(ctx, "dst")
	if string(got) != "v1" {
		t.Errorf("copy contaminated: %q", got)
	}
}

func Test_Memory_DeletePrefix(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	m.Upload(ctx, "file-1/v1/file.pdf", []byte("a"), "")
	m.Upload(ctx, "file-1/v2/file.pdf", []byte("b"), "")
	m.Upload(ctx, "file-2/v1/file.pdf", []byte("c"), "")

	if err := m.DeletePrefix(ctx, "file-1/"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if ok, _ := m.Exists(ctx, "file-1/v1/file.pdf"); ok {
		t.Error("file-1/v1 survived prefix delete")
	}
	if ok, _ := m.Exists(ctx, "file-2/v1/file.pdf"); !ok {
		t.Error("file-2/v1 wrongly removed")
	}
}

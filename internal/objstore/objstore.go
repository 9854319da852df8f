// Package objstore abstracts bulk object storage for raw document uploads
// and generated artifacts. The production implementation targets any
// S3-compatible backend (AWS S3, MinIO); an in-memory implementation backs
// tests and zero-infrastructure local mode.
package objstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// Storage is the object storage contract. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Upload stores data under key, overwriting any existing object.
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the bytes stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the object under key. Deleting a missing key is a
	// no-op.
	Delete(ctx context.Context, key string) error
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Copy duplicates the object at src to dst.
	Copy(ctx context.Context, src, dst string) error
	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Memory is an in-memory Storage used by tests and local mode.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Upload stores data under key.
func (m *Memory) Upload(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[key] = cp
	return nil
}

// Get returns the bytes stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, core.E(core.CodeNotFound, "object %q not found", key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Delete removes the object under key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Exists reports whether an object is stored under key.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

// Copy duplicates the object at src to dst.
func (m *Memory) Copy(_ context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[src]
	if !ok {
		return core.E(core.CodeNotFound, "object %q not found", src)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[dst] = cp
	return nil
}

// DeletePrefix removes every object whose key starts with prefix.
func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var doomed []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			doomed = append(doomed, k)
		}
	}
	sort.Strings(doomed)
	for _, k := range doomed {
		delete(m.objects, k)
	}
	return nil
}

package storage

import (
	"context"
	"sync"

	"github.com/ignite/mailmerge/internal/domain"
)

// MemoryBackend is a process-local Backend used by tests and ephemeral runs.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.docs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (b *MemoryBackend) Put(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[key] = append([]byte(nil), data...)
	return nil
}

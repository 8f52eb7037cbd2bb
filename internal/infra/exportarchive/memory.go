package exportarchive

import (
	"context"
	"sync"

	"github.com/yanqian/pollenpilot/internal/domain/chat"
)

// MemoryArchive keeps snapshots in memory. Useful for tests and local dev.
type MemoryArchive struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryArchive constructs an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{blobs: make(map[string][]byte)}
}

// Archive implements chat.Archiver.
func (a *MemoryArchive) Archive(_ context.Context, key string, payload []byte) error {
	copied := append([]byte(nil), payload...)
	a.mu.Lock()
	a.blobs[key] = copied
	a.mu.Unlock()
	return nil
}

// Get returns a stored snapshot.
func (a *MemoryArchive) Get(key string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	blob, ok := a.blobs[key]
	return blob, ok
}

// Keys lists stored snapshot keys.
func (a *MemoryArchive) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.blobs))
	for k := range a.blobs {
		keys = append(keys, k)
	}
	return keys
}

var _ chat.Archiver = (*MemoryArchive)(nil)

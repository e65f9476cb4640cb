package projector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kailas-cloud/projector/internal/db"
)

// --- cacheStore mock ---

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	pingErr error
	closed  bool
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Ping(_ context.Context) error { return m.pingErr }

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockCache) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Close() { m.closed = true }

func (m *mockCache) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

var errCacheDown = errors.New("connection refused")

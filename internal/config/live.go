package config

import (
	"context"
	"sync"

	"github.com/comandago/comanda/pkg/store"
)

// Live wraps a persisted ConfigStore with a process-local read cache.
// Reads hit the backing store once per key; writes go through to the store
// and refresh the cached value, so a write is visible to the next read
// without a round trip.
type Live struct {
	backend store.ConfigStore

	mu    sync.RWMutex
	cache map[string]string
}

// NewLive creates the caching wrapper around a persisted config store.
func NewLive(backend store.ConfigStore) *Live {
	return &Live{
		backend: backend,
		cache:   make(map[string]string),
	}
}

// GetValue returns the value for key, or def when the key is absent.
func (l *Live) GetValue(ctx context.Context, key, def string) (string, error) {
	l.mu.RLock()
	if v, ok := l.cache[key]; ok {
		l.mu.RUnlock()
		return v, nil
	}
	l.mu.RUnlock()

	v, err := l.backend.GetValue(ctx, key, def)
	if err != nil {
		return def, err
	}

	l.mu.Lock()
	l.cache[key] = v
	l.mu.Unlock()
	return v, nil
}

// SetValue writes the value through to the backing store and refreshes the
// local cache entry.
func (l *Live) SetValue(ctx context.Context, key, value string) error {
	if err := l.backend.SetValue(ctx, key, value); err != nil {
		return err
	}

	l.mu.Lock()
	l.cache[key] = value
	l.mu.Unlock()
	return nil
}

// Invalidate drops the cached entry for key, forcing the next read through
// to the backing store.
func (l *Live) Invalidate(key string) {
	l.mu.Lock()
	delete(l.cache, key)
	l.mu.Unlock()
}

// Verify that Live implements the ConfigStore interface at compile time
var _ store.ConfigStore = (*Live)(nil)

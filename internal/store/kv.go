// Package store implements the shared session bus used to coordinate
// concurrent return handlers working on the same paid order. The browser
// flow treats origin-shared storage as a tiny message bus; here the same
// three typed channels (pending intent, capture lock, details map) live in
// Redis so any instance handling the provider's return URL sees them.
package store

import (
	"context"
	"sync"
	"time"
)

// sessionTTL bounds how long session keys may linger. Pending intents and
// capture locks are consumed within minutes; a day covers abandoned flows.
const sessionTTL = 24 * time.Hour

// KV is the minimal key-value surface the bus requires. Implementations
// must make SetNX and CompareAndSwap atomic with respect to concurrent
// writers.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetNX(ctx context.Context, key, value string) (bool, error)
	// CompareAndSwap writes value only while the key still holds old. It
	// reports whether the swap happened.
	CompareAndSwap(ctx context.Context, key, old, value string) (bool, error)
	Del(ctx context.Context, key string) error
}

// MemoryKV is an in-process KV used in tests and as the fallback when Redis
// is unreachable. In a single-process deployment it preserves the same
// at-most-once capture semantics.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryKV returns an empty in-process store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) SetNX(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *MemoryKV) CompareAndSwap(_ context.Context, key, old, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.data[key]
	if !ok || cur != old {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *MemoryKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Package identity holds the durable user identifier of a client installation.
package identity

import (
	"context"
	"sync"
)

// Store keeps a single user identity for one client origin.
// An empty store is the only signal for the registration flow.
type Store interface {
	Get(ctx context.Context) (id string, ok bool, err error)
	Set(ctx context.Context, id string) error
}

// Memory is an in-process Store, used by tests and one-off runs
type Memory struct {
	mu sync.RWMutex
	id string
}

// NewMemory returns a Memory store, pre-filled when id is not empty
func NewMemory(id string) *Memory {
	return &Memory{id: id}
}

func (m *Memory) Get(ctx context.Context) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id, m.id != "", nil
}

func (m *Memory) Set(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	return nil
}

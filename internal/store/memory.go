package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Memory is a process-local store, used when no database is configured.
type Memory struct {
	mu        sync.RWMutex
	notebooks map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{notebooks: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, markdown []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()

	m.mu.Lock()
	m.notebooks[id] = slices.Clone(markdown)
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	markdown, ok := m.notebooks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(markdown), nil
}

func (m *Memory) Close() error {
	return nil
}

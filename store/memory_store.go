package store

import (
	"context"
	"sync"

	"auto_social_publisher/workflow"
)

// MemoryStore keeps the encoded snapshot in memory. It is lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (workflow.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return workflow.Snapshot{}, ErrNotFound
	}
	return decodeSnapshot(m.data)
}

func (m *MemoryStore) Save(_ context.Context, snap workflow.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

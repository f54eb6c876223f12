package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sonnkraft/funnel-backend/internal/types"
)

// MemoryStore is an in-process snapshot store used in tests and when running
// without Redis.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[uuid.UUID]types.ConversationSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[uuid.UUID]types.ConversationSnapshot)}
}

func (s *MemoryStore) Load(_ context.Context, id uuid.UUID) (*types.ConversationSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &snap, nil
}

func (s *MemoryStore) Save(_ context.Context, snap types.ConversationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.ConversationID] = snap
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, id)
	return nil
}

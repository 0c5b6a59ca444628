package calls

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]Call
	order []string

	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]Call),
		Now:  time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, call Call) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	now := s.Now()
	call.CreatedAt = now
	call.UpdatedAt = now

	s.byID[call.ID] = call
	s.order = append(s.order, call.ID)
	return call, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, upd CallUpdate) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.byID[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	updated, err := apply(call, upd)
	if err != nil {
		return Call{}, err
	}
	updated.UpdatedAt = s.Now()
	s.byID[id] = updated
	return updated, nil
}

func (s *MemoryStore) GetByChannelID(ctx context.Context, channelID string) (Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest first: terminal events may reference a channel id reused later.
	for i := len(s.order) - 1; i >= 0; i-- {
		if c := s.byID[s.order[i]]; c.ChannelID == channelID {
			return c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Call, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.byID[s.order[i]])
	}
	return out, nil
}

package operators

import (
	"context"
	"sync"
)

// CallSlots tracks per-operator concurrent call usage. The switch can offer
// an operator more calls than their configured capacity allows; slots are the
// shared counter that keeps routing honest across process instances.
type CallSlots interface {
	// Acquire takes a slot, returning false when the operator is at capacity.
	Acquire(ctx context.Context, op Operator) (bool, error)
	Release(ctx context.Context, operatorID string) error
	InUse(ctx context.Context, operatorID string) (int, error)
}

// MemorySlots is a process-local CallSlots for tests and single-node runs.
type MemorySlots struct {
	mu    sync.Mutex
	inUse map[string]int
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{inUse: make(map[string]int)}
}

func (m *MemorySlots) Acquire(ctx context.Context, op Operator) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := op.MaxConcurrentCalls
	if limit <= 0 {
		limit = 1
	}
	if m.inUse[op.ID] >= limit {
		return false, nil
	}
	m.inUse[op.ID]++
	return true, nil
}

func (m *MemorySlots) Release(ctx context.Context, operatorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inUse[operatorID] > 0 {
		m.inUse[operatorID]--
	}
	if m.inUse[operatorID] == 0 {
		delete(m.inUse, operatorID)
	}
	return nil
}

func (m *MemorySlots) InUse(ctx context.Context, operatorID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inUse[operatorID], nil
}

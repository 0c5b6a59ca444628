package operators

import (
	"context"
	"sync"
	"time"
)

// Directory is the in-process registry of known operators and their live
// availability. Routing consults it once per inbound call; the event stream
// mutates it as operators pause, unpause and take calls.
type Directory struct {
	mu         sync.RWMutex
	byID       map[string]Operator
	byExt      map[string]string // extension -> operator id
	queueDepth map[string]int    // queue name -> callers currently waiting

	slots CallSlots

	// AverageHandleTime feeds the wait estimate shown to queued callers.
	AverageHandleTime time.Duration
}

func NewDirectory(slots CallSlots) *Directory {
	if slots == nil {
		slots = NewMemorySlots()
	}
	return &Directory{
		byID:              make(map[string]Operator),
		byExt:             make(map[string]string),
		queueDepth:        make(map[string]int),
		slots:             slots,
		AverageHandleTime: 3 * time.Minute,
	}
}

func (d *Directory) Upsert(op Operator) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.byID[op.ID]; ok && prev.Extension != op.Extension {
		delete(d.byExt, prev.Extension)
	}
	d.byID[op.ID] = op
	d.byExt[op.Extension] = op.ID
}

func (d *Directory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if op, ok := d.byID[id]; ok {
		delete(d.byExt, op.Extension)
		delete(d.byID, id)
	}
}

func (d *Directory) ByID(id string) (Operator, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	op, ok := d.byID[id]
	return op, ok
}

func (d *Directory) OperatorByExtension(ext string) (Operator, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byExt[ext]
	if !ok {
		return Operator{}, false
	}
	op, ok := d.byID[id]
	return op, ok
}

// SetStatus updates an operator's status and returns the previous one.
func (d *Directory) SetStatus(id string, status OperatorStatus) (OperatorStatus, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	op, ok := d.byID[id]
	if !ok {
		return "", false
	}
	prev := op.Status
	op.Status = status
	d.byID[id] = op
	return prev, true
}

// IsAvailable reports whether an operator can take another call right now:
// marked available and below their concurrent-call capacity.
func (d *Directory) IsAvailable(ctx context.Context, op Operator) bool {
	if op.Status != StatusAvailable {
		return false
	}
	limit := op.MaxConcurrentCalls
	if limit <= 0 {
		limit = 1
	}
	inUse, err := d.slots.InUse(ctx, op.ID)
	if err != nil {
		// Capacity source unreachable: trust the status flag alone.
		return true
	}
	return inUse < limit
}

func (d *Directory) AvailableInQueue(ctx context.Context, queue string) int {
	d.mu.RLock()
	ops := make([]Operator, 0, len(d.byID))
	for _, op := range d.byID {
		if op.servesQueue(queue) {
			ops = append(ops, op)
		}
	}
	d.mu.RUnlock()

	n := 0
	for _, op := range ops {
		if d.IsAvailable(ctx, op) {
			n++
		}
	}
	return n
}

// EstimatedWait projects how long a new caller would wait in a queue from
// the current depth and the configured average handle time.
func (d *Directory) EstimatedWait(ctx context.Context, queue string) time.Duration {
	avail := d.AvailableInQueue(ctx, queue)

	d.mu.RLock()
	depth := d.queueDepth[queue]
	d.mu.RUnlock()

	if avail == 0 {
		return d.AverageHandleTime * time.Duration(depth+1)
	}
	return d.AverageHandleTime * time.Duration(depth+1) / time.Duration(avail)
}

func (d *Directory) QueueJoined(queue string) {
	d.mu.Lock()
	d.queueDepth[queue]++
	d.mu.Unlock()
}

func (d *Directory) QueueLeft(queue string) {
	d.mu.Lock()
	if d.queueDepth[queue] > 0 {
		d.queueDepth[queue]--
	}
	d.mu.Unlock()
}

// AcquireSlot reserves a call slot for the operator.
func (d *Directory) AcquireSlot(ctx context.Context, op Operator) (bool, error) {
	return d.slots.Acquire(ctx, op)
}

func (d *Directory) ReleaseSlot(ctx context.Context, operatorID string) error {
	return d.slots.Release(ctx, operatorID)
}

// Snapshot returns a point-in-time copy of all operators.
func (d *Directory) Snapshot() []Operator {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Operator, 0, len(d.byID))
	for _, op := range d.byID {
		out = append(out, op)
	}
	return out
}

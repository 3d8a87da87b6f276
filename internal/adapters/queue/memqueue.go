package queue

import (
	"sync"

	"github.com/ghalamif/EdgeTap/internal/domain"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

// MemQueue holds records waiting for the forward sinks. Unlike the record
// buffer it never evicts: a full queue rejects the record and the caller's
// policy decides whether to wait or drop.
type MemQueue struct {
	mu    sync.Mutex
	slots []ports.QueuedRecord
	head  int
	count int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{slots: make([]ports.QueuedRecord, capacity)}
}

func (q *MemQueue) Enqueue(seq uint64, r domain.Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.slots) {
		return false
	}
	q.slots[(q.head+q.count)%len(q.slots)] = ports.QueuedRecord{Seq: seq, Record: r}
	q.count++
	return true
}

// DequeueBatch removes up to max records in enqueue order; max <= 0 takes
// everything. An empty queue returns nil.
func (q *MemQueue) DequeueBatch(max int) []ports.QueuedRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	if max <= 0 || max > q.count {
		max = q.count
	}

	out := make([]ports.QueuedRecord, max)
	for i := range out {
		idx := (q.head + i) % len(q.slots)
		out[i] = q.slots[idx]
		q.slots[idx] = ports.QueuedRecord{}
	}
	q.head = (q.head + max) % len(q.slots)
	q.count -= max
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *MemQueue) Cap() int { return len(q.slots) }

var _ ports.RecordQueue = (*MemQueue)(nil)

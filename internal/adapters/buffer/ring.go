package buffer

import (
	"sync"

	"github.com/ghalamif/EdgeTap/internal/domain"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

// Ring is a fixed-capacity FIFO of the most recent records. Writers take the
// write lock; Snapshot only takes the read lock and hands out deep copies.
type Ring struct {
	mu    sync.RWMutex
	data  []domain.Record
	head  int // index of the oldest record
	count int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{data: make([]domain.Record, capacity)}
}

func (r *Ring) Push(rec domain.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.data)
	if r.count < capacity {
		r.data[(r.head+r.count)%capacity] = rec
		r.count++
		return
	}
	r.data[r.head] = rec
	r.head = (r.head + 1) % capacity
}

func (r *Ring) Snapshot(n int) []domain.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]domain.Record, n)
	start := r.head + r.count - n
	for i := 0; i < n; i++ {
		out[i] = r.data[(start+i)%len(r.data)].Clone()
	}
	return out
}

func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

func (r *Ring) Cap() int { return len(r.data) }

var _ ports.RecordBuffer = (*Ring)(nil)

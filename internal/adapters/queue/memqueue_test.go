package queue

import (
	"sync"
	"testing"

	"github.com/ghalamif/EdgeTap/internal/domain"
)

func TestMemQueueKeepsPublishOrder(t *testing.T) {
	q := NewMemQueue(4)

	for seq := uint64(1); seq <= 3; seq++ {
		if !q.Enqueue(seq, domain.Record{"t": float64(seq)}) {
			t.Fatalf("enqueue %d rejected", seq)
		}
	}

	first := q.DequeueBatch(2)
	if len(first) != 2 || first[0].Seq != 1 || first[1].Record["t"] != 2.0 {
		t.Fatalf("unexpected first batch: %+v", first)
	}

	rest := q.DequeueBatch(0)
	if len(rest) != 1 || rest[0].Seq != 3 {
		t.Fatalf("unexpected remainder: %+v", rest)
	}
	if q.Len() != 0 || q.DequeueBatch(5) != nil {
		t.Fatalf("expected drained queue")
	}
}

func TestMemQueueRejectsWhenFull(t *testing.T) {
	q := NewMemQueue(2)
	r := domain.Record{"sensor": "cap"}

	if !q.Enqueue(1, r) || !q.Enqueue(2, r) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(3, r) {
		t.Fatalf("full queue must reject, not evict")
	}
	if b := q.DequeueBatch(1); b[0].Seq != 1 {
		t.Fatalf("oldest record was lost: %+v", b)
	}
	if !q.Enqueue(4, r) {
		t.Fatalf("expected room after dequeue")
	}
}

func TestMemQueueWrapsAround(t *testing.T) {
	q := NewMemQueue(3)
	var next uint64 = 1
	for round := 0; round < 5; round++ {
		for q.Enqueue(next, domain.Record{}) {
			next++
		}
		batch := q.DequeueBatch(2)
		if batch[1].Seq != batch[0].Seq+1 {
			t.Fatalf("round %d: out of order batch %+v", round, batch)
		}
	}
	if q.Len() != 1 || q.Cap() != 3 {
		t.Fatalf("unexpected len/cap %d/%d", q.Len(), q.Cap())
	}
}

func TestMemQueueConcurrentProducers(t *testing.T) {
	q := NewMemQueue(1000)
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for i := uint64(0); i < 100; i++ {
				q.Enqueue(base+i, domain.Record{})
			}
		}(uint64(p) * 1000)
	}
	wg.Wait()

	if got := len(q.DequeueBatch(0)); got != 400 {
		t.Fatalf("expected 400 records, got %d", got)
	}
}

package edgetap

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("edgetap: channel sink closed")

// NewCallbackSink forwards every non-empty batch to fn. fn receives copies,
// so it may keep or modify the records.
func NewCallbackSink(name string, fn RecordBatchSink) Sink {
	if name == "" {
		name = "callback"
	}
	return &funcSink{name: name, fn: fn}
}

// NewChannelSink delivers batches on the returned channel. A write blocks
// until the batch is received, the forward pipeline gives up, or closeFn is
// called; after closeFn the channel is closed and writes fail with
// ErrChannelSinkClosed.
func NewChannelSink(name string, buffer int) (s Sink, batches <-chan []QueuedRecord, closeFn func()) {
	if name == "" {
		name = "channel"
	}
	cs := &chanSink{
		name: name,
		ch:   make(chan []QueuedRecord, max(buffer, 0)),
		done: make(chan struct{}),
	}
	return cs, cs.ch, cs.close
}

type funcSink struct {
	name string
	fn   RecordBatchSink
}

func (s *funcSink) Name() string { return s.name }

func (s *funcSink) WriteBatch(_ context.Context, batch []QueuedRecord) error {
	switch {
	case s.fn == nil:
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	case len(batch) == 0:
		return nil
	}
	return s.fn(copyBatch(batch))
}

type chanSink struct {
	name string
	ch   chan []QueuedRecord
	done chan struct{}
	once sync.Once

	// sending keeps ch open while a write is parked on it.
	sending sync.RWMutex
}

func (s *chanSink) Name() string { return s.name }

func (s *chanSink) WriteBatch(ctx context.Context, batch []QueuedRecord) error {
	s.sending.RLock()
	defer s.sending.RUnlock()

	select {
	case <-s.done:
		return ErrChannelSinkClosed
	default:
	}
	if len(batch) == 0 {
		return nil
	}

	select {
	case s.ch <- copyBatch(batch):
		return nil
	case <-s.done:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *chanSink) close() {
	s.once.Do(func() {
		close(s.done)
		s.sending.Lock()
		close(s.ch)
		s.sending.Unlock()
	})
}

// copyBatch detaches a batch from the queue; the same records go to every sink.
func copyBatch(batch []QueuedRecord) []QueuedRecord {
	out := make([]QueuedRecord, len(batch))
	for i, q := range batch {
		out[i] = QueuedRecord{Seq: q.Seq, Record: q.Record.Clone()}
	}
	return out
}

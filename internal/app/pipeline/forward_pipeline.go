package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ghalamif/EdgeTap/internal/domain"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

// Forwarder enqueues published records for the forward pipeline, applying
// the queue-full policy. It satisfies ingest.Forwarder.
type Forwarder struct {
	q    ports.RecordQueue
	pol  ports.Policy
	obs  ports.Observability
	done chan struct{}
	once sync.Once
}

func NewForwarder(q ports.RecordQueue, pol ports.Policy, obs ports.Observability) *Forwarder {
	return &Forwarder{q: q, pol: pol, obs: obs, done: make(chan struct{})}
}

func (f *Forwarder) Offer(seq uint64, r domain.Record) {
	if !enqueueWithPolicy(f.q, seq, r, f.pol, f.obs, f.done) {
		f.obs.IncCounter(ports.MetricForwardDropped, 1)
	}
}

// Close releases producers blocked under the "block" policy.
func (f *Forwarder) Close() {
	f.once.Do(func() { close(f.done) })
}

// RunForwardPipeline drains the queue into every sink until ctx is done,
// then flushes what is left once. The durable log stays the source of
// truth, so failed batches are counted and not retried.
func RunForwardPipeline(ctx context.Context, q ports.RecordQueue, sinks []ports.Sink, pol ports.Policy, obs ports.Observability) {
	sleep := idleSleep(pol)
	for {
		batch := q.DequeueBatch(pol.MaxBatchSize)
		obs.SetGauge(ports.MetricForwardQueueLen, float64(q.Len()))
		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleep):
			}
			continue
		}

		writeBatch(ctx, batch, sinks, obs)

		if ctx.Err() != nil {
			flush(q, sinks, pol, obs)
			return
		}
	}
}

func flush(q ports.RecordQueue, sinks []ports.Sink, pol ports.Policy, obs ports.Observability) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for ctx.Err() == nil {
		batch := q.DequeueBatch(pol.MaxBatchSize)
		if len(batch) == 0 {
			return
		}
		writeBatch(ctx, batch, sinks, obs)
	}
}

func writeBatch(ctx context.Context, batch []ports.QueuedRecord, sinks []ports.Sink, obs ports.Observability) {
	for _, s := range sinks {
		start := time.Now()
		if err := s.WriteBatch(ctx, batch); err != nil {
			obs.IncCounter(ports.MetricSinkErrors, 1)
			obs.LogError("sink_write_failed", err,
				ports.Field{Key: "sink", Value: s.Name()},
				ports.Field{Key: "records", Value: len(batch)},
				ports.Field{Key: "first_seq", Value: batch[0].Seq})
			continue
		}
		obs.ObserveLatency(ports.MetricSinkLatency, time.Since(start).Seconds())
		obs.IncCounter(ports.MetricRecordsForwarded, float64(len(batch)))
	}
}

func enqueueWithPolicy(q ports.RecordQueue, seq uint64, r domain.Record, pol ports.Policy, obs ports.Observability, done <-chan struct{}) bool {
	sleep := idleSleep(pol)

	for {
		if ok := q.Enqueue(seq, r); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			select {
			case <-done:
				return false
			case <-time.After(sleep):
			}
		case "drop", "reject":
			obs.LogError("forward_queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen),
				ports.Field{Key: "seq", Value: seq})
			return false
		default:
			obs.LogError("forward_queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}

func idleSleep(pol ports.Policy) time.Duration {
	if pol.IdleSleep <= 0 {
		return 5 * time.Millisecond
	}
	return pol.IdleSleep
}

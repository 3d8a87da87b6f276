package edgetap

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewCallbackSink(t *testing.T) {
	var received []QueuedRecord
	sink := NewCallbackSink("cb", func(batch []QueuedRecord) error {
		received = append(received, batch...)
		return nil
	})

	input := QueuedRecord{Seq: 42, Record: Record{"temp": 3.14, "tags": map[string]any{"line": "a"}}}

	if err := sink.WriteBatch(context.Background(), []QueuedRecord{input}); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 batch entry, got %d", len(received))
	}
	got := received[0]
	if got.Seq != input.Seq || got.Record["temp"] != 3.14 {
		t.Fatalf("mismatched record payload: %+v vs %+v", got, input)
	}

	got.Record["tags"].(map[string]any)["line"] = "b"
	if input.Record["tags"].(map[string]any)["line"] != "a" {
		t.Fatalf("expected callback to receive a copy")
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	err := sink.WriteBatch(context.Background(), []QueuedRecord{{Seq: 1, Record: Record{}}})
	if err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %s", sink.Name())
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	input := QueuedRecord{Seq: 7, Record: Record{"t": 1.0}}
	errCh := make(chan error, 1)

	go func() {
		errCh <- sink.WriteBatch(context.Background(), []QueuedRecord{input})
	}()

	var batch []QueuedRecord
	select {
	case batch = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel batch")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(batch) != 1 || batch[0].Seq != input.Seq {
		t.Fatalf("unexpected batch data: %+v", batch)
	}

	closeFn()
	if err := sink.WriteBatch(context.Background(), []QueuedRecord{input}); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
}

func TestChannelSinkCloseReleasesBlockedWriter(t *testing.T) {
	sink, _, closeFn := NewChannelSink("chan", 0)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sink.WriteBatch(context.Background(), []QueuedRecord{{Seq: 1, Record: Record{}}})
	}()

	time.Sleep(10 * time.Millisecond)
	closeFn()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrChannelSinkClosed) {
			t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("writer stayed blocked after close")
	}
}

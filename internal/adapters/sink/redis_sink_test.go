package sink

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ghalamif/EdgeTap/internal/domain"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

func TestRedisSinkPushesEnvelopes(t *testing.T) {
	mr := miniredis.RunT(t)

	sink, err := NewRedisSink("redis://"+mr.Addr()+"/0", "edgetap_telemetry", "edge-1")
	if err != nil {
		t.Fatalf("new redis sink: %v", err)
	}
	defer sink.Close()

	batch := []ports.QueuedRecord{
		{Seq: 1, Record: domain.Record{"temp": 30.0}},
		{Seq: 2, Record: domain.Record{"temp": 31.0, "label": "ok"}},
	}
	if err := sink.WriteBatch(context.Background(), batch); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	items, err := mr.List("edgetap_telemetry")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 list entries, got %d", len(items))
	}

	var env Envelope
	if err := msgpack.Unmarshal([]byte(items[1]), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Seq != 2 || env.SourceID != "edge-1" || env.ID == "" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Record["label"] != "ok" || env.Record["temp"] != 31.0 {
		t.Fatalf("unexpected record payload: %v", env.Record)
	}
}

func TestRedisSinkBadURL(t *testing.T) {
	if _, err := NewRedisSink("://nope", "l", "edge-1"); err == nil {
		t.Fatalf("expected error for malformed url")
	}
}

func TestRedisSinkEmptyBatch(t *testing.T) {
	mr := miniredis.RunT(t)
	sink, err := NewRedisSink("redis://"+mr.Addr(), "l", "edge-1")
	if err != nil {
		t.Fatalf("new redis sink: %v", err)
	}
	defer sink.Close()
	if err := sink.WriteBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if mr.Exists("l") {
		t.Fatalf("empty batch must not create the list")
	}
}

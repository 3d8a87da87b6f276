package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ghalamif/EdgeTap/internal/ports"
)

// Envelope is the msgpack document pushed onto the Redis list.
type Envelope struct {
	ID         string         `msgpack:"id"`
	SourceID   string         `msgpack:"source_id"`
	Seq        uint64         `msgpack:"seq"`
	ReceivedMs int64          `msgpack:"received_ms"`
	Record     map[string]any `msgpack:"record"`
}

// RedisSink RPUSHes one msgpack envelope per record so workers can BLPOP them.
type RedisSink struct {
	rdb      *redis.Client
	list     string
	sourceID string
}

func NewRedisSink(url, list, sourceID string) (*RedisSink, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisSink{rdb: redis.NewClient(opt), list: list, sourceID: sourceID}, nil
}

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) WriteBatch(ctx context.Context, batch []ports.QueuedRecord) error {
	if len(batch) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	payloads := make([]any, 0, len(batch))
	for _, item := range batch {
		b, err := msgpack.Marshal(&Envelope{
			ID:         uuid.NewString(),
			SourceID:   r.sourceID,
			Seq:        item.Seq,
			ReceivedMs: now,
			Record:     item.Record,
		})
		if err != nil {
			return fmt.Errorf("msgpack record %d: %w", item.Seq, err)
		}
		payloads = append(payloads, b)
	}
	return r.rdb.RPush(ctx, r.list, payloads...).Err()
}

func (r *RedisSink) Close() error { return r.rdb.Close() }

var _ ports.Sink = (*RedisSink)(nil)

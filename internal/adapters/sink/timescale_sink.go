package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ghalamif/EdgeTap/internal/ports"
)

// TimescaleSink archives forwarded records as JSONB rows keyed by
// (source_id, seq) so replays after a failed batch stay idempotent.
type TimescaleSink struct {
	db        *sql.DB
	tableName string
	sourceID  string
	now       func() time.Time
}

func NewTimescaleSink(db *sql.DB, table, sourceID string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table, sourceID: sourceID, now: time.Now}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteBatch(ctx context.Context, batch []ports.QueuedRecord) error {
	if len(batch) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (source_id, seq, ts, record) VALUES ")

	args := make([]any, 0, len(batch)*4)
	for i, item := range batch {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4))

		doc, err := item.Record.Encode()
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", item.Seq, err)
		}
		ts, ok := item.Record.Timestamp()
		if !ok {
			ts = t.now()
		}

		args = append(args,
			t.sourceID,
			int64(item.Seq),
			ts,
			doc,
		)
	}

	b.WriteString(" ON CONFLICT (source_id, seq) DO NOTHING")

	_, err := t.db.ExecContext(ctx, b.String(), args...)
	return err
}

func (t *TimescaleSink) Close() error { return t.db.Close() }

var _ ports.Sink = (*TimescaleSink)(nil)

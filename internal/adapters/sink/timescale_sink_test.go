package sink

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ghalamif/EdgeTap/internal/domain"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

func TestTimescaleSinkWriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "telemetry", "edge-1")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return now }

	batch := []ports.QueuedRecord{
		{Seq: 1, Record: domain.Record{"temp": 30.0, "timestamp": 1700000000.0}},
		{Seq: 2, Record: domain.Record{"temp": 31.0}},
	}

	expectedQuery := regexp.QuoteMeta("INSERT INTO telemetry (source_id, seq, ts, record) VALUES ($1,$2,$3,$4),($5,$6,$7,$8) ON CONFLICT (source_id, seq) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs(
			"edge-1", int64(1), time.Unix(1700000000, 0).UTC(), []byte(`{"temp":30,"timestamp":1700000000}`),
			"edge-1", int64(2), now, []byte(`{"temp":31}`),
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := sink.WriteBatch(context.Background(), batch); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkWriteBatchNoRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "telemetry", "edge-1")
	if err := sink.WriteBatch(context.Background(), nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	sink := NewTimescaleSink(db, "telemetry", "edge-1")
	if sink.Name() != "timescaledb" {
		t.Fatalf("expected sink name timescaledb, got %s", sink.Name())
	}
}

func TestTimescaleSinkPropagatesExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO telemetry").WillReturnError(boom)

	sink := NewTimescaleSink(db, "telemetry", "edge-1")
	err = sink.WriteBatch(context.Background(), []ports.QueuedRecord{{Seq: 9, Record: domain.Record{"temp": 1.0}}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected exec error, got %v", err)
	}
}

func TestTimescaleSinkRejectsUnencodableRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "telemetry", "edge-1")
	err = sink.WriteBatch(context.Background(), []ports.QueuedRecord{{Seq: 3, Record: domain.Record{"bad": make(chan int)}}})
	if err == nil {
		t.Fatalf("expected marshal error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statement should run: %v", err)
	}
}

package ports

import "github.com/ghalamif/EdgeTap/internal/domain"

// DurableLog is the append-only history of every ingested record.
type DurableLog interface {
	Append(r domain.Record) error
	Stats() LogStats
	Path() string
	Close() error
}

type LogStats struct {
	Lines     uint64
	SizeBytes int64
}

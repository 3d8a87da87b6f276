package ports

import "github.com/ghalamif/EdgeTap/internal/domain"

// RecordBuffer keeps the most recent records in insertion order, evicting
// the oldest on overflow.
type RecordBuffer interface {
	Push(r domain.Record)
	// Snapshot returns copies of the last n records, oldest first. n <= 0 means all.
	Snapshot(n int) []domain.Record
	Len() int
	Cap() int
}

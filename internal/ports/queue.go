package ports

import "github.com/ghalamif/EdgeTap/internal/domain"

type QueuedRecord struct {
	Seq    uint64
	Record domain.Record
}

type RecordQueue interface {
	Enqueue(seq uint64, r domain.Record) bool
	DequeueBatch(max int) []QueuedRecord
	Len() int
}

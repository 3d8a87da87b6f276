package ports

import "github.com/ghalamif/EdgeTap/internal/domain"

// Collector pushes records from a non-serial source (OPC UA, simulators) into the ingestor.
type Collector interface {
	Start(out chan<- domain.Record) error
	Stop() error
}

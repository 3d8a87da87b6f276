package ports

import "context"

// Sink receives forwarded batches in publish order.
type Sink interface {
	WriteBatch(ctx context.Context, batch []QueuedRecord) error
	Name() string
}

// Closer is implemented by sinks holding connections.
type Closer interface {
	Close() error
}

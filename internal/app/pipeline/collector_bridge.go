package pipeline

import (
	"context"
	"errors"

	"github.com/ghalamif/EdgeTap/internal/domain"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

// Publisher is the ingestor's publish entry point.
type Publisher interface {
	Publish(r domain.Record) error
}

// RunCollectorBridge starts col and publishes everything it emits until ctx
// is done. Publishing stops silently once the ingestor has been stopped.
func RunCollectorBridge(ctx context.Context, col ports.Collector, pub Publisher, buffer int, obs ports.Observability) error {
	ch := make(chan domain.Record, buffer)

	if err := col.Start(ch); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case rec := <-ch:
				err := pub.Publish(rec)
				if errors.Is(err, domain.ErrStopped) {
					return
				}
				// write errors are already counted by the ingestor
			}
		}
	}()

	obs.LogInfo("collector_bridge_started", ports.Field{Key: "buffer", Value: buffer})
	return nil
}

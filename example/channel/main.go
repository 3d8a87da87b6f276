package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/EdgeTap"
)

func main() {
	flow, err := edgetap.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := edgetap.NewChannelSink("fanout", 32)
	defer closeBatches()

	go anomalyWatcher(batches, 0.5)

	if err := flow.Run(ctx, edgetap.StreamOutSink(sink)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

// anomalyWatcher prints every forwarded record whose anomaly_score exceeds threshold.
func anomalyWatcher(batches <-chan []edgetap.QueuedRecord, threshold float64) {
	for batch := range batches {
		for _, q := range batch {
			if score, ok := q.Record.Float("anomaly_score"); ok && score > threshold {
				fmt.Printf("[%s] anomaly seq=%d score=%.2f\n", time.Now().Format(time.RFC3339), q.Seq, score)
			}
		}
	}
}

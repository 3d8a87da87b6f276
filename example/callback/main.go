package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/EdgeTap/pkg/edgetap"
)

func main() {
	flow, err := edgetap.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(batch []edgetap.QueuedRecord) error {
		for _, q := range batch {
			temp, _ := q.Record.Float("temp")
			fmt.Printf("seq=%d temp=%.2f fields=%d\n", q.Seq, temp, len(q.Record))
		}
		return nil
	}

	if err := flow.Run(ctx, edgetap.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

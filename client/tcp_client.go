package main

import (
	"context"
	"fmt"
	"time"

	"seq-aggregator/shared/middleware"
	"seq-aggregator/shared/workerclient"
)

const clientComponent = "Client"

// clientOptions controls how a worker run submits its values
type clientOptions struct {
	serverAddr string
	seq        int
	batchSize  int
	retries    int
	backoff    time.Duration
}

// runClient submits values to the server in sequenced batches and waits for each
// to be acknowledged
func runClient(ctx context.Context, options clientOptions, values []int64) error {
	client, err := workerclient.Dial(options.serverAddr, 5*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()

	middleware.LogInfo(clientComponent, "Connected to server at %s", options.serverAddr)

	batches := splitBatches(options.seq, values, options.batchSize)
	for i, b := range batches {
		if err := client.Submit(ctx, b.seq, b.values, options.retries, options.backoff); err != nil {
			return fmt.Errorf("batch %d/%d at seq %d: %w", i+1, len(batches), b.seq, err)
		}
		middleware.LogInfo(clientComponent, "Batch %d/%d acknowledged (%d values at seq %d)", i+1, len(batches), len(b.values), b.seq)
	}

	middleware.LogInfo(clientComponent, "Finished sending %d value(s) in %d batch(es)", len(values), len(batches))
	return nil
}

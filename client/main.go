package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"seq-aggregator/shared/middleware"
)

func main() {
	serverAddr := flag.String("server", "localhost:23456", "Aggregation server address")
	seq := flag.Int("seq", 0, "Sequence index of the first value")
	batchSize := flag.Int("batch", 0, "Values per frame (0 sends all in one frame)")
	retries := flag.Int("retries", 10, "Resends of a discarded batch")
	backoff := flag.Duration("backoff", 200*time.Millisecond, "Pause before resending a discarded batch")
	valuesFile := flag.String("file", "", "CSV file of integers to send instead of arguments")
	flag.Parse()

	middleware.InitLogger()

	var values []int64
	var err error
	if *valuesFile != "" {
		values, err = readValuesFile(*valuesFile)
	} else {
		values, err = parseValues(flag.Args())
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if len(values) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: ./client [-server host:port] [-seq N] [-batch N] [-file values.csv | <value>...]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	options := clientOptions{
		serverAddr: *serverAddr,
		seq:        *seq,
		batchSize:  *batchSize,
		retries:    *retries,
		backoff:    *backoff,
	}
	if err := runClient(ctx, options, values); err != nil {
		middleware.LogError(clientComponent, "Transmission error: %v", err)
		os.Exit(1)
	}
}

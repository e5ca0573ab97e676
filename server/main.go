package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"seq-aggregator/shared/middleware"
)

func main() {
	middleware.InitLogger()

	config, err := LoadConfig()
	if err != nil {
		middleware.LogError(serverComponent, "Invalid configuration: %v", err)
		os.Exit(1)
	}

	server, err := NewAggregationServer(config)
	if err != nil {
		middleware.LogError(serverComponent, "%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = server.Run(ctx)
	stop()
	server.Close()

	if err != nil {
		middleware.LogError(serverComponent, "Job failed: %v", err)
		os.Exit(1)
	}
}

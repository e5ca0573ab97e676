package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"seq-aggregator/server/controller/aggregation_engine"
	"seq-aggregator/server/controller/orchestrator"
	"seq-aggregator/shared/downstream"
	"seq-aggregator/shared/middleware"
	"seq-aggregator/shared/storage"
)

const (
	serverComponent    = "Aggregation Server"
	downstreamTimeout  = 10 * time.Second
	rabbitMQMaxRetries = 5
)

// AggregationServer owns the job orchestrator and the resources built for it
type AggregationServer struct {
	orchestrator *orchestrator.Orchestrator
	sink         storage.Sink
	closers      []io.Closer
}

// NewAggregationServer opens the result store and the mirrors and wires the job
func NewAggregationServer(config *ServerConfig) (*AggregationServer, error) {
	sink, err := openSink(config.DBPath)
	if err != nil {
		return nil, err
	}
	server := &AggregationServer{sink: sink}

	mirrors, closers := connectMirrors(config)
	server.closers = closers

	server.orchestrator, err = orchestrator.New(orchestrator.Config{
		ListenAddr:     config.ListenAddr(),
		MaxBuffer:      config.MaxBuffer,
		IdleTimeout:    config.IdleTimeout,
		StatusPort:     config.StatusPort,
		SampleInterval: config.SampleInterval,
		Engine: aggregation_engine.Config{
			TargetCount:  config.TargetCount,
			PollInterval: config.PollInterval,
			ReduceMode:   config.ReduceMode,
			Forwarder:    downstream.NewTCPForwarder(config.DownstreamAddr, downstreamTimeout),
			Mirrors:      mirrors,
		},
	}, sink)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("failed to create aggregation job: %w", err)
	}
	return server, nil
}

// Run serves the job until it completes or ctx is cancelled
func (s *AggregationServer) Run(ctx context.Context) error {
	return s.orchestrator.Run(ctx)
}

// Close releases the mirrors and the result store
func (s *AggregationServer) Close() {
	for _, closer := range s.closers {
		if err := closer.Close(); err != nil {
			middleware.LogWarn(serverComponent, "Failed to close mirror: %v", err)
		}
	}
	if err := s.sink.Close(); err != nil {
		middleware.LogWarn(serverComponent, "Failed to close result store: %v", err)
	}
}

func openSink(path string) (storage.Sink, error) {
	if path == "" {
		middleware.LogInfo(serverComponent, "DB_PATH is empty, keeping results in memory")
		return storage.NewMemorySink(), nil
	}
	sink, err := storage.OpenSQLiteSink(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}
	return sink, nil
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"seq-aggregator/server/controller/aggregation_engine"
	"seq-aggregator/server/controller/client_request_handler"
	"seq-aggregator/shared/middleware"
	"seq-aggregator/shared/seqbuffer"
	"seq-aggregator/shared/status_server"
	"seq-aggregator/shared/storage"
)

const serverComponent = "Aggregation Server"

// Config describes one aggregation job and the listeners serving it
type Config struct {
	ListenAddr     string
	MaxBuffer      int
	IdleTimeout    time.Duration
	StatusPort     string
	SampleInterval time.Duration
	Engine         aggregation_engine.Config
}

// Orchestrator accepts worker connections, runs their receive tasks and the single
// consumer, and stops serving once the job is done
type Orchestrator struct {
	config   Config
	sink     storage.Sink
	buffer   *seqbuffer.Buffer
	engine   *aggregation_engine.Engine
	handler  *client_request_handler.ClientRequestHandler
	meter    *status_server.Meter
	status   *status_server.StatusServer
	listener net.Listener

	connections sync.WaitGroup
}

// New wires the buffer, engine and receive handler of a job around sink
func New(config Config, sink storage.Sink) (*Orchestrator, error) {
	buffer, err := seqbuffer.NewBuffer(config.MaxBuffer)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		config: config,
		sink:   sink,
		buffer: buffer,
		meter:  status_server.NewMeter(),
	}

	// The engine closes connections through o, which owns the handler's registry
	o.engine, err = aggregation_engine.NewEngine(config.Engine, buffer, sink, o)
	if err != nil {
		return nil, err
	}
	o.handler = client_request_handler.NewClientRequestHandler(client_request_handler.Config{
		TargetCount: config.Engine.TargetCount,
		IdleTimeout: config.IdleTimeout,
	}, buffer, o.engine.State(), o.meter)

	if config.StatusPort != "" {
		o.status = status_server.NewStatusServer(config.StatusPort, o.meter, o)
	}
	return o, nil
}

// Listen binds the worker listener. Run calls it when it has not been called yet.
func (o *Orchestrator) Listen() error {
	if o.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", o.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", o.config.ListenAddr, err)
	}
	o.listener = listener
	return nil
}

// Addr returns the bound worker address, or "" before Listen
func (o *Orchestrator) Addr() string {
	if o.listener == nil {
		return ""
	}
	return o.listener.Addr().String()
}

// Engine exposes the aggregation engine
func (o *Orchestrator) Engine() *aggregation_engine.Engine {
	return o.engine
}

// CloseAll closes every worker connection
func (o *Orchestrator) CloseAll() int {
	return o.handler.Registry().CloseAll()
}

// Progress reports the job state for the status endpoint
func (o *Orchestrator) Progress() status_server.Progress {
	return status_server.Progress{
		Phase:    o.engine.State().Phase().String(),
		Filled:   o.engine.FilledCount(),
		Target:   o.engine.TargetCount(),
		Buffered: o.buffer.Len(),
		Clients:  o.handler.Registry().Count(),
	}
}

// Run serves the job until it is done or ctx is cancelled. It returns the
// downstream handoff error when completion fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Listen(); err != nil {
		return err
	}
	if err := o.sink.Reset(ctx); err != nil {
		o.listener.Close()
		return fmt.Errorf("failed to reset result store: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	auxCtx, stopAux := context.WithCancel(groupCtx)
	defer stopAux()

	middleware.LogInfo(serverComponent, "Listening for workers on %s, target %d values, buffer %d",
		o.listener.Addr(), o.config.Engine.TargetCount, o.config.MaxBuffer)

	group.Go(func() error {
		defer func() {
			o.listener.Close()
			o.CloseAll()
			stopAux()
		}()
		return o.engine.Run(groupCtx)
	})
	group.Go(o.acceptLoop)
	group.Go(func() error {
		return o.meter.Run(auxCtx, o.config.SampleInterval)
	})
	if o.status != nil {
		if err := o.status.Start(); err != nil {
			middleware.LogError(serverComponent, "Status server disabled: %v", err)
		} else {
			group.Go(func() error {
				<-auxCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return o.status.Stop(shutdownCtx)
			})
		}
	}

	err := group.Wait()
	o.connections.Wait()

	if err != nil {
		return err
	}
	middleware.LogInfo(serverComponent, "Job done, %d values aggregated (%d duplicates ignored)",
		o.engine.FilledCount(), o.engine.Duplicates())
	return nil
}

func (o *Orchestrator) acceptLoop() error {
	for {
		conn, err := o.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		o.connections.Add(1)
		go func() {
			defer o.connections.Done()
			o.handler.HandleConnection(conn)
		}()
	}
}

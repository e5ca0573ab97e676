package aggregation_engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"seq-aggregator/protocol/frame"
	"seq-aggregator/shared/downstream"
	"seq-aggregator/shared/middleware"
	"seq-aggregator/shared/seqbuffer"
	"seq-aggregator/shared/storage"
)

const engineComponent = "Aggregation Engine"

// DefaultPollInterval bounds how long the consumer idles without a producer signal
const DefaultPollInterval = 100 * time.Millisecond

// ConnectionCloser closes every registered worker connection at completion
type ConnectionCloser interface {
	CloseAll() int
}

// Config holds the tunables of one aggregation job
type Config struct {
	TargetCount  int
	PollInterval time.Duration
	ReduceMode   string
	Forwarder    downstream.Forwarder
	Mirrors      []downstream.Forwarder
}

// Engine owns the ordered slot array. Run is the single consumer: it drains the
// buffer, persists and places every item, and performs the downstream handoff once
// every slot is filled.
type Engine struct {
	config  Config
	reducer Reducer
	buffer  *seqbuffer.Buffer
	sink    storage.Sink
	closer  ConnectionCloser
	state   *JobState

	// Written only by the consumer goroutine
	slots  []int64
	filled []bool

	filledCount atomic.Int64
	duplicates  atomic.Int64
}

// NewEngine wires an engine around its buffer, sink and connection closer
func NewEngine(config Config, buffer *seqbuffer.Buffer, sink storage.Sink, closer ConnectionCloser) (*Engine, error) {
	if config.TargetCount <= 0 {
		return nil, fmt.Errorf("target count must be positive, got %d", config.TargetCount)
	}
	if config.Forwarder == nil {
		return nil, fmt.Errorf("a downstream forwarder is required")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.ReduceMode == "" {
		config.ReduceMode = ReduceList
	}
	reducer, err := ReducerFor(config.ReduceMode)
	if err != nil {
		return nil, err
	}
	// Zero slots never overflow, only the result length matters here
	sized, _ := reducer(make([]int64, config.TargetCount))
	if resultSize := len(sized) * frame.IntSize; resultSize > frame.MaxPayloadLength {
		return nil, fmt.Errorf("%s result of %d values needs %d bytes, frame payload max is %d",
			config.ReduceMode, config.TargetCount, resultSize, frame.MaxPayloadLength)
	}

	return &Engine{
		config:  config,
		reducer: reducer,
		buffer:  buffer,
		sink:    sink,
		closer:  closer,
		state:   NewJobState(),
		slots:   make([]int64, config.TargetCount),
		filled:  make([]bool, config.TargetCount),
	}, nil
}

// State exposes the shared completion flag
func (e *Engine) State() *JobState {
	return e.state
}

// TargetCount returns the number of slots in the job
func (e *Engine) TargetCount() int {
	return e.config.TargetCount
}

// FilledCount returns the number of distinct slots filled so far
func (e *Engine) FilledCount() int {
	return int(e.filledCount.Load())
}

// Duplicates returns how many items targeted an already filled slot
func (e *Engine) Duplicates() int {
	return int(e.duplicates.Load())
}

// Run consumes the buffer until the job is done or ctx is cancelled. It returns the
// downstream handoff error, or a sink failure, which are both fatal to the job.
func (e *Engine) Run(ctx context.Context) error {
	middleware.LogInfo(engineComponent, "Consumer started, waiting for %d values", e.config.TargetCount)

	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := e.drain(ctx); err != nil {
			e.state.Finish(err)
			return err
		}

		if e.FilledCount() == e.config.TargetCount {
			return e.complete(ctx)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.buffer.Ready():
		case <-ticker.C:
		}
	}
}

// drain moves everything currently buffered into the slot array, persisting new
// items in one sink batch
func (e *Engine) drain(ctx context.Context) error {
	items := e.buffer.DequeueAll()
	if len(items) == 0 {
		return nil
	}

	accepted := make([]seqbuffer.SeqData, 0, len(items))
	for _, item := range items {
		if item.Seq < 0 || item.Seq >= e.config.TargetCount {
			middleware.LogWarn(engineComponent, "Dropping out of range seq %d", item.Seq)
			continue
		}
		// First write wins
		if e.filled[item.Seq] {
			e.duplicates.Add(1)
			middleware.LogWarn(engineComponent, "Ignoring duplicate seq %d (value %d)", item.Seq, item.Value)
			continue
		}
		e.filled[item.Seq] = true
		e.slots[item.Seq] = item.Value
		accepted = append(accepted, item)
	}

	if err := e.sink.AppendBatch(ctx, accepted); err != nil {
		return fmt.Errorf("failed to persist %d values: %w", len(accepted), err)
	}

	filled := e.filledCount.Add(int64(len(accepted)))
	middleware.LogDebug(engineComponent, "Drained %d items, %d/%d slots filled", len(items), filled, e.config.TargetCount)
	return nil
}

// complete performs the one-time handoff: stop the receive tasks, reduce the slots
// and forward the result downstream
func (e *Engine) complete(ctx context.Context) error {
	if !e.state.BeginCompletion() {
		return ErrAlreadyComplete
	}
	middleware.LogInfo(engineComponent, "All %d slots filled, completing job", e.config.TargetCount)

	if e.closer != nil {
		closed := e.closer.CloseAll()
		middleware.LogInfo(engineComponent, "Closed %d worker connections", closed)
	}

	pkg, err := e.buildResult()
	if err == nil {
		err = downstream.ForwardAll(ctx, pkg, e.config.Forwarder, e.config.Mirrors...)
	}
	if err != nil {
		err = fmt.Errorf("downstream handoff failed: %w", err)
		middleware.LogError(engineComponent, "%v", err)
	} else {
		middleware.LogInfo(engineComponent, "Job done, result %s forwarded", pkg.Header.Hashcode)
	}

	e.state.Finish(err)
	return err
}

func (e *Engine) buildResult() (*frame.Package, error) {
	values, err := e.reducer(e.slots)
	if err != nil {
		return nil, err
	}
	message := fmt.Sprintf("aggregated %d values (%s)", e.config.TargetCount, e.config.ReduceMode)
	return frame.NewIntPackage(values, message)
}

package orchestrator

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seq-aggregator/protocol/frame"
	"seq-aggregator/server/controller/aggregation_engine"
	"seq-aggregator/shared/downstream"
	"seq-aggregator/shared/seqbuffer"
	"seq-aggregator/shared/storage"
	"seq-aggregator/shared/workerclient"
)

// downstreamListener collects every frame forwarded to it
type downstreamListener struct {
	listener net.Listener
	frames   chan *frame.Package
}

func newDownstreamListener(t *testing.T) *downstreamListener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	d := &downstreamListener{listener: listener, frames: make(chan *frame.Package, 4)}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			pkg, err := frame.ReadFrame(conn)
			conn.Close()
			if err == nil {
				d.frames <- pkg
			}
		}
	}()
	return d
}

func (d *downstreamListener) Addr() string {
	return d.listener.Addr().String()
}

type jobFixture struct {
	orchestrator *Orchestrator
	sink         *storage.MemorySink
	downstream   *downstreamListener
	done         chan error
	cancel       context.CancelFunc
}

func startJob(t *testing.T, target, maxBuffer int) *jobFixture {
	t.Helper()
	down := newDownstreamListener(t)
	return startJobWithForwarder(t, target, maxBuffer, down, downstream.NewTCPForwarder(down.Addr(), time.Second))
}

func startJobWithForwarder(t *testing.T, target, maxBuffer int, down *downstreamListener, forwarder downstream.Forwarder) *jobFixture {
	t.Helper()
	sink := storage.NewMemorySink()
	o, err := New(Config{
		ListenAddr: "127.0.0.1:0",
		MaxBuffer:  maxBuffer,
		Engine: aggregation_engine.Config{
			TargetCount:  target,
			PollInterval: 10 * time.Millisecond,
			Forwarder:    forwarder,
		},
	}, sink)
	require.NoError(t, err)
	require.NoError(t, o.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	f := &jobFixture{orchestrator: o, sink: sink, downstream: down, done: make(chan error, 1), cancel: cancel}
	go func() { f.done <- o.Run(ctx) }()
	t.Cleanup(cancel)
	return f
}

func (f *jobFixture) dial(t *testing.T) *workerclient.Client {
	t.Helper()
	client, err := workerclient.Dial(f.orchestrator.Addr(), time.Second)
	require.NoError(t, err)
	client.ReplyTimeout = 2 * time.Second
	t.Cleanup(func() { client.Close() })
	return client
}

func (f *jobFixture) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-f.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
		return nil
	}
}

func (f *jobFixture) result(t *testing.T) *frame.Package {
	t.Helper()
	select {
	case pkg := <-f.downstream.frames:
		return pkg
	case <-time.After(5 * time.Second):
		t.Fatal("downstream received nothing")
		return nil
	}
}

func sequence(from, to int64) []int64 {
	values := make([]int64, 0, to-from)
	for v := from; v < to; v++ {
		values = append(values, v*10)
	}
	return values
}

func TestSingleWorkerFillsJob(t *testing.T) {
	f := startJob(t, 10, 10)
	worker := f.dial(t)

	_, err := worker.SendInts(0, sequence(0, 10))
	require.NoError(t, err)

	result := f.result(t)
	require.NoError(t, f.wait(t))

	assert.Equal(t, frame.DataTypeInt, result.Header.DataType)
	assert.True(t, result.Verify())
	assert.Equal(t, sequence(0, 10), result.Ints)
	assert.Equal(t, seqbuffer.FromRun(0, sequence(0, 10)), f.sink.Rows())
	assert.Equal(t, aggregation_engine.Done, f.orchestrator.Engine().State().Phase())

	// The worker connection was closed at completion
	_, err = worker.ReadReply()
	if err == nil {
		// The ack may have raced ahead of the close
		_, err = worker.ReadReply()
	}
	assert.Error(t, err)
}

func TestOversizedBatchGetsDiscard(t *testing.T) {
	f := startJob(t, 10, 5)
	worker := f.dial(t)

	pkg, err := worker.SendInts(0, sequence(0, 6))
	require.NoError(t, err)
	reply, err := worker.ReadReply()
	require.NoError(t, err)

	assert.Equal(t, frame.MessageDiscard, reply.Message)
	assert.Equal(t, pkg.Header.Hashcode, reply.Ack)
	assert.Equal(t, 0, f.orchestrator.Progress().Filled)

	// Smaller batches still go through
	require.NoError(t, worker.Submit(context.Background(), 0, sequence(0, 5), 10, 10*time.Millisecond))
	require.Eventually(t, func() bool { return f.orchestrator.Progress().Buffered == 0 }, 2*time.Second, 5*time.Millisecond)
	_, err = worker.SendInts(5, sequence(5, 10))
	require.NoError(t, err)

	assert.Equal(t, sequence(0, 10), f.result(t).Ints)
	require.NoError(t, f.wait(t))
}

func TestTwoWorkersCompleteOnce(t *testing.T) {
	f := startJob(t, 10, 10)
	high := f.dial(t)
	low := f.dial(t)

	var wg sync.WaitGroup
	for _, w := range []struct {
		client *workerclient.Client
		seq    int64
	}{{high, 5}, {low, 0}} {
		wg.Add(1)
		go func(client *workerclient.Client, seq int64) {
			defer wg.Done()
			_, err := client.SendInts(int(seq), sequence(seq, seq+5))
			assert.NoError(t, err)
		}(w.client, w.seq)
	}
	wg.Wait()

	assert.Equal(t, sequence(0, 10), f.result(t).Ints)
	require.NoError(t, f.wait(t))

	select {
	case extra := <-f.downstream.frames:
		t.Fatalf("unexpected second result %v", extra.Ints)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 0, f.orchestrator.Engine().Duplicates())
}

func TestResetWorkerDoesNotAffectJob(t *testing.T) {
	f := startJob(t, 4, 4)

	conn, err := net.Dial("tcp", f.orchestrator.Addr())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.orchestrator.Progress().Clients == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, conn.(*net.TCPConn).SetLinger(0))
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return f.orchestrator.Progress().Clients == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, f.orchestrator.Progress().Filled)
	assert.Equal(t, "collecting", f.orchestrator.Progress().Phase)

	worker := f.dial(t)
	_, err = worker.SendInts(0, []int64{4, 3, 2, 1})
	require.NoError(t, err)

	assert.Equal(t, []int64{4, 3, 2, 1}, f.result(t).Ints)
	require.NoError(t, f.wait(t))
}

func TestDownstreamFailureIsReturned(t *testing.T) {
	down := newDownstreamListener(t)
	unreachable := down.Addr()
	down.listener.Close()

	f := startJobWithForwarder(t, 2, 2, down, downstream.NewTCPForwarder(unreachable, 200*time.Millisecond))
	worker := f.dial(t)
	_, err := worker.SendInts(0, []int64{1, 2})
	require.NoError(t, err)

	err = f.wait(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downstream handoff failed")
	assert.Error(t, f.orchestrator.Engine().State().Err())
}

func TestCancelStopsServing(t *testing.T) {
	f := startJob(t, 10, 10)
	worker := f.dial(t)
	require.NoError(t, worker.Submit(context.Background(), 0, []int64{1}, 0, 0))

	f.cancel()
	assert.ErrorIs(t, f.wait(t), context.Canceled)

	_, err := net.DialTimeout("tcp", f.orchestrator.Addr(), 200*time.Millisecond)
	assert.Error(t, err)
}

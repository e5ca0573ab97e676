package status_server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"
)

type fixedProgress Progress

func (p fixedProgress) Progress() Progress { return Progress(p) }

func startServer(t *testing.T, progress ProgressSource) (*StatusServer, *Meter) {
	t.Helper()
	meter := NewMeter()
	server := NewStatusServer("0", meter, progress)
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Stop(ctx)
	})
	return server, meter
}

func getJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, sonnet.Unmarshal(body, v))
}

func TestMeterSampleResetsCounter(t *testing.T) {
	meter := NewMeter()
	assert.Equal(t, "0", meter.Last().Y)

	var received []Sample
	meter.Subscribe(func(s Sample) { received = append(received, s) })

	meter.Add(1024)
	meter.Add(16)
	at := time.Date(2024, 1, 2, 13, 4, 5, 0, time.Local)
	sample := meter.sample(at)

	assert.Equal(t, Sample{X: "13:04:05", Y: "1040"}, sample)
	assert.Equal(t, sample, meter.Last())
	assert.Equal(t, "0", meter.sample(at).Y)
	assert.Len(t, received, 2)
}

func TestMeterRunStopsOnCancel(t *testing.T) {
	meter := NewMeter()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- meter.Run(ctx, 5*time.Millisecond) }()

	meter.Add(10)
	require.Eventually(t, func() bool { return meter.Last().Y == "10" }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("meter did not stop")
	}
}

func TestThroughputEndpoint(t *testing.T) {
	server, meter := startServer(t, nil)
	meter.Add(300)
	meter.sample(time.Now())

	var got struct {
		Code int    `json:"code"`
		Data Sample `json:"data"`
	}
	getJSON(t, "http://"+server.Addr()+"/x", &got)

	assert.Equal(t, 20000, got.Code)
	assert.Equal(t, "300", got.Data.Y)
	assert.Len(t, got.Data.X, len("15:04:05"))
}

func TestProgressEndpoint(t *testing.T) {
	server, _ := startServer(t, fixedProgress{Phase: "collecting", Filled: 4, Target: 10, Buffered: 2, Clients: 3})

	var got struct {
		Code int      `json:"code"`
		Data Progress `json:"data"`
	}
	getJSON(t, "http://"+server.Addr()+"/status", &got)

	assert.Equal(t, 20000, got.Code)
	assert.Equal(t, Progress{Phase: "collecting", Filled: 4, Target: 10, Buffered: 2, Clients: 3}, got.Data)
}

func TestProgressEndpointWithoutJob(t *testing.T) {
	server, _ := startServer(t, nil)

	resp, err := http.Get("http://" + server.Addr() + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestFeedStreamsSamples(t *testing.T) {
	server, meter := startServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+server.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return server.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	meter.Add(2048)
	meter.sample(time.Now())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var sample Sample
	require.NoError(t, sonnet.Unmarshal(message, &sample))
	assert.Equal(t, "2048", sample.Y)
}

func TestStopDisconnectsFeedClients(t *testing.T) {
	meter := NewMeter()
	server := NewStatusServer("0", meter, nil)
	require.NoError(t, server.Start())

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+server.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return server.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

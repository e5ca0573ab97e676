package workerclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seq-aggregator/protocol/frame"
)

// scriptedServer answers each received frame with the next reply in order
func scriptedServer(t *testing.T, conn net.Conn, replies ...string) <-chan *frame.Package {
	t.Helper()
	received := make(chan *frame.Package, len(replies))
	go func() {
		defer close(received)
		for _, reply := range replies {
			pkg, err := frame.ReadFrame(conn)
			if err != nil {
				return
			}
			received <- pkg
			if err := frame.SendControlMessage(conn, reply, pkg.Header.Hashcode); err != nil {
				return
			}
		}
	}()
	return received
}

func newPipeClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})
	client := NewClient(clientConn)
	client.ReplyTimeout = 2 * time.Second
	return client, serverConn
}

func TestSendIntsBuildsSequencedFrame(t *testing.T) {
	client, serverConn := newPipeClient(t)
	received := scriptedServer(t, serverConn, frame.MessageAck)

	sent, err := client.SendInts(7, []int64{1, -2, 3})
	require.NoError(t, err)

	pkg := <-received
	require.NotNil(t, pkg)
	assert.Equal(t, frame.DataTypeInt, pkg.Header.DataType)
	assert.Equal(t, "seq=7", pkg.Header.Message)
	assert.Equal(t, []int64{1, -2, 3}, pkg.Ints)
	assert.True(t, pkg.Verify())

	reply, err := client.ReadReply()
	require.NoError(t, err)
	assert.Equal(t, frame.MessageAck, reply.Message)
	assert.Equal(t, sent.Header.Hashcode, reply.Ack)
}

func TestSubmitRetriesDiscard(t *testing.T) {
	client, serverConn := newPipeClient(t)
	received := scriptedServer(t, serverConn, frame.MessageDiscard, frame.MessageDiscard, frame.MessageAck)

	err := client.Submit(context.Background(), 0, []int64{5, 6}, 3, time.Millisecond)
	require.NoError(t, err)

	attempts := 0
	for range received {
		attempts++
	}
	assert.Equal(t, 3, attempts)
}

func TestSubmitGivesUpAfterRetries(t *testing.T) {
	client, serverConn := newPipeClient(t)
	scriptedServer(t, serverConn, frame.MessageDiscard, frame.MessageDiscard)

	err := client.Submit(context.Background(), 0, []int64{5}, 1, time.Millisecond)
	assert.ErrorIs(t, err, ErrDiscarded)
}

func TestSubmitReject(t *testing.T) {
	client, serverConn := newPipeClient(t)
	scriptedServer(t, serverConn, frame.MessageReject)

	err := client.Submit(context.Background(), 99, []int64{5}, 3, time.Millisecond)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestSendControl(t *testing.T) {
	client, serverConn := newPipeClient(t)
	received := scriptedServer(t, serverConn, frame.MessageAck)

	require.NoError(t, client.SendControl("hello"))
	pkg := <-received
	require.NotNil(t, pkg)
	assert.False(t, pkg.Header.HasPayload())
	assert.Equal(t, "hello", pkg.Header.Message)

	reply, err := client.ReadReply()
	require.NoError(t, err)
	assert.Equal(t, frame.MessageAck, reply.Message)
}

package client_request_handler

import (
	"errors"
	"net"
	"time"

	"seq-aggregator/protocol/frame"
	"seq-aggregator/shared/middleware"
	"seq-aggregator/shared/seqbuffer"
)

const handlerComponent = "Client Request Handler"

// CompletionFlag is the shared job flag the receive tasks watch
type CompletionFlag interface {
	IsComplete() bool
}

// ByteCounter accumulates the bytes read from workers
type ByteCounter interface {
	Add(n int64)
}

// StopReason tells why a receive task left the Receiving state
type StopReason int

const (
	StopCompleted StopReason = iota
	StopDisconnected
	StopIdleTimeout
	StopFramingError
	StopReadFailed
	StopReplyFailed
	StopRefused
)

func (r StopReason) String() string {
	switch r {
	case StopCompleted:
		return "job completed"
	case StopDisconnected:
		return "disconnected"
	case StopIdleTimeout:
		return "idle timeout"
	case StopFramingError:
		return "framing error"
	case StopReadFailed:
		return "read failed"
	case StopReplyFailed:
		return "reply failed"
	case StopRefused:
		return "refused"
	default:
		return "unknown"
	}
}

// Config holds the receive task tunables
type Config struct {
	TargetCount int
	// IdleTimeout bounds the wait for each frame; zero waits forever
	IdleTimeout time.Duration
}

// ClientRequestHandler runs one receive task per worker connection
type ClientRequestHandler struct {
	config    Config
	registry  *Registry
	processor *BatchProcessor
	state     CompletionFlag
	counter   ByteCounter
}

// NewClientRequestHandler creates a handler feeding buffer. counter may be nil.
func NewClientRequestHandler(config Config, buffer *seqbuffer.Buffer, state CompletionFlag, counter ByteCounter) *ClientRequestHandler {
	return &ClientRequestHandler{
		config:    config,
		registry:  NewRegistry(),
		processor: NewBatchProcessor(buffer, config.TargetCount),
		state:     state,
		counter:   counter,
	}
}

// Registry exposes the connection registry
func (h *ClientRequestHandler) Registry() *Registry {
	return h.registry
}

// HandleConnection runs the receive task for conn until the job completes or the
// connection ends. The connection is always closed on return.
func (h *ClientRequestHandler) HandleConnection(conn net.Conn) StopReason {
	client, ok := h.registry.Register(conn)
	if !ok {
		middleware.LogInfo(handlerComponent, "Refusing connection from %s, job already completed", conn.RemoteAddr())
		conn.Close()
		return StopRefused
	}
	defer func() {
		h.registry.Remove(client.ID)
		conn.Close()
	}()

	id := client.ID.String()
	middleware.LogInfo(handlerComponent, "New connection from %s (client %s)", client.RemoteAddr, id)

	reason := h.receive(client)
	middleware.LogInfo(handlerComponent, "Client %s stopped: %s", id, reason)
	return reason
}

func (h *ClientRequestHandler) receive(client *Client) StopReason {
	id := client.ID.String()

	for {
		if h.state.IsComplete() {
			return StopCompleted
		}

		if h.config.IdleTimeout > 0 {
			client.Conn.SetReadDeadline(time.Now().Add(h.config.IdleTimeout))
		}

		pkg, err := frame.ReadFrame(client.Conn)
		if err != nil {
			return h.classifyReadError(id, err)
		}
		if h.counter != nil {
			h.counter.Add(int64(frame.HeaderSize + len(pkg.Payload)))
		}
		if h.state.IsComplete() {
			return StopCompleted
		}

		reply := frame.MessageAck
		if pkg.Header.HasPayload() {
			reply = h.processor.Process(id, pkg)
		} else {
			middleware.LogDebug(handlerComponent, "Client %s sent control frame %q", id, pkg.Header.Message)
		}

		if err := frame.SendControlMessage(client.Conn, reply, pkg.Header.Hashcode); err != nil {
			if h.state.IsComplete() || frame.IsDisconnect(err) {
				return StopDisconnected
			}
			middleware.LogError(handlerComponent, "Failed to reply %q to client %s: %v", reply, id, err)
			return StopReplyFailed
		}
	}
}

func (h *ClientRequestHandler) classifyReadError(id string, err error) StopReason {
	switch {
	case h.state.IsComplete():
		// CloseAll tore the connection down under the read
		return StopCompleted
	case frame.IsDisconnect(err):
		return StopDisconnected
	case frame.IsTimeout(err):
		middleware.LogWarn(handlerComponent, "Client %s idle for %s, closing", id, h.config.IdleTimeout)
		return StopIdleTimeout
	case errors.Is(err, frame.ErrFraming):
		middleware.LogError(handlerComponent, "Client %s sent a malformed frame: %v", id, err)
		return StopFramingError
	default:
		middleware.LogError(handlerComponent, "Failed to read from client %s: %v", id, err)
		return StopReadFailed
	}
}

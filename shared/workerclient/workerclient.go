package workerclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"seq-aggregator/protocol/frame"
	"seq-aggregator/shared/middleware"
)

const clientComponent = "Worker Client"

// DefaultReplyTimeout bounds the wait for the server's control reply
const DefaultReplyTimeout = 10 * time.Second

var (
	// ErrRejected means the server refused the batch and resending will not help
	ErrRejected = errors.New("batch rejected by server")
	// ErrDiscarded means the server buffer was full after every retry
	ErrDiscarded = errors.New("batch discarded by server")
)

// Reply is a control frame received from the server
type Reply struct {
	Message string
	Ack     frame.Hashcode
}

// Client is a worker's connection to the aggregation server
type Client struct {
	conn         net.Conn
	ReplyTimeout time.Duration
}

// Dial connects to the aggregation server at addr
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, ReplyTimeout: DefaultReplyTimeout}
}

// SendInts sends values as one INT frame whose first value sits at seq
func (c *Client) SendInts(seq int, values []int64) (*frame.Package, error) {
	pkg, err := frame.NewIntPackage(values, frame.SequenceMessage(seq))
	if err != nil {
		return nil, err
	}
	if err := frame.SendPackage(c.conn, pkg); err != nil {
		return nil, fmt.Errorf("failed to send batch at seq %d: %w", seq, err)
	}
	middleware.LogDebug(clientComponent, "Sent %d values at seq %d (%s)", len(values), seq, pkg.Header.Hashcode)
	return pkg, nil
}

// SendControl sends a header-only frame carrying message
func (c *Client) SendControl(message string) error {
	return frame.SendControlMessage(c.conn, message, frame.Hashcode{})
}

// ReadReply waits for the next control frame from the server
func (c *Client) ReadReply() (*Reply, error) {
	if c.ReplyTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.ReplyTimeout))
	}
	pkg, err := frame.ReadFrame(c.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}
	return &Reply{Message: pkg.Header.Message, Ack: pkg.Header.Ack}, nil
}

// Submit sends one batch and waits for it to be acknowledged. A discard is retried
// up to retries times, sleeping backoff in between.
func (c *Client) Submit(ctx context.Context, seq int, values []int64, retries int, backoff time.Duration) error {
	for attempt := 0; ; attempt++ {
		pkg, err := c.SendInts(seq, values)
		if err != nil {
			return err
		}
		reply, err := c.ReadReply()
		if err != nil {
			return err
		}
		if reply.Ack != pkg.Header.Hashcode {
			return fmt.Errorf("reply %q acknowledges %s, expected %s", reply.Message, reply.Ack, pkg.Header.Hashcode)
		}

		switch reply.Message {
		case frame.MessageAck:
			return nil
		case frame.MessageReject:
			return fmt.Errorf("%w: seq %d, %d values", ErrRejected, seq, len(values))
		case frame.MessageDiscard:
			if attempt >= retries {
				return fmt.Errorf("%w: seq %d after %d attempts", ErrDiscarded, seq, attempt+1)
			}
			middleware.LogInfo(clientComponent, "Batch at seq %d discarded, retrying in %s", seq, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		default:
			return fmt.Errorf("unexpected reply %q", reply.Message)
		}
	}
}

// Close closes the connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

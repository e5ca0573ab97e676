package downstream

import (
	"context"
	"fmt"
	"net"
	"time"

	"seq-aggregator/protocol/frame"
	"seq-aggregator/shared/middleware"
)

const publisherComponent = "Result Publisher"

// Forwarder hands a completed result package to a downstream consumer
type Forwarder interface {
	Forward(ctx context.Context, pkg *frame.Package) error
	Name() string
}

// TCPForwarder opens one connection to the downstream address, sends a single frame
// and closes it.
type TCPForwarder struct {
	addr        string
	dialTimeout time.Duration
}

// NewTCPForwarder creates a forwarder for addr ("host:port")
func NewTCPForwarder(addr string, dialTimeout time.Duration) *TCPForwarder {
	return &TCPForwarder{addr: addr, dialTimeout: dialTimeout}
}

// Name identifies the forwarder in logs
func (f *TCPForwarder) Name() string {
	return "tcp://" + f.addr
}

// Forward dials the downstream address and writes the package
func (f *TCPForwarder) Forward(ctx context.Context, pkg *frame.Package) error {
	dialer := &net.Dialer{Timeout: f.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", f.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to downstream %s: %w", f.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}

	if err := frame.SendPackage(conn, pkg); err != nil {
		return fmt.Errorf("failed to send result to downstream %s: %w", f.addr, err)
	}

	middleware.LogInfo(publisherComponent, "Sent result package %s (%d bytes) to %s",
		pkg.Header.Hashcode, pkg.Header.PayloadLength, f.addr)
	return nil
}

// ForwardAll sends pkg to the primary forwarder and then to every mirror. Only a
// primary failure is returned; mirror failures are logged.
func ForwardAll(ctx context.Context, pkg *frame.Package, primary Forwarder, mirrors ...Forwarder) error {
	if err := primary.Forward(ctx, pkg); err != nil {
		return err
	}
	for _, mirror := range mirrors {
		if err := mirror.Forward(ctx, pkg); err != nil {
			middleware.LogWarn(publisherComponent, "Mirror %s failed: %v", mirror.Name(), err)
			continue
		}
		middleware.LogInfo(publisherComponent, "Mirrored result to %s", mirror.Name())
	}
	return nil
}

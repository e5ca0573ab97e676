package frame

import (
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	// ErrFraming reports a malformed header or payload length. Fatal to the connection.
	ErrFraming = errors.New("framing error")
	// ErrEncoding reports a frame that cannot be serialized, such as an oversized message.
	ErrEncoding = errors.New("encoding error")
)

// IsDisconnect reports whether err means the peer went away (or we closed the
// connection ourselves) rather than a protocol failure.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}

// IsTimeout reports whether err is a deadline expiry on the transport
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

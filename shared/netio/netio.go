package netio

import (
	"fmt"
	"io"
)

// WriteAll writes all bytes from data to w, handling short writes.
// It loops until all bytes are written or an error occurs.
func WriteAll(w io.Writer, data []byte) error {
	totalWritten := 0
	for totalWritten < len(data) {
		n, err := w.Write(data[totalWritten:])
		if err != nil {
			return fmt.Errorf("write failed after %d/%d bytes: %w", totalWritten, len(data), err)
		}
		if n == 0 {
			return fmt.Errorf("write failed after %d/%d bytes: %w", totalWritten, len(data), io.ErrShortWrite)
		}
		totalWritten += n
	}
	return nil
}

// ReadFull reads exactly len(buf) bytes from r, handling short reads.
// A stream that ends before the first byte returns io.EOF unwrapped, so callers can
// tell a clean close at a message boundary apart from a truncated message, which is
// reported as io.ErrUnexpectedEOF.
func ReadFull(r io.Reader, buf []byte) error {
	totalRead := 0
	for totalRead < len(buf) {
		n, err := r.Read(buf[totalRead:])
		totalRead += n
		if totalRead == len(buf) {
			return nil
		}
		if err != nil {
			if err == io.EOF {
				if totalRead == 0 {
					return io.EOF
				}
				return fmt.Errorf("unexpected EOF after %d/%d bytes: %w", totalRead, len(buf), io.ErrUnexpectedEOF)
			}
			return fmt.Errorf("read failed after %d/%d bytes: %w", totalRead, len(buf), err)
		}
	}
	return nil
}

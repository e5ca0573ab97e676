package frame

import (
	"errors"
	"fmt"
	"io"

	"seq-aggregator/shared/netio"
)

// ReadFrame reads one frame: the 1024-byte header and, when the header declares one,
// the payload. INT payloads are decoded into Package.Ints.
//
// A stream closed cleanly before the header returns io.EOF. A stream that ends mid
// frame returns ErrFraming. Other transport errors are returned wrapped.
func ReadFrame(r io.Reader) (*Package, error) {
	headerBuffer := make([]byte, HeaderSize)
	if err := netio.ReadFull(r, headerBuffer); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: incomplete header: %w", ErrFraming, err)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	header, err := DecodeHeader(headerBuffer)
	if err != nil {
		return nil, err
	}

	pkg := &Package{Header: header}
	if !header.HasPayload() {
		return pkg, nil
	}

	pkg.Payload = make([]byte, header.PayloadLength)
	if err := netio.ReadFull(r, pkg.Payload); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: incomplete payload (%d bytes declared): %w", ErrFraming, header.PayloadLength, io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	if header.DataType == DataTypeInt {
		ints, err := DecodeIntList(pkg.Payload)
		if err != nil {
			return nil, err
		}
		pkg.Ints = ints
	}

	return pkg, nil
}

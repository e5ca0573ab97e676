package frame

import (
	"encoding/binary"
	"fmt"
)

// IntSize is the wire width of one integer in an INT payload
const IntSize = 8

// EncodeIntList serializes signed integers as fixed-width 8-byte big-endian values
func EncodeIntList(values []int64) []byte {
	buf := make([]byte, len(values)*IntSize)
	for i, v := range values {
		binary.BigEndian.PutUint64(buf[i*IntSize:], uint64(v))
	}
	return buf
}

// DecodeIntList parses an INT payload back into its ordered integers
func DecodeIntList(data []byte) ([]int64, error) {
	if len(data)%IntSize != 0 {
		return nil, fmt.Errorf("%w: int payload of %d bytes is not a multiple of %d", ErrFraming, len(data), IntSize)
	}

	values := make([]int64, len(data)/IntSize)
	for i := range values {
		values[i] = int64(binary.BigEndian.Uint64(data[i*IntSize:]))
	}
	return values, nil
}

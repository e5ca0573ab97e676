package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field size constants
const (
	HeaderSize        = 1024
	PayloadLengthSize = 4
	HashcodeSize      = 16
	DataTypeSize      = 1
	AckSize           = 16
	MessageSize       = 987

	// MaxPayloadLength is the largest payload a single frame may carry (1MB)
	MaxPayloadLength = 1024 * 1024
)

// Field offsets inside the header
const (
	payloadLengthOffset = 0
	hashcodeOffset      = payloadLengthOffset + PayloadLengthSize
	dataTypeOffset      = hashcodeOffset + HashcodeSize
	ackOffset           = dataTypeOffset + DataTypeSize
	messageOffset       = ackOffset + AckSize
)

// Hashcode is the MD5 digest identifying a payload. The zero value means "none".
type Hashcode [HashcodeSize]byte

// IsZero reports whether the hashcode is unset
func (h Hashcode) IsZero() bool {
	return h == Hashcode{}
}

// String returns the hex form of the hashcode
func (h Hashcode) String() string {
	return fmt.Sprintf("%x", h[:])
}

// Header represents the fixed 1024-byte frame header
//
//	| 0        4B        | 4     16B     | 20    1B  | 21   16B | 37        987B       |
//	| payload length     | payload hash  | data type | ack      | message (utf-8)      |
type Header struct {
	PayloadLength uint32
	Hashcode      Hashcode
	DataType      DataType
	Ack           Hashcode
	Message       string
}

// HasPayload reports whether a payload follows the header on the wire
func (h *Header) HasPayload() bool {
	return h.PayloadLength != 0
}

// EncodeHeader serializes a header into its 1024-byte wire form
func EncodeHeader(h *Header) ([]byte, error) {
	if len(h.Message) > MessageSize {
		return nil, fmt.Errorf("%w: message is %d bytes, max %d", ErrEncoding, len(h.Message), MessageSize)
	}
	if !utf8.ValidString(h.Message) || strings.IndexByte(h.Message, 0) >= 0 {
		return nil, fmt.Errorf("%w: message must be utf-8 without NUL bytes", ErrEncoding)
	}
	if h.PayloadLength > MaxPayloadLength {
		return nil, fmt.Errorf("%w: payload length %d exceeds %d", ErrEncoding, h.PayloadLength, MaxPayloadLength)
	}
	if !h.DataType.IsValid() {
		return nil, fmt.Errorf("%w: unknown data type %d", ErrEncoding, h.DataType)
	}

	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[payloadLengthOffset:], h.PayloadLength)
	copy(buf[hashcodeOffset:hashcodeOffset+HashcodeSize], h.Hashcode[:])
	buf[dataTypeOffset] = byte(h.DataType)
	copy(buf[ackOffset:ackOffset+AckSize], h.Ack[:])
	// Remaining message bytes stay zero
	copy(buf[messageOffset:], h.Message)

	return buf, nil
}

// DecodeHeader parses a 1024-byte wire header
func DecodeHeader(data []byte) (*Header, error) {
	if len(data) != HeaderSize {
		return nil, fmt.Errorf("%w: header size is %d rather than %d", ErrFraming, len(data), HeaderSize)
	}

	h := &Header{
		PayloadLength: binary.BigEndian.Uint32(data[payloadLengthOffset:]),
	}
	if h.PayloadLength > MaxPayloadLength {
		return nil, fmt.Errorf("%w: payload length %d exceeds %d", ErrFraming, h.PayloadLength, MaxPayloadLength)
	}

	dataType, err := ParseDataType(data[dataTypeOffset])
	if err != nil {
		return nil, err
	}
	h.DataType = dataType

	copy(h.Hashcode[:], data[hashcodeOffset:hashcodeOffset+HashcodeSize])
	copy(h.Ack[:], data[ackOffset:ackOffset+AckSize])

	message := data[messageOffset:HeaderSize]
	if end := bytes.IndexByte(message, 0); end >= 0 {
		message = message[:end]
	}
	h.Message = string(message)

	return h, nil
}

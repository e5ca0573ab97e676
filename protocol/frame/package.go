package frame

import (
	"crypto/md5"
	"fmt"
	"strconv"
	"strings"
)

// Package pairs a header with its payload. Ints is populated for INT payloads.
type Package struct {
	Header  *Header
	Payload []byte
	Ints    []int64
}

// NewPackage builds a package and its default header: length and MD5 hashcode are
// computed from the payload.
func NewPackage(payload []byte, dataType DataType, message string) (*Package, error) {
	if len(payload) > MaxPayloadLength {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrEncoding, len(payload), MaxPayloadLength)
	}

	pkg := &Package{
		Header: &Header{
			PayloadLength: uint32(len(payload)),
			Hashcode:      md5.Sum(payload),
			DataType:      dataType,
			Message:       message,
		},
		Payload: payload,
	}
	if dataType == DataTypeInt {
		ints, err := DecodeIntList(payload)
		if err != nil {
			return nil, err
		}
		pkg.Ints = ints
	}
	return pkg, nil
}

// NewIntPackage builds an INT package carrying values
func NewIntPackage(values []int64, message string) (*Package, error) {
	pkg, err := NewPackage(EncodeIntList(values), DataTypeInt, message)
	if err != nil {
		return nil, err
	}
	pkg.Ints = values
	return pkg, nil
}

// Verify checks the payload against the header hashcode
func (p *Package) Verify() bool {
	return md5.Sum(p.Payload) == p.Header.Hashcode
}

const sequencePrefix = "seq="

// SequenceMessage builds the header message announcing a payload's starting index
func SequenceMessage(seq int) string {
	return sequencePrefix + strconv.Itoa(seq)
}

// ParseSequenceMessage extracts the starting index from a data frame message
func ParseSequenceMessage(message string) (int, error) {
	field, _, _ := strings.Cut(message, " ")
	if !strings.HasPrefix(field, sequencePrefix) {
		return 0, fmt.Errorf("message %q carries no %s field", message, strings.TrimSuffix(sequencePrefix, "="))
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(field, sequencePrefix))
	if err != nil {
		return 0, fmt.Errorf("invalid sequence index in %q: %w", message, err)
	}
	return seq, nil
}

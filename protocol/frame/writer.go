package frame

import (
	"fmt"
	"io"

	"seq-aggregator/shared/netio"
)

// Control messages exchanged on header-only frames
const (
	MessageAck     = "ack"
	MessageDiscard = "discard"
	MessageReject  = "reject"
)

// EncodePackage returns the wire bytes of a package: header followed by payload
func EncodePackage(pkg *Package) ([]byte, error) {
	headerData, err := EncodeHeader(pkg.Header)
	if err != nil {
		return nil, err
	}
	if int(pkg.Header.PayloadLength) != len(pkg.Payload) {
		return nil, fmt.Errorf("%w: header declares %d payload bytes, package holds %d",
			ErrEncoding, pkg.Header.PayloadLength, len(pkg.Payload))
	}
	return append(headerData, pkg.Payload...), nil
}

// SendPackage writes the header followed by the payload as a single write
func SendPackage(w io.Writer, pkg *Package) error {
	data, err := EncodePackage(pkg)
	if err != nil {
		return err
	}
	if err := netio.WriteAll(w, data); err != nil {
		return fmt.Errorf("failed to send package: %w", err)
	}
	return nil
}

// SendControlMessage writes a header-only frame carrying message and ack
func SendControlMessage(w io.Writer, message string, ack Hashcode) error {
	return SendPackage(w, &Package{
		Header: &Header{
			DataType: DataTypeBinary,
			Ack:      ack,
			Message:  message,
		},
	})
}

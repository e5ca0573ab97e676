package frame

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePackage(t *testing.T, pkg *Package) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, SendPackage(&buf, pkg))
	return buf.Bytes()
}

func TestReadFrameIntPackage(t *testing.T) {
	pkg, err := NewIntPackage([]int64{10, -20, 30}, SequenceMessage(4))
	require.NoError(t, err)

	got, err := ReadFrame(bytes.NewReader(encodePackage(t, pkg)))
	require.NoError(t, err)

	assert.Equal(t, pkg.Header, got.Header)
	assert.Equal(t, []int64{10, -20, 30}, got.Ints)
	assert.True(t, got.Verify())
}

func TestReadFrameHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	ack := Hashcode{1, 2, 3}
	require.NoError(t, SendControlMessage(&buf, MessageDiscard, ack))
	require.Equal(t, HeaderSize, buf.Len())

	got, err := ReadFrame(&buf)
	require.NoError(t, err)

	assert.False(t, got.Header.HasPayload())
	assert.Equal(t, MessageDiscard, got.Header.Message)
	assert.Equal(t, ack, got.Header.Ack)
	assert.Nil(t, got.Payload)
}

func TestReadFrameSequence(t *testing.T) {
	first, err := NewIntPackage([]int64{1, 2}, SequenceMessage(0))
	require.NoError(t, err)
	second, err := NewPackage([]byte("hello"), DataTypeUTF8Str, "note")
	require.NoError(t, err)

	stream := bytes.NewReader(append(encodePackage(t, first), encodePackage(t, second)...))

	got, err := ReadFrame(stream)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, got.Ints)

	got, err = ReadFrame(stream)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got.Payload)
	assert.Nil(t, got.Ints)

	_, err = ReadFrame(stream)
	assert.Equal(t, io.EOF, err)
}

func TestReadFrameTruncated(t *testing.T) {
	pkg, err := NewIntPackage([]int64{1, 2, 3}, SequenceMessage(0))
	require.NoError(t, err)
	data := encodePackage(t, pkg)

	tests := []struct {
		name string
		data []byte
	}{
		{"short header", data[:HeaderSize/2]},
		{"short payload", data[:HeaderSize+5]},
		{"header without payload", data[:HeaderSize]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrFraming)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
			assert.False(t, IsDisconnect(err))
		})
	}
}

func TestReadFrameRejectsMisalignedIntPayload(t *testing.T) {
	pkg, err := NewPackage([]byte{1, 2, 3}, DataTypeBinary, "")
	require.NoError(t, err)
	pkg.Header.DataType = DataTypeInt

	_, err = ReadFrame(bytes.NewReader(encodePackage(t, pkg)))
	assert.ErrorIs(t, err, ErrFraming)
}

func TestReadFrameOverConn(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	pkg, err := NewIntPackage([]int64{5, 6, 7, 8}, SequenceMessage(12))
	require.NoError(t, err)

	go func() {
		SendPackage(client, pkg)
		client.Close()
	}()

	got, err := ReadFrame(server)
	require.NoError(t, err)
	assert.Equal(t, pkg.Ints, got.Ints)

	_, err = ReadFrame(server)
	assert.True(t, IsDisconnect(err))
}

func TestSendPackageRejectsLengthMismatch(t *testing.T) {
	pkg, err := NewIntPackage([]int64{1}, "")
	require.NoError(t, err)
	pkg.Header.PayloadLength = 16

	err = SendPackage(io.Discard, pkg)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestNewPackageComputesHeader(t *testing.T) {
	pkg, err := NewIntPackage([]int64{1, 2, 3}, "result")
	require.NoError(t, err)

	assert.Equal(t, uint32(24), pkg.Header.PayloadLength)
	assert.Equal(t, DataTypeInt, pkg.Header.DataType)
	assert.False(t, pkg.Header.Hashcode.IsZero())
	assert.True(t, pkg.Verify())

	pkg.Payload[0] ^= 0xFF
	assert.False(t, pkg.Verify())
}

func TestParseSequenceMessage(t *testing.T) {
	seq, err := ParseSequenceMessage(SequenceMessage(42))
	require.NoError(t, err)
	assert.Equal(t, 42, seq)

	seq, err = ParseSequenceMessage("seq=7 from worker-3")
	require.NoError(t, err)
	assert.Equal(t, 7, seq)

	for _, msg := range []string{"", "hello", "seq=", "seq=abc", "sequence=1"} {
		_, err := ParseSequenceMessage(msg)
		assert.Error(t, err, "message %q", msg)
	}
}

package frame

import "fmt"

// DataType tags how a frame payload must be decoded
type DataType uint8

// DataType constants. The byte values are part of the wire format.
const (
	DataTypeBinary  DataType = 0x00
	DataTypeInt     DataType = 0x01
	DataTypeUTF8Str DataType = 0x02
)

var dataTypeNames = map[DataType]string{
	DataTypeBinary:  "BINARY",
	DataTypeInt:     "INT",
	DataTypeUTF8Str: "UTF8_STR",
}

// ParseDataType maps a wire tag to its DataType, failing on unknown tags
func ParseDataType(tag byte) (DataType, error) {
	dt := DataType(tag)
	if !dt.IsValid() {
		return 0, fmt.Errorf("%w: unknown package data type 0x%02x", ErrFraming, tag)
	}
	return dt, nil
}

// IsValid reports whether the data type is one of the known tags
func (d DataType) IsValid() bool {
	_, ok := dataTypeNames[d]
	return ok
}

func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", uint8(d))
}

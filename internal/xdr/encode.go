package xdr

import (
	"bytes"
	"encoding/binary"
	"math"
)

// WriteXDROpaque encodes opaque data (byte array) in XDR format: length +
// data + padding, per RFC 4506 Section 4.9.
func WriteXDROpaque(buf *bytes.Buffer, data []byte) error {
	length := uint32(len(data))
	if err := WriteUint32(buf, length); err != nil {
		return xerr("opaque length", err)
	}
	if _, err := buf.Write(data); err != nil {
		return xerr("opaque data", err)
	}
	return WriteXDRPadding(buf, length)
}

// WriteXDROpaqueFixed encodes a fixed-length opaque value: no length
// prefix, just the bytes followed by zero padding to the next 4-byte
// boundary. The caller is responsible for ensuring len(data) matches the
// protocol-defined fixed size.
func WriteXDROpaqueFixed(buf *bytes.Buffer, data []byte) error {
	if _, err := buf.Write(data); err != nil {
		return xerr("fixed opaque data", err)
	}
	return WriteXDRPadding(buf, uint32(len(data)))
}

// WriteXDRString encodes a string in XDR format: length + UTF-8 bytes +
// padding, per RFC 4506 Section 4.11.
func WriteXDRString(buf *bytes.Buffer, s string) error {
	length := uint32(len(s))
	if err := WriteUint32(buf, length); err != nil {
		return xerr("string length", err)
	}
	if _, err := buf.WriteString(s); err != nil {
		return xerr("string data", err)
	}
	return WriteXDRPadding(buf, length)
}

// WriteXDRPadding writes zero padding bytes so the stream stays aligned to
// a 4-byte boundary after writing dataLen bytes of variable-length data.
func WriteXDRPadding(buf *bytes.Buffer, dataLen uint32) error {
	padding := (4 - (dataLen % 4)) % 4
	if padding == 0 {
		return nil
	}
	var zero [3]byte
	if _, err := buf.Write(zero[:padding]); err != nil {
		return xerr("padding", err)
	}
	return nil
}

// WriteUint32 encodes a 32-bit unsigned integer, big-endian.
func WriteUint32(buf *bytes.Buffer, v uint32) error {
	if err := binary.Write(buf, binary.BigEndian, v); err != nil {
		return xerr("uint32", err)
	}
	return nil
}

// WriteUint64 encodes a 64-bit unsigned integer (XDR "hyper"), big-endian.
func WriteUint64(buf *bytes.Buffer, v uint64) error {
	if err := binary.Write(buf, binary.BigEndian, v); err != nil {
		return xerr("uint64", err)
	}
	return nil
}

// WriteInt32 encodes a 32-bit signed integer, big-endian two's complement.
func WriteInt32(buf *bytes.Buffer, v int32) error {
	if err := binary.Write(buf, binary.BigEndian, v); err != nil {
		return xerr("int32", err)
	}
	return nil
}

// WriteInt64 encodes a 64-bit signed integer ("hyper"), big-endian two's
// complement.
func WriteInt64(buf *bytes.Buffer, v int64) error {
	if err := binary.Write(buf, binary.BigEndian, v); err != nil {
		return xerr("int64", err)
	}
	return nil
}

// WriteBool encodes a boolean as a uint32, 0 = false, 1 = true.
func WriteBool(buf *bytes.Buffer, v bool) error {
	var val uint32
	if v {
		val = 1
	}
	return WriteUint32(buf, val)
}

// WriteFloat32 encodes an IEEE-754 single-precision float, big-endian.
func WriteFloat32(buf *bytes.Buffer, v float32) error {
	return WriteUint32(buf, math.Float32bits(v))
}

// WriteFloat64 encodes an IEEE-754 double-precision float, big-endian.
func WriteFloat64(buf *bytes.Buffer, v float64) error {
	return WriteUint64(buf, math.Float64bits(v))
}

// WriteOptional encodes an XDR optional<T>: a presence bool followed, if
// present, by encode(). encode is never called when present is false.
func WriteOptional(buf *bytes.Buffer, present bool, encode func() error) error {
	if err := WriteBool(buf, present); err != nil {
		return xerr("optional presence", err)
	}
	if !present {
		return nil
	}
	return encode()
}

// WriteArray encodes an XDR array<T>: a uint32 count followed by count
// elements, each written by encode(i).
func WriteArray(buf *bytes.Buffer, n int, encode func(i int) error) error {
	if err := WriteUint32(buf, uint32(n)); err != nil {
		return xerr("array count", err)
	}
	for i := 0; i < n; i++ {
		if err := encode(i); err != nil {
			return err
		}
	}
	return nil
}

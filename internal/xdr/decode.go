package xdr

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// MaxOpaqueLength bounds a single opaque/string decode to protect against a
// corrupt or hostile length prefix forcing a huge allocation. No NFS
// procedure in scope here carries a single opaque field anywhere near this
// size.
const MaxOpaqueLength = 1 << 20 // 1 MiB

// DecodeOpaque decodes XDR variable-length opaque data: length, data,
// padding (RFC 4506 Section 4.10).
func DecodeOpaque(r io.Reader) ([]byte, error) {
	length, err := DecodeUint32(r)
	if err != nil {
		return nil, xerr("opaque length", err)
	}
	if length > MaxOpaqueLength {
		return nil, xerr("opaque length", fmt.Errorf("%d exceeds maximum %d", length, MaxOpaqueLength))
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, xerr("opaque data", err)
	}

	if err := skipPadding(r, length); err != nil {
		return nil, err
	}
	return data, nil
}

// DecodeOpaqueFixed decodes a fixed-length opaque value of exactly n bytes
// plus padding. Unlike DecodeOpaque there is no length prefix on the wire.
func DecodeOpaqueFixed(r io.Reader, n uint32) ([]byte, error) {
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, xerr("fixed opaque data", err)
	}
	if err := skipPadding(r, n); err != nil {
		return nil, err
	}
	return data, nil
}

func skipPadding(r io.Reader, dataLen uint32) error {
	padding := (4 - (dataLen % 4)) % 4
	if padding == 0 {
		return nil
	}
	var pad [3]byte
	if _, err := io.ReadFull(r, pad[:padding]); err != nil {
		return xerr("padding", err)
	}
	return nil
}

// DecodeString decodes an XDR string (opaque data interpreted as UTF-8) and
// validates it, per spec: invalid UTF-8 fails with XdrError.
func DecodeString(r io.Reader) (string, error) {
	data, err := DecodeOpaque(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", xerr("string", fmt.Errorf("invalid UTF-8"))
	}
	return string(data), nil
}

// DecodeUint32 decodes a big-endian 32-bit unsigned integer.
func DecodeUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, xerr("uint32", err)
	}
	return v, nil
}

// DecodeUint64 decodes a big-endian 64-bit unsigned integer ("hyper").
func DecodeUint64(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, xerr("uint64", err)
	}
	return v, nil
}

// DecodeInt32 decodes a big-endian 32-bit signed integer.
func DecodeInt32(r io.Reader) (int32, error) {
	var v int32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, xerr("int32", err)
	}
	return v, nil
}

// DecodeInt64 decodes a big-endian 64-bit signed integer ("hyper").
func DecodeInt64(r io.Reader) (int64, error) {
	var v int64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, xerr("int64", err)
	}
	return v, nil
}

// DecodeBool decodes an XDR boolean: any non-zero uint32 is true.
func DecodeBool(r io.Reader) (bool, error) {
	v, err := DecodeUint32(r)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// DecodeFloat32 decodes an IEEE-754 single-precision float.
func DecodeFloat32(r io.Reader) (float32, error) {
	v, err := DecodeUint32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// DecodeFloat64 decodes an IEEE-754 double-precision float.
func DecodeFloat64(r io.Reader) (float64, error) {
	v, err := DecodeUint64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// DecodeOptional decodes an XDR optional<T>: a presence bool, then if
// present, decode() is invoked to consume T. Returns ok=false when absent.
func DecodeOptional(r io.Reader, decode func() error) (ok bool, err error) {
	present, err := DecodeBool(r)
	if err != nil {
		return false, xerr("optional presence", err)
	}
	if !present {
		return false, nil
	}
	if err := decode(); err != nil {
		return false, err
	}
	return true, nil
}

// DecodeArray decodes an XDR array<T>: a uint32 count followed by that many
// elements, each consumed by decode(i). maxCount guards against a corrupt
// count forcing unbounded iteration.
func DecodeArray(r io.Reader, maxCount uint32, decode func(i int) error) (int, error) {
	count, err := DecodeUint32(r)
	if err != nil {
		return 0, xerr("array count", err)
	}
	if count > maxCount {
		return 0, xerr("array count", fmt.Errorf("%d exceeds maximum %d", count, maxCount))
	}
	for i := 0; i < int(count); i++ {
		if err := decode(i); err != nil {
			return i, err
		}
	}
	return int(count), nil
}

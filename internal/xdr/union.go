package xdr

import (
	"bytes"
	"io"
)

// XdrEncoder is implemented by types that can encode themselves to XDR
// format; in this module rpc.OpaqueAuth does. The NFS v2/v3/v4.1
// operation arguments are encoded by free functions rather than through
// this interface.
type XdrEncoder interface {
	Encode(buf *bytes.Buffer) error
}

// XdrDecoder is implemented by types that can decode themselves from XDR
// format.
type XdrDecoder interface {
	Decode(r io.Reader) error
}

// EncodeUnionDiscriminant writes the uint32 discriminant of an XDR
// discriminated union (RFC 4506 Section 4.15). Alias for WriteUint32 that
// makes union-encoding call sites self-documenting.
func EncodeUnionDiscriminant(buf *bytes.Buffer, disc uint32) error {
	return WriteUint32(buf, disc)
}

// DecodeUnionDiscriminant reads the uint32 discriminant of an XDR
// discriminated union.
func DecodeUnionDiscriminant(r io.Reader) (uint32, error) {
	return DecodeUint32(r)
}

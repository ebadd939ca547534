// Package xdr provides generic XDR (External Data Representation) encoding
// and decoding utilities per RFC 4506.
//
// XDR is the standard data serialization format used by Sun RPC protocols
// including NFS, the portmapper, and the MOUNT protocol. This package
// contains only generic utilities with no dependency on any NFS- or
// RPC-specific types, so it can be shared by the transport, mount, and
// per-version NFS packages unchanged.
//
// Key characteristics of XDR:
//   - Big-endian byte order for all multi-byte integers
//   - 4-byte alignment for all data types
//   - Variable-length data is preceded by a 4-byte length
//   - Strings and opaque data are padded to 4-byte boundaries
//
// Reference: RFC 4506 - XDR: External Data Representation Standard
// https://tools.ietf.org/html/rfc4506
package xdr

import (
	"bytes"
	"fmt"
)

// XdrError reports a failure to encode or decode a value. It always names
// the field or type being processed so a decode failure deep inside a
// COMPOUND reply can still be traced back to the operation that produced it.
type XdrError struct {
	Op  string // what was being encoded/decoded, e.g. "opaque length", "union discriminant"
	Err error
}

func (e *XdrError) Error() string {
	return fmt.Sprintf("xdr: %s: %v", e.Op, e.Err)
}

func (e *XdrError) Unwrap() error { return e.Err }

func xerr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &XdrError{Op: op, Err: err}
}

// Encoder accumulates XDR-encoded values into a growable buffer. The write
// index (Len) is always a multiple of four once a call returns successfully;
// every Write* method pads its own variable-length output.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder ready to accept values.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded wire representation accumulated so far.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

// Len returns the number of bytes encoded so far; always a multiple of 4.
func (e *Encoder) Len() int { return e.buf.Len() }

// Buffer exposes the underlying buffer for types that implement their own
// Encode(*bytes.Buffer) method (matches the XdrEncoder interface in union.go).
func (e *Encoder) Buffer() *bytes.Buffer { return &e.buf }

package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFragmentSize guards a corrupt or hostile length prefix from forcing an
// unbounded allocation while reassembling a record-marked TCP stream.
const maxFragmentSize = 1 << 20 // 1 MiB

const lastFragmentBit = 0x80000000

// putFragmentHeader writes a 4-byte record-marking header: the high bit is
// the last-fragment flag, the low 31 bits are the fragment length.
func putFragmentHeader(b []byte, length uint32, last bool) {
	header := length & 0x7FFFFFFF
	if last {
		header |= lastFragmentBit
	}
	binary.BigEndian.PutUint32(b, header)
}

// readFragmentHeader reads and parses one 4-byte record-marking header.
func readFragmentHeader(r io.Reader) (last bool, length uint32, err error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, 0, err
	}
	header := binary.BigEndian.Uint32(b[:])
	return header&lastFragmentBit != 0, header & 0x7FFFFFFF, nil
}

// readRecord reassembles a complete RPC message from one or more
// record-marked TCP fragments (RFC 5531 Section 11).
func readRecord(r io.Reader) ([]byte, error) {
	var message []byte
	for {
		last, length, err := readFragmentHeader(r)
		if err != nil {
			return nil, err
		}
		if length > maxFragmentSize {
			return nil, fmt.Errorf("rpc: fragment too large: %d bytes", length)
		}
		fragment := make([]byte, length)
		if _, err := io.ReadFull(r, fragment); err != nil {
			return nil, fmt.Errorf("rpc: read fragment: %w", err)
		}
		message = append(message, fragment...)
		if last {
			return message, nil
		}
	}
}

// writeRecord frames payload as a single record-marked fragment (this
// client never needs to split an outgoing message across fragments; no NFS
// request it builds approaches maxFragmentSize) and writes it to w.
func writeRecord(w io.Writer, payload []byte) error {
	header := make([]byte, 4)
	putFragmentHeader(header, uint32(len(payload)), true)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("rpc: write fragment header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("rpc: write fragment payload: %w", err)
	}
	return nil
}

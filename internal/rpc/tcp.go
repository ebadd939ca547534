package rpc

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
)

// TCPTransport carries RPC messages over a record-marked TCP stream (RFC
// 5531 Section 11). Used for bulk NFS traffic, v3 and v4.1 by preference.
//
// Calls on a single TCPTransport are serialized: NFS clients frequently
// issue dependent operations back to back (e.g. a CREATE followed by a
// WRITE to the handle it returned), and interleaving replies out of order
// on one stream buys nothing since a well-behaved server replies in
// request order anyway. Concurrency is obtained by leasing additional
// connections from the pool, not by pipelining one.
type TCPTransport struct {
	conn net.Conn
	mu   sync.Mutex
}

// DialTCP establishes a new TCP transport to raddr.
func DialTCP(ctx context.Context, raddr string, d Dialer) (*TCPTransport, error) {
	conn, err := dial(ctx, "tcp", raddr, d)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial tcp %s: %w", raddr, err)
	}
	return &TCPTransport{conn: conn}, nil
}

func (t *TCPTransport) Call(ctx context.Context, xid uint32, program, version, procedure uint32, message []byte) (*ReplyHeader, []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetDeadline(deadline)
	} else {
		_ = t.conn.SetDeadline(zeroTime)
	}

	if err := writeRecord(t.conn, message); err != nil {
		if isTimeout(err) {
			return nil, nil, &TimeoutError{Program: program, Version: version, Procedure: procedure}
		}
		return nil, nil, err
	}

	for {
		record, err := readRecord(t.conn)
		if err != nil {
			if isTimeout(err) {
				return nil, nil, &TimeoutError{Program: program, Version: version, Procedure: procedure}
			}
			return nil, nil, fmt.Errorf("rpc: read reply: %w", err)
		}

		r := bytes.NewReader(record)
		reply, err := DecodeReply(r)
		if err != nil {
			return nil, nil, err
		}
		if reply.XID != xid {
			// A stray reply to a call this connection no longer cares
			// about (e.g. a prior call that already timed out on our
			// side). Discard and keep waiting for ours.
			continue
		}

		remaining := make([]byte, r.Len())
		_, _ = r.Read(remaining)
		return reply, remaining, nil
	}
}

func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

func (t *TCPTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

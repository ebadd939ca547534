package rpc

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// defaultRetransmitInterval and defaultMaxRetransmits bound UDP retry
// behavior when the caller's context carries a deadline but no explicit
// per-attempt pacing. Portmapper and MOUNT calls (the only UDP users here)
// are single round-trips against a local or near network, so a short
// interval with a handful of attempts is enough to ride out a dropped
// datagram without making a genuinely unreachable server feel slow.
const (
	defaultRetransmitInterval = 500 * time.Millisecond
	defaultMaxRetransmits     = 4
)

// UDPTransport carries one RPC message per datagram, retransmitting on
// timeout since UDP offers no delivery guarantee. XIDs disambiguate a
// retransmitted call's reply from a stale reply to an earlier, already
// abandoned call.
type UDPTransport struct {
	conn net.Conn
	mu   sync.Mutex

	RetransmitInterval time.Duration
	MaxRetransmits     int
}

// DialUDP establishes a new UDP transport to raddr.
func DialUDP(ctx context.Context, raddr string, d Dialer) (*UDPTransport, error) {
	conn, err := dial(ctx, "udp", raddr, d)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial udp %s: %w", raddr, err)
	}
	return &UDPTransport{
		conn:               conn,
		RetransmitInterval: defaultRetransmitInterval,
		MaxRetransmits:     defaultMaxRetransmits,
	}, nil
}

func (t *UDPTransport) Call(ctx context.Context, xid uint32, program, version, procedure uint32, message []byte) (*ReplyHeader, []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempts := t.MaxRetransmits
	if attempts < 1 {
		attempts = 1
	}
	interval := t.RetransmitInterval
	if interval <= 0 {
		interval = defaultRetransmitInterval
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, nil, &TimeoutError{Program: program, Version: version, Procedure: procedure}
		default:
		}

		if _, err := t.conn.Write(message); err != nil {
			return nil, nil, fmt.Errorf("rpc: write datagram: %w", err)
		}

		deadline := time.Now().Add(interval)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		_ = t.conn.SetReadDeadline(deadline)

		reply, body, err := t.awaitMatchingReply(xid)
		if err == nil {
			return reply, body, nil
		}
		lastErr = err
		if !isTimeout(err) {
			return nil, nil, err
		}
		// Timed out waiting for this attempt's reply; loop around and
		// retransmit, unless the caller's own deadline has passed.
		if ctxDeadline, ok := ctx.Deadline(); ok && !time.Now().Before(ctxDeadline) {
			break
		}
	}

	_ = lastErr
	return nil, nil, &TimeoutError{Program: program, Version: version, Procedure: procedure}
}

// awaitMatchingReply reads datagrams until one whose XID matches, the
// read deadline expires, or a non-timeout error occurs. Replies to a prior,
// already-abandoned call share the socket and must be discarded rather
// than mistaken for this call's answer.
func (t *UDPTransport) awaitMatchingReply(xid uint32) (*ReplyHeader, []byte, error) {
	buf := make([]byte, 65536)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			return nil, nil, err
		}

		r := bytes.NewReader(buf[:n])
		reply, err := DecodeReply(r)
		if err != nil {
			continue
		}
		if reply.XID != xid {
			continue
		}

		remaining := make([]byte, r.Len())
		_, _ = r.Read(remaining)
		return reply, remaining, nil
	}
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

func (t *UDPTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

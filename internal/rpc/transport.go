package rpc

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Transport sends one RPC call and returns the matching reply's raw result
// bytes (the reader positioned just past the reply header). Per spec, a
// Transport is single-owner: concurrent use is obtained by leasing distinct
// connections from the pool, never by sharing one transport across
// goroutines.
type Transport interface {
	// Call sends a fully-formed call (header + procedure arguments already
	// appended) and returns the decoded reply header plus any result bytes
	// that follow it. ctx governs the per-call deadline; on expiry the
	// transport returns a *TimeoutError and, for UDP, frees the XID.
	Call(ctx context.Context, xid uint32, program, version, procedure uint32, message []byte) (*ReplyHeader, []byte, error)

	// Close releases the underlying socket. Subsequent Call invocations
	// fail.
	Close() error

	// RemoteAddr identifies the peer, for logging and pool fault marking.
	RemoteAddr() string
}

// Dialer configures how a transport establishes its underlying connection.
type Dialer struct {
	// Privileged requests a local port below 1024 be bound before
	// connecting. NFS servers that enforce "secure" mounts require this.
	// Binding may fail with insufficient privileges; that failure is
	// surfaced directly, never retried with a higher port.
	Privileged bool

	// ConnectTimeout bounds the initial handshake. Zero means no timeout.
	ConnectTimeout time.Duration
}

// dialPrivileged binds a local port in [minPrivilegedPort, maxPrivilegedPort]
// before dialing raddr. It tries ports in descending order starting from
// maxPrivilegedPort, matching the convention most NFS clients use, and
// fails outright (no retry at a non-privileged port) if every attempt is
// refused — binding to a privileged port without the necessary OS
// capability is a permissions failure, not a transient one.
const (
	minPrivilegedPort = 1
	maxPrivilegedPort = 1023
)

func dialPrivileged(ctx context.Context, network, raddr string) (net.Conn, error) {
	var lastErr error
	for port := maxPrivilegedPort; port >= minPrivilegedPort; port-- {
		dialer := &net.Dialer{
			LocalAddr: localAddrForPort(network, port),
		}
		conn, err := dialer.DialContext(ctx, network, raddr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("rpc: failed to bind a privileged port in [%d,%d]: %w", minPrivilegedPort, maxPrivilegedPort, lastErr)
}

func localAddrForPort(network string, port int) net.Addr {
	switch network {
	case "udp", "udp4", "udp6":
		return &net.UDPAddr{Port: port}
	default:
		return &net.TCPAddr{Port: port}
	}
}

func dial(ctx context.Context, network, raddr string, d Dialer) (net.Conn, error) {
	if d.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.ConnectTimeout)
		defer cancel()
	}
	if d.Privileged {
		return dialPrivileged(ctx, network, raddr)
	}
	var dialer net.Dialer
	return dialer.DialContext(ctx, network, raddr)
}

// Package portmap implements the portmapper client (RFC 1833 / program
// 100000, version 2): given (program, version, protocol), resolve the port
// a server has registered it on.
package portmap

import (
	"bytes"
	"context"
	"fmt"
	"time"

	xdr2 "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/nfsclient/internal/rpc"
)

// Program and version numbers for the portmapper itself (RFC 1833).
const (
	Program uint32 = 100000
	Version uint32 = 2
)

// Procedure numbers within portmapper version 2.
const (
	ProcGetPort uint32 = 3
)

// Protocol values carried in a mapping, matching the portmapper's own
// IPPROTO_* constants rather than Go's network name strings.
const (
	ProtoTCP uint32 = 6
	ProtoUDP uint32 = 17
)

// DefaultPort is the well-known port the portmapper itself listens on.
const DefaultPort = 111

// getPortArgs is the flat, fixed-shape pmap2_mapping argument structure
// (RFC 1833 Section 4): no nested optionals or unions, so it is encoded
// reflectively via rasky/go-xdr rather than hand-written Encode/Decode
// methods, matching the teacher's own use of that library for equally
// simple fixed requests (e.g. MountRequest).
type getPortArgs struct {
	Program  uint32
	Version  uint32
	Protocol uint32
	Port     uint32
}

// Client resolves (program, version, protocol) triples against a remote
// portmapper over UDP, the transport RFC 1833 implementations expect.
type Client struct {
	transport *rpc.UDPTransport
	xids      *rpc.XIDGenerator
	auth      rpc.OpaqueAuth
}

// Dial connects to the portmapper at host:111.
func Dial(ctx context.Context, host string) (*Client, error) {
	transport, err := rpc.DialUDP(ctx, fmt.Sprintf("%s:%d", host, DefaultPort), rpc.Dialer{})
	if err != nil {
		return nil, fmt.Errorf("portmap: dial %s: %w", host, err)
	}
	return &Client{
		transport: transport,
		xids:      rpc.NewXIDGenerator(),
		auth:      rpc.NullAuth,
	}, nil
}

// Close releases the underlying UDP socket.
func (c *Client) Close() error {
	return c.transport.Close()
}

// GetPort resolves the port registered for (program, version, proto). proto
// is one of ProtoTCP/ProtoUDP. Returns 0 if the server has no such mapping
// registered (not an error per RFC 1833: a zero port is itself the answer).
func (c *Client) GetPort(ctx context.Context, timeout time.Duration, program, version, proto uint32) (uint16, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := getPortArgs{Program: program, Version: version, Protocol: proto, Port: 0}

	var argBuf bytes.Buffer
	if _, err := xdr2.Marshal(&argBuf, &args); err != nil {
		return 0, fmt.Errorf("portmap: encode GETPORT args: %w", err)
	}

	xid := c.xids.Next()
	header := rpc.CallHeader{
		XID:       xid,
		Program:   Program,
		Version:   Version,
		Procedure: ProcGetPort,
		Cred:      c.auth,
		Verf:      rpc.NullAuth,
	}
	callBuf, err := rpc.EncodeCall(header)
	if err != nil {
		return 0, fmt.Errorf("portmap: encode call header: %w", err)
	}
	callBuf.Write(argBuf.Bytes())

	reply, body, err := c.transport.Call(ctx, xid, Program, Version, ProcGetPort, callBuf.Bytes())
	if err != nil {
		return 0, err
	}
	if err := reply.AsError(); err != nil {
		return 0, fmt.Errorf("portmap: GETPORT rejected: %w", err)
	}

	var port uint32
	if _, err := xdr2.Unmarshal(bytes.NewReader(body), &port); err != nil {
		return 0, fmt.Errorf("portmap: decode GETPORT result: %w", err)
	}
	return uint16(port), nil
}

// Package mount implements the MOUNT protocol client (RFC 1813 Appendix I
// for v3; the wire-compatible v1 procedures for NFSv2), used once per
// connection to exchange an export path for a root file handle.
package mount

import (
	"bytes"
	"context"
	"fmt"

	xdr2 "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/nfsclient/internal/rpc"
	"github.com/marmos91/nfsclient/internal/xdr"
)

// Program is the MOUNT protocol's RPC program number.
const Program uint32 = 100005

// Version selects the MOUNT protocol dialect: V1 accompanies NFSv2, V3
// accompanies NFSv3. Both speak the same procedure numbers below; only the
// returned file handle's opaque length differs (32 bytes fixed for v1, up
// to 64 bytes variable for v3).
const (
	V1 uint32 = 1
	V3 uint32 = 3
)

// Procedure numbers (stable across V1/V3).
const (
	ProcNull    uint32 = 0
	ProcMnt     uint32 = 1
	ProcDump    uint32 = 2
	ProcUmnt    uint32 = 3
	ProcUmntAll uint32 = 4
	ProcExport  uint32 = 5
)

// Status is the MOUNT procedure's fhstatus3/fhstatus status code.
type Status uint32

// RFC 1813 Appendix I status codes (shared by the v1 and v3 dialects).
const (
	StatusOK           Status = 0
	StatusErrPerm      Status = 1
	StatusErrNoEnt     Status = 2
	StatusErrIO        Status = 5
	StatusErrAccess    Status = 13
	StatusErrNotDir    Status = 20
	StatusErrInval     Status = 22
	StatusErrNameTooLg Status = 63
	StatusErrNotSupp   Status = 10004
	StatusErrServFault Status = 10006
)

func (s Status) OK() bool { return s == StatusOK }

func (s Status) Error() string {
	return fmt.Sprintf("mount: status %d", uint32(s))
}

// maxExportEntries bounds the EXPORT reply's linked list walk so a
// misbehaving or hostile server cannot force unbounded iteration; no real
// export table approaches this size.
const maxExportEntries = 4096

// maxGroupEntries bounds each export's group list walk for the same reason.
const maxGroupEntries = 1024

// Export is one entry from the EXPORT procedure's reply: an exported
// directory path and the client groups permitted to mount it.
type Export struct {
	DirPath string
	Groups  []string
}

// Client issues MOUNT protocol calls over a single transport, typically UDP
// (the protocol's traditional transport) though TCP works identically.
type Client struct {
	transport rpc.Transport
	xids      *rpc.XIDGenerator
	version   uint32
	auth      rpc.OpaqueAuth
}

// New wraps an already-connected transport as a MOUNT client.
func New(transport rpc.Transport, version uint32, auth rpc.OpaqueAuth) *Client {
	return &Client{
		transport: transport,
		xids:      rpc.NewXIDGenerator(),
		version:   version,
		auth:      auth,
	}
}

func (c *Client) call(ctx context.Context, procedure uint32, args func(buf *bytes.Buffer) error) ([]byte, error) {
	xid := c.xids.Next()
	header := rpc.CallHeader{
		XID:       xid,
		Program:   Program,
		Version:   c.version,
		Procedure: procedure,
		Cred:      c.auth,
		Verf:      rpc.NullAuth,
	}
	buf, err := rpc.EncodeCall(header)
	if err != nil {
		return nil, fmt.Errorf("mount: encode call header: %w", err)
	}
	if args != nil {
		if err := args(buf); err != nil {
			return nil, fmt.Errorf("mount: encode arguments: %w", err)
		}
	}

	reply, body, err := c.transport.Call(ctx, xid, Program, c.version, procedure, buf.Bytes())
	if err != nil {
		return nil, err
	}
	if err := reply.AsError(); err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	return body, nil
}

// dirPathArgs is the flat dirpath argument shared by MNT and UMNT; fixed
// shape, decoded reflectively like the teacher's own MountRequest.
type dirPathArgs struct {
	DirPath string
}

// Result is the successful outcome of Mnt: a root file handle and the
// authentication flavors the server will accept for operations against it.
type Result struct {
	RootHandle  []byte
	AuthFlavors []int32
}

// Mnt issues the MNT procedure, exchanging an export path for a root file
// handle (RFC 1813 Appendix I).
func (c *Client) Mnt(ctx context.Context, dirPath string) (*Result, error) {
	body, err := c.call(ctx, ProcMnt, func(buf *bytes.Buffer) error {
		_, err := xdr2.Marshal(buf, &dirPathArgs{DirPath: dirPath})
		return err
	})
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(body)
	status, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("mount: decode status: %w", err)
	}
	if Status(status) != StatusOK {
		return nil, Status(status)
	}

	var handle []byte
	if c.version == V1 {
		handle, err = xdr.DecodeOpaqueFixed(r, 32)
	} else {
		handle, err = xdr.DecodeOpaque(r)
	}
	if err != nil {
		return nil, fmt.Errorf("mount: decode file handle: %w", err)
	}

	var flavors []int32
	if _, err := xdr.DecodeArray(r, maxGroupEntries, func(i int) error {
		v, err := xdr.DecodeInt32(r)
		if err != nil {
			return err
		}
		flavors = append(flavors, v)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("mount: decode auth flavors: %w", err)
	}

	return &Result{RootHandle: handle, AuthFlavors: flavors}, nil
}

// Umnt issues the UMNT procedure. Per RFC 1813 it always succeeds at the
// protocol level (no status is returned); a transport or rejection error is
// still possible and is returned unchanged.
func (c *Client) Umnt(ctx context.Context, dirPath string) error {
	_, err := c.call(ctx, ProcUmnt, func(buf *bytes.Buffer) error {
		_, err := xdr2.Marshal(buf, &dirPathArgs{DirPath: dirPath})
		return err
	})
	return err
}

// Export lists the exported directories and their permitted groups (RFC
// 1813 Appendix I EXPORT procedure). The wire reply is a linked optional
// list (each node optionally points at the next); this walks it with
// bounded iteration into a slice rather than recursing, so a cyclical or
// arbitrarily long server-supplied list cannot exhaust the call stack.
func (c *Client) Export(ctx context.Context) ([]Export, error) {
	body, err := c.call(ctx, ProcExport, nil)
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(body)
	var exports []Export

	for i := 0; i < maxExportEntries; i++ {
		present, err := xdr.DecodeBool(r)
		if err != nil {
			return nil, fmt.Errorf("mount: decode export list presence: %w", err)
		}
		if !present {
			return exports, nil
		}

		dirPath, err := xdr.DecodeString(r)
		if err != nil {
			return nil, fmt.Errorf("mount: decode export dirpath: %w", err)
		}

		var groups []string
		for j := 0; j < maxGroupEntries; j++ {
			groupPresent, err := xdr.DecodeBool(r)
			if err != nil {
				return nil, fmt.Errorf("mount: decode group list presence: %w", err)
			}
			if !groupPresent {
				break
			}
			group, err := xdr.DecodeString(r)
			if err != nil {
				return nil, fmt.Errorf("mount: decode group name: %w", err)
			}
			groups = append(groups, group)
		}

		exports = append(exports, Export{DirPath: dirPath, Groups: groups})
	}

	return nil, fmt.Errorf("mount: export list exceeds %d entries", maxExportEntries)
}

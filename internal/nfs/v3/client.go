package v3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/rpc"
	"github.com/marmos91/nfsclient/internal/xdr"
)

// Client issues NFSv3 operations over an already-connected transport. One
// Client exists per mounted export; the engine above it (pkg/client) owns
// path resolution and retry policy, this layer only encodes/decodes.
type Client struct {
	transport rpc.Transport
	xids      *rpc.XIDGenerator
	auth      rpc.OpaqueAuth
}

// New wraps a transport as an NFSv3 client. auth is re-sent unmodified with
// every call (typically an AUTH_SYS credential).
func New(transport rpc.Transport, auth rpc.OpaqueAuth) *Client {
	return &Client{transport: transport, xids: rpc.NewXIDGenerator(), auth: auth}
}

// call encodes the call header plus args, issues the RPC, and hands the
// caller the reply body to decode. status is read by each caller after a
// successful transport round trip since the NFS status is itself part of
// the (always RPC-successful) reply body, not an RPC-level rejection.
func (c *Client) call(ctx context.Context, procedure uint32, encodeArgs func(buf *bytes.Buffer) error) ([]byte, error) {
	xid := c.xids.Next()
	header := rpc.CallHeader{
		XID:       xid,
		Program:   Program,
		Version:   Version,
		Procedure: procedure,
		Cred:      c.auth,
		Verf:      rpc.NullAuth,
	}
	buf, err := rpc.EncodeCall(header)
	if err != nil {
		return nil, fmt.Errorf("nfsv3: encode call header: %w", err)
	}
	if encodeArgs != nil {
		if err := encodeArgs(buf); err != nil {
			return nil, fmt.Errorf("nfsv3: encode arguments: %w", err)
		}
	}

	reply, body, err := c.transport.Call(ctx, xid, Program, Version, procedure, buf.Bytes())
	if err != nil {
		return nil, err
	}
	if err := reply.AsError(); err != nil {
		return nil, fmt.Errorf("nfsv3: %w", err)
	}
	return body, nil
}

// readStatus decodes the leading nfsstat3 every v3 reply starts with.
func readStatus(r io.Reader) (nfs.Status, error) {
	v, err := xdr.DecodeUint32(r)
	if err != nil {
		return 0, fmt.Errorf("nfsv3: decode status: %w", err)
	}
	return nfs.Status(v), nil
}

// GetAttr issues GETATTR (RFC 1813 Section 3.3.1).
func (c *Client) GetAttr(ctx context.Context, handle []byte) (*nfs.FileAttributes, error) {
	body, err := c.call(ctx, ProcGetAttr, func(buf *bytes.Buffer) error {
		return nfs.EncodeHandle(buf, handle)
	})
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return nil, status
	}
	return nfs.DecodeFileAttributes(r)
}

// SetAttrResult carries SETATTR's weak cache consistency data.
type SetAttrResult struct {
	Wcc nfs.WccData
}

// SetAttr issues SETATTR (RFC 1813 Section 3.3.2).
func (c *Client) SetAttr(ctx context.Context, handle []byte, attrs SetAttrs, guard TimeGuard) (*SetAttrResult, error) {
	body, err := c.call(ctx, ProcSetAttr, func(buf *bytes.Buffer) error {
		if err := nfs.EncodeHandle(buf, handle); err != nil {
			return err
		}
		if err := encodeSetAttrs(buf, attrs); err != nil {
			return err
		}
		return xdr.WriteOptional(buf, guard.Check, func() error {
			return nfs.EncodeTimeVal(buf, guard.Ctime)
		})
	})
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	wcc, err := nfs.DecodeWccData(r)
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return &SetAttrResult{Wcc: wcc}, status
	}
	return &SetAttrResult{Wcc: wcc}, nil
}

func encodeSetAttrs(buf *bytes.Buffer, a SetAttrs) error {
	if err := xdr.WriteOptional(buf, a.SetMode, func() error { return xdr.WriteUint32(buf, a.Mode) }); err != nil {
		return err
	}
	if err := xdr.WriteOptional(buf, a.SetUID, func() error { return xdr.WriteUint32(buf, a.UID) }); err != nil {
		return err
	}
	if err := xdr.WriteOptional(buf, a.SetGID, func() error { return xdr.WriteUint32(buf, a.GID) }); err != nil {
		return err
	}
	if err := xdr.WriteOptional(buf, a.SetSize, func() error { return xdr.WriteUint64(buf, a.Size) }); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, a.SetAtime); err != nil {
		return err
	}
	if a.SetAtime == SetToClient {
		if err := nfs.EncodeTimeVal(buf, a.Atime); err != nil {
			return err
		}
	}
	if err := xdr.WriteUint32(buf, a.SetMtime); err != nil {
		return err
	}
	if a.SetMtime == SetToClient {
		if err := nfs.EncodeTimeVal(buf, a.Mtime); err != nil {
			return err
		}
	}
	return nil
}

// LookupResult is the successful outcome of Lookup.
type LookupResult struct {
	Handle   []byte
	Attr     *nfs.FileAttributes
	DirAttr  *nfs.FileAttributes
}

// Lookup issues LOOKUP (RFC 1813 Section 3.3.3): resolves name within the
// directory identified by dirHandle.
func (c *Client) Lookup(ctx context.Context, dirHandle []byte, name string) (*LookupResult, error) {
	body, err := c.call(ctx, ProcLookup, func(buf *bytes.Buffer) error {
		if err := nfs.EncodeHandle(buf, dirHandle); err != nil {
			return err
		}
		return xdr.WriteXDRString(buf, name)
	})
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	if status.OK() {
		handle, err := nfs.DecodeHandle(r)
		if err != nil {
			return nil, err
		}
		attr, err := nfs.DecodeOptionalAttributes(r)
		if err != nil {
			return nil, err
		}
		dirAttr, err := nfs.DecodeOptionalAttributes(r)
		if err != nil {
			return nil, err
		}
		return &LookupResult{Handle: handle, Attr: attr, DirAttr: dirAttr}, nil
	}
	// Failure case still carries the directory's post-op attributes.
	dirAttr, err := nfs.DecodeOptionalAttributes(r)
	if err != nil {
		return nil, err
	}
	return &LookupResult{DirAttr: dirAttr}, status
}

// Access issues ACCESS (RFC 1813 Section 3.3.4): asks the server which of
// the requested bits the caller actually has, since permission bits alone
// don't capture exports, ACLs, or quota state.
func (c *Client) Access(ctx context.Context, handle []byte, requested uint32) (granted uint32, attr *nfs.FileAttributes, err error) {
	body, err := c.call(ctx, ProcAccess, func(buf *bytes.Buffer) error {
		if err := nfs.EncodeHandle(buf, handle); err != nil {
			return err
		}
		return xdr.WriteUint32(buf, requested)
	})
	if err != nil {
		return 0, nil, err
	}
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return 0, nil, err
	}
	attr, err = nfs.DecodeOptionalAttributes(r)
	if err != nil {
		return 0, nil, err
	}
	if !status.OK() {
		return 0, attr, status
	}
	granted, err = xdr.DecodeUint32(r)
	if err != nil {
		return 0, attr, err
	}
	return granted, attr, nil
}

// ReadLink issues READLINK (RFC 1813 Section 3.3.5).
func (c *Client) ReadLink(ctx context.Context, handle []byte) (target string, attr *nfs.FileAttributes, err error) {
	body, err := c.call(ctx, ProcReadLink, func(buf *bytes.Buffer) error {
		return nfs.EncodeHandle(buf, handle)
	})
	if err != nil {
		return "", nil, err
	}
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return "", nil, err
	}
	attr, err = nfs.DecodeOptionalAttributes(r)
	if err != nil {
		return "", nil, err
	}
	if !status.OK() {
		return "", attr, status
	}
	target, err = xdr.DecodeString(r)
	if err != nil {
		return "", attr, err
	}
	return target, attr, nil
}

package v2

import (
	"bytes"
	"context"
	"fmt"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/rpc"
	"github.com/marmos91/nfsclient/internal/xdr"
)

// maxReaddirEntries bounds a single READDIR reply's linked-list walk, the
// same defense the mount and v3 engines apply to their own linked-list
// replies.
const maxReaddirEntries = 8192

// Client issues NFSv2 operations over an already-connected transport.
type Client struct {
	transport rpc.Transport
	xids      *rpc.XIDGenerator
	auth      rpc.OpaqueAuth
}

// New wraps a transport as an NFSv2 client.
func New(transport rpc.Transport, auth rpc.OpaqueAuth) *Client {
	return &Client{transport: transport, xids: rpc.NewXIDGenerator(), auth: auth}
}

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
		return nil, fmt.Errorf("nfsv2: encode call header: %w", err)
	}
	if encodeArgs != nil {
		if err := encodeArgs(buf); err != nil {
			return nil, fmt.Errorf("nfsv2: encode arguments: %w", err)
		}
	}
	reply, body, err := c.transport.Call(ctx, xid, Program, Version, procedure, buf.Bytes())
	if err != nil {
		return nil, err
	}
	if err := reply.AsError(); err != nil {
		return nil, fmt.Errorf("nfsv2: %w", err)
	}
	return body, nil
}

func readStatus(r *bytes.Reader) (nfs.Status, error) {
	v, err := xdr.DecodeUint32(r)
	if err != nil {
		return 0, fmt.Errorf("nfsv2: decode status: %w", err)
	}
	return nfs.Status(v), nil
}

func encodeDirOp(buf *bytes.Buffer, dirHandle []byte, name string) error {
	if err := encodeHandle(buf, dirHandle); err != nil {
		return err
	}
	return xdr.WriteXDRString(buf, name)
}

// GetAttr issues GETATTR (RFC 1094 Section 2.2).
func (c *Client) GetAttr(ctx context.Context, handle []byte) (*nfs.FileAttributes, error) {
	body, err := c.call(ctx, ProcGetAttr, func(buf *bytes.Buffer) error {
		return encodeHandle(buf, handle)
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
	return decodeFattr(r)
}

// SetAttr issues SETATTR.
func (c *Client) SetAttr(ctx context.Context, handle []byte, attrs SetAttrs) (*nfs.FileAttributes, error) {
	body, err := c.call(ctx, ProcSetAttr, func(buf *bytes.Buffer) error {
		if err := encodeHandle(buf, handle); err != nil {
			return err
		}
		return encodeSetAttrs(buf, attrs)
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
	return decodeFattr(r)
}

// LookupResult is the successful outcome of Lookup.
type LookupResult struct {
	Handle []byte
	Attr   *nfs.FileAttributes
}

// Lookup issues LOOKUP.
func (c *Client) Lookup(ctx context.Context, dirHandle []byte, name string) (*LookupResult, error) {
	body, err := c.call(ctx, ProcLookup, func(buf *bytes.Buffer) error {
		return encodeDirOp(buf, dirHandle, name)
	})
	if err != nil {
		return nil, err
	}
	return decodeDirOpResult(body)
}

func decodeDirOpResult(body []byte) (*LookupResult, error) {
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return nil, status
	}
	handle, err := decodeHandle(r)
	if err != nil {
		return nil, err
	}
	attr, err := decodeFattr(r)
	if err != nil {
		return nil, err
	}
	return &LookupResult{Handle: handle, Attr: attr}, nil
}

// ReadLink issues READLINK.
func (c *Client) ReadLink(ctx context.Context, handle []byte) (string, error) {
	body, err := c.call(ctx, ProcReadLink, func(buf *bytes.Buffer) error {
		return encodeHandle(buf, handle)
	})
	if err != nil {
		return "", err
	}
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return "", err
	}
	if !status.OK() {
		return "", status
	}
	return xdr.DecodeString(r)
}

// ReadResult is the successful outcome of Read.
type ReadResult struct {
	Attr *nfs.FileAttributes
	Data []byte
}

// Read issues READ. count is capped by v3.BlockSizeV2/MaxDataLen by the
// caller; NFSv2 carries no Eof flag, the caller infers end of file from a
// short read against the attributes' reported Size.
func (c *Client) Read(ctx context.Context, handle []byte, offset, count uint32) (*ReadResult, error) {
	body, err := c.call(ctx, ProcRead, func(buf *bytes.Buffer) error {
		if err := encodeHandle(buf, handle); err != nil {
			return err
		}
		if err := xdr.WriteUint32(buf, offset); err != nil {
			return err
		}
		if err := xdr.WriteUint32(buf, count); err != nil {
			return err
		}
		return xdr.WriteUint32(buf, 0) // totalcount: unused, RFC 1094 Section 2.2
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
	attr, err := decodeFattr(r)
	if err != nil {
		return nil, err
	}
	data, err := xdr.DecodeOpaque(r)
	if err != nil {
		return nil, err
	}
	return &ReadResult{Attr: attr, Data: data}, nil
}

// Write issues WRITE.
func (c *Client) Write(ctx context.Context, handle []byte, offset uint32, data []byte) (*nfs.FileAttributes, error) {
	body, err := c.call(ctx, ProcWrite, func(buf *bytes.Buffer) error {
		if err := encodeHandle(buf, handle); err != nil {
			return err
		}
		if err := xdr.WriteUint32(buf, 0); err != nil { // beginoffset: unused
			return err
		}
		if err := xdr.WriteUint32(buf, offset); err != nil {
			return err
		}
		if err := xdr.WriteUint32(buf, 0); err != nil { // totalcount: unused
			return err
		}
		return xdr.WriteXDROpaque(buf, data)
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
	return decodeFattr(r)
}

// Create issues CREATE.
func (c *Client) Create(ctx context.Context, dirHandle []byte, name string, attrs SetAttrs) (*LookupResult, error) {
	body, err := c.call(ctx, ProcCreate, func(buf *bytes.Buffer) error {
		if err := encodeDirOp(buf, dirHandle, name); err != nil {
			return err
		}
		return encodeSetAttrs(buf, attrs)
	})
	if err != nil {
		return nil, err
	}
	return decodeDirOpResult(body)
}

// Mkdir issues MKDIR.
func (c *Client) Mkdir(ctx context.Context, dirHandle []byte, name string, attrs SetAttrs) (*LookupResult, error) {
	body, err := c.call(ctx, ProcMkdir, func(buf *bytes.Buffer) error {
		if err := encodeDirOp(buf, dirHandle, name); err != nil {
			return err
		}
		return encodeSetAttrs(buf, attrs)
	})
	if err != nil {
		return nil, err
	}
	return decodeDirOpResult(body)
}

// Symlink issues SYMLINK. Unlike CREATE/MKDIR this procedure's reply is
// plain nfsstat with no handle (RFC 1094 Section 2.2): servers of the era
// had no way to hand back a handle for a link target they had not yet
// resolved.
func (c *Client) Symlink(ctx context.Context, dirHandle []byte, name string, target string, attrs SetAttrs) error {
	body, err := c.call(ctx, ProcSymlink, func(buf *bytes.Buffer) error {
		if err := encodeDirOp(buf, dirHandle, name); err != nil {
			return err
		}
		if err := xdr.WriteXDRString(buf, target); err != nil {
			return err
		}
		return encodeSetAttrs(buf, attrs)
	})
	if err != nil {
		return err
	}
	return decodeStatusOnly(body)
}

func decodeStatusOnly(body []byte) error {
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return err
	}
	if !status.OK() {
		return status
	}
	return nil
}

// Remove issues REMOVE.
func (c *Client) Remove(ctx context.Context, dirHandle []byte, name string) error {
	body, err := c.call(ctx, ProcRemove, func(buf *bytes.Buffer) error {
		return encodeDirOp(buf, dirHandle, name)
	})
	if err != nil {
		return err
	}
	return decodeStatusOnly(body)
}

// Rmdir issues RMDIR.
func (c *Client) Rmdir(ctx context.Context, dirHandle []byte, name string) error {
	body, err := c.call(ctx, ProcRmdir, func(buf *bytes.Buffer) error {
		return encodeDirOp(buf, dirHandle, name)
	})
	if err != nil {
		return err
	}
	return decodeStatusOnly(body)
}

// Rename issues RENAME.
func (c *Client) Rename(ctx context.Context, fromDir []byte, fromName string, toDir []byte, toName string) error {
	body, err := c.call(ctx, ProcRename, func(buf *bytes.Buffer) error {
		if err := encodeDirOp(buf, fromDir, fromName); err != nil {
			return err
		}
		return encodeDirOp(buf, toDir, toName)
	})
	if err != nil {
		return err
	}
	return decodeStatusOnly(body)
}

// Link issues LINK: creates a hard link named name inside linkDir,
// pointing at the existing object handle.
func (c *Client) Link(ctx context.Context, handle []byte, linkDir []byte, name string) error {
	body, err := c.call(ctx, ProcLink, func(buf *bytes.Buffer) error {
		if err := encodeHandle(buf, handle); err != nil {
			return err
		}
		return encodeDirOp(buf, linkDir, name)
	})
	if err != nil {
		return err
	}
	return decodeStatusOnly(body)
}

// ReadDirResult is the outcome of ReadDir.
type ReadDirResult struct {
	Entries []Entry
	Eof     bool
}

// ReadDir issues READDIR. cookie is the opaque 4-byte cookie from the last
// entry of the previous page, or the zero value to start from the
// beginning. The wire reply is a bounded-walk linked list, mirroring the
// defense applied to the mount EXPORT list and the v3 READDIR reply.
func (c *Client) ReadDir(ctx context.Context, dirHandle []byte, cookie [CookieLen]byte, count uint32) (*ReadDirResult, error) {
	body, err := c.call(ctx, ProcReadDir, func(buf *bytes.Buffer) error {
		if err := encodeHandle(buf, dirHandle); err != nil {
			return err
		}
		if err := xdr.WriteXDROpaqueFixed(buf, cookie[:]); err != nil {
			return err
		}
		return xdr.WriteUint32(buf, count)
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

	var entries []Entry
	for i := 0; i < maxReaddirEntries; i++ {
		present, err := xdr.DecodeBool(r)
		if err != nil {
			return nil, fmt.Errorf("nfsv2: decode readdir entry presence: %w", err)
		}
		if !present {
			break
		}
		fileID, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		name, err := xdr.DecodeString(r)
		if err != nil {
			return nil, err
		}
		cookieBytes, err := xdr.DecodeOpaqueFixed(r, CookieLen)
		if err != nil {
			return nil, err
		}
		var entryCookie [CookieLen]byte
		copy(entryCookie[:], cookieBytes)
		entries = append(entries, Entry{FileID: uint64(fileID), Name: name, Cookie: entryCookie})
		if i == maxReaddirEntries-1 {
			return nil, fmt.Errorf("nfsv2: readdir page exceeds %d entries", maxReaddirEntries)
		}
	}

	eof, err := xdr.DecodeBool(r)
	if err != nil {
		return nil, err
	}
	return &ReadDirResult{Entries: entries, Eof: eof}, nil
}

// StatFSResult is the outcome of StatFS.
type StatFSResult struct {
	TransferSize uint32
	BlockSize    uint32
	Blocks       uint32
	FreeBlocks   uint32
	AvailBlocks  uint32
}

// StatFS issues STATFS (RFC 1094 Section 2.2): filesystem capacity,
// analogous to NFSv3's FSSTAT.
func (c *Client) StatFS(ctx context.Context, handle []byte) (*StatFSResult, error) {
	body, err := c.call(ctx, ProcStatFS, func(buf *bytes.Buffer) error {
		return encodeHandle(buf, handle)
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
	result := &StatFSResult{}
	for _, field := range []*uint32{
		&result.TransferSize, &result.BlockSize, &result.Blocks,
		&result.FreeBlocks, &result.AvailBlocks,
	} {
		v, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		*field = v
	}
	return result, nil
}

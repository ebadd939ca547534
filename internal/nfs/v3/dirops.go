package v3

import (
	"bytes"
	"context"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/xdr"
)

// MutateResult bundles the new object's handle and attributes with the
// parent directory's weak cache consistency data, the shape CREATE,
// MKDIR, and SYMLINK all share.
type MutateResult struct {
	Handle   []byte
	Attr     *nfs.FileAttributes
	ParentWcc nfs.WccData
}

func encodeDirOp(buf *bytes.Buffer, dirHandle []byte, name string) error {
	if err := nfs.EncodeHandle(buf, dirHandle); err != nil {
		return err
	}
	return xdr.WriteXDRString(buf, name)
}

func decodePostOpFh(r *bytes.Reader) ([]byte, error) {
	var handle []byte
	_, err := xdr.DecodeOptional(r, func() error {
		h, err := nfs.DecodeHandle(r)
		if err != nil {
			return err
		}
		handle = h
		return nil
	})
	return handle, err
}

// CreateVerifier is the 8-byte client-chosen cookie used with
// CreateExclusive so a retried CREATE after a lost reply can be recognized
// as the same request rather than rejected as a duplicate (RFC 1813
// Section 3.3.8).
type CreateVerifier [8]byte

// Create issues CREATE. mode selects CreateUnchecked/CreateGuarded (attrs
// supplies the initial attributes) or CreateExclusive (verifier supplies
// the dedup cookie and attrs is ignored).
func (c *Client) Create(ctx context.Context, dirHandle []byte, name string, mode uint32, attrs SetAttrs, verifier CreateVerifier) (*MutateResult, error) {
	body, err := c.call(ctx, ProcCreate, func(buf *bytes.Buffer) error {
		if err := encodeDirOp(buf, dirHandle, name); err != nil {
			return err
		}
		if err := xdr.WriteUint32(buf, mode); err != nil {
			return err
		}
		if mode == CreateExclusive {
			return xdr.WriteXDROpaqueFixed(buf, verifier[:])
		}
		return encodeSetAttrs(buf, attrs)
	})
	if err != nil {
		return nil, err
	}
	return decodeMutateReply(body)
}

// Mkdir issues MKDIR (RFC 1813 Section 3.3.9).
func (c *Client) Mkdir(ctx context.Context, dirHandle []byte, name string, attrs SetAttrs) (*MutateResult, error) {
	body, err := c.call(ctx, ProcMkdir, func(buf *bytes.Buffer) error {
		if err := encodeDirOp(buf, dirHandle, name); err != nil {
			return err
		}
		return encodeSetAttrs(buf, attrs)
	})
	if err != nil {
		return nil, err
	}
	return decodeMutateReply(body)
}

// Symlink issues SYMLINK (RFC 1813 Section 3.3.10): creates name within
// dirHandle as a symbolic link pointing at target.
func (c *Client) Symlink(ctx context.Context, dirHandle []byte, name string, attrs SetAttrs, target string) (*MutateResult, error) {
	body, err := c.call(ctx, ProcSymlink, func(buf *bytes.Buffer) error {
		if err := encodeDirOp(buf, dirHandle, name); err != nil {
			return err
		}
		if err := encodeSetAttrs(buf, attrs); err != nil {
			return err
		}
		return xdr.WriteXDRString(buf, target)
	})
	if err != nil {
		return nil, err
	}
	return decodeMutateReply(body)
}

func decodeMutateReply(body []byte) (*MutateResult, error) {
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	if status.OK() {
		handle, err := decodePostOpFh(r)
		if err != nil {
			return nil, err
		}
		attr, err := nfs.DecodeOptionalAttributes(r)
		if err != nil {
			return nil, err
		}
		wcc, err := nfs.DecodeWccData(r)
		if err != nil {
			return nil, err
		}
		return &MutateResult{Handle: handle, Attr: attr, ParentWcc: wcc}, nil
	}
	wcc, err := nfs.DecodeWccData(r)
	if err != nil {
		return nil, err
	}
	return &MutateResult{ParentWcc: wcc}, status
}

// Remove issues REMOVE (RFC 1813 Section 3.3.12): unlinks a non-directory
// entry.
func (c *Client) Remove(ctx context.Context, dirHandle []byte, name string) (nfs.WccData, error) {
	body, err := c.call(ctx, ProcRemove, func(buf *bytes.Buffer) error {
		return encodeDirOp(buf, dirHandle, name)
	})
	if err != nil {
		return nfs.WccData{}, err
	}
	return decodeWccOnlyReply(body)
}

// Rmdir issues RMDIR (RFC 1813 Section 3.3.13): removes an empty directory
// entry. Grounded directly on RFC 1813 (the teacher's retrieval pack did
// not include an rmdir handler file); the wire shape mirrors Remove's
// diropargs3-in, wcc_data-out exactly.
func (c *Client) Rmdir(ctx context.Context, dirHandle []byte, name string) (nfs.WccData, error) {
	body, err := c.call(ctx, ProcRmdir, func(buf *bytes.Buffer) error {
		return encodeDirOp(buf, dirHandle, name)
	})
	if err != nil {
		return nfs.WccData{}, err
	}
	return decodeWccOnlyReply(body)
}

func decodeWccOnlyReply(body []byte) (nfs.WccData, error) {
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return nfs.WccData{}, err
	}
	wcc, err := nfs.DecodeWccData(r)
	if err != nil {
		return nfs.WccData{}, err
	}
	if !status.OK() {
		return wcc, status
	}
	return wcc, nil
}

// RenameResult carries both directories' weak cache consistency data.
type RenameResult struct {
	FromWcc nfs.WccData
	ToWcc   nfs.WccData
}

// Rename issues RENAME (RFC 1813 Section 3.3.14).
func (c *Client) Rename(ctx context.Context, fromDir []byte, fromName string, toDir []byte, toName string) (*RenameResult, error) {
	body, err := c.call(ctx, ProcRename, func(buf *bytes.Buffer) error {
		if err := encodeDirOp(buf, fromDir, fromName); err != nil {
			return err
		}
		return encodeDirOp(buf, toDir, toName)
	})
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	fromWcc, err := nfs.DecodeWccData(r)
	if err != nil {
		return nil, err
	}
	toWcc, err := nfs.DecodeWccData(r)
	if err != nil {
		return nil, err
	}
	result := &RenameResult{FromWcc: fromWcc, ToWcc: toWcc}
	if !status.OK() {
		return result, status
	}
	return result, nil
}

// LinkResult carries the target file's attributes and the link directory's
// weak cache consistency data.
type LinkResult struct {
	Attr      *nfs.FileAttributes
	LinkDirWcc nfs.WccData
}

// Link issues LINK (RFC 1813 Section 3.3.15): creates a hard link named
// name inside linkDir, pointing at the existing object handle. Grounded
// directly on RFC 1813 (no link.go handler file was present in the
// retrieval pack); the argument shape is the existing-handle-plus-diropargs3
// pattern every other NFSv3 handler in the pack follows.
func (c *Client) Link(ctx context.Context, handle []byte, linkDir []byte, name string) (*LinkResult, error) {
	body, err := c.call(ctx, ProcLink, func(buf *bytes.Buffer) error {
		if err := nfs.EncodeHandle(buf, handle); err != nil {
			return err
		}
		return encodeDirOp(buf, linkDir, name)
	})
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	attr, err := nfs.DecodeOptionalAttributes(r)
	if err != nil {
		return nil, err
	}
	wcc, err := nfs.DecodeWccData(r)
	if err != nil {
		return nil, err
	}
	result := &LinkResult{Attr: attr, LinkDirWcc: wcc}
	if !status.OK() {
		return result, status
	}
	return result, nil
}

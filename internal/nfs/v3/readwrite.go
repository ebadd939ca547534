package v3

import (
	"bytes"
	"context"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/xdr"
)

// ReadResult is the successful outcome of Read.
type ReadResult struct {
	Attr *nfs.FileAttributes
	Data []byte
	Eof  bool
}

// Read issues READ (RFC 1813 Section 3.3.6). count is capped by the
// engine's negotiated block size; the server may still return fewer bytes
// than requested without that meaning Eof.
func (c *Client) Read(ctx context.Context, handle []byte, offset uint64, count uint32) (*ReadResult, error) {
	body, err := c.call(ctx, ProcRead, func(buf *bytes.Buffer) error {
		if err := nfs.EncodeHandle(buf, handle); err != nil {
			return err
		}
		if err := xdr.WriteUint64(buf, offset); err != nil {
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
	attr, err := nfs.DecodeOptionalAttributes(r)
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return &ReadResult{Attr: attr}, status
	}
	n, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	eof, err := xdr.DecodeBool(r)
	if err != nil {
		return nil, err
	}
	data, err := xdr.DecodeOpaque(r)
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) > n {
		data = data[:n]
	}
	return &ReadResult{Attr: attr, Data: data, Eof: eof}, nil
}

// WriteVerifier is the 8-byte cookie a server generates at boot; it lets a
// client detect a server restart between an UNSTABLE write and its COMMIT
// (RFC 1813 Section 3.3.7).
type WriteVerifier [8]byte

// WriteResult is the successful outcome of Write.
type WriteResult struct {
	Wcc       nfs.WccData
	Count     uint32
	Committed uint32
	Verifier  WriteVerifier
}

// Write issues WRITE. stable is one of Unstable/DataSync/FileSync.
func (c *Client) Write(ctx context.Context, handle []byte, offset uint64, stable uint32, data []byte) (*WriteResult, error) {
	body, err := c.call(ctx, ProcWrite, func(buf *bytes.Buffer) error {
		if err := nfs.EncodeHandle(buf, handle); err != nil {
			return err
		}
		if err := xdr.WriteUint64(buf, offset); err != nil {
			return err
		}
		if err := xdr.WriteUint32(buf, uint32(len(data))); err != nil {
			return err
		}
		if err := xdr.WriteUint32(buf, stable); err != nil {
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
	wcc, err := nfs.DecodeWccData(r)
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return &WriteResult{Wcc: wcc}, status
	}
	count, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	committed, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	verifBytes, err := xdr.DecodeOpaqueFixed(r, 8)
	if err != nil {
		return nil, err
	}
	var verifier WriteVerifier
	copy(verifier[:], verifBytes)
	return &WriteResult{Wcc: wcc, Count: count, Committed: committed, Verifier: verifier}, nil
}

// CommitResult is the successful outcome of Commit.
type CommitResult struct {
	Wcc      nfs.WccData
	Verifier WriteVerifier
}

// Commit issues COMMIT (RFC 1813 Section 3.3.21): forces previously
// UNSTABLE-written data to stable storage. A changed Verifier compared to
// the writes being committed means the server restarted and the data must
// be rewritten.
func (c *Client) Commit(ctx context.Context, handle []byte, offset uint64, count uint32) (*CommitResult, error) {
	body, err := c.call(ctx, ProcCommit, func(buf *bytes.Buffer) error {
		if err := nfs.EncodeHandle(buf, handle); err != nil {
			return err
		}
		if err := xdr.WriteUint64(buf, offset); err != nil {
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
	wcc, err := nfs.DecodeWccData(r)
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return &CommitResult{Wcc: wcc}, status
	}
	verifBytes, err := xdr.DecodeOpaqueFixed(r, 8)
	if err != nil {
		return nil, err
	}
	var verifier WriteVerifier
	copy(verifier[:], verifBytes)
	return &CommitResult{Wcc: wcc, Verifier: verifier}, nil
}

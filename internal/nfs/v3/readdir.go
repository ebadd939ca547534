package v3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/xdr"
)

// Cookieverf is the 8-byte cookie a server issues with the first READDIR
// page of a directory listing; it must be echoed back on subsequent pages
// so the server can detect a directory mutated mid-listing.
type Cookieverf [8]byte

func decodeCookieverf(r *bytes.Reader) (Cookieverf, error) {
	data, err := xdr.DecodeOpaqueFixed(r, 8)
	if err != nil {
		return Cookieverf{}, err
	}
	var v Cookieverf
	copy(v[:], data)
	return v, nil
}

// ReadDirResult is one page of a READDIR listing.
type ReadDirResult struct {
	DirAttr    *nfs.FileAttributes
	Cookieverf Cookieverf
	Entries    []Entry
	Eof        bool
}

// ReadDir issues READDIR (RFC 1813 Section 3.3.16). On the first call pass
// a zero cookie and cookieverf; pass back the cookie of the last entry
// received and the returned Cookieverf to fetch the next page. The wire
// reply is a linked list of entries; this walks it with bounded iteration
// rather than recursion so a corrupt or hostile server cannot force
// unbounded stack growth.
func (c *Client) ReadDir(ctx context.Context, dirHandle []byte, cookie uint64, verf Cookieverf, count uint32) (*ReadDirResult, error) {
	body, err := c.call(ctx, ProcReadDir, func(buf *bytes.Buffer) error {
		if err := nfs.EncodeHandle(buf, dirHandle); err != nil {
			return err
		}
		if err := xdr.WriteUint64(buf, cookie); err != nil {
			return err
		}
		if err := xdr.WriteXDROpaqueFixed(buf, verf[:]); err != nil {
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
	dirAttr, err := nfs.DecodeOptionalAttributes(r)
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return &ReadDirResult{DirAttr: dirAttr}, status
	}

	newVerf, err := decodeCookieverf(r)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for i := 0; i < maxReaddirEntries; i++ {
		present, err := xdr.DecodeBool(r)
		if err != nil {
			return nil, fmt.Errorf("nfsv3: decode readdir entry presence: %w", err)
		}
		if !present {
			break
		}
		fileID, err := xdr.DecodeUint64(r)
		if err != nil {
			return nil, err
		}
		name, err := xdr.DecodeString(r)
		if err != nil {
			return nil, err
		}
		entryCookie, err := xdr.DecodeUint64(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{FileID: fileID, Name: name, Cookie: entryCookie})
		if i == maxReaddirEntries-1 {
			return nil, fmt.Errorf("nfsv3: readdir page exceeds %d entries", maxReaddirEntries)
		}
	}

	eof, err := xdr.DecodeBool(r)
	if err != nil {
		return nil, err
	}

	return &ReadDirResult{DirAttr: dirAttr, Cookieverf: newVerf, Entries: entries, Eof: eof}, nil
}

// ReadDirPlusResult is one page of a READDIRPLUS listing.
type ReadDirPlusResult struct {
	DirAttr    *nfs.FileAttributes
	Cookieverf Cookieverf
	Entries    []EntryPlus
	Eof        bool
}

// ReadDirPlus issues READDIRPLUS (RFC 1813 Section 3.3.17): like ReadDir
// but each entry also carries its attributes and file handle, saving a
// LOOKUP per entry at the cost of a larger reply.
func (c *Client) ReadDirPlus(ctx context.Context, dirHandle []byte, cookie uint64, verf Cookieverf, dirCount, maxCount uint32) (*ReadDirPlusResult, error) {
	body, err := c.call(ctx, ProcReadDirPlus, func(buf *bytes.Buffer) error {
		if err := nfs.EncodeHandle(buf, dirHandle); err != nil {
			return err
		}
		if err := xdr.WriteUint64(buf, cookie); err != nil {
			return err
		}
		if err := xdr.WriteXDROpaqueFixed(buf, verf[:]); err != nil {
			return err
		}
		if err := xdr.WriteUint32(buf, dirCount); err != nil {
			return err
		}
		return xdr.WriteUint32(buf, maxCount)
	})
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(body)
	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	dirAttr, err := nfs.DecodeOptionalAttributes(r)
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return &ReadDirPlusResult{DirAttr: dirAttr}, status
	}

	newVerf, err := decodeCookieverf(r)
	if err != nil {
		return nil, err
	}

	var entries []EntryPlus
	for i := 0; i < maxReaddirEntries; i++ {
		present, err := xdr.DecodeBool(r)
		if err != nil {
			return nil, fmt.Errorf("nfsv3: decode readdirplus entry presence: %w", err)
		}
		if !present {
			break
		}
		fileID, err := xdr.DecodeUint64(r)
		if err != nil {
			return nil, err
		}
		name, err := xdr.DecodeString(r)
		if err != nil {
			return nil, err
		}
		entryCookie, err := xdr.DecodeUint64(r)
		if err != nil {
			return nil, err
		}
		attr, err := nfs.DecodeOptionalAttributes(r)
		if err != nil {
			return nil, err
		}
		handle, err := decodePostOpFh(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, EntryPlus{
			Entry:  Entry{FileID: fileID, Name: name, Cookie: entryCookie},
			Attr:   attr,
			Handle: handle,
		})
		if i == maxReaddirEntries-1 {
			return nil, fmt.Errorf("nfsv3: readdirplus page exceeds %d entries", maxReaddirEntries)
		}
	}

	eof, err := xdr.DecodeBool(r)
	if err != nil {
		return nil, err
	}

	return &ReadDirPlusResult{DirAttr: dirAttr, Cookieverf: newVerf, Entries: entries, Eof: eof}, nil
}

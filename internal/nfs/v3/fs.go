package v3

import (
	"bytes"
	"context"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/xdr"
)

// FsInfoResult is the successful outcome of FsInfo.
type FsInfoResult struct {
	Attr            *nfs.FileAttributes
	ReadMax         uint32
	ReadPreferred   uint32
	ReadMultiple    uint32
	WriteMax        uint32
	WritePreferred  uint32
	WriteMultiple   uint32
	ReaddirPreferred uint32
	MaxFileSize     uint64
	TimeDelta       nfs.TimeVal
	Properties      uint32
}

// BlockSize computes the negotiated I/O chunk size from this reply's
// preferred read/write sizes (spec §4.4).
func (r *FsInfoResult) BlockSize() uint32 {
	return BlockSizeFromFsInfo(r.ReadPreferred, r.WritePreferred)
}

// FsInfo issues FSINFO (RFC 1813 Section 3.3.19): queried once per mount,
// immediately after MNT, to learn the server's I/O sizing and capability
// properties.
func (c *Client) FsInfo(ctx context.Context, fsRoot []byte) (*FsInfoResult, error) {
	body, err := c.call(ctx, ProcFsInfo, func(buf *bytes.Buffer) error {
		return nfs.EncodeHandle(buf, fsRoot)
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
		return &FsInfoResult{Attr: attr}, status
	}

	result := &FsInfoResult{Attr: attr}
	for _, field := range []*uint32{
		&result.ReadMax, &result.ReadPreferred, &result.ReadMultiple,
		&result.WriteMax, &result.WritePreferred, &result.WriteMultiple,
		&result.ReaddirPreferred,
	} {
		v, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		*field = v
	}
	if result.MaxFileSize, err = xdr.DecodeUint64(r); err != nil {
		return nil, err
	}
	if result.TimeDelta, err = nfs.DecodeTimeVal(r); err != nil {
		return nil, err
	}
	if result.Properties, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	return result, nil
}

// FsStatResult is the successful outcome of FsStat.
type FsStatResult struct {
	Attr           *nfs.FileAttributes
	TotalBytes     uint64
	FreeBytes      uint64
	AvailBytes     uint64
	TotalFiles     uint64
	FreeFiles      uint64
	AvailFiles     uint64
	InvarSec       uint32
}

// FsStat issues FSSTAT (RFC 1813 Section 3.3.18): filesystem space and
// inode usage, analogous to statvfs(2).
func (c *Client) FsStat(ctx context.Context, fsRoot []byte) (*FsStatResult, error) {
	body, err := c.call(ctx, ProcFsStat, func(buf *bytes.Buffer) error {
		return nfs.EncodeHandle(buf, fsRoot)
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
		return &FsStatResult{Attr: attr}, status
	}

	result := &FsStatResult{Attr: attr}
	for _, field := range []*uint64{
		&result.TotalBytes, &result.FreeBytes, &result.AvailBytes,
		&result.TotalFiles, &result.FreeFiles, &result.AvailFiles,
	} {
		v, err := xdr.DecodeUint64(r)
		if err != nil {
			return nil, err
		}
		*field = v
	}
	if result.InvarSec, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	return result, nil
}

package engine

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/nfs/mount"
	nfsv2 "github.com/marmos91/nfsclient/internal/nfs/v2"
	"github.com/marmos91/nfsclient/internal/nfs/v3"
	"github.com/marmos91/nfsclient/internal/rpc"
)

// v2Engine adapts nfs/v2.Client (plus a MOUNT v1 client for Mount/Unmount)
// to the Engine interface. NFSv2 has no weak cache consistency data and no
// READDIRPLUS; those gaps surface as ErrUnsupported rather than being
// faked.
type v2Engine struct {
	nfsClient   *nfsv2.Client
	mountClient *mount.Client
	nfsConn     rpc.Transport
	mountConn   rpc.Transport
}

// NewV2 builds the NFSv2 engine adapter over already-dialed transports.
func NewV2(nfsConn, mountConn rpc.Transport, auth rpc.OpaqueAuth) Engine {
	return &v2Engine{
		nfsClient:   nfsv2.New(nfsConn, auth),
		mountClient: mount.New(mountConn, mount.V1, auth),
		nfsConn:     nfsConn,
		mountConn:   mountConn,
	}
}

func (e *v2Engine) Connect(ctx context.Context) error { return nil }

func (e *v2Engine) Mount(ctx context.Context, export string) ([]byte, []int32, error) {
	res, err := e.mountClient.Mnt(ctx, export)
	if err != nil {
		return nil, nil, err
	}
	return res.RootHandle, res.AuthFlavors, nil
}

func (e *v2Engine) Unmount(ctx context.Context, export string) error {
	return e.mountClient.Umnt(ctx, export)
}

func (e *v2Engine) LookupPath(ctx context.Context, rootHandle []byte, path string) ([]byte, *FileAttributes, error) {
	handle := rootHandle
	var attrs *FileAttributes
	for _, name := range splitPath(path) {
		res, err := e.nfsClient.Lookup(ctx, handle, name)
		if err != nil {
			return nil, nil, err
		}
		handle = res.Handle
		attrs = attrsFromNFS(res.Attr, true)
	}
	if attrs == nil {
		a, err := e.nfsClient.GetAttr(ctx, handle)
		if err != nil {
			return nil, nil, err
		}
		attrs = attrsFromNFS(a, true)
	}
	return handle, attrs, nil
}

func (e *v2Engine) GetAttr(ctx context.Context, handle []byte) (*FileAttributes, error) {
	a, err := e.nfsClient.GetAttr(ctx, handle)
	if err != nil {
		return nil, err
	}
	return attrsFromNFS(a, true), nil
}

func (e *v2Engine) SetAttr(ctx context.Context, handle []byte, attrs Attrs) error {
	var sa nfsv2.SetAttrs
	if attrs.Mode != nil {
		sa.SetMode, sa.Mode = true, *attrs.Mode
	}
	if attrs.UID != nil {
		sa.SetUID, sa.UID = true, *attrs.UID
	}
	if attrs.GID != nil {
		sa.SetGID, sa.GID = true, *attrs.GID
	}
	if attrs.Size != nil {
		sa.SetSize, sa.Size = true, uint32(*attrs.Size)
	}
	_, err := e.nfsClient.SetAttr(ctx, handle, sa)
	return err
}

func (e *v2Engine) ReadDir(ctx context.Context, dirHandle []byte, cookie uint64, _ [8]byte) ([]DirEntry, [8]byte, bool, error) {
	var cookieArr [nfsv2.CookieLen]byte
	binary.BigEndian.PutUint32(cookieArr[:], uint32(cookie))

	res, err := e.nfsClient.ReadDir(ctx, dirHandle, cookieArr, nfsv2.MaxDataLen)
	if err != nil {
		return nil, [8]byte{}, false, err
	}
	entries := make([]DirEntry, len(res.Entries))
	var lastCookie [8]byte
	for i, ent := range res.Entries {
		entries[i] = DirEntry{FileID: ent.FileID, Name: ent.Name, Cookie: uint64(binary.BigEndian.Uint32(ent.Cookie[:]))}
		copy(lastCookie[4:], ent.Cookie[:])
	}
	return entries, lastCookie, res.Eof, nil
}

func (e *v2Engine) ReadDirPlus(ctx context.Context, dirHandle []byte, cookie uint64, verifier [8]byte) ([]DirEntryPlus, [8]byte, bool, error) {
	return nil, [8]byte{}, false, ErrUnsupported
}

func (e *v2Engine) Read(ctx context.Context, handle []byte, offset uint64, length uint32) ([]byte, bool, error) {
	res, err := e.nfsClient.Read(ctx, handle, uint32(offset), length)
	if err != nil {
		return nil, false, err
	}
	eof := uint64(len(res.Data))+offset >= res.Attr.Size
	return res.Data, eof, nil
}

func (e *v2Engine) Write(ctx context.Context, handle []byte, offset uint64, data []byte) (uint32, error) {
	_, err := e.nfsClient.Write(ctx, handle, uint32(offset), data)
	if err != nil {
		return 0, err
	}
	return uint32(len(data)), nil
}

func (e *v2Engine) Create(ctx context.Context, dirHandle []byte, name string, mode uint32) ([]byte, error) {
	res, err := e.nfsClient.Create(ctx, dirHandle, name, nfsv2.SetAttrs{SetMode: true, Mode: mode, SetSize: true, Size: 0})
	if err != nil {
		return nil, err
	}
	return res.Handle, nil
}

func (e *v2Engine) Mkdir(ctx context.Context, dirHandle []byte, name string, mode uint32) ([]byte, error) {
	res, err := e.nfsClient.Mkdir(ctx, dirHandle, name, nfsv2.SetAttrs{SetMode: true, Mode: mode})
	if err != nil {
		return nil, err
	}
	return res.Handle, nil
}

// Symlink: NFSv2's SYMLINK procedure returns only a status, no handle, so
// the handle is recovered with a follow-up LOOKUP.
func (e *v2Engine) Symlink(ctx context.Context, dirHandle []byte, name, target string) ([]byte, error) {
	if err := e.nfsClient.Symlink(ctx, dirHandle, name, target, nfsv2.SetAttrs{SetMode: true, Mode: 0777}); err != nil {
		return nil, err
	}
	res, err := e.nfsClient.Lookup(ctx, dirHandle, name)
	if err != nil {
		return nil, fmt.Errorf("nfsv2 engine: symlink created but follow-up lookup failed: %w", err)
	}
	return res.Handle, nil
}

func (e *v2Engine) Remove(ctx context.Context, dirHandle []byte, name string) error {
	return e.nfsClient.Remove(ctx, dirHandle, name)
}

func (e *v2Engine) Rmdir(ctx context.Context, dirHandle []byte, name string) error {
	return e.nfsClient.Rmdir(ctx, dirHandle, name)
}

func (e *v2Engine) Rename(ctx context.Context, oldDir []byte, oldName string, newDir []byte, newName string) error {
	return e.nfsClient.Rename(ctx, oldDir, oldName, newDir, newName)
}

func (e *v2Engine) Link(ctx context.Context, srcHandle, newDirHandle []byte, newName string) error {
	return e.nfsClient.Link(ctx, srcHandle, newDirHandle, newName)
}

func (e *v2Engine) ReadLink(ctx context.Context, handle []byte) (string, error) {
	return e.nfsClient.ReadLink(ctx, handle)
}

func (e *v2Engine) FsStat(ctx context.Context, rootHandle []byte) (FsStat, error) {
	res, err := e.nfsClient.StatFS(ctx, rootHandle)
	if err != nil {
		return FsStat{}, err
	}
	return FsStat{
		TotalBytes: uint64(res.BlockSize) * uint64(res.Blocks),
		FreeBytes:  uint64(res.BlockSize) * uint64(res.FreeBlocks),
		AvailBytes: uint64(res.BlockSize) * uint64(res.AvailBlocks),
	}, nil
}

func (e *v2Engine) BlockSize() uint32 { return v3.BlockSizeV2 }

func (e *v2Engine) CompleteIo(ctx context.Context) error { return nil }

func (e *v2Engine) Close() error {
	err1 := e.nfsConn.Close()
	err2 := e.mountConn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// attrsFromNFS converts the shared v2/v3 wire attribute struct to the
// engine's version-independent view. microseconds selects whether
// TimeVal.Nseconds carries microseconds (v2) or nanoseconds (v3).
func attrsFromNFS(a *nfs.FileAttributes, microseconds bool) *FileAttributes {
	if a == nil {
		return nil
	}
	toTime := func(t nfs.TimeVal) timeValue {
		nsec := t.Nseconds
		if microseconds {
			nsec *= 1000
		}
		return timeValue{sec: int64(t.Seconds), nsec: int64(nsec)}
	}
	at, mt, ct := toTime(a.Atime), toTime(a.Mtime), toTime(a.Ctime)
	return &FileAttributes{
		Type:   FileType(a.Type),
		Mode:   a.Mode,
		Nlink:  a.Nlink,
		UID:    a.UID,
		GID:    a.GID,
		Size:   a.Size,
		Used:   a.Used,
		Fsid:   a.Fsid,
		Fileid: a.Fileid,
		Atime:  at.toTime(),
		Mtime:  mt.toTime(),
		Ctime:  ct.toTime(),
	}
}

package engine

import (
	"context"

	"github.com/marmos91/nfsclient/internal/nfs/mount"
	nfsv3 "github.com/marmos91/nfsclient/internal/nfs/v3"
	"github.com/marmos91/nfsclient/internal/rpc"
)

// v3Engine adapts nfs/v3.Client (plus a MOUNT v3 client for Mount/Unmount)
// to the Engine interface.
type v3Engine struct {
	nfsClient   *nfsv3.Client
	mountClient *mount.Client
	nfsConn     rpc.Transport
	mountConn   rpc.Transport
	blockSize   uint32
}

// NewV3 builds the NFSv3 engine adapter over already-dialed transports.
func NewV3(nfsConn, mountConn rpc.Transport, auth rpc.OpaqueAuth) Engine {
	return &v3Engine{
		nfsClient:   nfsv3.New(nfsConn, auth),
		mountClient: mount.New(mountConn, mount.V3, auth),
		nfsConn:     nfsConn,
		mountConn:   mountConn,
		blockSize:   nfsv3.BlockSizeV2, // conservative default until FsInfo runs at Mount
	}
}

func (e *v3Engine) Connect(ctx context.Context) error { return nil }

func (e *v3Engine) Mount(ctx context.Context, export string) ([]byte, []int32, error) {
	res, err := e.mountClient.Mnt(ctx, export)
	if err != nil {
		return nil, nil, err
	}
	if info, err := e.nfsClient.FsInfo(ctx, res.RootHandle); err == nil {
		e.blockSize = info.BlockSize()
	}
	return res.RootHandle, res.AuthFlavors, nil
}

func (e *v3Engine) Unmount(ctx context.Context, export string) error {
	return e.mountClient.Umnt(ctx, export)
}

func (e *v3Engine) LookupPath(ctx context.Context, rootHandle []byte, path string) ([]byte, *FileAttributes, error) {
	handle := rootHandle
	var attrs *FileAttributes
	for _, name := range splitPath(path) {
		res, err := e.nfsClient.Lookup(ctx, handle, name)
		if err != nil {
			return nil, nil, err
		}
		handle = res.Handle
		attrs = attrsFromNFS(res.Attr, false)
	}
	if attrs == nil {
		a, err := e.nfsClient.GetAttr(ctx, handle)
		if err != nil {
			return nil, nil, err
		}
		attrs = attrsFromNFS(a, false)
	}
	return handle, attrs, nil
}

func (e *v3Engine) GetAttr(ctx context.Context, handle []byte) (*FileAttributes, error) {
	a, err := e.nfsClient.GetAttr(ctx, handle)
	if err != nil {
		return nil, err
	}
	return attrsFromNFS(a, false), nil
}

func (e *v3Engine) SetAttr(ctx context.Context, handle []byte, attrs Attrs) error {
	var sa nfsv3.SetAttrs
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
		sa.SetSize, sa.Size = true, *attrs.Size
	}
	_, err := e.nfsClient.SetAttr(ctx, handle, sa, nfsv3.TimeGuard{})
	return err
}

func (e *v3Engine) ReadDir(ctx context.Context, dirHandle []byte, cookie uint64, verifier [8]byte) ([]DirEntry, [8]byte, bool, error) {
	res, err := e.nfsClient.ReadDir(ctx, dirHandle, cookie, nfsv3.Cookieverf(verifier), maxReaddirCount)
	if err != nil {
		return nil, [8]byte{}, false, err
	}
	entries := make([]DirEntry, len(res.Entries))
	for i, ent := range res.Entries {
		entries[i] = DirEntry{FileID: ent.FileID, Name: ent.Name, Cookie: ent.Cookie}
	}
	return entries, [8]byte(res.Cookieverf), res.Eof, nil
}

func (e *v3Engine) ReadDirPlus(ctx context.Context, dirHandle []byte, cookie uint64, verifier [8]byte) ([]DirEntryPlus, [8]byte, bool, error) {
	res, err := e.nfsClient.ReadDirPlus(ctx, dirHandle, cookie, nfsv3.Cookieverf(verifier), maxReaddirCount, maxReaddirCount)
	if err != nil {
		return nil, [8]byte{}, false, err
	}
	entries := make([]DirEntryPlus, len(res.Entries))
	for i, ent := range res.Entries {
		entries[i] = DirEntryPlus{
			DirEntry: DirEntry{FileID: ent.FileID, Name: ent.Name, Cookie: ent.Cookie},
			Attr:     attrsFromNFS(ent.Attr, false),
			Handle:   ent.Handle,
		}
	}
	return entries, [8]byte(res.Cookieverf), res.Eof, nil
}

func (e *v3Engine) Read(ctx context.Context, handle []byte, offset uint64, length uint32) ([]byte, bool, error) {
	res, err := e.nfsClient.Read(ctx, handle, offset, length)
	if err != nil {
		return nil, false, err
	}
	return res.Data, res.Eof, nil
}

func (e *v3Engine) Write(ctx context.Context, handle []byte, offset uint64, data []byte) (uint32, error) {
	res, err := e.nfsClient.Write(ctx, handle, offset, nfsv3.FileSync, data)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

func (e *v3Engine) Create(ctx context.Context, dirHandle []byte, name string, mode uint32) ([]byte, error) {
	res, err := e.nfsClient.Create(ctx, dirHandle, name, nfsv3.CreateUnchecked,
		nfsv3.SetAttrs{SetMode: true, Mode: mode}, nfsv3.CreateVerifier{})
	if err != nil {
		return nil, err
	}
	return res.Handle, nil
}

func (e *v3Engine) Mkdir(ctx context.Context, dirHandle []byte, name string, mode uint32) ([]byte, error) {
	res, err := e.nfsClient.Mkdir(ctx, dirHandle, name, nfsv3.SetAttrs{SetMode: true, Mode: mode})
	if err != nil {
		return nil, err
	}
	return res.Handle, nil
}

func (e *v3Engine) Symlink(ctx context.Context, dirHandle []byte, name, target string) ([]byte, error) {
	res, err := e.nfsClient.Symlink(ctx, dirHandle, name, nfsv3.SetAttrs{SetMode: true, Mode: 0777}, target)
	if err != nil {
		return nil, err
	}
	return res.Handle, nil
}

func (e *v3Engine) Remove(ctx context.Context, dirHandle []byte, name string) error {
	_, err := e.nfsClient.Remove(ctx, dirHandle, name)
	return err
}

func (e *v3Engine) Rmdir(ctx context.Context, dirHandle []byte, name string) error {
	_, err := e.nfsClient.Rmdir(ctx, dirHandle, name)
	return err
}

func (e *v3Engine) Rename(ctx context.Context, oldDir []byte, oldName string, newDir []byte, newName string) error {
	_, err := e.nfsClient.Rename(ctx, oldDir, oldName, newDir, newName)
	return err
}

func (e *v3Engine) Link(ctx context.Context, srcHandle, newDirHandle []byte, newName string) error {
	_, err := e.nfsClient.Link(ctx, srcHandle, newDirHandle, newName)
	return err
}

func (e *v3Engine) ReadLink(ctx context.Context, handle []byte) (string, error) {
	target, _, err := e.nfsClient.ReadLink(ctx, handle)
	return target, err
}

func (e *v3Engine) FsStat(ctx context.Context, rootHandle []byte) (FsStat, error) {
	res, err := e.nfsClient.FsStat(ctx, rootHandle)
	if err != nil {
		return FsStat{}, err
	}
	return FsStat{
		TotalBytes: res.TotalBytes,
		FreeBytes:  res.FreeBytes,
		AvailBytes: res.AvailBytes,
		TotalFiles: res.TotalFiles,
		FreeFiles:  res.FreeFiles,
		AvailFiles: res.AvailFiles,
	}, nil
}

func (e *v3Engine) BlockSize() uint32 { return e.blockSize }

func (e *v3Engine) CompleteIo(ctx context.Context) error { return nil }

func (e *v3Engine) Close() error {
	err1 := e.nfsConn.Close()
	err2 := e.mountConn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// maxReaddirCount bounds a single READDIR/READDIRPLUS reply's byte size
// request (RFC 1813 count/dircount/maxcount), independent of the
// negotiated I/O block size.
const maxReaddirCount = 8192

// Package engine normalizes the three NFS operation engines (nfs/v2,
// nfs/v3, nfs/v4) behind one interface. Each version's Client has a
// genuinely different shape: v2 uses 4-byte cookies and no weak cache
// consistency data, v3 adds per-field optional SETATTR and WCC attributes,
// v4 drops MOUNT entirely in favor of a pseudo-root LOOKUP chain and
// represents ownership as strings instead of numeric uid/gid. The façade in
// pkg/client talks only to this interface and never imports nfs/v2, nfs/v3,
// or nfs/v4 directly.
package engine

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned by operations a given NFS version's wire
// protocol has no procedure for (e.g. READDIRPLUS under NFSv2).
var ErrUnsupported = errors.New("engine: operation not supported by this NFS version")

// FileAttributes is the version-independent attribute view the façade
// works with. Owner/group are always numeric: the v4 adapter parses
// fattr4 OWNER/OWNER_GROUP strings back to uint32 when they carry a bare
// numeric id (the common case without an id-mapping daemon) and reports 0
// otherwise.
type FileAttributes struct {
	Type  FileType
	Mode  uint32
	Nlink uint32
	UID   uint32
	GID   uint32
	Size  uint64
	Used  uint64
	Fsid  uint64
	Fileid uint64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// FileType mirrors the NFSv2/v3 ftype3 enumeration; the v4 adapter maps
// NF4* types onto the same values so callers never branch on version.
type FileType uint32

const (
	FileTypeRegular FileType = iota + 1
	FileTypeDirectory
	FileTypeBlockDevice
	FileTypeCharDevice
	FileTypeSymlink
	FileTypeSocket
	FileTypeFIFO
)

// DirEntry is one directory entry returned by ReadDir.
type DirEntry struct {
	FileID uint64
	Name   string
	Cookie uint64
}

// DirEntryPlus is one directory entry returned by ReadDirPlus, carrying
// the attributes and handle ReadDir omits.
type DirEntryPlus struct {
	DirEntry
	Attr   *FileAttributes
	Handle []byte
}

// FsStat is the version-independent filesystem capacity report.
type FsStat struct {
	TotalBytes uint64
	FreeBytes  uint64
	AvailBytes uint64
	TotalFiles uint64
	FreeFiles  uint64
	AvailFiles uint64
}

// Attrs carries the optional fields SetAttr may change. A nil pointer
// leaves that field untouched; the three versions each encode "untouched"
// differently (v2's sentinel, v3's per-field optional, v4's bitmap) and
// that translation is the adapter's job, not the caller's.
type Attrs struct {
	Mode *uint32
	UID  *uint32
	GID  *uint32
	Size *uint64
}

// Engine is the per-version NFS operation surface the façade drives. A
// value is bound to one open connection; Mount/Unmount bracket its
// lifetime the way the façade's Client.Connect/Disconnect do.
type Engine interface {
	// Connect performs any version-specific handshake needed before the
	// first RPC (a no-op for v2/v3; EXCHANGE_ID/CREATE_SESSION for v4).
	Connect(ctx context.Context) error

	// Mount resolves export to a root file handle: a MOUNT-protocol MNT
	// for v2/v3, a PUTROOTFH+LOOKUP chain for v4.
	Mount(ctx context.Context, export string) (rootHandle []byte, authFlavors []int32, err error)

	// Unmount releases the export (MOUNT UMNT for v2/v3, a no-op for v4).
	Unmount(ctx context.Context, export string) error

	// LookupPath walks from rootHandle to path, one component at a time
	// for v2/v3 or via the export-relative pseudo-root chain for v4.
	LookupPath(ctx context.Context, rootHandle []byte, path string) (handle []byte, attrs *FileAttributes, err error)

	GetAttr(ctx context.Context, handle []byte) (*FileAttributes, error)
	SetAttr(ctx context.Context, handle []byte, attrs Attrs) error

	ReadDir(ctx context.Context, dirHandle []byte, cookie uint64, verifier [8]byte) (entries []DirEntry, nextVerifier [8]byte, eof bool, err error)
	ReadDirPlus(ctx context.Context, dirHandle []byte, cookie uint64, verifier [8]byte) (entries []DirEntryPlus, nextVerifier [8]byte, eof bool, err error)

	Read(ctx context.Context, handle []byte, offset uint64, length uint32) (data []byte, eof bool, err error)
	Write(ctx context.Context, handle []byte, offset uint64, data []byte) (n uint32, err error)

	Create(ctx context.Context, dirHandle []byte, name string, mode uint32) (handle []byte, err error)
	Mkdir(ctx context.Context, dirHandle []byte, name string, mode uint32) (handle []byte, err error)
	Symlink(ctx context.Context, dirHandle []byte, name, target string) (handle []byte, err error)
	Remove(ctx context.Context, dirHandle []byte, name string) error
	Rmdir(ctx context.Context, dirHandle []byte, name string) error
	Rename(ctx context.Context, oldDir []byte, oldName string, newDir []byte, newName string) error
	Link(ctx context.Context, srcHandle, newDirHandle []byte, newName string) error
	ReadLink(ctx context.Context, handle []byte) (target string, err error)

	FsStat(ctx context.Context, rootHandle []byte) (FsStat, error)
	BlockSize() uint32

	// CompleteIo flushes any connection-held state between logical I/O
	// sessions (a no-op for v2/v3, closing the current OPEN for v4).
	CompleteIo(ctx context.Context) error

	Close() error
}

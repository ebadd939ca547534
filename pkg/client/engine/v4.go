package engine

import (
	"context"
	"strconv"
	"strings"

	nfsv4 "github.com/marmos91/nfsclient/internal/nfs/v4"
	"github.com/marmos91/nfsclient/internal/rpc"
)

// v4Engine adapts nfs/v4.Client to the Engine interface. NFSv4.1 has no
// MOUNT protocol and no READDIRPLUS; Mount instead resolves the export
// through the pseudo-root LOOKUP chain, and ReadDirPlus reports
// ErrUnsupported. Read/Write open the handle they're given with CLAIM_FH
// on first use (nfs/v4.Client.EnsureOpen) rather than going in with the
// anonymous stateid — a CLOSE-less v4 client is something most servers
// tolerate but none require — and CompleteIo closes whatever that opened,
// matching the façade's one-open-session-at-a-time contract.
type v4Engine struct {
	client     *nfsv4.Client
	conn       rpc.Transport
	ownerID    string
	exportPath string
}

// NewV4 builds the NFSv4.1 engine adapter over an already-dialed
// transport. ownerID identifies this client to EXCHANGE_ID.
func NewV4(conn rpc.Transport, auth rpc.OpaqueAuth, ownerID string) Engine {
	return &v4Engine{
		client:  nfsv4.New(conn, auth),
		conn:    conn,
		ownerID: ownerID,
	}
}

func (e *v4Engine) Connect(ctx context.Context) error {
	return e.client.Connect(ctx, e.ownerID)
}

func (e *v4Engine) Mount(ctx context.Context, export string) ([]byte, []int32, error) {
	e.exportPath = toBackslashPath(export)
	res, err := e.client.LookupPath(ctx, e.exportPath)
	if err != nil {
		return nil, nil, err
	}
	return res.Handle, nil, nil
}

func (e *v4Engine) Unmount(ctx context.Context, export string) error { return nil }

func (e *v4Engine) LookupPath(ctx context.Context, _ []byte, path string) ([]byte, *FileAttributes, error) {
	full := e.exportPath
	if rel := toBackslashPath(path); rel != "" {
		full = full + `\` + rel
	}
	res, err := e.client.LookupPath(ctx, full)
	if err != nil {
		return nil, nil, err
	}
	return res.Handle, attrsFromV4(res.Attrs), nil
}

func (e *v4Engine) GetAttr(ctx context.Context, handle []byte) (*FileAttributes, error) {
	a, err := e.client.GetAttr(ctx, handle)
	if err != nil {
		return nil, err
	}
	return attrsFromV4(a), nil
}

// SetAttr only forwards Mode/Size: NFSv4 represents ownership as
// OWNER/OWNER_GROUP strings, and this engine has no id-mapping round trip
// to turn numeric UID/GID into them, so UID/GID changes are silently
// skipped for v4 rather than guessed at.
func (e *v4Engine) SetAttr(ctx context.Context, handle []byte, attrs Attrs) error {
	return e.client.SetAttr(ctx, handle, attrs.Mode, attrs.Size)
}

func (e *v4Engine) ReadDir(ctx context.Context, dirHandle []byte, cookie uint64, verifier [8]byte) ([]DirEntry, [8]byte, bool, error) {
	entries, nextVerf, eof, err := e.client.ReadDir(ctx, dirHandle, cookie, verifier)
	if err != nil {
		return nil, [8]byte{}, false, err
	}
	out := make([]DirEntry, len(entries))
	for i, ent := range entries {
		out[i] = DirEntry{Cookie: ent.Cookie, Name: ent.Name, FileID: ent.FileID}
	}
	return out, nextVerf, eof, nil
}

// ReadDirPlus: NFSv4's READDIR already interleaves attributes with each
// entry, but this engine's ReadDir call requests only the file type bit
// (see nfs/v4's dircount/maxcount-bounded request) and has no exported
// per-entry handle lookup, so there is nothing to adapt it from without a
// LOOKUP per entry. Left unsupported rather than faked with zero handles.
func (e *v4Engine) ReadDirPlus(ctx context.Context, dirHandle []byte, cookie uint64, verifier [8]byte) ([]DirEntryPlus, [8]byte, bool, error) {
	return nil, [8]byte{}, false, ErrUnsupported
}

func (e *v4Engine) Read(ctx context.Context, handle []byte, offset uint64, length uint32) ([]byte, bool, error) {
	stateid, err := e.client.EnsureOpen(ctx, handle)
	if err != nil {
		return nil, false, err
	}
	return e.client.Read(ctx, handle, stateid, offset, length)
}

func (e *v4Engine) Write(ctx context.Context, handle []byte, offset uint64, data []byte) (uint32, error) {
	stateid, err := e.client.EnsureOpen(ctx, handle)
	if err != nil {
		return 0, err
	}
	return e.client.Write(ctx, handle, stateid, offset, data, stableFileSync)
}

func (e *v4Engine) Create(ctx context.Context, dirHandle []byte, name string, mode uint32) ([]byte, error) {
	handle, err := e.client.CreateFile(ctx, dirHandle, name)
	if err != nil {
		return nil, err
	}
	if err := e.client.SetAttr(ctx, handle, &mode, nil); err != nil {
		return handle, err
	}
	return handle, nil
}

func (e *v4Engine) Mkdir(ctx context.Context, dirHandle []byte, name string, mode uint32) ([]byte, error) {
	handle, err := e.client.Mkdir(ctx, dirHandle, name)
	if err != nil {
		return nil, err
	}
	if err := e.client.SetAttr(ctx, handle, &mode, nil); err != nil {
		return handle, err
	}
	return handle, nil
}

func (e *v4Engine) Symlink(ctx context.Context, dirHandle []byte, name, target string) ([]byte, error) {
	return e.client.Symlink(ctx, dirHandle, name, target)
}

func (e *v4Engine) Remove(ctx context.Context, dirHandle []byte, name string) error {
	return e.client.Remove(ctx, dirHandle, name)
}

func (e *v4Engine) Rmdir(ctx context.Context, dirHandle []byte, name string) error {
	return e.client.Remove(ctx, dirHandle, name)
}

func (e *v4Engine) Rename(ctx context.Context, oldDir []byte, oldName string, newDir []byte, newName string) error {
	return e.client.Rename(ctx, oldDir, oldName, newDir, newName)
}

func (e *v4Engine) Link(ctx context.Context, srcHandle, newDirHandle []byte, newName string) error {
	return e.client.Link(ctx, srcHandle, newDirHandle, newName)
}

func (e *v4Engine) ReadLink(ctx context.Context, handle []byte) (string, error) {
	return e.client.ReadLink(ctx, handle)
}

// FsStat: NFSv4's FSINFO/statfs equivalent (the SPACE_* / FILES_*
// attributes) isn't wired into nfs/v4's attribute bitmap, so this engine
// can't populate capacity numbers without extending the fattr4 decode
// path further than the façade's other operations need. Surfaced as
// ErrUnsupported rather than invented zero values.
func (e *v4Engine) FsStat(ctx context.Context, rootHandle []byte) (FsStat, error) {
	return FsStat{}, ErrUnsupported
}

func (e *v4Engine) BlockSize() uint32 { return v4BlockSize }

func (e *v4Engine) CompleteIo(ctx context.Context) error { return e.client.CompleteIo(ctx) }

func (e *v4Engine) Close() error { return e.conn.Close() }

// v4BlockSize is a conservative fixed chunk size: v4's SEQUENCE/session
// model already limits request size via ca_maxrequestsize, negotiated at
// CREATE_SESSION and not currently surfaced by nfs/v4.Client.
const v4BlockSize = 32768

// stableFileSync matches nfsv3.FileSync's wire value (stable_how4 shares
// NFSv3's numbering in RFC 5661 Section 18.32).
const stableFileSync = 2

// toBackslashPath converts a "/"-separated export or relative path into
// the "\"-separated, "."-rooted convention nfs/v4.Client.LookupPath's
// splitPath expects.
func toBackslashPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" || trimmed == "." {
		return ""
	}
	return strings.ReplaceAll(trimmed, "/", `\`)
}

// attrsFromV4 converts nfs/v4's string-owner FileAttributes to the
// engine's numeric-owner view. Owner/Group parse as a bare integer when
// the server has no id-mapping daemon configured (the common case); a
// non-numeric "user@domain" form maps to 0, since this client has no
// NFSv4 id-mapping of its own.
func attrsFromV4(a *nfsv4.FileAttributes) *FileAttributes {
	if a == nil {
		return nil
	}
	parseID := func(s string) uint32 {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return 0
		}
		return uint32(n)
	}
	toTime := func(t nfsv4.NFSTime) timeValue {
		return timeValue{sec: t.Seconds, nsec: int64(t.Nseconds)}
	}
	return &FileAttributes{
		Type:   FileType(a.Type),
		Mode:   a.Mode,
		Nlink:  a.NumLinks,
		UID:    parseID(a.Owner),
		GID:    parseID(a.Group),
		Size:   a.Size,
		Fileid: a.FileID,
		Atime:  toTime(a.ATime).toTime(),
		Mtime:  toTime(a.MTime).toTime(),
		Ctime:  toTime(a.CTime).toTime(),
	}
}

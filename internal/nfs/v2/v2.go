// Package v2 implements the NFSv2 (RFC 1094) operation engine. Handles are
// a fixed 32 bytes; there is no weak cache consistency data (attrstat
// returns the post-operation attributes directly, with no pre-operation
// snapshot); attribute mutation uses sentinel "don't set" values
// (0xFFFFFFFF) in place of v3's per-field optionals.
package v2

import "github.com/marmos91/nfsclient/internal/nfs"

// Program is the NFS program's RPC program number.
const Program uint32 = 100003

// Version selects the NFSv2 dialect.
const Version uint32 = 2

// Procedure numbers (RFC 1094 Section 2.2). ROOT (3) and WRITECACHE (7)
// are obsolete procedures no client is expected to issue.
const (
	ProcNull     uint32 = 0
	ProcGetAttr  uint32 = 1
	ProcSetAttr  uint32 = 2
	ProcLookup   uint32 = 4
	ProcReadLink uint32 = 5
	ProcRead     uint32 = 6
	ProcWrite    uint32 = 8
	ProcCreate   uint32 = 9
	ProcRemove   uint32 = 10
	ProcRename   uint32 = 11
	ProcLink     uint32 = 12
	ProcSymlink  uint32 = 13
	ProcMkdir    uint32 = 14
	ProcRmdir    uint32 = 15
	ProcReadDir  uint32 = 16
	ProcStatFS   uint32 = 17
)

// HandleLen is the NFSv2 fhandle's fixed wire length.
const HandleLen = 32

// CookieLen is the NFSv2 nfscookie's fixed wire length.
const CookieLen = 4

// MaxDataLen is NFS_MAXDATA (RFC 1094 Section 2.2), the largest opaque
// chunk a single READ/WRITE may carry. This engine's fixed block size,
// v3.BlockSizeV2, is set to comfortably clear the RPC/XDR overhead under
// this ceiling.
const MaxDataLen = 8192

// unsetAttr is the sentinel "leave this field unchanged" value v2's sattr
// uses in place of v3's per-field optional<T> (RFC 1094 Section 2.3.6).
const unsetAttr uint32 = 0xFFFFFFFF

// SetAttrs carries the new attribute values for SETATTR/CREATE/MKDIR; a
// field left at its zero Go value is encoded as unsetAttr ("don't
// change") unless its corresponding Set flag is true.
type SetAttrs struct {
	SetMode  bool
	Mode     uint32
	SetUID   bool
	UID      uint32
	SetGID   bool
	GID      uint32
	SetSize  bool
	Size     uint32
	SetAtime bool
	Atime    nfs.TimeVal
	SetMtime bool
	Mtime    nfs.TimeVal
}

// Entry is one directory entry returned by ReadDir.
type Entry struct {
	FileID uint64
	Name   string
	Cookie [CookieLen]byte
}

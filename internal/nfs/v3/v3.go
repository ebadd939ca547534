// Package v3 implements the NFSv3 (RFC 1813) operation engine: request
// encoding and reply decoding for every procedure the client façade drives,
// plus the FSINFO-derived block size calculation.
package v3

import "github.com/marmos91/nfsclient/internal/nfs"

// Program is the NFS program's RPC program number (shared by all NFS
// versions; the version field distinguishes v2 from v3).
const Program uint32 = 100003

// Version selects the NFSv3 dialect.
const Version uint32 = 3

// Procedure numbers (RFC 1813 Section 3.3).
const (
	ProcNull        uint32 = 0
	ProcGetAttr     uint32 = 1
	ProcSetAttr     uint32 = 2
	ProcLookup      uint32 = 3
	ProcAccess      uint32 = 4
	ProcReadLink    uint32 = 5
	ProcRead        uint32 = 6
	ProcWrite       uint32 = 7
	ProcCreate      uint32 = 8
	ProcMkdir       uint32 = 9
	ProcSymlink     uint32 = 10
	ProcMknod       uint32 = 11
	ProcRemove      uint32 = 12
	ProcRmdir       uint32 = 13
	ProcRename      uint32 = 14
	ProcLink        uint32 = 15
	ProcReadDir     uint32 = 16
	ProcReadDirPlus uint32 = 17
	ProcFsStat      uint32 = 18
	ProcFsInfo      uint32 = 19
	ProcPathConf    uint32 = 20
	ProcCommit      uint32 = 21
)

// Create modes (createmode3, RFC 1813 Section 3.3.8).
const (
	CreateUnchecked uint32 = 0
	CreateGuarded   uint32 = 1
	CreateExclusive uint32 = 2
)

// Write stability levels (stable_how, RFC 1813 Section 3.3.7).
const (
	Unstable  uint32 = 0
	DataSync  uint32 = 1
	FileSync  uint32 = 2
)

// ACCESS bits (RFC 1813 Section 3.3.4).
const (
	AccessRead    uint32 = 0x0001
	AccessLookup  uint32 = 0x0002
	AccessModify  uint32 = 0x0004
	AccessExtend  uint32 = 0x0008
	AccessDelete  uint32 = 0x0010
	AccessExecute uint32 = 0x0020
)

// FSINFO properties bits (RFC 1813 Section 3.3.19).
const (
	FSFLink        uint32 = 0x0001
	FSFSymlink     uint32 = 0x0002
	FSFHomogeneous uint32 = 0x0008
	FSFCanSetTime  uint32 = 0x0010
)

// maxHandleLen is RFC 1813's file handle length ceiling.
const maxHandleLen = 64

// maxReaddirEntries bounds a single READDIR/READDIRPLUS reply walk.
const maxReaddirEntries = 8192

// minBlockSize and maxBlockSize clamp the FSINFO-derived block size (spec
// §4.4): min(preferredRead, preferredWrite) − 200, clamped to this range.
const (
	minBlockSize = 8000
	maxBlockSize = 65336
)

// BlockSizeFromFsInfo computes the v3 I/O chunk size from a server's FSINFO
// reply. v2 has no equivalent call; its block size is the fixed constant
// BlockSizeV2.
func BlockSizeFromFsInfo(preferredRead, preferredWrite uint32) uint32 {
	size := preferredRead
	if preferredWrite < size {
		size = preferredWrite
	}
	if size < 200 {
		size = 200
	}
	size -= 200
	if size < minBlockSize {
		return minBlockSize
	}
	if size > maxBlockSize {
		return maxBlockSize
	}
	return size
}

// BlockSizeV2 is the NFSv2 engine's fixed I/O chunk size (spec §4.4); v2
// has no FSINFO-equivalent negotiation.
const BlockSizeV2 = 8064

// Entry is one directory entry returned by READDIR.
type Entry struct {
	FileID uint64
	Name   string
	Cookie uint64
}

// EntryPlus is one directory entry returned by READDIRPLUS, carrying the
// attributes and file handle READDIR omits.
type EntryPlus struct {
	Entry
	Attr   *nfs.FileAttributes
	Handle []byte
}

// SetAttrs carries the dirty-field bitmap for SETATTR: only fields with
// their Set flag true are transmitted: (RFC 1813 Section 3.3.2's sattr3
// union-per-field encoding). The zero value sets nothing.
type SetAttrs struct {
	SetMode  bool
	Mode     uint32
	SetUID   bool
	UID      uint32
	SetGID   bool
	GID      uint32
	SetSize  bool
	Size     uint64
	SetAtime uint32 // 0 = don't change, 1 = set to server time, 2 = set to Atime
	Atime    nfs.TimeVal
	SetMtime uint32 // 0 = don't change, 1 = set to server time, 2 = set to Mtime
	Mtime    nfs.TimeVal
}

// Time-set discriminants (time_how, RFC 1813 Section 2.6).
const (
	DontChangeTime uint32 = 0
	SetToServer    uint32 = 1
	SetToClient    uint32 = 2
)

// TimeGuard implements SETATTR's optimistic-concurrency ctime check (RFC
// 1813 Section 3.3.2 sattrguard3).
type TimeGuard struct {
	Check bool
	Ctime nfs.TimeVal
}

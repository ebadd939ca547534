// Package nfs holds wire types shared across the NFSv2 and NFSv3 operation
// engines: file attributes, weak cache consistency attributes, and the
// per-version status code tables. NFSv4.1 defines its own attribute model
// (bitmap4-selected) and lives in nfs/v4 instead.
package nfs

// TimeVal is the XDR nfstime3 / timeval2 wire representation: seconds and
// nanoseconds (v3) or seconds and microseconds (v2) since the epoch. The
// field is named Nseconds in both cases to match the wire struct; callers
// must know which unit applies to the version they are decoding.
type TimeVal struct {
	Seconds  uint32
	Nseconds uint32
}

// FileAttributes is the NFSv2 fattr / NFSv3 fattr3 structure returned by
// GETATTR and embedded in most other replies.
type FileAttributes struct {
	Type   uint32
	Mode   uint32
	Nlink  uint32
	UID    uint32
	GID    uint32
	Size   uint64
	Used   uint64
	Rdev   [2]uint32
	Fsid   uint64
	Fileid uint64
	Atime  TimeVal
	Mtime  TimeVal
	Ctime  TimeVal
}

// WccAttr carries the pre-operation weak cache consistency attributes that
// accompany most NFSv3 mutating replies (RFC 1813 Section 2.6).
type WccAttr struct {
	Size  uint64
	Mtime TimeVal
	Ctime TimeVal
}

// WccData bundles the optional pre- and post-operation attributes NFSv3
// mutating procedures return so a client can detect whether its cached
// attributes are still valid.
type WccData struct {
	Before    *WccAttr
	BeforeSet bool
	After     *FileAttributes
	AfterSet  bool
}

// FileType enumerates the NFSv2/v3 ftype3 values carried in
// FileAttributes.Type.
const (
	FileTypeRegular FileType = iota + 1
	FileTypeDirectory
	FileTypeBlockDevice
	FileTypeCharDevice
	FileTypeSymlink
	FileTypeSocket
	FileTypeFIFO
)

// FileType is the ftype3/ftype enumeration (RFC 1813 Section 2.5).
type FileType uint32

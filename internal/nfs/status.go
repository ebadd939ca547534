package nfs

import "fmt"

// Status is the NFSv2/v3 stat/stat3 wire status code. Zero always means
// success; every other value names a specific failure reason the server
// chose from its protocol's fixed vocabulary.
type Status uint32

// NFSv3 status codes (RFC 1813 Section 2.6).
const (
	NFS3Ok             Status = 0
	NFS3ErrPerm        Status = 1
	NFS3ErrNoEnt       Status = 2
	NFS3ErrIO          Status = 5
	NFS3ErrNxio        Status = 6
	NFS3ErrAccess      Status = 13
	NFS3ErrExist       Status = 17
	NFS3ErrXdev        Status = 18
	NFS3ErrNodev       Status = 19
	NFS3ErrNotDir      Status = 20
	NFS3ErrIsDir       Status = 21
	NFS3ErrInval       Status = 22
	NFS3ErrFbig        Status = 27
	NFS3ErrNoSpc       Status = 28
	NFS3ErrRofs        Status = 30
	NFS3ErrMlink       Status = 31
	NFS3ErrNameTooLong Status = 63
	NFS3ErrNotEmpty    Status = 66
	NFS3ErrDquot       Status = 69
	NFS3ErrStale       Status = 70
	NFS3ErrRemote      Status = 71
	NFS3ErrBadHandle   Status = 10001
	NFS3ErrNotSync     Status = 10002
	NFS3ErrBadCookie   Status = 10003
	NFS3ErrNotSupp     Status = 10004
	NFS3ErrTooSmall    Status = 10005
	NFS3ErrServerFault Status = 10006
	NFS3ErrBadType     Status = 10007
	NFS3ErrJukebox     Status = 10008
)

// NFSv2 status codes (RFC 1094 Section 2.2).
const (
	NFSOk             Status = 0
	NFSErrPerm        Status = 1
	NFSErrNoEnt       Status = 2
	NFSErrIO          Status = 5
	NFSErrNxio        Status = 6
	NFSErrAccess      Status = 13
	NFSErrExist       Status = 17
	NFSErrNodev       Status = 19
	NFSErrNotDir      Status = 20
	NFSErrIsDir       Status = 21
	NFSErrFbig        Status = 27
	NFSErrNoSpc       Status = 28
	NFSErrRofs        Status = 30
	NFSErrNameTooLong Status = 63
	NFSErrNotEmpty    Status = 66
	NFSErrDquot       Status = 69
	NFSErrStale       Status = 70
	NFSErrWflush      Status = 99
)

var nfs3StatusText = map[Status]string{
	NFS3Ok:             "NFS3_OK",
	NFS3ErrPerm:        "NFS3ERR_PERM: not owner",
	NFS3ErrNoEnt:       "NFS3ERR_NOENT: no such file or directory",
	NFS3ErrIO:          "NFS3ERR_IO: I/O error",
	NFS3ErrNxio:        "NFS3ERR_NXIO: no such device or address",
	NFS3ErrAccess:      "NFS3ERR_ACCES: permission denied",
	NFS3ErrExist:       "NFS3ERR_EXIST: file already exists",
	NFS3ErrXdev:        "NFS3ERR_XDEV: cross-device link",
	NFS3ErrNodev:       "NFS3ERR_NODEV: no such device",
	NFS3ErrNotDir:      "NFS3ERR_NOTDIR: not a directory",
	NFS3ErrIsDir:       "NFS3ERR_ISDIR: is a directory",
	NFS3ErrInval:       "NFS3ERR_INVAL: invalid argument",
	NFS3ErrFbig:        "NFS3ERR_FBIG: file too large",
	NFS3ErrNoSpc:       "NFS3ERR_NOSPC: no space left on device",
	NFS3ErrRofs:        "NFS3ERR_ROFS: read-only file system",
	NFS3ErrMlink:       "NFS3ERR_MLINK: too many hard links",
	NFS3ErrNameTooLong: "NFS3ERR_NAMETOOLONG: name too long",
	NFS3ErrNotEmpty:    "NFS3ERR_NOTEMPTY: directory not empty",
	NFS3ErrDquot:       "NFS3ERR_DQUOT: disk quota exceeded",
	NFS3ErrStale:       "NFS3ERR_STALE: stale file handle",
	NFS3ErrRemote:      "NFS3ERR_REMOTE: too many levels of remote in path",
	NFS3ErrBadHandle:   "NFS3ERR_BADHANDLE: illegal file handle",
	NFS3ErrNotSync:     "NFS3ERR_NOT_SYNC: synchronous mount/unmount mismatch",
	NFS3ErrBadCookie:   "NFS3ERR_BAD_COOKIE: readdir cookie is stale",
	NFS3ErrNotSupp:     "NFS3ERR_NOTSUPP: operation not supported",
	NFS3ErrTooSmall:    "NFS3ERR_TOOSMALL: buffer or request too small",
	NFS3ErrServerFault: "NFS3ERR_SERVERFAULT: undefined server error",
	NFS3ErrBadType:     "NFS3ERR_BADTYPE: type not supported by server",
	NFS3ErrJukebox:     "NFS3ERR_JUKEBOX: request initiated, slow to complete",
}

var nfs2StatusText = map[Status]string{
	NFSOk:             "NFS_OK",
	NFSErrPerm:        "NFSERR_PERM: not owner",
	NFSErrNoEnt:       "NFSERR_NOENT: no such file or directory",
	NFSErrIO:          "NFSERR_IO: I/O error",
	NFSErrNxio:        "NFSERR_NXIO: no such device or address",
	NFSErrAccess:      "NFSERR_ACCES: permission denied",
	NFSErrExist:       "NFSERR_EXIST: file already exists",
	NFSErrNodev:       "NFSERR_NODEV: no such device",
	NFSErrNotDir:      "NFSERR_NOTDIR: not a directory",
	NFSErrIsDir:       "NFSERR_ISDIR: is a directory",
	NFSErrFbig:        "NFSERR_FBIG: file too large",
	NFSErrNoSpc:       "NFSERR_NOSPC: no space left on device",
	NFSErrRofs:        "NFSERR_ROFS: read-only file system",
	NFSErrNameTooLong: "NFSERR_NAMETOOLONG: name too long",
	NFSErrNotEmpty:    "NFSERR_NOTEMPTY: directory not empty",
	NFSErrDquot:       "NFSERR_DQUOT: disk quota exceeded",
	NFSErrStale:       "NFSERR_STALE: stale file handle",
	NFSErrWflush:      "NFSERR_WFLUSH: write cache flushed",
}

// OK reports whether the status represents success.
func (s Status) OK() bool { return s == 0 }

// String renders the status from the NFSv3 text table, falling back to the
// NFSv2 table for codes the v3 table lacks; codes shared by both versions
// always render with their NFSv3 text.
func (s Status) String() string {
	if text, ok := nfs3StatusText[s]; ok {
		return text
	}
	if text, ok := nfs2StatusText[s]; ok {
		return text
	}
	return fmt.Sprintf("unknown NFS status %d", uint32(s))
}

// Error satisfies the error interface so a Status can be returned directly
// from an engine call; callers that need the raw code for dispatch (e.g.
// pkg/nfserrors.AsStatus) type-assert rather than parsing this string.
func (s Status) Error() string { return s.String() }

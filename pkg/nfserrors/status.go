package nfserrors

import (
	"errors"
	"fmt"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/nfs/v4"
)

// StatusKind classifies an NfsStatusError by what it means rather than by
// its per-version wire value, so callers can branch once instead of
// listing NFS2/NFS3/NFS4 codes separately.
type StatusKind int

const (
	StatusUnknown StatusKind = iota
	StatusNoEnt
	StatusExist
	StatusAccess
	StatusPerm
	StatusIsDir
	StatusNotDir
	StatusNotEmpty
	StatusInval
	StatusIO
	StatusNoSpc
	StatusFbig
	StatusStale
	StatusBadHandle
	StatusNameTooLong
	StatusDquot
	StatusRofs
	StatusNotSupp
	StatusJukebox
	StatusServerFault
	StatusGrace
	StatusBadSeqid
	StatusBadSlot
)

// NfsStatusError wraps a single per-version NFS status code: the protocol
// version it came from, the raw wire value, and the StatusKind it maps to.
type NfsStatusError struct {
	Version uint32
	Kind    StatusKind
	code    uint32
	text    string
}

func (e *NfsStatusError) Code() uint32    { return e.code }
func (e *NfsStatusError) Message() string { return e.Error() }
func (e *NfsStatusError) Unwrap() error   { return nil }
func (e *NfsStatusError) Error() string {
	return fmt.Sprintf("nfsclient: nfsv%d status: %s", e.Version, e.text)
}

var v2v3KindTable = map[nfs.Status]StatusKind{
	nfs.NFS3ErrNoEnt:       StatusNoEnt,
	nfs.NFS3ErrExist:       StatusExist,
	nfs.NFS3ErrAccess:      StatusAccess,
	nfs.NFS3ErrPerm:        StatusPerm,
	nfs.NFS3ErrIsDir:       StatusIsDir,
	nfs.NFS3ErrNotDir:      StatusNotDir,
	nfs.NFS3ErrNotEmpty:    StatusNotEmpty,
	nfs.NFS3ErrInval:       StatusInval,
	nfs.NFS3ErrIO:          StatusIO,
	nfs.NFS3ErrNoSpc:       StatusNoSpc,
	nfs.NFS3ErrFbig:        StatusFbig,
	nfs.NFS3ErrStale:       StatusStale,
	nfs.NFS3ErrBadHandle:   StatusBadHandle,
	nfs.NFS3ErrNameTooLong: StatusNameTooLong,
	nfs.NFS3ErrDquot:       StatusDquot,
	nfs.NFS3ErrRofs:        StatusRofs,
	nfs.NFS3ErrNotSupp:     StatusNotSupp,
	nfs.NFS3ErrJukebox:     StatusJukebox,
	nfs.NFS3ErrServerFault: StatusServerFault,
}

// FromNFSStatus converts an NFSv2/v3 wire status into a typed error tree.
// Returns nil for a success status. version distinguishes the text table
// used for the message only; the wire value space is shared between v2/v3
// except where the two protocols' error vocabularies diverge.
func FromNFSStatus(version uint32, status nfs.Status) error {
	if status.OK() {
		return nil
	}
	kind := v2v3KindTable[status]
	return &NfsStatusError{Version: version, code: uint32(status), Kind: kind, text: status.String()}
}

var v4KindTable = map[v4.Status]StatusKind{
	v4.StatusErrNoEnt:         StatusNoEnt,
	v4.StatusErrExist:         StatusExist,
	v4.StatusErrAccess:        StatusAccess,
	v4.StatusErrPerm:          StatusPerm,
	v4.StatusErrIsDir:         StatusIsDir,
	v4.StatusErrNotDir:        StatusNotDir,
	v4.StatusErrNotEmpty:      StatusNotEmpty,
	v4.StatusErrInval:         StatusInval,
	v4.StatusErrIO:            StatusIO,
	v4.StatusErrNoSpc:         StatusNoSpc,
	v4.StatusErrFbig:          StatusFbig,
	v4.StatusErrStale:         StatusStale,
	v4.StatusErrBadHandle:     StatusBadHandle,
	v4.StatusErrNameTooLong:   StatusNameTooLong,
	v4.StatusErrDquot:         StatusDquot,
	v4.StatusErrRofs:          StatusRofs,
	v4.StatusErrNotSupp:       StatusNotSupp,
	v4.StatusErrServerFault:   StatusServerFault,
	v4.StatusErrGrace:         StatusGrace,
	v4.StatusErrBadSeqid:      StatusBadSeqid,
	v4.StatusErrBadSlot:       StatusBadSlot,
}

// FromV4Status converts an NFSv4.1 nfsstat4 into a typed error tree.
// NFS4ERR_GRACE produces a *GraceError rather than a bare *NfsStatusError,
// so callers can single it out with errors.As without inspecting Kind.
func FromV4Status(status v4.Status) error {
	if status.OK() {
		return nil
	}
	kind := v4KindTable[status]
	base := NfsStatusError{Version: 4, code: uint32(status), Kind: kind, text: status.String()}
	if kind == StatusGrace {
		return &GraceError{NfsStatusError: base}
	}
	return &base
}

// AsStatus unwraps err looking for an *NfsStatusError (including one
// embedded in *GraceError), or for a raw nfs.Status or v4.Status as the
// engines return it, and reports its StatusKind; a status with no table
// entry reports StatusUnknown. Grounded on the
// teacher's errors.As-based MapMetadataErrorToNFS4, inverted: there the
// server maps an internal error to a wire status, here the client maps a
// wire status error back to a version-independent kind.
func AsStatus(err error) (kind StatusKind, ok bool) {
	var grace *GraceError
	if errors.As(err, &grace) {
		return grace.Kind, true
	}
	var se *NfsStatusError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	var wire nfs.Status
	if errors.As(err, &wire) {
		return v2v3KindTable[wire], true
	}
	var wire4 v4.Status
	if errors.As(err, &wire4) {
		return v4KindTable[wire4], true
	}
	return StatusUnknown, false
}

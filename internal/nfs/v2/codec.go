package v2

import (
	"bytes"
	"io"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/xdr"
)

// encodeSetAttrs writes the wire-level sattr/fattr-adjacent SetAttrs value.
// NFSv2 has no per-field optional<T>; a field not being set is instead
// encoded as the unsetAttr sentinel (RFC 1094 Section 2.3.6).
func encodeSetAttrs(buf *bytes.Buffer, a SetAttrs) error {
	mode, uid, gid, size := unsetAttr, unsetAttr, unsetAttr, unsetAttr
	if a.SetMode {
		mode = a.Mode
	}
	if a.SetUID {
		uid = a.UID
	}
	if a.SetGID {
		gid = a.GID
	}
	if a.SetSize {
		size = a.Size
	}
	for _, v := range []uint32{mode, uid, gid, size} {
		if err := xdr.WriteUint32(buf, v); err != nil {
			return err
		}
	}
	atime, mtime := unsetTimeVal, unsetTimeVal
	if a.SetAtime {
		atime = a.Atime
	}
	if a.SetMtime {
		mtime = a.Mtime
	}
	if err := nfs.EncodeTimeVal(buf, atime); err != nil {
		return err
	}
	return nfs.EncodeTimeVal(buf, mtime)
}

// unsetTimeVal encodes to 0xFFFFFFFF/0xFFFFFFFF, the "don't change" sentinel.
var unsetTimeVal = nfs.TimeVal{Seconds: unsetAttr, Nseconds: unsetAttr}

// decodeFattr reads the wire-level NFSv2 fattr (RFC 1094 Section 2.3.5)
// into the shared nfs.FileAttributes. v2's fattr has no 64-bit "used"
// field; it is derived here as blocks*blocksize, the same quantity v3's
// "used" field reports directly. v2's rdev is a single 32-bit value
// (major/minor packed by the server, not split like v3's specdata3); it is
// stored unsplit in Rdev[0] with Rdev[1] left zero.
func decodeFattr(r io.Reader) (*nfs.FileAttributes, error) {
	a := &nfs.FileAttributes{}
	var err error
	if a.Type, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if a.Mode, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if a.Nlink, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if a.UID, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if a.GID, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	size, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	a.Size = uint64(size)
	blocksize, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	if a.Rdev[0], err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	blocks, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	a.Used = uint64(blocks) * uint64(blocksize)
	fsid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	a.Fsid = uint64(fsid)
	fileid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	a.Fileid = uint64(fileid)
	if a.Atime, err = nfs.DecodeTimeVal(r); err != nil {
		return nil, err
	}
	if a.Mtime, err = nfs.DecodeTimeVal(r); err != nil {
		return nil, err
	}
	if a.Ctime, err = nfs.DecodeTimeVal(r); err != nil {
		return nil, err
	}
	return a, nil
}

func encodeHandle(buf *bytes.Buffer, handle []byte) error {
	padded := make([]byte, HandleLen)
	copy(padded, handle)
	return xdr.WriteXDROpaqueFixed(buf, padded)
}

func decodeHandle(r io.Reader) ([]byte, error) {
	return xdr.DecodeOpaqueFixed(r, HandleLen)
}

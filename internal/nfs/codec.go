package nfs

import (
	"bytes"
	"io"

	"github.com/marmos91/nfsclient/internal/xdr"
)

// EncodeTimeVal writes an nfstime3/timeval2 value.
func EncodeTimeVal(buf *bytes.Buffer, t TimeVal) error {
	if err := xdr.WriteUint32(buf, t.Seconds); err != nil {
		return err
	}
	return xdr.WriteUint32(buf, t.Nseconds)
}

// DecodeTimeVal reads an nfstime3/timeval2 value.
func DecodeTimeVal(r io.Reader) (TimeVal, error) {
	seconds, err := xdr.DecodeUint32(r)
	if err != nil {
		return TimeVal{}, err
	}
	nseconds, err := xdr.DecodeUint32(r)
	if err != nil {
		return TimeVal{}, err
	}
	return TimeVal{Seconds: seconds, Nseconds: nseconds}, nil
}

// EncodeFileAttributes writes an fattr3/fattr value.
func EncodeFileAttributes(buf *bytes.Buffer, a FileAttributes) error {
	for _, v := range []uint32{a.Type, a.Mode, a.Nlink, a.UID, a.GID} {
		if err := xdr.WriteUint32(buf, v); err != nil {
			return err
		}
	}
	for _, v := range []uint64{a.Size, a.Used} {
		if err := xdr.WriteUint64(buf, v); err != nil {
			return err
		}
	}
	if err := xdr.WriteUint32(buf, a.Rdev[0]); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, a.Rdev[1]); err != nil {
		return err
	}
	if err := xdr.WriteUint64(buf, a.Fsid); err != nil {
		return err
	}
	if err := xdr.WriteUint64(buf, a.Fileid); err != nil {
		return err
	}
	for _, t := range []TimeVal{a.Atime, a.Mtime, a.Ctime} {
		if err := EncodeTimeVal(buf, t); err != nil {
			return err
		}
	}
	return nil
}

// DecodeFileAttributes reads an fattr3/fattr value.
func DecodeFileAttributes(r io.Reader) (*FileAttributes, error) {
	a := &FileAttributes{}
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
	if a.Size, err = xdr.DecodeUint64(r); err != nil {
		return nil, err
	}
	if a.Used, err = xdr.DecodeUint64(r); err != nil {
		return nil, err
	}
	if a.Rdev[0], err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if a.Rdev[1], err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if a.Fsid, err = xdr.DecodeUint64(r); err != nil {
		return nil, err
	}
	if a.Fileid, err = xdr.DecodeUint64(r); err != nil {
		return nil, err
	}
	if a.Atime, err = DecodeTimeVal(r); err != nil {
		return nil, err
	}
	if a.Mtime, err = DecodeTimeVal(r); err != nil {
		return nil, err
	}
	if a.Ctime, err = DecodeTimeVal(r); err != nil {
		return nil, err
	}
	return a, nil
}

// DecodeOptionalAttributes reads a post_op_attr: a presence bool followed,
// if set, by a full fattr3.
func DecodeOptionalAttributes(r io.Reader) (*FileAttributes, error) {
	var attr *FileAttributes
	_, err := xdr.DecodeOptional(r, func() error {
		a, err := DecodeFileAttributes(r)
		if err != nil {
			return err
		}
		attr = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attr, nil
}

// EncodeOptionalAttributes writes a post_op_attr.
func EncodeOptionalAttributes(buf *bytes.Buffer, attr *FileAttributes) error {
	return xdr.WriteOptional(buf, attr != nil, func() error {
		return EncodeFileAttributes(buf, *attr)
	})
}

// DecodeWccAttr reads a wcc_attr (pre-operation attributes).
func DecodeWccAttr(r io.Reader) (*WccAttr, error) {
	size, err := xdr.DecodeUint64(r)
	if err != nil {
		return nil, err
	}
	mtime, err := DecodeTimeVal(r)
	if err != nil {
		return nil, err
	}
	ctime, err := DecodeTimeVal(r)
	if err != nil {
		return nil, err
	}
	return &WccAttr{Size: size, Mtime: mtime, Ctime: ctime}, nil
}

// DecodeWccData reads a wcc_data: optional pre-op wcc_attr followed by
// optional post-op fattr3 (RFC 1813 Section 2.6).
func DecodeWccData(r io.Reader) (WccData, error) {
	var wcc WccData
	before, err := xdr.DecodeOptional(r, func() error {
		b, err := DecodeWccAttr(r)
		if err != nil {
			return err
		}
		wcc.Before = b
		return nil
	})
	if err != nil {
		return WccData{}, err
	}
	wcc.BeforeSet = before

	after, err := xdr.DecodeOptional(r, func() error {
		a, err := DecodeFileAttributes(r)
		if err != nil {
			return err
		}
		wcc.After = a
		return nil
	})
	if err != nil {
		return WccData{}, err
	}
	wcc.AfterSet = after
	return wcc, nil
}

// EncodeHandle writes a variable-length file handle (nfs_fh3), used in
// request arguments.
func EncodeHandle(buf *bytes.Buffer, handle []byte) error {
	return xdr.WriteXDROpaque(buf, handle)
}

// DecodeHandle reads a variable-length file handle.
func DecodeHandle(r io.Reader) ([]byte, error) {
	return xdr.DecodeOpaque(r)
}

package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/marmos91/nfsclient/internal/nfs/mount"
	"github.com/marmos91/nfsclient/internal/nfs/v2"
	"github.com/marmos91/nfsclient/internal/rpc"
	"github.com/marmos91/nfsclient/internal/rpctest"
	"github.com/marmos91/nfsclient/internal/xdr"
)

// encodeV2Fattr writes a minimal wire-level NFSv2 fattr matching the
// fixed field order decodeFattr expects (RFC 1094 Section 2.3.5).
func encodeV2Fattr(buf *bytes.Buffer, fileType, mode, size uint32) error {
	fields := []uint32{
		fileType, // type
		mode,     // mode
		1,        // nlink
		0,        // uid
		0,        // gid
		size,     // size
		4096,     // blocksize
		0,        // rdev
		(size + 4095) / 4096, // blocks
		0,        // fsid
		2,        // fileid
		0, 0,     // atime
		0, 0, // mtime
		0, 0, // ctime
	}
	for _, v := range fields {
		if err := xdr.WriteUint32(buf, v); err != nil {
			return err
		}
	}
	return nil
}

// TestV2Engine_MountAndLookup exercises v2Engine.Mount and LookupPath end to
// end against a real (loopback) TCP server speaking MOUNT v1 and NFSv2,
// rather than a mocked Engine.
func TestV2Engine_MountAndLookup(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()

	rootHandle := fixedHandle(0x33, v2.HandleLen)
	childHandle := fixedHandle(0x44, v2.HandleLen)

	srv.Handle(mount.Program, mount.V1, mount.ProcMnt, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, uint32(mount.StatusOK)); err != nil {
			return nil, err
		}
		if err := xdr.WriteXDROpaqueFixed(buf, rootHandle); err != nil {
			return nil, err
		}
		if err := xdr.WriteArray(buf, 0, nil); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	srv.Handle(v2.Program, v2.Version, v2.ProcLookup, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0 /* NFS_OK */); err != nil {
			return nil, err
		}
		if err := xdr.WriteXDROpaqueFixed(buf, childHandle); err != nil {
			return nil, err
		}
		if err := encodeV2Fattr(buf, 1 /* NFREG */, 0644, 4096); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	nfsConn, err := rpc.DialTCP(ctx, srv.Addr(), rpc.Dialer{})
	if err != nil {
		t.Fatalf("dial nfs: %v", err)
	}
	defer nfsConn.Close()
	mountConn, err := rpc.DialTCP(ctx, srv.Addr(), rpc.Dialer{})
	if err != nil {
		t.Fatalf("dial mount: %v", err)
	}
	defer mountConn.Close()

	eng := NewV2(nfsConn, mountConn, rpc.NullAuth)

	handle, _, err := eng.Mount(ctx, "/export")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if !bytes.Equal(handle, rootHandle) {
		t.Errorf("Mount root handle = %x, want %x", handle, rootHandle)
	}

	childHandleGot, attrs, err := eng.LookupPath(ctx, handle, "sub")
	if err != nil {
		t.Fatalf("LookupPath: %v", err)
	}
	if !bytes.Equal(childHandleGot, childHandle) {
		t.Errorf("LookupPath handle = %x, want %x", childHandleGot, childHandle)
	}
	if attrs == nil || attrs.Size != 4096 {
		t.Errorf("LookupPath attrs = %+v, want Size=4096", attrs)
	}
}

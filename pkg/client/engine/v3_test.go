package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/nfs/mount"
	nfsv3 "github.com/marmos91/nfsclient/internal/nfs/v3"
	"github.com/marmos91/nfsclient/internal/rpc"
	"github.com/marmos91/nfsclient/internal/rpctest"
	"github.com/marmos91/nfsclient/internal/xdr"
)

func fixedHandle(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func wireAttrs(fileType uint32, size uint64) nfs.FileAttributes {
	return nfs.FileAttributes{
		Type: fileType,
		Mode: 0644,
		Size: size,
	}
}

// TestV3Engine_MountAndLookup exercises v3Engine.Mount and LookupPath end to
// end against a real (loopback) TCP server speaking the MOUNT and NFSv3
// wire protocols, rather than a mocked Engine.
func TestV3Engine_MountAndLookup(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()

	rootHandle := fixedHandle(0x11, 32)
	childHandle := fixedHandle(0x22, 32)

	srv.Handle(mount.Program, mount.V3, mount.ProcMnt, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, uint32(mount.StatusOK)); err != nil {
			return nil, err
		}
		if err := xdr.WriteXDROpaque(buf, rootHandle); err != nil {
			return nil, err
		}
		if err := xdr.WriteArray(buf, 0, nil); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	srv.Handle(nfsv3.Program, nfsv3.Version, nfsv3.ProcLookup, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0 /* NFS3_OK */); err != nil {
			return nil, err
		}
		if err := nfs.EncodeHandle(buf, childHandle); err != nil {
			return nil, err
		}
		childAttrs := wireAttrs(uint32(nfs.FileTypeRegular), 4096)
		if err := nfs.EncodeOptionalAttributes(buf, &childAttrs); err != nil {
			return nil, err
		}
		if err := nfs.EncodeOptionalAttributes(buf, nil); err != nil {
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

	eng := NewV3(nfsConn, mountConn, rpc.NullAuth)

	handle, flavors, err := eng.Mount(ctx, "/export")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if !bytes.Equal(handle, rootHandle) {
		t.Errorf("Mount root handle = %x, want %x", handle, rootHandle)
	}
	if len(flavors) != 0 {
		t.Errorf("expected no auth flavors, got %v", flavors)
	}

	childHandleGot, attrs, err := eng.LookupPath(ctx, handle, "sub")
	if err != nil {
		t.Fatalf("LookupPath: %v", err)
	}
	if !bytes.Equal(childHandleGot, childHandle) {
		t.Errorf("LookupPath handle = %x, want %x", childHandleGot, childHandle)
	}
	if attrs == nil || attrs.Size != 4096 || attrs.Type != FileTypeRegular {
		t.Errorf("LookupPath attrs = %+v, want Size=4096 Type=Regular", attrs)
	}
}

package rpctest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/marmos91/nfsclient/internal/nfs/mount"
	"github.com/marmos91/nfsclient/internal/rpc"
	"github.com/marmos91/nfsclient/internal/xdr"
)

func TestServer_MountRoundTrip(t *testing.T) {
	srv, err := NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()

	rootHandle := bytes.Repeat([]byte{0xAB}, 32)
	srv.Handle(mount.Program, mount.V1, mount.ProcMnt, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		dirPath, err := xdr.DecodeString(bytes.NewReader(args))
		if err != nil {
			return nil, err
		}
		if dirPath != "/export" {
			t.Errorf("server saw dirpath %q, want /export", dirPath)
		}
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
	srv.Handle(mount.Program, mount.V1, mount.ProcUmnt, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := rpc.DialTCP(ctx, srv.Addr(), rpc.Dialer{})
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer conn.Close()

	client := mount.New(conn, mount.V1, rpc.NullAuth)
	res, err := client.Mnt(ctx, "/export")
	if err != nil {
		t.Fatalf("Mnt: %v", err)
	}
	if !bytes.Equal(res.RootHandle, rootHandle) {
		t.Errorf("RootHandle = %x, want %x", res.RootHandle, rootHandle)
	}
	if len(res.AuthFlavors) != 0 {
		t.Errorf("expected no auth flavors, got %v", res.AuthFlavors)
	}

	if err := client.Umnt(ctx, "/export"); err != nil {
		t.Fatalf("Umnt: %v", err)
	}
}

func TestServer_UnhandledProcedureReturnsProcUnavail(t *testing.T) {
	srv, err := NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := rpc.DialTCP(ctx, srv.Addr(), rpc.Dialer{})
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer conn.Close()

	client := mount.New(conn, mount.V1, rpc.NullAuth)
	if _, err := client.Mnt(ctx, "/export"); err == nil {
		t.Fatal("expected an error for an unregistered procedure")
	}
}

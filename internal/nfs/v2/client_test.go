package v2_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/nfs/v2"
	"github.com/marmos91/nfsclient/internal/rpc"
	"github.com/marmos91/nfsclient/internal/rpctest"
	"github.com/marmos91/nfsclient/internal/xdr"
)

func dial(t *testing.T, srv *rpctest.Server) rpc.Transport {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := rpc.DialTCP(ctx, srv.Addr(), rpc.Dialer{})
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func encodeFattr(buf *bytes.Buffer, fileType, mode, size uint32) error {
	fields := []uint32{
		fileType, mode, 1, 0, 0, size,
		4096, 0, (size + 4095) / 4096, 0, 7,
		0, 0, 0, 0, 0, 0,
	}
	for _, v := range fields {
		if err := xdr.WriteUint32(buf, v); err != nil {
			return err
		}
	}
	return nil
}

func TestClient_GetAttr(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	handle := bytes.Repeat([]byte{0x11}, v2.HandleLen)

	srv.Handle(v2.Program, v2.Version, v2.ProcGetAttr, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0); err != nil {
			return nil, err
		}
		if err := encodeFattr(buf, 1, 0644, 1024); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	c := v2.New(dial(t, srv), rpc.NullAuth)
	attrs, err := c.GetAttr(context.Background(), handle)
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	if attrs.Size != 1024 {
		t.Errorf("Size = %d, want 1024", attrs.Size)
	}
	if attrs.Fileid != 7 {
		t.Errorf("Fileid = %d, want 7", attrs.Fileid)
	}
}

func TestClient_GetAttr_ErrorStatus(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	srv.Handle(v2.Program, v2.Version, v2.ProcGetAttr, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, uint32(nfs.NFSErrNoEnt)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	c := v2.New(dial(t, srv), rpc.NullAuth)
	_, err = c.GetAttr(context.Background(), bytes.Repeat([]byte{0x01}, v2.HandleLen))
	if err == nil {
		t.Fatal("expected an error for NFSERR_NOENT")
	}
	status, ok := err.(nfs.Status)
	if !ok {
		t.Fatalf("error type = %T, want nfs.Status", err)
	}
	if status != nfs.NFSErrNoEnt {
		t.Errorf("status = %v, want NFSErrNoEnt", status)
	}
}

func TestClient_Lookup(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	childHandle := bytes.Repeat([]byte{0x22}, v2.HandleLen)

	srv.Handle(v2.Program, v2.Version, v2.ProcLookup, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0); err != nil {
			return nil, err
		}
		if err := xdr.WriteXDROpaqueFixed(buf, childHandle); err != nil {
			return nil, err
		}
		if err := encodeFattr(buf, 2, 0755, 4096); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	c := v2.New(dial(t, srv), rpc.NullAuth)
	result, err := c.Lookup(context.Background(), bytes.Repeat([]byte{0x00}, v2.HandleLen), "subdir")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !bytes.Equal(result.Handle, childHandle) {
		t.Errorf("Handle = %x, want %x", result.Handle, childHandle)
	}
	if result.Attr.Type != 2 {
		t.Errorf("Type = %d, want 2 (directory)", result.Attr.Type)
	}
}

func TestClient_ReadDir_PaginatesUntilEof(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	srv.Handle(v2.Program, v2.Version, v2.ProcReadDir, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0); err != nil {
			return nil, err
		}
		for _, name := range []string{"a", "b"} {
			if err := xdr.WriteBool(buf, true); err != nil {
				return nil, err
			}
			if err := xdr.WriteUint32(buf, 1); err != nil {
				return nil, err
			}
			if err := xdr.WriteXDRString(buf, name); err != nil {
				return nil, err
			}
			if err := xdr.WriteXDROpaqueFixed(buf, []byte{0, 0, 0, 1}); err != nil {
				return nil, err
			}
		}
		if err := xdr.WriteBool(buf, false); err != nil {
			return nil, err
		}
		if err := xdr.WriteBool(buf, true); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	c := v2.New(dial(t, srv), rpc.NullAuth)
	var cookie [v2.CookieLen]byte
	result, err := c.ReadDir(context.Background(), bytes.Repeat([]byte{0x00}, v2.HandleLen), cookie, 4096)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(result.Entries))
	}
	if result.Entries[0].Name != "a" || result.Entries[1].Name != "b" {
		t.Errorf("entries = %+v, want [a b]", result.Entries)
	}
	if !result.Eof {
		t.Error("Eof = false, want true")
	}
}

func TestClient_StatFS(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	srv.Handle(v2.Program, v2.Version, v2.ProcStatFS, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		for _, v := range []uint32{0, 8192, 4096, 1000, 500, 400} {
			if err := xdr.WriteUint32(buf, v); err != nil {
				return nil, err
			}
		}
		return buf.Bytes(), nil
	})

	c := v2.New(dial(t, srv), rpc.NullAuth)
	stat, err := c.StatFS(context.Background(), bytes.Repeat([]byte{0x00}, v2.HandleLen))
	if err != nil {
		t.Fatalf("StatFS: %v", err)
	}
	if stat.BlockSize != 4096 || stat.Blocks != 1000 {
		t.Errorf("stat = %+v, want BlockSize=4096 Blocks=1000", stat)
	}
}

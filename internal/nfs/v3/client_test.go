package v3_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/nfs/v3"
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

func writeEmptyWccData(buf *bytes.Buffer) error {
	if err := xdr.WriteOptional(buf, false, nil); err != nil {
		return err
	}
	return xdr.WriteOptional(buf, false, nil)
}

func TestClient_GetAttr(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	srv.Handle(v3.Program, v3.Version, v3.ProcGetAttr, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0); err != nil {
			return nil, err
		}
		attrs := nfs.FileAttributes{Type: uint32(nfs.FileTypeRegular), Mode: 0644, Size: 2048}
		if err := nfs.EncodeFileAttributes(buf, attrs); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	c := v3.New(dial(t, srv), rpc.NullAuth)
	attrs, err := c.GetAttr(context.Background(), bytes.Repeat([]byte{0x01}, 32))
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	if attrs.Size != 2048 || attrs.Type != uint32(nfs.FileTypeRegular) {
		t.Errorf("attrs = %+v, want Size=2048 Type=Regular", attrs)
	}
}

func TestClient_GetAttr_ErrorStatus(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	srv.Handle(v3.Program, v3.Version, v3.ProcGetAttr, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, uint32(nfs.NFS3ErrStale)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	c := v3.New(dial(t, srv), rpc.NullAuth)
	_, err = c.GetAttr(context.Background(), bytes.Repeat([]byte{0x01}, 32))
	status, ok := err.(nfs.Status)
	if !ok {
		t.Fatalf("error type = %T, want nfs.Status", err)
	}
	if status != nfs.NFS3ErrStale {
		t.Errorf("status = %v, want NFS3ErrStale", status)
	}
}

func TestClient_Lookup_FailureStillCarriesDirAttr(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	srv.Handle(v3.Program, v3.Version, v3.ProcLookup, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, uint32(nfs.NFS3ErrNoEnt)); err != nil {
			return nil, err
		}
		dirAttrs := nfs.FileAttributes{Type: uint32(nfs.FileTypeDirectory), Size: 4096}
		if err := nfs.EncodeOptionalAttributes(buf, &dirAttrs); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	c := v3.New(dial(t, srv), rpc.NullAuth)
	result, err := c.Lookup(context.Background(), bytes.Repeat([]byte{0x00}, 32), "missing")
	if err == nil {
		t.Fatal("expected NFS3ErrNoEnt")
	}
	if result.DirAttr == nil || result.DirAttr.Size != 4096 {
		t.Errorf("DirAttr = %+v, want Size=4096 even on failure", result.DirAttr)
	}
}

func TestClient_Read_ShortReadCapsDataToCount(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	payload := []byte("hello, world")
	srv.Handle(v3.Program, v3.Version, v3.ProcRead, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0); err != nil {
			return nil, err
		}
		if err := nfs.EncodeOptionalAttributes(buf, nil); err != nil {
			return nil, err
		}
		if err := xdr.WriteUint32(buf, 5); err != nil {
			return nil, err
		}
		if err := xdr.WriteBool(buf, true); err != nil {
			return nil, err
		}
		if err := xdr.WriteXDROpaque(buf, payload); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	c := v3.New(dial(t, srv), rpc.NullAuth)
	result, err := c.Read(context.Background(), bytes.Repeat([]byte{0x00}, 32), 0, 4096)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(result.Data) != "hello" || !result.Eof {
		t.Errorf("result = %+v, want Data=hello Eof=true", result)
	}
}

func TestClient_Write_ReturnsWccAndCount(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	srv.Handle(v3.Program, v3.Version, v3.ProcWrite, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0); err != nil {
			return nil, err
		}
		if err := writeEmptyWccData(buf); err != nil {
			return nil, err
		}
		if err := xdr.WriteUint32(buf, 5); err != nil {
			return nil, err
		}
		if err := xdr.WriteUint32(buf, v3.FileSync); err != nil {
			return nil, err
		}
		if err := xdr.WriteXDROpaqueFixed(buf, bytes.Repeat([]byte{0xAB}, 8)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	c := v3.New(dial(t, srv), rpc.NullAuth)
	result, err := c.Write(context.Background(), bytes.Repeat([]byte{0x00}, 32), 0, v3.FileSync, []byte("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if result.Count != 5 || result.Committed != v3.FileSync {
		t.Errorf("result = %+v, want Count=5 Committed=FileSync", result)
	}
}

func TestClient_ReadDir_PaginatesUntilEof(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	srv.Handle(v3.Program, v3.Version, v3.ProcReadDir, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0); err != nil {
			return nil, err
		}
		if err := nfs.EncodeOptionalAttributes(buf, nil); err != nil {
			return nil, err
		}
		if err := xdr.WriteXDROpaqueFixed(buf, bytes.Repeat([]byte{0x01}, 8)); err != nil {
			return nil, err
		}
		for i, name := range []string{"a", "b", "c"} {
			if err := xdr.WriteBool(buf, true); err != nil {
				return nil, err
			}
			if err := xdr.WriteUint64(buf, uint64(i+1)); err != nil {
				return nil, err
			}
			if err := xdr.WriteXDRString(buf, name); err != nil {
				return nil, err
			}
			if err := xdr.WriteUint64(buf, uint64(i+1)); err != nil {
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

	c := v3.New(dial(t, srv), rpc.NullAuth)
	result, err := c.ReadDir(context.Background(), bytes.Repeat([]byte{0x00}, 32), 0, v3.Cookieverf{}, 8192)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(result.Entries) != 3 || !result.Eof {
		t.Fatalf("result = %+v, want 3 entries and Eof=true", result)
	}
	if result.Entries[2].Name != "c" || result.Entries[2].Cookie != 3 {
		t.Errorf("third entry = %+v, want Name=c Cookie=3", result.Entries[2])
	}
}

func TestClient_FsInfo_ComputesBlockSize(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	srv.Handle(v3.Program, v3.Version, v3.ProcFsInfo, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0); err != nil {
			return nil, err
		}
		if err := nfs.EncodeOptionalAttributes(buf, nil); err != nil {
			return nil, err
		}
		for _, v := range []uint32{65536, 65536, 4096, 65536, 65536, 4096, 128} {
			if err := xdr.WriteUint32(buf, v); err != nil {
				return nil, err
			}
		}
		if err := xdr.WriteUint64(buf, 1<<40); err != nil {
			return nil, err
		}
		if err := xdr.WriteUint32(buf, 1); err != nil {
			return nil, err
		}
		if err := xdr.WriteUint32(buf, 0); err != nil {
			return nil, err
		}
		if err := xdr.WriteUint32(buf, v3.FSFHomogeneous); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	c := v3.New(dial(t, srv), rpc.NullAuth)
	result, err := c.FsInfo(context.Background(), bytes.Repeat([]byte{0x00}, 32))
	if err != nil {
		t.Fatalf("FsInfo: %v", err)
	}
	if result.BlockSize() != 65336 {
		t.Errorf("BlockSize = %d, want clamped to maxBlockSize 65336", result.BlockSize())
	}
}

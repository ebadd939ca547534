package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/marmos91/nfsclient/internal/nfs"
	"github.com/marmos91/nfsclient/internal/nfs/mount"
	nfsv3 "github.com/marmos91/nfsclient/internal/nfs/v3"
	"github.com/marmos91/nfsclient/internal/rpc"
	"github.com/marmos91/nfsclient/internal/rpctest"
	"github.com/marmos91/nfsclient/internal/xdr"
	"github.com/marmos91/nfsclient/pkg/client/engine"
	"github.com/marmos91/nfsclient/pkg/config"
)

// TestClient_ConnectMountReadWrite exercises the façade end to end — Connect,
// MountDevice, Read, Write — against a real loopback rpctest.Server speaking
// MOUNT v3 and NFSv3, rather than a mocked engine.Engine. NFSPort/MountPort
// are pinned to the test server's port so Connect never needs a portmapper.
func TestClient_ConnectMountReadWrite(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(srv.Addr())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	rootHandle := bytes.Repeat([]byte{0x11}, 8)
	fileContents := []byte("hello from the loopback server")

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

	srv.Handle(nfsv3.Program, nfsv3.Version, nfsv3.ProcGetAttr, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0 /* NFS3_OK */); err != nil {
			return nil, err
		}
		attrs := nfs.FileAttributes{Type: uint32(nfs.FileTypeRegular), Mode: 0644, Size: uint64(len(fileContents))}
		if err := nfs.EncodeFileAttributes(buf, attrs); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	srv.Handle(nfsv3.Program, nfsv3.Version, nfsv3.ProcRead, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		r := bytes.NewReader(args)
		if _, err := nfs.DecodeHandle(r); err != nil {
			return nil, err
		}
		offset, err := xdr.DecodeUint64(r)
		if err != nil {
			return nil, err
		}
		count, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		var data []byte
		eof := true
		if offset < uint64(len(fileContents)) {
			end := offset + uint64(count)
			if end > uint64(len(fileContents)) {
				end = uint64(len(fileContents))
			}
			data = fileContents[offset:end]
			eof = end >= uint64(len(fileContents))
		}

		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0 /* NFS3_OK */); err != nil {
			return nil, err
		}
		if err := nfs.EncodeOptionalAttributes(buf, nil); err != nil {
			return nil, err
		}
		if err := xdr.WriteUint32(buf, uint32(len(data))); err != nil {
			return nil, err
		}
		if err := xdr.WriteBool(buf, eof); err != nil {
			return nil, err
		}
		if err := xdr.WriteXDROpaque(buf, data); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})

	srv.Handle(nfsv3.Program, nfsv3.Version, nfsv3.ProcWrite, func(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
		r := bytes.NewReader(args)
		if _, err := nfs.DecodeHandle(r); err != nil {
			return nil, err
		}
		if _, err := xdr.DecodeUint64(r); err != nil { // offset
			return nil, err
		}
		if _, err := xdr.DecodeUint32(r); err != nil { // count
			return nil, err
		}
		if _, err := xdr.DecodeUint32(r); err != nil { // stable
			return nil, err
		}
		data, err := xdr.DecodeOpaque(r)
		if err != nil {
			return nil, err
		}

		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, 0 /* NFS3_OK */); err != nil {
			return nil, err
		}
		if err := xdr.WriteBool(buf, false); err != nil { // wcc_data.before absent
			return nil, err
		}
		if err := xdr.WriteBool(buf, false); err != nil { // wcc_data.after absent
			return nil, err
		}
		if err := xdr.WriteUint32(buf, uint32(len(data))); err != nil { // count
			return nil, err
		}
		if err := xdr.WriteUint32(buf, nfsv3.FileSync); err != nil { // committed
			return nil, err
		}
		if _, err := buf.Write(make([]byte, 8)); err != nil { // write verifier
			return nil, err
		}
		return buf.Bytes(), nil
	})

	opts := config.Options{NFSPort: port, MountPort: port, CommandTimeout: 2 * time.Second}
	c := New(engine.V3, &opts, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Connect(ctx, host); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()
	defer c.UnMountDevice(ctx)

	if err := c.MountDevice(ctx, "/export"); err != nil {
		t.Fatalf("MountDevice: %v", err)
	}

	// readBuf is sized exactly to the file's length, so the final chunk
	// satisfies io.ReaderAt's contract: a full read that also lands on
	// EOF returns (n, io.EOF) rather than (n, nil).
	readBuf := make([]byte, len(fileContents))
	n, err := c.Read(ctx, "", 0, readBuf)
	if err != nil && err != io.EOF {
		t.Fatalf("Read: %v", err)
	}
	if n != len(fileContents) || !bytes.Equal(readBuf, fileContents) {
		t.Errorf("Read = %q (n=%d), want %q", readBuf[:n], n, fileContents)
	}

	writeData := []byte("overwrite")
	n, err = c.Write(ctx, "", 0, writeData)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(writeData) {
		t.Errorf("Write returned n=%d, want %d", n, len(writeData))
	}
}

package pool

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/marmos91/nfsclient/internal/nfs/mount"
	"github.com/marmos91/nfsclient/internal/rpc"
	"github.com/marmos91/nfsclient/internal/rpctest"
	"github.com/marmos91/nfsclient/internal/xdr"
	"github.com/marmos91/nfsclient/pkg/client/engine"
	"github.com/marmos91/nfsclient/pkg/config"
	"github.com/marmos91/nfsclient/pkg/nfserrors"
)

// newTestServer starts a loopback MOUNT v3 server that answers every MNT
// call with the same fixed root handle, and returns config.Options with
// NFSPort/MountPort pinned to it so Pool.Lease never needs a portmapper.
func newTestServer(t *testing.T) (*rpctest.Server, config.Options) {
	t.Helper()
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	rootHandle := bytes.Repeat([]byte{0x11}, 32)
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

	host, portStr, err := net.SplitHostPort(srv.Addr())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	opts := config.Options{NFSPort: port, MountPort: port, CommandTimeout: 2 * time.Second}
	return srv, opts
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPool_LeaseReusesReleasedConnection(t *testing.T) {
	srv, opts := newTestServer(t)
	host, _, _ := net.SplitHostPort(srv.Addr())

	p := New(config.PoolOptions{MaxPoolSize: 1}, nil, nil)
	defer p.Dispose()

	ctx := testCtx(t)
	first, err := p.Lease(ctx, host, "/export", engine.V3, &opts)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	firstID := first.ID()
	first.Release()

	second, err := p.Lease(ctx, host, "/export", engine.V3, &opts)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	defer second.Release()

	if second.ID() != firstID {
		t.Errorf("expected the idle connection to be reused, got a fresh one: %s != %s", second.ID(), firstID)
	}
}

func TestPool_LeaseEnforcesMaxPoolSize(t *testing.T) {
	srv, opts := newTestServer(t)
	host, _, _ := net.SplitHostPort(srv.Addr())

	p := New(config.PoolOptions{MaxPoolSize: 1}, nil, nil)
	defer p.Dispose()

	ctx := testCtx(t)
	held, err := p.Lease(ctx, host, "/export", engine.V3, &opts)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	defer held.Release()

	_, err = p.Lease(ctx, host, "/export", engine.V3, &opts)
	if err == nil {
		t.Fatal("expected the second Lease to fail with the pool exhausted")
	}
	var connErr *nfserrors.ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("expected a *nfserrors.ConnectionError, got %T: %v", err, err)
	}
}

func TestPool_FaultDestroysRatherThanReturns(t *testing.T) {
	srv, opts := newTestServer(t)
	host, _, _ := net.SplitHostPort(srv.Addr())

	p := New(config.PoolOptions{MaxPoolSize: 2}, nil, nil)
	defer p.Dispose()

	ctx := testCtx(t)
	first, err := p.Lease(ctx, host, "/export", engine.V3, &opts)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	firstID := first.ID()
	first.Fault()

	second, err := p.Lease(ctx, host, "/export", engine.V3, &opts)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	defer second.Release()

	if second.ID() == firstID {
		t.Error("expected Fault to destroy the connection rather than let it be reused")
	}
}

func TestPool_DisposeFailsSubsequentLeases(t *testing.T) {
	srv, opts := newTestServer(t)
	host, _, _ := net.SplitHostPort(srv.Addr())

	p := New(config.PoolOptions{MaxPoolSize: 1}, nil, nil)

	ctx := testCtx(t)
	leased, err := p.Lease(ctx, host, "/export", engine.V3, &opts)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	leased.Release()

	if err := p.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}

	_, err = p.Lease(ctx, host, "/export", engine.V3, &opts)
	var disposed *nfserrors.DisposedError
	if !errors.As(err, &disposed) {
		t.Errorf("expected a *nfserrors.DisposedError after Dispose, got %T: %v", err, err)
	}
}

func TestPool_ReleaseTwiceIsANoOp(t *testing.T) {
	srv, opts := newTestServer(t)
	host, _, _ := net.SplitHostPort(srv.Addr())

	p := New(config.PoolOptions{MaxPoolSize: 1}, nil, nil)
	defer p.Dispose()

	ctx := testCtx(t)
	leased, err := p.Lease(ctx, host, "/export", engine.V3, &opts)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	leased.Release()
	leased.Release() // must not panic or double-decrement the pool's count

	again, err := p.Lease(ctx, host, "/export", engine.V3, &opts)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	again.Release()
}

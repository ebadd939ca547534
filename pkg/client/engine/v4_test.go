package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	nfsv4 "github.com/marmos91/nfsclient/internal/nfs/v4"
	"github.com/marmos91/nfsclient/internal/rpc"
	"github.com/marmos91/nfsclient/internal/rpctest"
	"github.com/marmos91/nfsclient/internal/xdr"
)

// v4CompoundServer plays the server side of a full v4.1 session: EXCHANGE_ID,
// CREATE_SESSION, RECLAIM_COMPLETE, and SEQUENCE-wrapped LookupPath calls,
// against a real loopback rpctest.Server rather than a mocked Engine.
type v4CompoundServer struct {
	sessionID [16]byte
	rootHandle []byte
	childHandle []byte
}

func (s *v4CompoundServer) handle(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	if _, err := xdr.DecodeString(r); err != nil { // tag
		return nil, err
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // minorversion
		return nil, err
	}
	opCount, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}

	resBuf := new(bytes.Buffer)
	nres := 0
	for i := uint32(0); i < opCount; i++ {
		opcode, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		result, err := s.dispatchOp(r, opcode)
		if err != nil {
			return nil, err
		}
		if err := xdr.WriteUint32(resBuf, opcode); err != nil {
			return nil, err
		}
		if err := xdr.WriteUint32(resBuf, uint32(nfsv4.StatusOK)); err != nil {
			return nil, err
		}
		resBuf.Write(result)
		nres++
	}

	out := new(bytes.Buffer)
	if err := xdr.WriteUint32(out, uint32(nfsv4.StatusOK)); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDRString(out, ""); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(out, uint32(nres)); err != nil {
		return nil, err
	}
	out.Write(resBuf.Bytes())
	return out.Bytes(), nil
}

// dispatchOp consumes opcode's argument bytes from r and returns its
// op-specific result body (status and opcode are written by the caller).
func (s *v4CompoundServer) dispatchOp(r *bytes.Reader, opcode uint32) ([]byte, error) {
	switch opcode {
	case nfsv4.OpExchangeID:
		var verifier [8]byte
		if _, err := r.Read(verifier[:]); err != nil {
			return nil, err
		}
		if _, err := xdr.DecodeOpaque(r); err != nil { // owner id
			return nil, err
		}
		for i := 0; i < 2; i++ { // eia_flags, eia_state_protect.how
			if _, err := xdr.DecodeUint32(r); err != nil {
				return nil, err
			}
		}
		if _, err := xdr.DecodeArray(r, 1, func(int) error { return nil }); err != nil { // impl_id<1>
			return nil, err
		}

		buf := new(bytes.Buffer)
		if err := xdr.WriteUint64(buf, 1); err != nil { // clientid
			return nil, err
		}
		if err := xdr.WriteUint32(buf, 1); err != nil { // sequenceid
			return nil, err
		}
		if err := xdr.WriteUint32(buf, 0); err != nil { // flags
			return nil, err
		}
		if err := xdr.WriteUint32(buf, 0); err != nil { // state_protect.how
			return nil, err
		}
		if err := xdr.WriteUint64(buf, 0); err != nil { // so_minor_id
			return nil, err
		}
		if err := xdr.WriteXDROpaque(buf, nil); err != nil { // so_major_id
			return nil, err
		}
		if err := xdr.WriteXDROpaque(buf, nil); err != nil { // server_scope
			return nil, err
		}
		if err := xdr.WriteUint32(buf, 0); err != nil { // server_impl_id<1>
			return nil, err
		}
		return buf.Bytes(), nil

	case nfsv4.OpCreateSession:
		if _, err := xdr.DecodeUint64(r); err != nil { // clientid
			return nil, err
		}
		if _, err := xdr.DecodeUint32(r); err != nil { // sequenceid
			return nil, err
		}
		if _, err := xdr.DecodeUint32(r); err != nil { // csa_flags
			return nil, err
		}
		for i := 0; i < 2; i++ { // fore/back channel attrs
			if err := skipChannelAttrs(r); err != nil {
				return nil, err
			}
		}
		if _, err := xdr.DecodeUint32(r); err != nil { // csa_cb_program
			return nil, err
		}
		if _, err := xdr.DecodeArray(r, 1, func(int) error { return nil }); err != nil { // csa_sec_parms<>
			return nil, err
		}

		buf := new(bytes.Buffer)
		buf.Write(s.sessionID[:])
		if err := xdr.WriteUint32(buf, 1); err != nil { // csr_sequence
			return nil, err
		}
		if err := xdr.WriteUint32(buf, 0); err != nil { // csr_flags
			return nil, err
		}
		for i := 0; i < 2; i++ { // fore/back channel attrs
			if err := writeChannelAttrs(buf); err != nil {
				return nil, err
			}
		}
		return buf.Bytes(), nil

	case nfsv4.OpReclaimComplete:
		if _, err := xdr.DecodeBool(r); err != nil { // rca_one_fs
			return nil, err
		}
		return nil, nil

	case nfsv4.OpSequence:
		var sid [16]byte
		if _, err := r.Read(sid[:]); err != nil {
			return nil, err
		}
		for i := 0; i < 3; i++ { // sequenceid, slotid, highest_slotid
			if _, err := xdr.DecodeUint32(r); err != nil {
				return nil, err
			}
		}
		if _, err := xdr.DecodeBool(r); err != nil { // sa_cachethis
			return nil, err
		}

		buf := new(bytes.Buffer)
		buf.Write(s.sessionID[:])
		// sequenceid, slotid, highest_slotid, target_highest_slotid, status_flags
		for i := 0; i < 5; i++ {
			if err := xdr.WriteUint32(buf, 0); err != nil {
				return nil, err
			}
		}
		return buf.Bytes(), nil

	case nfsv4.OpPutRootFH:
		return nil, nil

	case nfsv4.OpLookup:
		if _, err := xdr.DecodeString(r); err != nil { // component name
			return nil, err
		}
		return nil, nil

	case nfsv4.OpGetFH:
		buf := new(bytes.Buffer)
		if err := xdr.WriteXDROpaque(buf, s.childHandle); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case nfsv4.OpGetAttr:
		if _, err := xdr.DecodeArray(r, 8, func(int) error {
			_, err := xdr.DecodeUint32(r)
			return err
		}); err != nil { // requested attrmask
			return nil, err
		}

		attrBody := new(bytes.Buffer)
		if err := xdr.WriteUint32(attrBody, 1 /* NF4REG */); err != nil {
			return nil, err
		}
		if err := xdr.WriteUint64(attrBody, 4096); err != nil { // size
			return nil, err
		}

		bits := [2]uint32{}
		bits[nfsv4.AttrType/32] |= 1 << uint(nfsv4.AttrType%32)
		bits[nfsv4.AttrSize/32] |= 1 << uint(nfsv4.AttrSize%32)

		buf := new(bytes.Buffer)
		if err := xdr.WriteUint32(buf, uint32(len(bits))); err != nil {
			return nil, err
		}
		for _, w := range bits {
			if err := xdr.WriteUint32(buf, w); err != nil {
				return nil, err
			}
		}
		if err := xdr.WriteXDROpaque(buf, attrBody.Bytes()); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		return nil, nil
	}
}

func skipChannelAttrs(r *bytes.Reader) error {
	for i := 0; i < 6; i++ {
		if _, err := xdr.DecodeUint32(r); err != nil {
			return err
		}
	}
	_, err := xdr.DecodeArray(r, 1, func(int) error {
		_, err := xdr.DecodeUint32(r)
		return err
	})
	return err
}

func writeChannelAttrs(buf *bytes.Buffer) error {
	for i := 0; i < 6; i++ {
		if err := xdr.WriteUint32(buf, 0); err != nil {
			return err
		}
	}
	return xdr.WriteUint32(buf, 0) // rdma_ird<1>: empty
}

// TestV4Engine_ConnectMountAndLookup exercises v4Engine.Connect, Mount, and
// LookupPath end to end against a real loopback server speaking the full
// EXCHANGE_ID/CREATE_SESSION/RECLAIM_COMPLETE/SEQUENCE sequence, rather than
// a mocked Engine or a Client with its session field poked directly.
func TestV4Engine_ConnectMountAndLookup(t *testing.T) {
	srv, err := rpctest.NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()

	compound := &v4CompoundServer{
		rootHandle:  fixedHandle(0x55, 16),
		childHandle: fixedHandle(0x66, 16),
	}
	copy(compound.sessionID[:], bytes.Repeat([]byte{0x77}, 16))

	srv.Handle(nfsv4.Program, nfsv4.Version, nfsv4.ProcCompound, compound.handle)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := rpc.DialTCP(ctx, srv.Addr(), rpc.Dialer{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	eng := NewV4(conn, rpc.NullAuth, "nfsclient-test")

	if err := eng.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	handle, _, err := eng.Mount(ctx, `\export`)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	childHandle, attrs, err := eng.LookupPath(ctx, handle, "sub")
	if err != nil {
		t.Fatalf("LookupPath: %v", err)
	}
	if !bytes.Equal(childHandle, compound.childHandle) {
		t.Errorf("LookupPath handle = %x, want %x", childHandle, compound.childHandle)
	}
	if attrs == nil || attrs.Size != 4096 || attrs.Type != FileTypeRegular {
		t.Errorf("LookupPath attrs = %+v, want Size=4096 Type=Regular", attrs)
	}
}

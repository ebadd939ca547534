package rpc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/marmos91/nfsclient/internal/xdr"
)

// CallHeader is everything that precedes the procedure-specific arguments
// in an RPC call message (RFC 5531 Section 8).
type CallHeader struct {
	XID       uint32
	Program   uint32
	Version   uint32
	Procedure uint32
	Cred      OpaqueAuth
	Verf      OpaqueAuth
}

// EncodeCall writes the call header and returns the buffer so the caller
// can append procedure arguments directly after it.
func EncodeCall(h CallHeader) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	for _, v := range []uint32{h.XID, MsgCall, RPCVersion, h.Program, h.Version, h.Procedure} {
		if err := xdr.WriteUint32(buf, v); err != nil {
			return nil, err
		}
	}
	if err := h.Cred.Encode(buf); err != nil {
		return nil, fmt.Errorf("rpc: encode credential: %w", err)
	}
	if err := h.Verf.Encode(buf); err != nil {
		return nil, fmt.Errorf("rpc: encode verifier: %w", err)
	}
	return buf, nil
}

// MismatchInfo carries the [low, high] supported version range a server
// returns in a PROG_MISMATCH or RPC_MISMATCH rejection.
type MismatchInfo struct {
	Low  uint32
	High uint32
}

// ReplyHeader is the parsed form of an RPC reply message up to (but not
// including) the procedure-specific results.
type ReplyHeader struct {
	XID         uint32
	ReplyState  uint32
	Verf        OpaqueAuth
	AcceptState uint32 // valid when ReplyState == ReplyAccepted
	RejectState uint32 // valid when ReplyState == ReplyDenied
	Mismatch    *MismatchInfo
}

// Accepted reports whether the reply indicates the call was accepted and
// fully succeeded (accept_stat == SUCCESS). Anything else — denial,
// PROG_MISMATCH, a non-SUCCESS accept_stat — is surfaced by the caller via
// AsError.
func (h *ReplyHeader) Accepted() bool {
	return h.ReplyState == ReplyAccepted && h.AcceptState == AcceptSuccess
}

// DecodeReply parses the reply header from r. On return, if Accepted() is
// true, r is positioned at the start of the procedure-specific result data.
func DecodeReply(r io.Reader) (*ReplyHeader, error) {
	xid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: xid: %w", err)
	}
	msgType, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: msg_type: %w", err)
	}
	if msgType != MsgReply {
		return nil, fmt.Errorf("rpc: expected REPLY (1), got msg_type %d", msgType)
	}

	h := &ReplyHeader{XID: xid}
	h.ReplyState, err = xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: reply_stat: %w", err)
	}

	switch h.ReplyState {
	case ReplyAccepted:
		flavor, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("rpc: verifier flavor: %w", err)
		}
		body, err := xdr.DecodeOpaque(r)
		if err != nil {
			return nil, fmt.Errorf("rpc: verifier body: %w", err)
		}
		h.Verf = OpaqueAuth{Flavor: flavor, Body: body}

		h.AcceptState, err = xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("rpc: accept_stat: %w", err)
		}
		if h.AcceptState == AcceptProgMismatch {
			low, err := xdr.DecodeUint32(r)
			if err != nil {
				return nil, fmt.Errorf("rpc: mismatch low: %w", err)
			}
			high, err := xdr.DecodeUint32(r)
			if err != nil {
				return nil, fmt.Errorf("rpc: mismatch high: %w", err)
			}
			h.Mismatch = &MismatchInfo{Low: low, High: high}
		}
	case ReplyDenied:
		h.RejectState, err = xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("rpc: reject_stat: %w", err)
		}
		if h.RejectState == RejectRPCMismatch {
			low, err := xdr.DecodeUint32(r)
			if err != nil {
				return nil, fmt.Errorf("rpc: mismatch low: %w", err)
			}
			high, err := xdr.DecodeUint32(r)
			if err != nil {
				return nil, fmt.Errorf("rpc: mismatch high: %w", err)
			}
			h.Mismatch = &MismatchInfo{Low: low, High: high}
		}
	default:
		return nil, fmt.Errorf("rpc: invalid reply_stat %d", h.ReplyState)
	}

	return h, nil
}

// MakeProgMismatchReply builds a complete record-marked RPC reply message
// rejecting a call with PROG_MISMATCH, echoing the given XID and supported
// version range, for a loopback test server that plays the server role to
// exercise the client's version-negotiation path. Nothing in this module
// calls it; internal/rpctest answers with EncodeAcceptStatReply instead.
func MakeProgMismatchReply(xid, low, high uint32) ([]byte, error) {
	if low > high {
		return nil, fmt.Errorf("rpc: invalid version range: low (%d) > high (%d)", low, high)
	}

	body := new(bytes.Buffer)
	for _, v := range []uint32{xid, MsgReply, ReplyAccepted} {
		if err := xdr.WriteUint32(body, v); err != nil {
			return nil, err
		}
	}
	if err := NullAuth.Encode(body); err != nil {
		return nil, err
	}
	for _, v := range []uint32{AcceptProgMismatch, low, high} {
		if err := xdr.WriteUint32(body, v); err != nil {
			return nil, err
		}
	}

	return frameRecord(body.Bytes()), nil
}

// frameRecord prefixes payload with a single last-fragment record-marking
// header (RFC 5531 Section 11).
func frameRecord(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	putFragmentHeader(out[:4], uint32(len(payload)), true)
	copy(out[4:], payload)
	return out
}

// ReadRecord reassembles one complete RPC message from r. Exported only for
// the in-process loopback test harness, which plays the server role and
// needs to read the calls this package's transports write.
func ReadRecord(r io.Reader) ([]byte, error) {
	return readRecord(r)
}

// DecodeCallHeader parses an RPC call message's header (RFC 5531 Section
// 8), leaving r positioned at the start of the procedure-specific
// arguments. Exported only for the in-process loopback test harness.
func DecodeCallHeader(r io.Reader) (*CallHeader, error) {
	xid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: xid: %w", err)
	}
	msgType, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: msg_type: %w", err)
	}
	if msgType != MsgCall {
		return nil, fmt.Errorf("rpc: expected CALL (0), got msg_type %d", msgType)
	}
	rpcvers, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: rpcvers: %w", err)
	}
	if rpcvers != RPCVersion {
		return nil, fmt.Errorf("rpc: unsupported rpcvers %d", rpcvers)
	}
	h := &CallHeader{XID: xid}
	if h.Program, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("rpc: program: %w", err)
	}
	if h.Version, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("rpc: version: %w", err)
	}
	if h.Procedure, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("rpc: procedure: %w", err)
	}
	cred, err := decodeOpaqueAuth(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: credential: %w", err)
	}
	h.Cred = cred
	verf, err := decodeOpaqueAuth(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: verifier: %w", err)
	}
	h.Verf = verf
	return h, nil
}

func decodeOpaqueAuth(r io.Reader) (OpaqueAuth, error) {
	flavor, err := xdr.DecodeUint32(r)
	if err != nil {
		return OpaqueAuth{}, err
	}
	body, err := xdr.DecodeOpaque(r)
	if err != nil {
		return OpaqueAuth{}, err
	}
	return OpaqueAuth{Flavor: flavor, Body: body}, nil
}

// EncodeAcceptedReply builds a complete record-marked RPC reply accepting
// the call (accept_stat SUCCESS) with resultPayload as the
// procedure-specific results, and a NullAuth verifier. Exported only for
// the in-process loopback test harness.
func EncodeAcceptedReply(xid uint32, resultPayload []byte) ([]byte, error) {
	body := new(bytes.Buffer)
	for _, v := range []uint32{xid, MsgReply, ReplyAccepted} {
		if err := xdr.WriteUint32(body, v); err != nil {
			return nil, err
		}
	}
	if err := NullAuth.Encode(body); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(body, AcceptSuccess); err != nil {
		return nil, err
	}
	body.Write(resultPayload)
	return frameRecord(body.Bytes()), nil
}

// EncodeAcceptStatReply builds a complete record-marked RPC reply accepting
// the call with a non-SUCCESS accept_stat (e.g. AcceptProcUnavail) and no
// result payload. Exported only for the in-process loopback test harness.
func EncodeAcceptStatReply(xid, acceptStat uint32) ([]byte, error) {
	body := new(bytes.Buffer)
	for _, v := range []uint32{xid, MsgReply, ReplyAccepted} {
		if err := xdr.WriteUint32(body, v); err != nil {
			return nil, err
		}
	}
	if err := NullAuth.Encode(body); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(body, acceptStat); err != nil {
		return nil, err
	}
	return frameRecord(body.Bytes()), nil
}

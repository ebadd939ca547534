// Package rpc implements the ONC-RPC (RFC 5531) message layer used by every
// NFS-family protocol in this module: the call/reply header shapes, XID
// correlation, AUTH_NONE/AUTH_SYS credentials, and the UDP/TCP transports
// that carry them.
package rpc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/marmos91/nfsclient/internal/xdr"
)

// RPCVersion is the only ONC-RPC message version this module speaks.
const RPCVersion uint32 = 2

// Message types (RFC 5531 Section 8, msg_type).
const (
	MsgCall  uint32 = 0
	MsgReply uint32 = 1
)

// Reply states (reply_stat).
const (
	ReplyAccepted uint32 = 0
	ReplyDenied   uint32 = 1
)

// Accept states (accept_stat), valid when ReplyState == ReplyAccepted.
const (
	AcceptSuccess      uint32 = 0
	AcceptProgUnavail  uint32 = 1
	AcceptProgMismatch uint32 = 2
	AcceptProcUnavail  uint32 = 3
	AcceptGarbageArgs  uint32 = 4
	AcceptSystemErr    uint32 = 5
)

// Reject states (reject_stat), valid when ReplyState == ReplyDenied.
const (
	RejectRPCMismatch uint32 = 0
	RejectAuthError   uint32 = 1
)

// Authentication flavors (RFC 5531 Section 8.2). Only AuthNone and AuthUnix
// are ever produced by this client; AuthShort/AuthDES are recognized on the
// wire (e.g. echoed back in a verifier) but never selected.
const (
	AuthNone  uint32 = 0
	AuthUnix  uint32 = 1
	AuthShort uint32 = 2
	AuthDES   uint32 = 3
)

const (
	maxMachineNameLen = 255
	maxGIDs           = 16
)

// OpaqueAuth is the opaque_auth structure carried as both credential and
// verifier on every call and reply (RFC 5531 Section 8.2).
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte
}

// Encode writes the flavor and the body as XDR opaque-variable data.
func (a OpaqueAuth) Encode(buf *bytes.Buffer) error {
	if err := xdr.WriteUint32(buf, a.Flavor); err != nil {
		return err
	}
	return xdr.WriteXDROpaque(buf, a.Body)
}

// NullAuth is the empty AUTH_NONE credential/verifier used by the
// portmapper, MOUNT, and as the verifier accompanying every AUTH_SYS call.
var NullAuth = OpaqueAuth{Flavor: AuthNone}

// UnixAuth is the AUTH_SYS (AUTH_UNIX) credential body (RFC 5531 Section
// 8.2.2): an arbitrary stamp, the calling machine's name, numeric uid/gid,
// and a bounded supplementary group list.
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// Encode renders the credential body, the bytes that go inside
// OpaqueAuth.Body for flavor AuthUnix.
func (a *UnixAuth) Encode() ([]byte, error) {
	if len(a.MachineName) > maxMachineNameLen {
		return nil, fmt.Errorf("rpc: machine name too long (%d > %d)", len(a.MachineName), maxMachineNameLen)
	}
	if len(a.GIDs) > maxGIDs {
		return nil, fmt.Errorf("rpc: too many gids (%d > %d)", len(a.GIDs), maxGIDs)
	}

	buf := new(bytes.Buffer)
	if err := xdr.WriteUint32(buf, a.Stamp); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDRString(buf, a.MachineName); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, a.UID); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, a.GID); err != nil {
		return nil, err
	}
	if err := xdr.WriteArray(buf, len(a.GIDs), func(i int) error {
		return xdr.WriteUint32(buf, a.GIDs[i])
	}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// OpaqueAuth renders the credential as a complete OpaqueAuth ready to embed
// in a call header.
func (a *UnixAuth) OpaqueAuth() (OpaqueAuth, error) {
	body, err := a.Encode()
	if err != nil {
		return OpaqueAuth{}, err
	}
	return OpaqueAuth{Flavor: AuthUnix, Body: body}, nil
}

// ParseUnixAuth decodes an AUTH_SYS credential body, for a loopback test
// server that checks what the client actually put on the wire. Nothing in
// this module calls it.
func ParseUnixAuth(body []byte) (*UnixAuth, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("rpc: empty AUTH_SYS body")
	}
	r := bytes.NewReader(body)

	stamp, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: stamp: %w", err)
	}
	nameLen, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: machine name length: %w", err)
	}
	if nameLen > maxMachineNameLen {
		return nil, fmt.Errorf("rpc: machine name too long (%d > %d)", nameLen, maxMachineNameLen)
	}
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return nil, fmt.Errorf("rpc: machine name: %w", err)
	}
	if pad := (4 - (nameLen % 4)) % 4; pad > 0 {
		skip := make([]byte, pad)
		if _, err := io.ReadFull(r, skip); err != nil {
			return nil, fmt.Errorf("rpc: machine name padding: %w", err)
		}
	}

	uid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: uid: %w", err)
	}
	gid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: gid: %w", err)
	}
	gidCount, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: gid count: %w", err)
	}
	if gidCount > maxGIDs {
		return nil, fmt.Errorf("rpc: too many gids (%d > %d)", gidCount, maxGIDs)
	}
	gids := make([]uint32, gidCount)
	for i := range gids {
		gids[i], err = xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("rpc: gid[%d]: %w", i, err)
		}
	}

	return &UnixAuth{
		Stamp:       stamp,
		MachineName: string(nameBytes),
		UID:         uid,
		GID:         gid,
		GIDs:        gids,
	}, nil
}

// String renders the credential for debug logging.
func (a *UnixAuth) String() string {
	return fmt.Sprintf("UnixAuth{machine=%s uid=%d gid=%d gids=%v}", a.MachineName, a.UID, a.GID, a.GIDs)
}

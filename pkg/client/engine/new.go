package engine

import (
	"fmt"

	"github.com/marmos91/nfsclient/internal/rpc"
)

// Version selects which NFS dialect an Engine speaks.
type Version int

const (
	V2 Version = 2
	V3 Version = 3
	V4 Version = 4
)

// Params bundles the already-dialed transports and credentials New needs.
// MountConn is required for V2/V3 (MOUNT protocol) and ignored for V4.
// OwnerID is required for V4 (EXCHANGE_ID) and ignored for V2/V3.
type Params struct {
	NFSConn   rpc.Transport
	MountConn rpc.Transport
	Auth      rpc.OpaqueAuth
	OwnerID   string
}

// New builds the Engine adapter for version over the given transports.
func New(version Version, p Params) (Engine, error) {
	switch version {
	case V2:
		return NewV2(p.NFSConn, p.MountConn, p.Auth), nil
	case V3:
		return NewV3(p.NFSConn, p.MountConn, p.Auth), nil
	case V4:
		return NewV4(p.NFSConn, p.Auth, p.OwnerID), nil
	default:
		return nil, fmt.Errorf("engine: unsupported NFS version %d", version)
	}
}

package pool

import (
	"fmt"

	"github.com/marmos91/nfsclient/pkg/client/engine"
)

// Key identifies one (server, export, NFS version) triple. Connections are
// never shared across keys: a caller leasing "host|export|3" will never be
// handed a connection mounted against a different export or speaking a
// different dialect.
type Key string

// NewKey canonicalizes a server/export/version triple into a Key.
func NewKey(addr, export string, version engine.Version) Key {
	return Key(fmt.Sprintf("%s|%s|%d", addr, export, version))
}

package pool

import (
	"sync/atomic"

	"github.com/marmos91/nfsclient/pkg/client"
)

// Leased is a pooled *client.Client handed out by Pool.Lease. It embeds
// *client.Client, so every Read/Write/ListDir/GetAttributes/etc call the
// façade exposes works directly on a Leased — the only new surface is
// Release (or Close) and Fault, which decide what happens to the
// connection underneath once the caller is done with it.
type Leased struct {
	*client.Client

	pool  *Pool
	key   Key
	entry *entry

	// done guards Release and Fault against each other and against
	// double calls: whichever fires first wins, the other is a no-op.
	done atomic.Bool
}

func newLeased(p *Pool, key Key, e *entry) *Leased {
	return &Leased{Client: e.client, pool: p, key: key, entry: e}
}

// ID returns the lease-correlation identifier assigned when this
// connection was first constructed, stable across every Lease that hands
// the same underlying connection back out.
func (l *Leased) ID() string { return l.entry.id }

// Release returns the connection to the pool for reuse, or destroys it if
// it's no longer healthy or the pool has no room for it. Calling Release
// more than once, or after Fault, is a no-op.
func (l *Leased) Release() {
	if !l.done.CompareAndSwap(false, true) {
		return
	}
	l.pool.release(l.key, l.entry)
}

// Fault marks this connection as bad and destroys it immediately, rather
// than returning it to the pool — use this when a call on the connection
// failed in a way that means the connection itself, not just that one
// operation, can no longer be trusted. Calling Fault more than once, or
// after Release, is a no-op.
func (l *Leased) Fault() {
	if !l.done.CompareAndSwap(false, true) {
		return
	}
	l.pool.faultEntry(l.key, l.entry)
}

// Close is an alias for Release so Leased satisfies io.Closer. Unlike the
// embedded Client's own Close (which disconnects the transport for good),
// Leased.Close returns the connection to the pool so a later Lease for
// the same key can reuse it.
func (l *Leased) Close() error {
	l.Release()
	return nil
}

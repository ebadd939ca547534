// Package pool implements a connection pool over pkg/client: one idle
// queue and one atomic connection count per (server, export, version) key,
// a background sweep that evicts connections nobody has leased in a while,
// and a Dispose that tears everything down and fails every Lease after it.
//
// There is no single pool-wide lock. Each key's queue has its own mutex,
// and the per-key live-connection count is an atomic int64, so leasing
// against one key never blocks leasing against another — the same
// no-global-lock shape the teacher's per-session SlotTable uses to keep
// the hot COMPOUND path off a shared StateManager mutex.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/pkg/client"
	"github.com/marmos91/nfsclient/pkg/client/engine"
	"github.com/marmos91/nfsclient/pkg/config"
	"github.com/marmos91/nfsclient/pkg/nfserrors"
	"github.com/marmos91/nfsclient/pkg/poolmetrics"
)

// entry is one pooled connection: a mounted Client plus the bookkeeping
// the pool needs to decide whether it's still worth keeping.
type entry struct {
	client   *client.Client
	id       string
	lastUsed time.Time
}

// keyState is one pool key's idle queue and live-connection count. Its
// mutex guards only this key's queue, never anything belonging to another
// key.
type keyState struct {
	mu    sync.Mutex
	idle  []*entry
	total atomic.Int64
}

func (ks *keyState) popIdle() *entry {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	n := len(ks.idle)
	if n == 0 {
		return nil
	}
	e := ks.idle[n-1]
	ks.idle = ks.idle[:n-1]
	return e
}

// pushIdleIfRoom enqueues e unless the idle queue is already at max
// (max <= 0 means unbounded). Returns whether it enqueued.
func (ks *keyState) pushIdleIfRoom(e *entry, max int) bool {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if max > 0 && len(ks.idle) >= max {
		return false
	}
	ks.idle = append(ks.idle, e)
	return true
}

func (ks *keyState) availableLen() int {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return len(ks.idle)
}

// evictIdle removes and returns every idle entry that has sat longer than
// idleTimeout since its last use.
func (ks *keyState) evictIdle(now time.Time, idleTimeout time.Duration) []*entry {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	kept := ks.idle[:0]
	var evicted []*entry
	for _, e := range ks.idle {
		if now.Sub(e.lastUsed) > idleTimeout {
			evicted = append(evicted, e)
		} else {
			kept = append(kept, e)
		}
	}
	ks.idle = kept
	return evicted
}

// Pool leases pkg/client.Client connections keyed by server, export, and
// NFS version, reusing idle connections instead of reconnecting and
// remounting on every call.
type Pool struct {
	opts    config.PoolOptions
	log     *logger.Logger
	metrics *poolmetrics.Metrics

	keysMu sync.RWMutex
	keys   map[Key]*keyState

	disposed atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a Pool governed by opts. If opts.EnableMaintenance is set, a
// background goroutine sweeps every key's idle queue every
// opts.MaintenanceInterval, destroying connections idle longer than
// opts.IdleTimeout. metrics may be nil to disable Prometheus export; log
// may be nil to discard logging. Callers must call Dispose to stop the
// sweep goroutine and release every pooled connection.
func New(opts config.PoolOptions, log *logger.Logger, metrics *poolmetrics.Metrics) *Pool {
	if log == nil {
		log = logger.Discard()
	}
	p := &Pool{
		opts:    opts,
		log:     log,
		metrics: metrics,
		keys:    make(map[Key]*keyState),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if opts.EnableMaintenance && opts.MaintenanceInterval > 0 {
		go p.maintenanceLoop(opts.MaintenanceInterval)
	} else {
		close(p.done)
	}
	return p
}

func (p *Pool) keyStateFor(key Key) *keyState {
	p.keysMu.RLock()
	ks, ok := p.keys[key]
	p.keysMu.RUnlock()
	if ok {
		return ks
	}

	p.keysMu.Lock()
	defer p.keysMu.Unlock()
	if ks, ok := p.keys[key]; ok {
		return ks
	}
	ks = &keyState{}
	p.keys[key] = ks
	return ks
}

// Lease returns a connection mounted against export on addr speaking
// version, reusing an idle connection from the pool when one is available
// and still healthy, or constructing, connecting, and mounting a new one
// when the key's idle queue is empty and MaxPoolSize allows it. The
// returned Leased must be released with Release (or Close) when the
// caller is done with it, or marked bad with Fault if a call on it failed
// in a way that means the underlying connection shouldn't be reused.
func (p *Pool) Lease(ctx context.Context, addr, export string, version engine.Version, opts *config.Options) (*Leased, error) {
	if p.disposed.Load() {
		return nil, &nfserrors.DisposedError{What: "pool"}
	}

	key := NewKey(addr, export, version)
	ks := p.keyStateFor(key)

	for {
		e := ks.popIdle()
		if e == nil {
			break
		}
		if e.client.Healthy() {
			e.lastUsed = time.Now()
			p.recordCounts(key, ks)
			p.metrics.IncLease(string(key))
			p.log.Debug("pool lease reused idle connection", logger.PoolKey(string(key)))
			return newLeased(p, key, e), nil
		}
		p.destroy(key, ks, e)
	}

	max := p.opts.MaxPoolSize
	if max > 0 && ks.total.Load() >= int64(max) {
		return nil, &nfserrors.ConnectionError{
			Op:   "pool lease",
			Addr: addr,
			Err:  fmt.Errorf("pool exhausted for key %q (max %d)", key, max),
		}
	}

	ks.total.Add(1)
	c := client.New(version, opts, p.log)
	if err := c.Connect(ctx, addr); err != nil {
		ks.total.Add(-1)
		p.recordCounts(key, ks)
		return nil, err
	}
	if err := c.MountDevice(ctx, export); err != nil {
		c.Disconnect()
		ks.total.Add(-1)
		p.recordCounts(key, ks)
		return nil, err
	}

	e := &entry{client: c, id: uuid.New().String(), lastUsed: time.Now()}
	p.recordCounts(key, ks)
	p.metrics.IncLease(string(key))
	p.log.Debug("pool lease built new connection", logger.PoolKey(string(key)))
	return newLeased(p, key, e), nil
}

// release returns e to key's idle queue, or destroys it if the pool has
// been disposed, the connection is no longer healthy, or the idle queue is
// already at MaxPoolSize.
func (p *Pool) release(key Key, e *entry) {
	ks := p.keyStateFor(key)
	if p.disposed.Load() || !e.client.Healthy() {
		p.destroy(key, ks, e)
		return
	}
	e.lastUsed = time.Now()
	if !ks.pushIdleIfRoom(e, p.opts.MaxPoolSize) {
		p.destroy(key, ks, e)
		return
	}
	p.recordCounts(key, ks)
}

// faultEntry destroys e immediately and records it as a fault rather than
// a routine eviction, regardless of how healthy the connection looks —
// the caller is telling the pool it already knows better.
func (p *Pool) faultEntry(key Key, e *entry) {
	ks := p.keyStateFor(key)
	p.destroy(key, ks, e)
	p.metrics.IncFault(string(key))
	p.log.Debug("pool connection faulted", logger.PoolKey(string(key)))
}

func (p *Pool) destroy(key Key, ks *keyState, e *entry) {
	e.client.Disconnect()
	ks.total.Add(-1)
	p.recordCounts(key, ks)
}

func (p *Pool) recordCounts(key Key, ks *keyState) {
	p.metrics.SetTotal(string(key), int(ks.total.Load()))
	p.metrics.SetAvailable(string(key), ks.availableLen())
}

func (p *Pool) maintenanceLoop(interval time.Duration) {
	defer close(p.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.sweepOnce()
		}
	}
}

func (p *Pool) sweepOnce() {
	if p.opts.IdleTimeout <= 0 {
		return
	}
	now := time.Now()

	p.keysMu.RLock()
	snapshot := make(map[Key]*keyState, len(p.keys))
	for k, ks := range p.keys {
		snapshot[k] = ks
	}
	p.keysMu.RUnlock()

	for key, ks := range snapshot {
		evicted := ks.evictIdle(now, p.opts.IdleTimeout)
		for _, e := range evicted {
			e.client.Disconnect()
			ks.total.Add(-1)
			p.metrics.IncMaintenanceEvicted(string(key))
		}
		if len(evicted) > 0 {
			p.recordCounts(key, ks)
			p.log.Debug("pool maintenance evicted idle connections",
				logger.PoolKey(string(key)), logger.Evicted(len(evicted)))
		}
	}
}

// Dispose stops the maintenance sweep and destroys every idle pooled
// connection. A connection still leased at that point is destroyed when
// it is released or faulted. Every Lease call after Dispose fails with a
// DisposedError. Safe to call more than once.
func (p *Pool) Dispose() error {
	if !p.disposed.CompareAndSwap(false, true) {
		return nil
	}
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done

	p.keysMu.Lock()
	keys := p.keys
	p.keys = make(map[Key]*keyState)
	p.keysMu.Unlock()

	for key, ks := range keys {
		ks.mu.Lock()
		idle := ks.idle
		ks.idle = nil
		ks.mu.Unlock()
		for _, e := range idle {
			e.client.Disconnect()
			ks.total.Add(-1)
		}
		p.metrics.RemoveKey(string(key))
	}
	return nil
}

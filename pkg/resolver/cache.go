// Package resolver converts posix-style paths into (file handle,
// attributes) pairs, caching the result so repeated access to the same
// path doesn't re-walk the LOOKUP chain from the root handle every time.
package resolver

import (
	"strings"
	"sync"
	"time"

	"github.com/marmos91/nfsclient/internal/logger"
)

// CacheEntry is one resolved path's cached state: its file handle,
// whatever attribute snapshot the caller last stored, and the bookkeeping
// the cache needs for TTL expiry.
type CacheEntry struct {
	Path       string
	Handle     []byte
	Attrs      any
	InsertedAt time.Time
	LastTouch  time.Time
	TTL        time.Duration // zero means the cache's default TTL applies
}

func (e *CacheEntry) expired(now time.Time, defaultTTL time.Duration) bool {
	ttl := e.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	if ttl <= 0 {
		return false
	}
	return now.Sub(e.LastTouch) > ttl
}

// FileHandleCache is a concurrent path -> CacheEntry map with TTL expiry,
// prefix invalidation (for directory subtrees removed or renamed), and a
// background sweep that evicts entries nobody has touched recently.
type FileHandleCache struct {
	mu         sync.RWMutex
	entries    map[string]*CacheEntry
	defaultTTL time.Duration
	log        *logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a cache whose entries expire defaultTTL after their last
// touch (unless an entry carries its own TTL) and starts a background
// sweep goroutine that runs every sweepInterval. Callers must call Close
// to stop the sweep goroutine. log may be nil to discard logging.
func New(defaultTTL, sweepInterval time.Duration, log *logger.Logger) *FileHandleCache {
	if log == nil {
		log = logger.Discard()
	}
	c := &FileHandleCache{
		entries:    make(map[string]*CacheEntry),
		defaultTTL: defaultTTL,
		log:        log,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	} else {
		close(c.done)
	}
	return c
}

// Get returns the cached entry for path if present and not expired,
// refreshing its last-touch time on a hit (spec §4.6: "On hit within TTL:
// return cached handle; refresh last-touch").
func (c *FileHandleCache) Get(path string) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		c.log.Debug("handle cache miss", logger.Path(path), logger.CacheHit(false))
		return nil, false
	}
	now := time.Now()
	if entry.expired(now, c.defaultTTL) {
		delete(c.entries, path)
		c.log.Debug("handle cache entry expired", logger.Path(path), logger.CacheHit(false))
		return nil, false
	}
	entry.LastTouch = now
	entryCopy := *entry
	c.log.Debug("handle cache hit", logger.Path(path), logger.CacheHit(true))
	return &entryCopy, true
}

// Put stores or replaces the cache entry for path. ttl of zero uses the
// cache's default TTL.
func (c *FileHandleCache) Put(path string, handle []byte, attrs any, ttl time.Duration) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = &CacheEntry{
		Path:       path,
		Handle:     handle,
		Attrs:      attrs,
		InsertedAt: now,
		LastTouch:  now,
		TTL:        ttl,
	}
}

// Invalidate removes the single entry for path, if present.
func (c *FileHandleCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// InvalidatePrefix removes path itself and every entry whose path is a
// descendant of it (path + "\" + anything), per spec §4.6's Remove/Rmdir/
// Rename invalidation rule.
func (c *FileHandleCache) InvalidatePrefix(path string) {
	prefix := path + `\`
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
	for p := range c.entries {
		if strings.HasPrefix(p, prefix) {
			delete(c.entries, p)
		}
	}
}

// MarkSizeStale clears the cached attributes for path without discarding
// its file handle, per spec §4.6's Write rule: the entry's attributes are
// marked stale rather than invalidated outright, since the handle itself
// is still valid and a subsequent GETATTR refreshes just the attributes.
func (c *FileHandleCache) MarkSizeStale(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[path]; ok {
		entry.Attrs = nil
	}
}

// Touch refreshes an existing entry's attributes (e.g. after a GETATTR
// that re-validated a size-stale entry) without changing its handle.
func (c *FileHandleCache) Touch(path string, attrs any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[path]; ok {
		entry.Attrs = attrs
		entry.LastTouch = time.Now()
	}
}

// Len reports the current number of cached entries.
func (c *FileHandleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweep goroutine. Safe to call more than once.
func (c *FileHandleCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *FileHandleCache) sweepLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweepOnce()
		}
	}
}

func (c *FileHandleCache) sweepOnce() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	var evicted int
	for path, entry := range c.entries {
		if entry.expired(now, c.defaultTTL) {
			delete(c.entries, path)
			evicted++
		}
	}
	if evicted > 0 {
		c.log.Debug("handle cache sweep evicted expired entries",
			logger.Evicted(evicted), logger.CacheSize(int64(len(c.entries))))
	}
}

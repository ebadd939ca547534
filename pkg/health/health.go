// Package health implements the probe contract a pooled connection is
// checked against: call GetAttributes("."), time it, and fold the result
// into an Unknown -> Healthy -> Degraded -> Unhealthy state machine driven
// by the count of consecutive failures.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/pkg/client"
	"github.com/marmos91/nfsclient/pkg/config"
)

// Prober is the subset of *client.Client (and, since it embeds one,
// *pool.Leased) a Checker needs to probe a connection: a single GETATTR
// on the mounted root.
type Prober interface {
	GetAttributes(ctx context.Context, path string, mustExist bool) (*client.FileAttributes, error)
}

// HealthCheckResult is the outcome of a single probe.
type HealthCheckResult struct {
	Healthy bool
	Latency time.Duration
	Message string
	Err     error
}

// Checker probes a Prober and tracks its Status across repeated calls.
// One Checker is meant to track one pooled connection's health, the way
// one SlotTable tracks one session's slots — it is not shared across
// connections.
type Checker struct {
	prober    Prober
	threshold int
	timeout   time.Duration
	log       *logger.Logger

	mu         sync.Mutex
	status     Status
	failures   int
	lastResult HealthCheckResult

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewChecker builds a Checker for prober governed by opts. If
// opts.AutoHeartbeat is set, a background goroutine calls Probe every
// opts.HeartbeatInterval until Close. opts.UnhealthyThreshold of zero or
// less is treated as 1 (a single failure marks the connection
// Unhealthy). log may be nil to discard logging.
func NewChecker(prober Prober, opts config.HealthOptions, log *logger.Logger) *Checker {
	if log == nil {
		log = logger.Discard()
	}
	threshold := opts.UnhealthyThreshold
	if threshold <= 0 {
		threshold = 1
	}
	c := &Checker{
		prober:    prober,
		threshold: threshold,
		timeout:   opts.HealthCheckTimeout,
		log:       log,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if opts.AutoHeartbeat && opts.HeartbeatInterval > 0 {
		go c.heartbeatLoop(opts.HeartbeatInterval)
	} else {
		close(c.done)
	}
	return c
}

// Probe calls GetAttributes(".") once, timing it, and folds the result
// into the consecutive-failure state machine before returning it.
func (c *Checker) Probe(ctx context.Context) HealthCheckResult {
	probeCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	_, err := c.prober.GetAttributes(probeCtx, ".", true)
	latency := time.Since(start)

	result := HealthCheckResult{Latency: latency}
	if err != nil {
		result.Healthy = false
		result.Err = err
		result.Message = err.Error()
	} else {
		result.Healthy = true
		result.Message = "ok"
	}

	c.recordResult(result)
	return result
}

func (c *Checker) recordResult(result HealthCheckResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastResult = result
	if result.Healthy {
		c.failures = 0
		c.status = Healthy
		return
	}

	c.failures++
	if c.failures >= c.threshold {
		if c.status != Unhealthy {
			c.log.Warn("connection marked unhealthy", logger.Attempt(c.failures), logger.Err(result.Err))
		}
		c.status = Unhealthy
		return
	}
	c.status = Degraded
}

// Status returns the connection's current health state.
func (c *Checker) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastResult returns the most recent Probe result. The zero value means
// Probe has never run.
func (c *Checker) LastResult() HealthCheckResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

func (c *Checker) heartbeatLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Probe(context.Background())
		}
	}
}

// Close stops the background heartbeat goroutine, if one was started.
// Safe to call more than once.
func (c *Checker) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

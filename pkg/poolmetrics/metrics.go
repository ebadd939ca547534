// Package poolmetrics exports pkg/pool's connection-pool state as
// Prometheus metrics, the way the teacher's nfs/v4/state package exports
// session and connection-binding counters: a nil-safe *Metrics whose
// methods are no-ops when metrics weren't requested, so pkg/pool never
// needs to branch on whether a registry was supplied.
package poolmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pool's Prometheus collectors. All methods are
// nil-safe: calls on a nil *Metrics are no-ops, so callers that don't want
// metrics can simply pass nil to pool.New.
type Metrics struct {
	// Total tracks the number of live connections per pool key (both idle
	// and currently leased).
	Total *prometheus.GaugeVec

	// Available tracks the number of idle (returned, leasable) connections
	// per pool key.
	Available *prometheus.GaugeVec

	// LeaseTotal counts successful Lease calls per pool key.
	LeaseTotal *prometheus.CounterVec

	// FaultTotal counts connections destroyed via Fault per pool key.
	FaultTotal *prometheus.CounterVec

	// MaintenanceEvictedTotal counts connections the idle-sweep destroyed
	// for exceeding IdleTimeout, per pool key.
	MaintenanceEvictedTotal *prometheus.CounterVec
}

// New creates and registers pool metrics with reg. If reg is nil, metrics
// are created but not registered (useful for testing, or when the caller
// doesn't want a /metrics endpoint at all).
//
// On re-registration, existing collectors already present in the registry
// are reused so counters survive a pool being rebuilt against the same
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Total: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nfsclient",
			Subsystem: "pool",
			Name:      "connections_total",
			Help:      "Current number of live connections per pool key (idle + leased).",
		}, []string{"key"}),
		Available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nfsclient",
			Subsystem: "pool",
			Name:      "connections_available",
			Help:      "Current number of idle, leasable connections per pool key.",
		}, []string{"key"}),
		LeaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfsclient",
			Subsystem: "pool",
			Name:      "lease_total",
			Help:      "Total number of successful Lease calls per pool key.",
		}, []string{"key"}),
		FaultTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfsclient",
			Subsystem: "pool",
			Name:      "fault_total",
			Help:      "Total number of connections destroyed via Fault per pool key.",
		}, []string{"key"}),
		MaintenanceEvictedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfsclient",
			Subsystem: "pool",
			Name:      "maintenance_evicted_total",
			Help:      "Total number of idle connections destroyed by the maintenance sweep per pool key.",
		}, []string{"key"}),
	}

	if reg != nil {
		m.Total = registerOrReuse(reg, m.Total).(*prometheus.GaugeVec)
		m.Available = registerOrReuse(reg, m.Available).(*prometheus.GaugeVec)
		m.LeaseTotal = registerOrReuse(reg, m.LeaseTotal).(*prometheus.CounterVec)
		m.FaultTotal = registerOrReuse(reg, m.FaultTotal).(*prometheus.CounterVec)
		m.MaintenanceEvictedTotal = registerOrReuse(reg, m.MaintenanceEvictedTotal).(*prometheus.CounterVec)
	}

	return m
}

// registerOrReuse registers a collector with reg, returning the existing
// collector from the registry if one with the same descriptor is already
// registered, instead of panicking or erroring.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// SetTotal records the current live-connection count for key.
func (m *Metrics) SetTotal(key string, n int) {
	if m == nil {
		return
	}
	m.Total.WithLabelValues(key).Set(float64(n))
}

// SetAvailable records the current idle-connection count for key.
func (m *Metrics) SetAvailable(key string, n int) {
	if m == nil {
		return
	}
	m.Available.WithLabelValues(key).Set(float64(n))
}

// IncLease increments the successful-lease counter for key.
func (m *Metrics) IncLease(key string) {
	if m == nil {
		return
	}
	m.LeaseTotal.WithLabelValues(key).Inc()
}

// IncFault increments the fault counter for key.
func (m *Metrics) IncFault(key string) {
	if m == nil {
		return
	}
	m.FaultTotal.WithLabelValues(key).Inc()
}

// IncMaintenanceEvicted increments the maintenance-eviction counter for key.
func (m *Metrics) IncMaintenanceEvicted(key string) {
	if m == nil {
		return
	}
	m.MaintenanceEvictedTotal.WithLabelValues(key).Inc()
}

// RemoveKey deletes key's Total and Available gauge values; the counters
// keep theirs. Pool.Dispose calls it for every key it drops.
func (m *Metrics) RemoveKey(key string) {
	if m == nil {
		return
	}
	m.Total.DeleteLabelValues(key)
	m.Available.DeleteLabelValues(key)
}

// Package metrics keeps in-process counters for signaling events.
package metrics

import "sync"

// Counter names.
const (
	ConnOpened        = "conn_opened"
	ConnClosed        = "conn_closed"
	Registered        = "registered"
	Unregistered      = "unregistered"
	Relayed           = "relayed"
	RelayDropped      = "relay_dropped"
	Broadcasts        = "broadcast_sends"
	SendSkipped       = "send_skipped"
	Malformed         = "malformed"
	Ignored           = "ignored"
	RateLimited       = "rate_limited"
	InternalFault     = "internal_fault"
	KeepalivePingSent = "keepalive_ping_sent"
)

// Metrics is a concurrency-safe counter registry. A nil *Metrics discards everything.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

// New creates an empty counter registry.
func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

// Inc adds one to name.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

// Add adds n to name.
func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += n
	m.mu.Unlock()
}

// Get returns the current value of name.
func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.m {
		out[k] = v
	}
	return out
}

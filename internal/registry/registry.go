// Package registry maps peer identities to the transport handle that currently owns them.
//
// The registry is not safe for concurrent use. It is owned by the hub goroutine
// and every read or write happens there.
package registry

// Handle is the sending side of a connected peer.
type Handle interface {
	// Send queues data for delivery and returns false if it was not accepted.
	// It never blocks.
	Send(data []byte) bool
	// IsOpen reports whether the handle currently accepts sends.
	IsOpen() bool
}

// Registry holds at most one handle per identity.
type Registry struct {
	entries map[string]Handle
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Handle)}
}

// Put stores h under id, replacing any previous handle. The replaced handle is not closed.
func (r *Registry) Put(id string, h Handle) {
	r.entries[id] = h
}

// Get returns the handle registered under id.
func (r *Registry) Get(id string) (Handle, bool) {
	h, ok := r.entries[id]
	return h, ok
}

// Remove deletes id. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	delete(r.entries, id)
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Identities returns a snapshot of every registered identity in no particular order.
func (r *Registry) Identities() []string {
	out := make([]string, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	return out
}

// AllIdentitiesExcept returns a snapshot of every registered identity other than id.
// The result is never nil.
func (r *Registry) AllIdentitiesExcept(id string) []string {
	out := make([]string, 0, len(r.entries))
	for peer := range r.entries {
		if peer != id {
			out = append(out, peer)
		}
	}
	return out
}

// ForEachExcept calls fn for every entry other than id whose handle is open.
// fn must not modify the registry.
func (r *Registry) ForEachExcept(id string, fn func(peer string, h Handle)) {
	for peer, h := range r.entries {
		if peer == id || !h.IsOpen() {
			continue
		}
		fn(peer, h)
	}
}

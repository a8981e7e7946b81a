// Package router implements identity-based dispatch of signaling messages.
//
// A Router owns the peer registry. Every method must be called from a single
// goroutine (the node manager's hub loop); nothing here takes a lock.
package router

import (
	"fmt"

	"github.com/auraspeak/rendezvous/internal/metrics"
	"github.com/auraspeak/rendezvous/internal/protocol"
	"github.com/auraspeak/rendezvous/internal/registry"
	"github.com/auraspeak/rendezvous/pkg/tracer"
	log "github.com/sirupsen/logrus"
)

// Router applies inbound messages to the registry and forwards relays.
type Router struct {
	reg     *registry.Registry
	metrics *metrics.Metrics
	tracer  *tracer.Tracer

	onMembership func()
}

// NewRouter creates a Router over reg. m and t may be nil.
func NewRouter(reg *registry.Registry, m *metrics.Metrics, t *tracer.Tracer) *Router {
	if reg == nil {
		reg = registry.New()
	}
	return &Router{
		reg:     reg,
		metrics: m,
		tracer:  t,
	}
}

// Registry returns the registry owned by the router.
func (r *Router) Registry() *registry.Registry {
	return r.reg
}

// OnMembershipChange sets a callback invoked after a peer joins or leaves.
func (r *Router) OnMembershipChange(fn func()) {
	r.onMembership = fn
}

// HandleRaw decodes data and dispatches it. Decode failures are returned to the
// caller and leave the session untouched.
func (r *Router) HandleRaw(s *Session, data []byte) error {
	msg, err := protocol.Decode(data)
	if err != nil {
		r.metrics.Inc(metrics.Malformed)
		return fmt.Errorf("decode from conn %s: %w", s.connID, err)
	}
	r.HandleMessage(s, msg)
	return nil
}

// HandleMessage dispatches one decoded message received on s.
func (r *Router) HandleMessage(s *Session, msg protocol.Message) {
	if s.state == StateClosed {
		return
	}

	switch m := msg.(type) {
	case protocol.Register:
		r.register(s, m)
	case protocol.Relay:
		r.relay(s, m)
	case protocol.Peers, protocol.NewPeer, protocol.PeerDisconnected, protocol.Ping, protocol.Unknown:
		// server-to-client types and anything unrecognised are ignored
		r.metrics.Inc(metrics.Ignored)
		r.logger(s).Debugf("Ignoring message of type %q", msg.Type())
	default:
		r.metrics.Inc(metrics.Ignored)
		r.logger(s).Debugf("Ignoring unhandled message %T", msg)
	}
}

// HandleClose moves s to its terminal state and releases its identity.
// Calling it more than once is a no-op.
func (r *Router) HandleClose(s *Session) {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	if id, ok := s.Identity(); ok {
		r.logger(s).Info("Node disconnected")
		r.release(s, id)
	}
}

func (r *Router) register(s *Session, m protocol.Register) {
	if m.NodeID == "" {
		r.metrics.Inc(metrics.Ignored)
		r.logger(s).Debug("Ignoring register without nodeId")
		return
	}

	if prev, ok := s.Identity(); ok && prev != m.NodeID {
		r.release(s, prev)
	}

	s.identity = m.NodeID
	s.state = StateRegistered
	r.reg.Put(m.NodeID, s.handle)
	r.metrics.Inc(metrics.Registered)
	r.logger(s).Info("Node registered")

	r.send(s.handle, s.connID, m.NodeID, protocol.Peers{Peers: r.reg.AllIdentitiesExcept(m.NodeID)})
	r.broadcastExcept(m.NodeID, protocol.NewPeer{NodeID: m.NodeID})
	r.membershipChanged()
}

// release removes id if the registry still routes it to s, then tells the others.
// A newer session that took over id keeps it and nothing is announced.
func (r *Router) release(s *Session, id string) {
	h, ok := r.reg.Get(id)
	if !ok || h != s.handle {
		r.logger(s).Debugf("Identity %q now owned by another connection, not releasing", id)
		return
	}
	r.reg.Remove(id)
	r.metrics.Inc(metrics.Unregistered)
	r.broadcastExcept(id, protocol.PeerDisconnected{NodeID: id})
	r.membershipChanged()
}

func (r *Router) relay(s *Session, m protocol.Relay) {
	if m.Target == "" {
		r.metrics.Inc(metrics.RelayDropped)
		r.logger(s).Debugf("Dropping %s without target", m.Kind)
		return
	}
	h, ok := r.reg.Get(m.Target)
	if !ok {
		r.metrics.Inc(metrics.RelayDropped)
		r.logger(s).Debugf("Dropping %s for unknown target %q", m.Kind, m.Target)
		return
	}

	if src, ok := m.Source(); ok && src != s.identity {
		r.logger(s).Debugf("Replacing client-supplied source %q on %s", src, m.Kind)
	}
	if r.send(h, "", m.Target, m.WithSource(s.identity)) {
		r.metrics.Inc(metrics.Relayed)
		r.logger(s).Debugf("Relayed %s to %s", m.Kind, m.Target)
		return
	}
	r.metrics.Inc(metrics.RelayDropped)
}

// broadcastExcept sends msg to every open registered handle other than except
// and returns how many accepted it.
func (r *Router) broadcastExcept(except string, msg protocol.Message) int {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.WithField("caller", "router").WithError(err).Error("Encoding broadcast")
		return 0
	}
	sent := 0
	r.reg.ForEachExcept(except, func(peer string, h registry.Handle) {
		if r.sendRaw(h, "", peer, data) {
			sent++
		}
	})
	r.metrics.Add(metrics.Broadcasts, uint64(sent))
	return sent
}

func (r *Router) send(h registry.Handle, connID, nodeID string, msg protocol.Message) bool {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.WithField("caller", "router").WithError(err).Errorf("Encoding %s", msg.Type())
		return false
	}
	return r.sendRaw(h, connID, nodeID, data)
}

// sendRaw checks the open state immediately before handing data to the transport.
func (r *Router) sendRaw(h registry.Handle, connID, nodeID string, data []byte) bool {
	if !h.IsOpen() || !h.Send(data) {
		r.metrics.Inc(metrics.SendSkipped)
		return false
	}
	r.tracer.Trace(tracer.TraceOut, connID, nodeID, data)
	return true
}

func (r *Router) membershipChanged() {
	if r.onMembership != nil {
		r.onMembership()
	}
}

func (r *Router) logger(s *Session) *log.Entry {
	return log.WithFields(log.Fields{
		"caller": "router",
		"conn":   s.connID,
		"node":   s.identity,
	})
}

package router

import "github.com/auraspeak/rendezvous/internal/registry"

// State is the lifecycle state of a Session.
type State int

const (
	// StateUnregistered is the initial state, before any register message.
	StateUnregistered State = iota
	// StateRegistered is entered on the first successful register.
	StateRegistered
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the per-connection signaling state.
type Session struct {
	connID   string
	handle   registry.Handle
	identity string
	state    State
}

// NewSession creates an unregistered session for the given handle.
func NewSession(connID string, h registry.Handle) *Session {
	return &Session{connID: connID, handle: h}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Identity returns the identity the session last registered, if any.
func (s *Session) Identity() (string, bool) {
	return s.identity, s.identity != ""
}

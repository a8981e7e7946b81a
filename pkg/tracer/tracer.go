//go:build !debug
// +build !debug

// Package tracer provides message tracing (release build, no-op).
package tracer

import "time"

// TraceDirection indicates the direction of a trace event.
type TraceDirection string

const (
	// TraceIn indicates a message received from a peer.
	TraceIn TraceDirection = "in"
	// TraceOut indicates a message sent to a peer.
	TraceOut TraceDirection = "out"
)

// TraceEvent represents a trace event. In release builds it has the same shape as in debug
type TraceEvent struct {
	TS      time.Time
	Dir     TraceDirection
	ConnID  string
	NodeID  string
	Len     int
	Payload []byte
}

// Tracer is a no-op tracer in release builds.
type Tracer struct{}

// NewTracerWithChannel returns a no-op tracer in release builds.
func NewTracerWithChannel(ch chan TraceEvent) *Tracer { return &Tracer{} }

// Trace is a no-op in release builds.
func (t *Tracer) Trace(dir TraceDirection, connID, nodeID string, payload []byte) {}

// NewTraceEvent creates a new trace event. In release builds, returns an empty event.
func NewTraceEvent(dir TraceDirection, connID, nodeID string, payloadLen int, payload []byte) TraceEvent {
	return TraceEvent{}
}

//go:build debug
// +build debug

package tracer

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// TraceDirection indicates the direction of a trace event.
type TraceDirection string

const (
	// TraceIn indicates a message received from a peer.
	TraceIn TraceDirection = "in"
	// TraceOut indicates a message sent to a peer.
	TraceOut TraceDirection = "out"
)

// TraceEvent represents a trace event with timing and payload information.
type TraceEvent struct {
	TS      time.Time      `json:"ts"`
	Dir     TraceDirection `json:"dir"`
	ConnID  string         `json:"conn_id"`
	NodeID  string         `json:"node_id"`
	Len     int            `json:"len"`
	Payload []byte         `json:"payload"`
}

// Tracer traces signaling messages and sends them to a channel.
type Tracer struct {
	ch chan TraceEvent // if nil, emitTrace is a no-op
}

// NewTracerWithChannel creates a tracer that sends events to the given channel.
// Used to wire the node manager's tracer to the Server's TraceCh.
func NewTracerWithChannel(ch chan TraceEvent) *Tracer {
	return &Tracer{ch: ch}
}

// NewTraceEvent creates a new trace event with the given parameters.
func NewTraceEvent(dir TraceDirection, connID, nodeID string, payloadLen int, payload []byte) TraceEvent {
	return TraceEvent{
		TS:      time.Now(),
		Dir:     dir,
		ConnID:  connID,
		NodeID:  nodeID,
		Len:     payloadLen,
		Payload: payload,
	}
}

func (t *Tracer) emitTrace(dir TraceDirection, connID, nodeID string, payload []byte) {
	if t == nil || t.ch == nil {
		return
	}

	n := len(payload)
	if n > 1024 {
		payload = payload[:1024]
	}

	select {
	case t.ch <- NewTraceEvent(dir, connID, nodeID, n, payload):
	default:
	}
}

// Trace records a trace event for the given direction, connection, identity and payload.
func (t *Tracer) Trace(dir TraceDirection, connID, nodeID string, payload []byte) {
	if connID == "" {
		connID = "unknown"
	}
	log.WithField("caller", "tracer").Debugf("Trace %s conn=%s node=%q len=%d", dir, connID, nodeID, len(payload))
	t.emitTrace(dir, connID, nodeID, payload)
}

// Package transport adapts WebSocket and DTLS connections to the message-oriented
// handle the hub works with.
//
// Reads are blocking and ordered per connection. Sends are queued on a bounded
// outbox and written by a dedicated goroutine, so Send never blocks the caller.
package transport

import (
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by ReadMessage after the connection has been closed locally.
var ErrClosed = errors.New("transport: connection closed")

// Conn is one connected participant.
type Conn interface {
	// ID is unique per accepted connection.
	ID() string
	RemoteAddr() net.Addr
	// ReadMessage blocks until the next complete inbound message arrives.
	ReadMessage() ([]byte, error)
	// Send queues data and returns false if the connection is closed or its queue is full.
	Send(data []byte) bool
	// IsOpen reports whether the connection currently accepts sends.
	IsOpen() bool
	Close() error
}

// Options tune a transport connection.
type Options struct {
	// WriteTimeout bounds a single write. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
	// SendQueue is the outbox capacity in messages. Zero means DefaultSendQueue.
	SendQueue int
	// MaxMessageBytes bounds a single inbound message. Zero means DefaultMaxMessageBytes.
	MaxMessageBytes int64
}

// Defaults for Options.
const (
	DefaultWriteTimeout    = 1 * time.Second
	DefaultSendQueue       = 64
	DefaultMaxMessageBytes = 64 * 1024
)

// WithDefaults fills zero fields.
func (o Options) WithDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.SendQueue <= 0 {
		o.SendQueue = DefaultSendQueue
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = DefaultMaxMessageBytes
	}
	return o
}

func newConnID() string {
	return uuid.NewString()
}

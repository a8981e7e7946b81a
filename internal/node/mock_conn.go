package node

import (
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
)

// MockConn is an in-memory transport.Conn for tests.
type MockConn struct {
	id         string
	remoteAddr net.Addr

	inbound chan []byte
	closed  chan struct{}

	mu        sync.RWMutex
	sent      [][]byte
	refuse    bool
	closeOnce sync.Once
	sentCh    chan []byte
}

// NewMockConn creates a mock connection with a fresh ID.
func NewMockConn(remoteAddr net.Addr) *MockConn {
	return &MockConn{
		id:         uuid.NewString(),
		remoteAddr: remoteAddr,
		inbound:    make(chan []byte, 64),
		closed:     make(chan struct{}),
		sentCh:     make(chan []byte, 256),
	}
}

// ID implements transport.Conn
func (m *MockConn) ID() string { return m.id }

// RemoteAddr implements transport.Conn
func (m *MockConn) RemoteAddr() net.Addr { return m.remoteAddr }

// ReadMessage implements transport.Conn. It returns io.EOF once the conn is closed.
func (m *MockConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-m.inbound:
		return data, nil
	case <-m.closed:
		return nil, io.EOF
	}
}

// Send implements transport.Conn
func (m *MockConn) Send(data []byte) bool {
	if !m.IsOpen() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refuse {
		return false
	}
	m.sent = append(m.sent, data)
	select {
	case m.sentCh <- data:
	default:
	}
	return true
}

// IsOpen implements transport.Conn
func (m *MockConn) IsOpen() bool {
	select {
	case <-m.closed:
		return false
	default:
		return true
	}
}

// Close implements transport.Conn
func (m *MockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

// Deliver queues data as if the peer had sent it.
func (m *MockConn) Deliver(data []byte) {
	m.inbound <- data
}

// SetRefuseSends makes Send report a full queue.
func (m *MockConn) SetRefuseSends(refuse bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refuse = refuse
}

// Sent returns a copy of everything accepted by Send.
func (m *MockConn) Sent() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentCh yields each accepted message.
func (m *MockConn) SentCh() <-chan []byte {
	return m.sentCh
}

package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// WebSocketConn carries one JSON message per WebSocket frame.
type WebSocketConn struct {
	id   string
	ws   *websocket.Conn
	opts Options
	out  *outbox
}

// NewWebSocketConn wraps an upgraded connection and starts its writer.
func NewWebSocketConn(ws *websocket.Conn, opts Options) *WebSocketConn {
	opts = opts.WithDefaults()
	ws.SetReadLimit(opts.MaxMessageBytes)
	c := &WebSocketConn{
		id:   newConnID(),
		ws:   ws,
		opts: opts,
		out:  newOutbox(opts.SendQueue),
	}
	go c.out.run(c.write, c.writeFailed, c.shutdown)
	return c
}

// ID implements Conn.
func (c *WebSocketConn) ID() string { return c.id }

// RemoteAddr implements Conn.
func (c *WebSocketConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

// ReadMessage implements Conn. Text and binary frames are both accepted.
func (c *WebSocketConn) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.out.close() {
				return nil, fmt.Errorf("%w: %v", ErrClosed, err)
			}
			return nil, err
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Send implements Conn.
func (c *WebSocketConn) Send(data []byte) bool {
	return c.out.enqueue(c.id, data)
}

// IsOpen implements Conn.
func (c *WebSocketConn) IsOpen() bool {
	return c.out.isOpen()
}

// Close marks the connection closed and returns at once. The writer goroutine
// sends a normal close frame and closes the socket.
func (c *WebSocketConn) Close() error {
	c.out.close()
	return nil
}

func (c *WebSocketConn) shutdown() {
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.opts.WriteTimeout),
	)
	if err := c.ws.Close(); err != nil {
		log.WithField("caller", "transport").WithField("conn", c.id).WithError(err).Debug("Closing WebSocket")
	}
}

func (c *WebSocketConn) write(data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *WebSocketConn) writeFailed(err error) {
	log.WithField("caller", "transport").WithField("conn", c.id).WithError(err).Warn("WebSocket write failed, closing")
	_ = c.ws.Close()
}

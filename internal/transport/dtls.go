package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pion/dtls/v3"
	log "github.com/sirupsen/logrus"
)

// DatagramConn carries one JSON message per record of a message-preserving
// net.Conn, such as an established *dtls.Conn.
type DatagramConn struct {
	id   string
	conn net.Conn
	opts Options
	out  *outbox
	buf  []byte
}

// NewDatagramConn wraps conn and starts its writer.
func NewDatagramConn(conn net.Conn, opts Options) *DatagramConn {
	opts = opts.WithDefaults()
	c := &DatagramConn{
		id:   newConnID(),
		conn: conn,
		opts: opts,
		out:  newOutbox(opts.SendQueue),
		buf:  make([]byte, opts.MaxMessageBytes),
	}
	go c.out.run(c.write, c.writeFailed, c.shutdown)
	return c
}

// AcceptDTLS completes the handshake on a freshly accepted DTLS connection and wraps it.
// The connection is closed if the handshake fails.
func AcceptDTLS(ctx context.Context, conn net.Conn, opts Options) (*DatagramConn, error) {
	dtlsConn, ok := conn.(*dtls.Conn)
	if !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("accepted connection is %T, not a DTLS connection", conn)
	}
	if err := dtlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("dtls handshake: %w", err)
	}
	return NewDatagramConn(dtlsConn, opts), nil
}

// ID implements Conn.
func (c *DatagramConn) ID() string { return c.id }

// RemoteAddr implements Conn.
func (c *DatagramConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// ReadMessage implements Conn. It must not be called concurrently.
func (c *DatagramConn) ReadMessage() ([]byte, error) {
	n, err := c.conn.Read(c.buf)
	if err != nil {
		if !c.out.close() {
			return nil, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		return nil, err
	}
	b := make([]byte, n)
	copy(b, c.buf[:n])
	return b, nil
}

// Send implements Conn.
func (c *DatagramConn) Send(data []byte) bool {
	return c.out.enqueue(c.id, data)
}

// IsOpen implements Conn.
func (c *DatagramConn) IsOpen() bool {
	return c.out.isOpen()
}

// Close implements Conn. The underlying connection is closed by the writer
// goroutine, which may first have to finish an in-flight write.
func (c *DatagramConn) Close() error {
	c.out.close()
	return nil
}

func (c *DatagramConn) shutdown() {
	if err := c.conn.Close(); err != nil {
		log.WithField("caller", "transport").WithField("conn", c.id).WithError(err).Debug("Closing datagram conn")
	}
}

func (c *DatagramConn) write(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	_, err := c.conn.Write(data)
	return err
}

func (c *DatagramConn) writeFailed(err error) {
	log.WithField("caller", "transport").WithField("conn", c.id).WithError(err).Warn("Datagram write failed, closing")
	_ = c.conn.Close()
}

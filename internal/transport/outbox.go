package transport

import (
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// outbox decouples senders from the network write. It owns the open flag of a connection.
type outbox struct {
	queue chan []byte
	done  chan struct{}
	open  atomic.Bool

	closeOnce sync.Once
}

func newOutbox(size int) *outbox {
	o := &outbox{
		queue: make(chan []byte, size),
		done:  make(chan struct{}),
	}
	o.open.Store(true)
	return o
}

// enqueue never blocks. A full queue drops the message.
func (o *outbox) enqueue(connID string, data []byte) bool {
	if !o.open.Load() {
		return false
	}
	select {
	case o.queue <- data:
		return true
	case <-o.done:
		return false
	default:
		log.WithField("caller", "transport").WithField("conn", connID).Warn("Send queue full, dropping message")
		return false
	}
}

func (o *outbox) isOpen() bool {
	return o.open.Load()
}

// close marks the outbox closed and reports whether this call did it.
func (o *outbox) close() bool {
	closed := false
	o.closeOnce.Do(func() {
		o.open.Store(false)
		close(o.done)
		closed = true
	})
	return closed
}

// run writes queued messages until the outbox closes or write fails.
// After a close, onClose runs on this goroutine, so tearing down the
// connection never waits on the caller of close. A failed write closes the
// outbox, calls onError once and stops without calling onClose.
func (o *outbox) run(write func([]byte) error, onError func(error), onClose func()) {
	for {
		select {
		case <-o.done:
			if onClose != nil {
				onClose()
			}
			return
		case data := <-o.queue:
			if err := write(data); err != nil {
				o.close()
				onError(err)
				return
			}
		}
	}
}

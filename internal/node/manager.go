// Package node runs the hub: it owns every connected transport and feeds their
// inbound messages, one at a time, into the signaling router.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/auraspeak/rendezvous/internal/metrics"
	"github.com/auraspeak/rendezvous/internal/protocol"
	"github.com/auraspeak/rendezvous/internal/router"
	"github.com/auraspeak/rendezvous/internal/transport"
	"github.com/auraspeak/rendezvous/pkg/command"
	"github.com/auraspeak/rendezvous/pkg/tracer"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrStopped is returned by operations on a NodeManager that is no longer running.
var ErrStopped = errors.New("node manager stopped")

// Config tunes a NodeManager.
type Config struct {
	// PingInterval is the keep-alive period. Zero disables keep-alive pings.
	PingInterval time.Duration
	// MessagesPerSecond limits inbound messages per connection. Zero disables the limit.
	MessagesPerSecond float64
	// Burst is the rate limiter bucket size. Zero means max(1, MessagesPerSecond).
	Burst int
	// EventQueue is the capacity of the hub event channel.
	EventQueue int
}

// Snapshot is a point-in-time view of the hub.
type Snapshot struct {
	Peers       []string `json:"peers"`
	Connections int      `json:"connections"`
}

// NodeManager owns all connections. Registry and session state are only touched
// by the goroutine running Run.
type NodeManager struct {
	cfg     Config
	router  *router.Router
	metrics *metrics.Metrics
	tracer  *tracer.Tracer
	cmdCh   chan<- command.InternalCommand

	events chan event
	stop   chan struct{}
	done   chan struct{}

	stopOnce sync.Once
	runOnce  sync.Once

	// owned by the hub goroutine
	conns map[string]*connState
}

type connState struct {
	conn    transport.Conn
	session *router.Session
}

type eventKind int

const (
	eventOpened eventKind = iota
	eventMessage
	eventClosed
	eventBroadcast
	eventSnapshot
	eventDisconnectAll
)

type event struct {
	kind  eventKind
	conn  transport.Conn
	data  []byte
	err   error
	msg   protocol.Message
	reply chan Snapshot
}

// NewNodeManager creates a hub around r. traceCh and cmdCh may be nil.
func NewNodeManager(
	cfg Config,
	r *router.Router,
	m *metrics.Metrics,
	traceCh chan tracer.TraceEvent,
	cmdCh chan<- command.InternalCommand,
) *NodeManager {
	if cfg.EventQueue <= 0 {
		cfg.EventQueue = 1024
	}
	nm := &NodeManager{
		cfg:     cfg,
		router:  r,
		metrics: m,
		tracer:  tracer.NewTracerWithChannel(traceCh),
		cmdCh:   cmdCh,
		events:  make(chan event, cfg.EventQueue),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		conns:   make(map[string]*connState),
	}
	r.OnMembershipChange(func() { nm.notify(command.CmdPeersChanged) })
	return nm
}

// Run processes hub events until ctx is cancelled or Stop is called.
// All open connections are closed before it returns. Run may be called only once.
func (nm *NodeManager) Run(ctx context.Context) error {
	started := false
	nm.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("node manager already ran")
	}
	defer close(nm.done)

	var tick <-chan time.Time
	if nm.cfg.PingInterval > 0 {
		ticker := time.NewTicker(nm.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			nm.shutdown()
			return nil
		case <-nm.stop:
			nm.shutdown()
			return nil
		case <-tick:
			nm.safely(func() { nm.sendAll(protocol.Ping{}, metrics.KeepalivePingSent) })
		case ev := <-nm.events:
			nm.safely(func() { nm.handle(ev) })
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (nm *NodeManager) Stop() {
	nm.stopOnce.Do(func() { close(nm.stop) })
}

// Done is closed after Run has returned.
func (nm *NodeManager) Done() <-chan struct{} {
	return nm.done
}

// RegisterConn hands a new connection to the hub and starts reading from it.
// If the hub is not running the connection is closed.
func (nm *NodeManager) RegisterConn(conn transport.Conn) {
	if !nm.post(event{kind: eventOpened, conn: conn}) {
		_ = conn.Close()
		return
	}
	go nm.connReadLoop(conn)
}

// Broadcast sends msg to every open connection, registered or not.
func (nm *NodeManager) Broadcast(msg protocol.Message) {
	nm.post(event{kind: eventBroadcast, msg: msg})
}

// DisconnectAll closes every connection. Registered peers are released as their
// read loops observe the close.
func (nm *NodeManager) DisconnectAll() {
	nm.post(event{kind: eventDisconnectAll})
}

// Snapshot asks the hub for the registered identities and connection count.
func (nm *NodeManager) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if !nm.postContext(ctx, event{kind: eventSnapshot, reply: reply}) {
		return Snapshot{}, ErrStopped
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-nm.done:
		return Snapshot{}, ErrStopped
	}
}

func (nm *NodeManager) connReadLoop(conn transport.Conn) {
	limiter := nm.newLimiter()
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			nm.post(event{kind: eventClosed, conn: conn, err: err})
			return
		}
		if limiter != nil && !limiter.Allow() {
			nm.metrics.Inc(metrics.RateLimited)
			log.WithField("caller", "node manager").WithField("conn", conn.ID()).Warn("Rate limit exceeded, dropping message")
			continue
		}
		if !nm.post(event{kind: eventMessage, conn: conn, data: data}) {
			return
		}
	}
}

func (nm *NodeManager) newLimiter() *rate.Limiter {
	if nm.cfg.MessagesPerSecond <= 0 {
		return nil
	}
	burst := nm.cfg.Burst
	if burst <= 0 {
		burst = max(1, int(nm.cfg.MessagesPerSecond))
	}
	return rate.NewLimiter(rate.Limit(nm.cfg.MessagesPerSecond), burst)
}

func (nm *NodeManager) post(ev event) bool {
	return nm.postContext(context.Background(), ev)
}

func (nm *NodeManager) postContext(ctx context.Context, ev event) bool {
	select {
	case <-nm.done:
		return false
	case <-nm.stop:
		return false
	default:
	}
	select {
	case nm.events <- ev:
		return true
	case <-nm.done:
		return false
	case <-nm.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (nm *NodeManager) handle(ev event) {
	switch ev.kind {
	case eventOpened:
		nm.conns[ev.conn.ID()] = &connState{
			conn:    ev.conn,
			session: router.NewSession(ev.conn.ID(), ev.conn),
		}
		nm.metrics.Inc(metrics.ConnOpened)
		nm.connLogger(ev.conn).Info("New connection")
	case eventMessage:
		cs, ok := nm.conns[ev.conn.ID()]
		if !ok {
			return
		}
		id, _ := cs.session.Identity()
		nm.tracer.Trace(tracer.TraceIn, ev.conn.ID(), id, ev.data)
		if err := nm.router.HandleRaw(cs.session, ev.data); err != nil {
			nm.connLogger(ev.conn).WithError(err).Warn("Error processing message")
		}
	case eventClosed:
		cs, ok := nm.conns[ev.conn.ID()]
		if !ok {
			return
		}
		delete(nm.conns, ev.conn.ID())
		nm.router.HandleClose(cs.session)
		nm.metrics.Inc(metrics.ConnClosed)
		if err := ev.conn.Close(); err != nil {
			nm.connLogger(ev.conn).WithError(err).Debug("Close after read error")
		}
		nm.connLogger(ev.conn).WithError(ev.err).Debug("Connection closed")
	case eventBroadcast:
		nm.sendAll(ev.msg, metrics.Broadcasts)
	case eventSnapshot:
		ev.reply <- Snapshot{
			Peers:       nm.router.Registry().Identities(),
			Connections: len(nm.conns),
		}
	case eventDisconnectAll:
		nm.closeAll()
	}
}

// safely runs fn and turns a panic into a logged error so one bad event cannot
// take down the hub.
func (nm *NodeManager) safely(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			nm.metrics.Inc(metrics.InternalFault)
			log.WithField("caller", "node manager").WithError(fmt.Errorf("panic: %v", rec)).Error("Recovered from fault while handling event")
		}
	}()
	fn()
}

func (nm *NodeManager) sendAll(msg protocol.Message, counter string) {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.WithField("caller", "node manager").WithError(err).Error("Encoding broadcast")
		return
	}
	for id, cs := range nm.conns {
		if !cs.conn.IsOpen() {
			continue
		}
		if cs.conn.Send(data) {
			nm.metrics.Inc(counter)
			node, _ := cs.session.Identity()
			nm.tracer.Trace(tracer.TraceOut, id, node, data)
		}
	}
}

func (nm *NodeManager) closeAll() {
	for _, cs := range nm.conns {
		if err := cs.conn.Close(); err != nil {
			nm.connLogger(cs.conn).WithError(err).Debug("Failed to close connection")
		}
	}
}

func (nm *NodeManager) shutdown() {
	nm.closeAll()
	for id, cs := range nm.conns {
		nm.router.HandleClose(cs.session)
		delete(nm.conns, id)
	}
	log.WithField("caller", "node manager").Info("Hub stopped")
}

func (nm *NodeManager) notify(cmd command.InternalCommand) {
	if nm.cmdCh == nil {
		return
	}
	select {
	case nm.cmdCh <- cmd:
	default:
	}
}

func (nm *NodeManager) connLogger(conn transport.Conn) *log.Entry {
	fields := log.Fields{"caller": "node manager", "conn": conn.ID()}
	if addr := conn.RemoteAddr(); addr != nil {
		fields["remote"] = addr.String()
	}
	return log.WithFields(fields)
}

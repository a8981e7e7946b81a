// Package server exposes the rendezvous hub over WebSocket and, optionally, DTLS.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/auraspeak/rendezvous/internal/config"
	mdtls "github.com/auraspeak/rendezvous/internal/dtls"
	"github.com/auraspeak/rendezvous/internal/metrics"
	"github.com/auraspeak/rendezvous/internal/node"
	"github.com/auraspeak/rendezvous/internal/protocol"
	"github.com/auraspeak/rendezvous/internal/registry"
	"github.com/auraspeak/rendezvous/internal/router"
	"github.com/auraspeak/rendezvous/internal/transport"
	"github.com/auraspeak/rendezvous/pkg/command"
	"github.com/auraspeak/rendezvous/pkg/tracer"
	"github.com/gorilla/websocket"
	"github.com/pion/dtls/v3"
	log "github.com/sirupsen/logrus"
)

// ErrAlreadyRunning is returned by Run and Serve when the server has already been started.
var ErrAlreadyRunning = errors.New("server is already running")

const dtlsHandshakeTimeout = 30 * time.Second

// Server accepts signaling connections and hands them to the hub.
// A Server is started at most once.
type Server struct {
	ctx context.Context
	cfg *config.Config

	ServerState
	stateMu sync.Mutex

	IsAlive    int32
	shouldStop int32
	started    int32

	metrics  *metrics.Metrics
	nm       *node.NodeManager
	upgrader websocket.Upgrader
	connOpts transport.Options

	httpSrv    *http.Server
	dtlsConfig *dtls.Config
	dtlsMu     sync.Mutex
	dtlsLn     net.Listener

	stopOnce sync.Once
	stopCh   chan struct{}

	OutCommandCh chan command.InternalCommand
	TraceCh      chan tracer.TraceEvent
}

// ServerState holds the current state of the server.
type ServerState struct {
	ShouldStop bool `json:"shouldStop"`
	IsAlive    bool `json:"isAlive"`
}

// NewServer creates a Server from cfg. A nil cfg uses config.Default.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	path := cfg.Server.WebSocket.Path
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("server.websocket.path %q must start with /", path)
	}
	if path == healthPath || path == statsPath || path == debugTracePath {
		return nil, fmt.Errorf("server.websocket.path %q collides with a built-in route", path)
	}

	writeTimeout, err := cfg.WriteTimeout()
	if err != nil {
		return nil, err
	}
	pingInterval, err := cfg.PingInterval()
	if err != nil {
		return nil, err
	}

	srv := &Server{
		ctx:          ctx,
		cfg:          cfg,
		metrics:      metrics.New(),
		stopCh:       make(chan struct{}),
		OutCommandCh: make(chan command.InternalCommand, 10),
		TraceCh:      make(chan tracer.TraceEvent, 2000),
		connOpts: transport.Options{
			WriteTimeout:    writeTimeout,
			SendQueue:       cfg.Server.WebSocket.SendQueue,
			MaxMessageBytes: cfg.Server.WebSocket.MaxMessageBytes,
		},
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.Server.WebSocket.AllowedOrigins),
	}

	if cfg.Server.DTLS.Enabled {
		srv.dtlsConfig, err = mdtls.NewConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("dtls config: %w", err)
		}
	}

	r := router.NewRouter(registry.New(), srv.metrics, tracer.NewTracerWithChannel(srv.TraceCh))
	srv.nm = node.NewNodeManager(node.Config{
		PingInterval:      pingInterval,
		MessagesPerSecond: cfg.Server.Signaling.MessagesPerSecond,
		Burst:             cfg.Server.Signaling.Burst,
	}, r, srv.metrics, srv.TraceCh, srv.OutCommandCh)

	srv.httpSrv = &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, nil
}

// Run listens on server.host:server.port and serves until Stop is called or
// the server context is cancelled.
func (s *Server) Run() error {
	if atomic.LoadInt32(&s.started) == 1 {
		return ErrAlreadyRunning
	}
	addr := net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve is Run on an existing listener. The listener is closed when Serve returns.
func (s *Server) Serve(ln net.Listener) error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		_ = ln.Close()
		return ErrAlreadyRunning
	}

	go func() {
		if err := s.nm.Run(s.ctx); err != nil {
			log.WithField("caller", "server").WithError(err).Error("Hub exited")
		}
	}()
	go func() {
		select {
		case <-s.ctx.Done():
			s.Stop()
		case <-s.stopCh:
		}
	}()

	if s.dtlsConfig != nil {
		if err := s.listenDTLS(); err != nil {
			_ = ln.Close()
			s.Stop()
			return err
		}
	}

	s.setIsAlive(true)
	defer s.setIsAlive(false)
	log.WithField("caller", "server").Infof("Server started on %s (signaling path %s)", ln.Addr(), s.cfg.Server.WebSocket.Path)

	err := s.httpSrv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	s.Stop()
	<-s.nm.Done()
	return err
}

func (s *Server) listenDTLS() error {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.DTLS.Port))
	if err != nil {
		return fmt.Errorf("dtls address: %w", err)
	}
	ln, err := dtls.Listen("udp", addr, s.dtlsConfig)
	if err != nil {
		return fmt.Errorf("dtls listen: %w", err)
	}
	s.dtlsMu.Lock()
	s.dtlsLn = ln
	s.dtlsMu.Unlock()
	if atomic.LoadInt32(&s.shouldStop) == 1 {
		_ = ln.Close()
		return nil
	}
	log.WithField("caller", "server").Infof("DTLS listener started on %s", ln.Addr())
	go s.acceptDTLS(ln)
	return nil
}

func (s *Server) acceptDTLS(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if atomic.LoadInt32(&s.shouldStop) == 1 || errors.Is(err, net.ErrClosed) {
				return
			}
			log.WithField("caller", "server").WithError(err).Error("Accept Error")
			continue
		}
		go s.handshakeDTLS(conn)
	}
}

func (s *Server) handshakeDTLS(conn net.Conn) {
	ctx, cancel := context.WithTimeout(s.ctx, dtlsHandshakeTimeout)
	defer cancel()
	dc, err := transport.AcceptDTLS(ctx, conn, s.connOpts)
	if err != nil {
		log.WithField("caller", "server").WithField("remote", conn.RemoteAddr().String()).WithError(err).Warn("DTLS handshake failed")
		return
	}
	s.nm.RegisterConn(dc)
}

// Stop stops accepting connections, closes all open ones and stops the hub.
// It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.setShouldStop()
		close(s.stopCh)

		if err := s.httpSrv.Close(); err != nil {
			log.WithField("caller", "server").WithError(err).Debug("Closing HTTP listener")
		}
		s.dtlsMu.Lock()
		if s.dtlsLn != nil {
			_ = s.dtlsLn.Close()
			s.dtlsLn = nil
		}
		s.dtlsMu.Unlock()

		s.nm.DisconnectAll()
		s.nm.Stop()
		log.WithField("caller", "server").Info("Server stopped")
	})
}

// Broadcast sends msg to every open connection.
func (s *Server) Broadcast(msg protocol.Message) {
	s.nm.Broadcast(msg)
}

// Stats returns the registered peers, the connection count and all counters.
func (s *Server) Stats(ctx context.Context) (Stats, error) {
	snap, err := s.nm.Snapshot(ctx)
	if err != nil {
		return Stats{}, err
	}
	peers := snap.Peers
	if peers == nil {
		peers = []string{}
	}
	return Stats{
		Peers:       peers,
		Connections: snap.Connections,
		Counters:    s.metrics.Snapshot(),
	}, nil
}

// Stats is the payload served on /stats.
type Stats struct {
	Peers       []string          `json:"peers"`
	Connections int               `json:"connections"`
	Counters    map[string]uint64 `json:"counters"`
}

// State returns a copy of the current server state.
func (s *Server) State() ServerState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.ServerState
}

// setShouldStop marks the server for shutdown and notifies the state update channel.
func (s *Server) setShouldStop() {
	atomic.StoreInt32(&s.shouldStop, 1)
	s.stateMu.Lock()
	s.ServerState.ShouldStop = true
	s.stateMu.Unlock()
	s.notify(command.CmdUpdateServerState)
}

// setIsAlive updates the server's alive status and notifies the state update channel.
func (s *Server) setIsAlive(val bool) {
	var v int32
	if val {
		v = 1
	}
	atomic.StoreInt32(&s.IsAlive, v)
	s.stateMu.Lock()
	s.ServerState.IsAlive = val
	s.stateMu.Unlock()
	s.notify(command.CmdUpdateServerState)
}

func (s *Server) notify(cmd command.InternalCommand) {
	select {
	case <-s.ctx.Done():
	case s.OutCommandCh <- cmd:
	default:
	}
}

// originChecker allows any origin when allowed is empty or contains "*".
// Requests without an Origin header are not from browsers and are allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

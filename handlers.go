package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/auraspeak/rendezvous/internal/transport"
	"github.com/auraspeak/rendezvous/pkg/tracer"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	healthPath     = "/healthz"
	statsPath      = "/stats"
	debugTracePath = "/debug/trace"

	healthBody = "Signaling server is running\n"

	maxTraceEvents = 256
)

// Handler returns the HTTP handler serving the signaling path, /healthz and /stats.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Server.WebSocket.Path, s.handleSignal)
	mux.HandleFunc(healthPath, handleHealth)
	mux.HandleFunc(statsPath, s.handleStats)
	if debug {
		mux.HandleFunc(debugTracePath, s.handleTrace)
	}
	return mux
}

// handleSignal upgrades WebSocket requests and answers everything else like /healthz.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		handleHealth(w, r)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.WithField("caller", "server").WithField("remote", r.RemoteAddr).WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	s.nm.RegisterConn(transport.NewWebSocketConn(ws, s.connOpts))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(healthBody))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	stats, err := s.Stats(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, stats)
}

// handleTrace drains up to maxTraceEvents buffered trace events.
func (s *Server) handleTrace(w http.ResponseWriter, _ *http.Request) {
	events := make([]tracer.TraceEvent, 0, maxTraceEvents)
	for len(events) < maxTraceEvents {
		select {
		case ev := <-s.TraceCh:
			events = append(events, ev)
			continue
		default:
		}
		break
	}
	writeJSON(w, events)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithField("caller", "server").WithError(err).Debug("Writing JSON response")
	}
}

// Package httpapi implements the HTTP surface described in spec.md §4.7:
// a raw TCP accept loop with hand-rolled request parsing (see request.go),
// route dispatch, the SSE subscribe handler, the authenticated push
// endpoint, and the sandboxed static-file responder.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adred-codev/fleetmon/internal/clock"
	"github.com/adred-codev/fleetmon/internal/ratelimit"
	"github.com/adred-codev/fleetmon/internal/snapshot"
	"github.com/adred-codev/fleetmon/internal/sse"
	"github.com/adred-codev/fleetmon/internal/store"
)

const alertsFeedLimit = 50

// Config controls the HTTP surface, per spec.md §6/§7.
type Config struct {
	Host        string
	Port        int
	PublicDir   string
	ReadTimeout time.Duration
	APIKey      string
}

// Server is the raw-TCP HTTP surface.
type Server struct {
	cfg     Config
	logger  *zap.Logger
	store   *store.Store
	hub     *sse.Hub
	ids     IDClock
	limiter *ratelimit.Limiter
	metrics *promMetrics

	listener net.Listener
	wg       sync.WaitGroup
}

// promMetrics is the minimal seam to the Prometheus handler; see
// MetricsAdapter in metrics.go for the adapter normally stored here.
type promMetrics struct {
	handler func(conn net.Conn, req *ParsedRequest)
}

// NewServer builds a Server. ids is typically *clock.Clock.
func NewServer(cfg Config, logger *zap.Logger, st *store.Store, hub *sse.Hub, ids IDClock, limiter *ratelimit.Limiter) *Server {
	return &Server{cfg: cfg, logger: logger, store: st, hub: hub, ids: ids, limiter: limiter}
}

// SetMetricsHandler wires the /metrics route to a raw-conn adapter around
// promhttp.Handler(); see metrics.go.
func (s *Server) SetMetricsHandler(handler func(conn net.Conn, req *ParsedRequest)) {
	s.metrics = &promMetrics{handler: handler}
}

// Start binds the listener and begins accepting connections in the
// background. It returns once the listener is bound (bind failure is
// fatal, per spec.md §7).
func (s *Server) Start() error {
	if s.listener != nil {
		return errors.New("http surface already started")
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.logger.Info("http surface listening", zap.String("addr", addr))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	return nil
}

// Stop closes the listener and waits for in-flight connections to finish
// their current request.
func (s *Server) Stop() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConnection(c)
		}(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	req, err := ParseRequest(conn, s.cfg.ReadTimeout)
	if err != nil {
		writeError(conn, "400 Bad Request", "Invalid request")
		_ = conn.Close()
		return
	}

	switch {
	case req.Method == "GET" && req.Path == "/api/health":
		s.handleHealth(conn)
	case req.Method == "GET" && req.Path == "/api/events":
		s.handleEventsSnapshot(conn)
	case req.Method == "GET" && req.Path == "/api/alerts":
		s.handleAlerts(conn)
	case req.Method == "GET" && req.Path == "/api/stream":
		s.handleStream(conn)
		return // long-lived; handleStream owns conn lifetime
	case req.Method == "GET" && req.Path == "/metrics" && s.metrics != nil:
		s.metrics.handler(conn, req)
	case req.Method == "POST" && req.Path == "/api/events":
		s.handlePush(conn, req)
	case req.Method == "GET":
		serveStatic(conn, s.cfg.PublicDir, req.Path)
	default:
		writeError(conn, "405 Method Not Allowed", "Method not allowed")
	}

	_ = conn.Close()
}

func (s *Server) handleHealth(conn net.Conn) {
	writeJSONStatus(conn, "200 OK", map[string]any{"ok": true, "now": clock.NowISO()})
}

func (s *Server) handleEventsSnapshot(conn net.Conn) {
	snap := snapshot.Build(s.store.Snapshot())
	writeJSONStatus(conn, "200 OK", snap)
}

func (s *Server) handleAlerts(conn net.Conn) {
	alerts := s.store.RecentAlerts(alertsFeedLimit)
	writeJSONStatus(conn, "200 OK", map[string]any{"alerts": alerts})
}

func (s *Server) handlePush(conn net.Conn, req *ParsedRequest) {
	if s.cfg.APIKey != "" {
		if req.Header("X-Api-Key") != s.cfg.APIKey {
			writeError(conn, "401 Unauthorized", "Unauthorized")
			return
		}
	}

	if s.limiter != nil && !s.limiter.Allow(remoteIP(conn)) {
		writeError(conn, "429 Too Many Requests", "rate limited")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		writeError(conn, "400 Bad Request", "Invalid JSON")
		return
	}

	evt := normalizeIncoming(payload, s.ids)
	s.store.AppendEvent(evt)

	writeJSONStatus(conn, "202 Accepted", map[string]any{"accepted": true, "id": evt.ID})
}

func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

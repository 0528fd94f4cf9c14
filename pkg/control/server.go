// Package control is the local HTTP surface: watcher toggles, manual
// dialing, health, and a websocket stream of the live transcript.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/satriadi/bellhop/pkg/call"
	"github.com/satriadi/bellhop/pkg/logging"
	"github.com/satriadi/bellhop/pkg/watcher"
)

// Dialer is the orchestrator surface for manual outgoing calls.
type Dialer interface {
	Run(ctx context.Context, target string) (*call.Session, error)
}

type Config struct {
	Addr string
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8085"
	}
	return c
}

// StreamEvent is one websocket message on the transcript stream.
type StreamEvent struct {
	CallID  string    `json:"call_id"`
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
}

type Server struct {
	cfg      Config
	watch    *watcher.Watcher
	dialer   Dialer
	registry *call.Registry
	logger   *slog.Logger

	server   *http.Server
	upgrader websocket.Upgrader
	draining atomic.Bool

	mu   sync.Mutex
	subs map[chan StreamEvent]struct{}
}

func NewServer(cfg Config, watch *watcher.Watcher, dialer Dialer, registry *call.Registry, logger *slog.Logger) *Server {
	return &Server{
		cfg:      cfg.withDefaults(),
		watch:    watch,
		dialer:   dialer,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "control"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[chan StreamEvent]struct{}),
	}
}

// Handler exposes the mux for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/watcher/enable", s.handleWatcherEnable)
	mux.HandleFunc("/watcher/disable", s.handleWatcherDisable)
	mux.HandleFunc("/watcher/status", s.handleWatcherStatus)
	mux.HandleFunc("/dial", s.handleDial)
	mux.HandleFunc("/transcript/stream", s.handleStream)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           s.Handler(),
	}
	go func() {
		<-ctx.Done()
		_ = s.server.Close()
	}()
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control_server_error", "error", err.Error())
		}
	}()
	s.logger.Info("control_listening", "addr", s.cfg.Addr)
	return nil
}

func (s *Server) Stop() error {
	s.draining.Store(true)
	if s.server != nil {
		_ = s.server.Close()
	}
	s.mu.Lock()
	for ch := range s.subs {
		close(ch)
	}
	s.subs = make(map[chan StreamEvent]struct{})
	s.mu.Unlock()
	return nil
}

// Publish fans a transcript entry out to every stream subscriber. Slow
// subscribers lose events rather than stall the call.
func (s *Server) Publish(callID string, e call.Entry) {
	ev := StreamEvent{CallID: callID, Speaker: e.Speaker, Text: e.Text, Time: e.Time}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active := ""
	if sess := s.registry.Active(); sess != nil {
		active = sess.ID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_call": active,
	})
}

func (s *Server) handleWatcherEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.watch == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "watcher unavailable"})
		return
	}
	s.watch.Enable()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWatcherDisable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.watch == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "watcher unavailable"})
		return
	}
	s.watch.Disable()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWatcherStatus(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "watcher unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, s.watch.Status())
}

func (s *Server) handleDial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Target) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target required"})
		return
	}
	if s.registry.Active() != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a call is already active"})
		return
	}

	// The call outlives the request; it runs detached and the caller
	// follows it on the transcript stream.
	go func() {
		if _, err := s.dialer.Run(context.Background(), req.Target); err != nil {
			s.logger.Error("manual_dial_failed", "target", req.Target, "error", err.Error())
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"target": req.Target})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := make(chan StreamEvent, 64)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

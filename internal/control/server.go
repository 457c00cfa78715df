// Package control exposes the HTTP surface that lets external
// orchestrators query persona status and command chat sends directly,
// bypassing the webhook round trip.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/crewrelay/internal/bus"
	"github.com/nextlevelbuilder/crewrelay/internal/config"
	"github.com/nextlevelbuilder/crewrelay/internal/registry"
)

// Server is the control API server.
type Server struct {
	cfg      config.ControlConfig
	registry *registry.Registry
	events   bus.EventPublisher
	upgrader websocket.Upgrader
	started  time.Time

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates the control API server over a persona registry.
func NewServer(cfg config.ControlConfig, reg *registry.Registry, events bus.EventPublisher) *Server {
	s := &Server{
		cfg:      cfg,
		registry: reg,
		events:   events,
		started:  time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The control surface carries no auth by design; origin checks
		// would only give a false sense of one.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return s
}

// BuildMux creates and caches the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/bots", s.handleListBots)
	mux.HandleFunc("POST /api/send-message", s.handleSendDefault)
	mux.HandleFunc("POST /api/{botKey}/send-message", s.handleSendAs)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	s.mux = mux
	return mux
}

// Handler returns the fully routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return withCORS(s.BuildMux())
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	slog.Info("control API starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("control server: %w", err)
	}
	return nil
}

// withCORS allows cross-origin calls from orchestration UIs.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func statusOf(p *registry.Persona) string {
	if p.IsOnline() {
		return "online"
	}
	return "offline"
}

// StartTestServer serves the handler on 127.0.0.1:0 and returns the actual
// address plus a start function. Used for integration tests.
func StartTestServer(s *Server, ctx context.Context) (addr string, start func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("listen: " + err.Error())
	}

	s.httpServer = &http.Server{Handler: s.Handler()}
	addr = ln.Addr().String()

	start = func() {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.httpServer.Shutdown(shutdownCtx)
		}()
		s.httpServer.Serve(ln)
	}

	return addr, start
}

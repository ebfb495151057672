// Package api exposes the dashboard's HTTP and WebSocket surface.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikeeai/adsdash/pkg/chat"
	"github.com/mikeeai/adsdash/pkg/compose"
	"github.com/mikeeai/adsdash/pkg/config"
	"github.com/mikeeai/adsdash/pkg/hub"
	"github.com/mikeeai/adsdash/pkg/settings"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Server wires the router over the fleet CLI, the chat engine, the settings
// store and the WebSocket hub.
type Server struct {
	cfg    config.ServerConfig
	fleet  *compose.ServiceCLI
	hub    *hub.Hub
	store  *settings.Store
	chat   *chat.Engine
	logger *log.Logger

	httpServer *http.Server
}

// NewServer builds the server. A nil logger falls back to the standard logger.
func NewServer(cfg config.ServerConfig, fleet *compose.ServiceCLI, h *hub.Hub, store *settings.Store, engine *chat.Engine, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		cfg:    cfg,
		fleet:  fleet,
		hub:    h,
		store:  store,
		chat:   engine,
		logger: logger,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Bind,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router assembles the chi mux. Exposed separately so tests can drive the
// handler stack without a listener.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(s.logMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/services", s.handleStatus)
		r.Post("/services/start-all", s.handleStartAll)
		r.Post("/services/stop-all", s.handleStopAll)
		r.Post("/services/{name}/start", s.serviceAction("start"))
		r.Post("/services/{name}/stop", s.serviceAction("stop"))
		r.Post("/services/{name}/restart", s.serviceAction("restart"))
		r.Get("/services/{name}/logs", s.handleLogs)
		r.Post("/chat", s.handleChat)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleSaveSettings)
		r.Get("/performance/score", s.handleScore)
	})

	r.Get("/ws/status", s.handleWS)
	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Printf("listening on %s", s.cfg.Bind)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.cfg.AllowedOrigins) > 0 && s.cfg.AllowedOrigins[0] != "*" {
			origin = s.cfg.AllowedOrigins[0]
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Printf("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// Package server provides the miner's operational HTTP endpoint:
// Prometheus metrics, a liveness probe, and a domain cache statistics
// snapshot. It carries no mining traffic.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nholt/zkminer/internal/domain"
	"github.com/nholt/zkminer/internal/logging"
)

// Server is the operational HTTP server.
type Server struct {
	httpServer *http.Server
	log        logging.Logger
	cache      *domain.Cache
}

// Option configures a Server.
type Option func(*Server)

// WithCacheStats exposes the given cache's counters at /stats.
func WithCacheStats(cache *domain.Cache) Option {
	return func(s *Server) {
		s.cache = cache
	}
}

// New creates a Server listening on addr. A nil logger disables
// logging.
func New(log logging.Logger, addr string, opts ...Option) *Server {
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{log: log}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route table, wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return s.loggingMiddleware(mux)
}

// loggingMiddleware records the method, path and duration of each
// request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.String("remote", r.RemoteAddr),
			logging.Float64("duration", time.Since(start).Seconds()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// statsResponse is the JSON shape served at /stats.
type statsResponse struct {
	Domains          int     `json:"domains"`
	Hits             uint64  `json:"hits"`
	Misses           uint64  `json:"misses"`
	HitRate          float64 `json:"hit_rate"`
	ShiftCalls       uint64  `json:"shift_calls"`
	IntercosateCalls uint64  `json:"intercosate_calls"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		http.Error(w, "no cache configured", http.StatusNotFound)
		return
	}
	stats := s.cache.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{
		Domains:          stats.Domains,
		Hits:             stats.Hits,
		Misses:           stats.Misses,
		HitRate:          stats.HitRate(),
		ShiftCalls:       stats.ShiftCalls,
		IntercosateCalls: stats.IntercosateCalls,
	})
}

// Start serves until Shutdown. A clean shutdown is not an error.
func (s *Server) Start() error {
	s.log.Info("operational endpoint listening", logging.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

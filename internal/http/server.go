package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fuelwatch/fuel-price-watcher/internal/scheduler"
)

// Server exposes the metrics, status, and latest-prices endpoints.
type Server struct {
	server  *http.Server
	logger  zerolog.Logger
	metrics *Metrics
}

// NewServer creates the operational HTTP server.
func NewServer(addr string, sched *scheduler.Scheduler, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	metrics := NewMetrics()

	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/status", NewStatusHandler(sched))
	mux.Handle("/prices", NewPricesHandler(sched))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			panic(err)
		}
	})

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:  logger.With().Str("component", "http").Logger(),
		metrics: metrics,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Metrics returns the Prometheus metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// PricesHandler serves the latest refresh snapshot: per fuel type a display
// label, the top 3 cheapest stations, and the full matched station map.
type PricesHandler struct {
	scheduler *scheduler.Scheduler
}

// NewPricesHandler creates a PricesHandler.
func NewPricesHandler(sched *scheduler.Scheduler) *PricesHandler {
	return &PricesHandler{scheduler: sched}
}

// ServeHTTP implements the http.Handler interface.
func (h *PricesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := h.scheduler.Snapshot()
	if snap == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
	"github.com/solar-surv/coldwatch/internal/fanout"
	"github.com/solar-surv/coldwatch/internal/logger"
	"github.com/solar-surv/coldwatch/internal/registry"
)

const (
	// readHeaderTimeout bounds slow-header attacks on the listener.
	readHeaderTimeout = 5 * time.Second

	// shutdownTimeout is how long Run waits for in-flight requests on exit.
	shutdownTimeout = 5 * time.Second
)

// IngestStats exposes ingestion counters for the status surface.
type IngestStats interface {
	ReadingsProcessed() uint64
	ReadingsDropped() uint64
}

// Server is the subscription and operational surface of the monitor: it
// accepts dashboard websocket subscribers and answers status queries.
type Server struct {
	registry *registry.Registry
	bus      *fanout.Bus
	stats    IngestStats

	httpServer *http.Server
}

// Status is the JSON body of GET /status.
type Status struct {
	DeviceCount       int    `json:"device_count"`
	SubscriberCount   int    `json:"subscriber_count"`
	ReadingsProcessed uint64 `json:"readings_processed"`
	ReadingsDropped   uint64 `json:"readings_dropped"`
	FramesDropped     uint64 `json:"frames_dropped"`
}

// NewServer wires the registry, bus and ingestion stats into an HTTP handler.
func NewServer(listenAddress string, reg *registry.Registry, bus *fanout.Bus, stats IngestStats) *Server {
	s := &Server{
		registry: reg,
		bus:      bus,
		stats:    stats,
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/status", s.handleStatus)
	router.Get("/devices", s.handleDevices)
	router.Get("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:              listenAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Handler returns the HTTP handler, used by tests to mount the server on a
// test listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves HTTP until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	// Done channel is closed after Shutdown finishes to ensure we block
	// until in-flight requests complete before returning.
	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "HTTP shutdown incomplete", "error", err)
		}
	}()

	logger.InfoKV(ctx, "Subscription server listening", "listen_address", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}

// handleStatus reports device and subscriber counts plus ingestion counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{
		DeviceCount:     s.registry.Len(),
		SubscriberCount: s.bus.SubscriberCount(),
		FramesDropped:   s.bus.Dropped(),
	}

	if s.stats != nil {
		status.ReadingsProcessed = s.stats.ReadingsProcessed()
		status.ReadingsDropped = s.stats.ReadingsDropped()
	}

	writeJSON(r.Context(), w, status)
}

// handleDevices returns the current frame of every known device, ascending id.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	states := s.registry.Snapshot()

	frames := make([]telemetry.Frame, 0, len(states))
	for _, state := range states {
		frames = append(frames, state.Frame())
	}

	writeJSON(r.Context(), w, frames)
}

// writeJSON encodes the payload with a JSON content type.
func writeJSON(ctx context.Context, w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WarnKV(ctx, "Failed to write JSON response", "error", err)
	}
}

// Package query serves stored collection runs over HTTP.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/OCAP2/roverwatch/internal/geo"
	"github.com/OCAP2/roverwatch/internal/storage"
	"github.com/OCAP2/roverwatch/pkg/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a storage.Reader as a JSON API.
type Server struct {
	reader   storage.Reader
	logger   *slog.Logger
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	router   chi.Router
}

// NewServer builds the router for reader.
func NewServer(reader storage.Reader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	s := &Server{
		reader:   reader,
		logger:   logger,
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roverwatch",
			Name:      "query_requests_total",
			Help:      "Query API requests by route and status.",
		}, []string{"route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roverwatch",
			Name:      "query_request_duration_seconds",
			Help:      "Query API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(s.instrument)

	router.Get("/healthz", s.handleHealthz)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.Route("/api", func(r chi.Router) {
		r.Get("/waypoints", s.handleListWaypoints)
		r.Get("/missions", s.handleListMissions)
		r.Get("/traverse", s.handleTraverse)
	})

	s.router = router
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down within
// shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Query API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Query API stopped")
	return nil
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleListWaypoints(w http.ResponseWriter, r *http.Request) {
	waypoints, err := s.reader.ListWaypoints(r.Context(), r.URL.Query().Get("run"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(waypoints))
	for _, wp := range waypoints {
		out = append(out, wp.Fields())
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.reader.ListMissionSummaries(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, sum.Fields())
	}
	respondJSON(w, http.StatusOK, out)
}

type traverseFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// handleTraverse returns the path of one run as a GeoJSON Feature. Without a
// run parameter the most recent run is used.
func (s *Server) handleTraverse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := r.URL.Query().Get("run")
	if runID == "" {
		summaries, err := s.reader.ListMissionSummaries(ctx)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if len(summaries) == 0 {
			respondError(w, http.StatusNotFound, "no runs stored")
			return
		}
		runID = summaries[0].RunID
	}

	stored, err := s.reader.ListWaypoints(ctx, runID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(stored) == 0 {
		respondError(w, http.StatusNotFound, "run "+runID+" not found")
		return
	}

	records := make([]core.WaypointRecord, 0, len(stored))
	for _, wp := range stored {
		records = append(records, wp.WaypointRecord)
	}
	path, err := geo.TraversePath(records)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	geometry, err := json.Marshal(path)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, traverseFeature{
		Type:     "Feature",
		Geometry: geometry,
		Properties: map[string]any{
			"run_id": runID,
			"points": len(records),
		},
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("Query failed", "path", r.URL.Path, "error", err)
	respondError(w, http.StatusInternalServerError, "internal error")
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"status":  status,
		"message": message,
	})
}

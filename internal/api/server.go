package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/pipeline"
)

// Aggregators is the part of pipeline.Service the API serves
type Aggregators interface {
	AggregateUpdates(ctx context.Context, dctx model.DisasterContext, opts pipeline.Options) (pipeline.Result[model.Update], error)
	AggregatePosts(ctx context.Context, dctx model.DisasterContext, opts pipeline.Options) (pipeline.Result[model.Post], error)
}

// Server exposes aggregation, health and metrics over HTTP
type Server struct {
	httpServer *http.Server
	svc        Aggregators
	timeout    time.Duration
	logger     *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a server listening on addr. Each aggregation request is
// bounded by requestTimeout.
func NewServer(addr string, svc Aggregators, requestTimeout time.Duration, logger *slog.Logger) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	s := &Server{svc: svc, timeout: requestTimeout, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/updates", s.handleUpdates)
		r.Get("/posts", s.handlePosts)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	dctx, opts, ok := parseQuery(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.svc.AggregateUpdates(ctx, dctx, opts)
	if err != nil {
		s.logger.Error("aggregate updates", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	dctx, opts, ok := parseQuery(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.svc.AggregatePosts(ctx, dctx, opts)
	if err != nil {
		s.logger.Error("aggregate posts", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseQuery reads tags, location, description, sources, maxResults and
// timeWindowHours. Tags or a location are required.
func parseQuery(w http.ResponseWriter, r *http.Request) (model.DisasterContext, pipeline.Options, bool) {
	q := r.URL.Query()
	dctx := model.DisasterContext{
		Tags:         parseCSV(q.Get("tags")),
		LocationName: strings.TrimSpace(q.Get("location")),
		Description:  strings.TrimSpace(q.Get("description")),
	}
	if len(dctx.Tags) == 0 && dctx.LocationName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tags or location is required"})
		return dctx, pipeline.Options{}, false
	}

	maxResults, err := parseNonNegative(q.Get("maxResults"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "maxResults: " + err.Error()})
		return dctx, pipeline.Options{}, false
	}
	window, err := parseNonNegative(q.Get("timeWindowHours"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "timeWindowHours: " + err.Error()})
		return dctx, pipeline.Options{}, false
	}

	return dctx, pipeline.Options{
		Sources:         parseCSV(q.Get("sources")),
		MaxResults:      maxResults,
		TimeWindowHours: window,
	}, true
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseNonNegative(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, strconv.ErrRange
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andreiashu/citybed"
	"github.com/andreiashu/citybed/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const shutdownTimeout = 10 * time.Second

// Gazetteer is the part of *citybed.Gazetteer the server uses.
type Gazetteer interface {
	Search(ctx context.Context, q citybed.Query) ([]citybed.Result, error)
	Countries(ctx context.Context) ([]citybed.Country, error)
	Loaded() bool
}

// Config holds the dependencies of a Server.
type Config struct {
	Logger    *slog.Logger
	Gazetteer Gazetteer
}

// Validate reports a missing dependency.
func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Gazetteer == nil {
		return errors.New("gazetteer is required")
	}
	return nil
}

// Server serves the gazetteer over HTTP.
type Server struct {
	log *slog.Logger
	gz  Gazetteer
}

// New returns a Server for a validated cfg.
func New(cfg *Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Server{log: cfg.Logger, gz: cfg.Gazetteer}, nil
}

// Handler returns the HTTP handler serving the API, health and metrics
// endpoints. Every /api/ response carries the CORS headers, and any OPTIONS
// request under /api/ is answered with 200.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/cities", s.handleCities)
	api.HandleFunc("GET /api/countries", s.handleCountries)
	api.HandleFunc("GET /api/continents", s.handleContinents)

	c := cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       corsMethods,
		AllowedHeaders:       corsHeaders,
		OptionsPassthrough:   true,
		OptionsSuccessStatus: http.StatusOK,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", c.Handler(apiHeaders(api)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.logging(mux)
}

// Serve accepts connections on listener until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	corsHeaders = []string{"Content-Type", "Authorization"}
)

// apiHeaders sets the CORS headers whether or not the request names an
// Origin, and answers OPTIONS itself.
func apiHeaders(next http.Handler) http.Handler {
	methods := strings.Join(corsMethods, ", ")
	headers := strings.Join(corsHeaders, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	q := citybed.ParseQuery(r.URL.Query())
	results, err := s.gz.Search(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := s.gz.Countries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, countries)
}

func (s *Server) handleContinents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, citybed.Continents())
}

type healthResponse struct {
	Status string `json:"status"`
	Loaded bool   `json:"loaded"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Loaded: s.gz.Loaded()})
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps load failures to 503 and anything else to 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, citybed.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	s.log.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("failed to write response", "error", err)
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.HTTPRequests.WithLabelValues(routeLabel(r.URL.Path), strconv.Itoa(rec.status)).Inc()
		s.log.Debug("http request",
			"remote", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// routeLabel bounds the metric label set to the known routes.
func routeLabel(path string) string {
	switch path {
	case "/api/cities", "/api/countries", "/api/continents", "/healthz", "/metrics":
		return path
	}
	return "other"
}

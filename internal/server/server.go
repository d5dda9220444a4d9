// Package server exposes report assembly over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	reportpdf "github.com/alnah/go-reportpdf"
)

// DefaultMaxBodyBytes bounds request bodies when Config leaves it unset.
const DefaultMaxBodyBytes = 4 << 20

// Assembler produces the output of one request. The returned output is
// closed by the server once streamed.
type Assembler func(ctx context.Context, items []reportpdf.WorkItem, bundle bool) (*reportpdf.Output, error)

// Config holds HTTP server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64

	// MetricsPath serves Gatherer when both are set.
	MetricsPath string
	Gatherer    prometheus.Gatherer
}

// Request is the body of POST /v1/reports.
type Request struct {
	Items  []reportpdf.WorkItem `json:"items"`
	Bundle bool                 `json:"bundle"`
}

// Server is the HTTP transport of the report assembler.
type Server struct {
	cfg        Config
	assemble   Assembler
	router     chi.Router
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates a server answering with assemble.
func New(cfg Config, assemble Assembler, logger zerolog.Logger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{
		cfg:      cfg,
		assemble: assemble,
		logger:   logger.With().Str("component", "http-server").Logger(),
	}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(requestIDHeader)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthHandler)
	if s.cfg.MetricsPath != "" && s.cfg.Gatherer != nil {
		r.Method(http.MethodGet, s.cfg.MetricsPath, promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Post("/v1/reports", s.createReport)
	return r
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("address", ln.Addr().String()).Msg("HTTP server starting")
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createReport assembles the request items and streams the output. A client
// that goes away cancels the request context, which aborts the run.
func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()

	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	out, err := s.assemble(r.Context(), req.Items, req.Bundle)
	if err != nil {
		switch {
		case errors.Is(err, reportpdf.ErrNoWorkItems), errors.Is(err, reportpdf.ErrInvalidWorkItem):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, reportpdf.ErrAborted):
			logger.Info().Msg("client went away, run aborted")
		default:
			logger.Error().Err(err).Msg("assembly failed")
			writeError(w, http.StatusInternalServerError, "assembly failed")
		}
		return
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing output")
		}
	}()

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, out); err != nil {
		logger.Warn().Err(err).Msg("streaming output")
	}
}

// requestIDHeader seeds chi's RequestID middleware with a UUID when the
// client sent none, and echoes the id back.
func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(middleware.RequestIDHeader, id)
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// logRequests logs one line per request with its status and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

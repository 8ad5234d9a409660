// Package server exposes the question pipeline over HTTP.
//
//	POST /ask      {"question": "..."} -> answer, preprocessing and sources
//	GET  /healthz  dependency health report
//	GET  /metrics  Prometheus scrape endpoint, when configured
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ArturGR3/AI-Hackathon/pkg/govdoc"
	"github.com/ArturGR3/AI-Hackathon/pkg/observability"
	"github.com/ArturGR3/AI-Hackathon/pkg/query"
)

// Asker answers a question.
type Asker interface {
	Process(ctx context.Context, question string) (*query.Result, error)
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	asker         Asker
	logger        *slog.Logger
	metrics       observability.MetricsProvider
	metricsPage   http.Handler
	checks        []observability.HealthChecker
	healthTimeout time.Duration
	maxBody       int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the base request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records request counts and latencies, and serves h on /metrics
// when h is non-nil.
func WithMetrics(m observability.MetricsProvider, h http.Handler) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
		s.metricsPage = h
	}
}

// WithHealthChecks sets the checks run by /healthz.
func WithHealthChecks(checks ...observability.HealthChecker) Option {
	return func(s *Server) {
		s.checks = append(s.checks, checks...)
	}
}

// New creates a server around asker.
func New(asker Asker, opts ...Option) *Server {
	s := &Server{
		asker:         asker,
		logger:        slog.Default(),
		metrics:       observability.NoopMetricsProvider{},
		healthTimeout: 5 * time.Second,
		maxBody:       64 << 10,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with request ID and logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.Handle("GET /healthz", observability.HealthHandler(s.checks, s.healthTimeout))
	if s.metricsPage != nil {
		mux.Handle("GET /metrics", s.metricsPage)
	}
	return s.withRequestContext(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := govdoc.WithLogger(r.Context(), s.logger)
		ctx = govdoc.WithRequestID(ctx, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		route := r.Method + " " + r.URL.Path
		labels := map[string]string{"route": route, "code": strconv.Itoa(rec.status)}
		s.metrics.Counter(ctx, "http_requests_total", 1, labels)
		s.metrics.RecordDuration(ctx, "http_request_duration_seconds", time.Since(start), map[string]string{"route": route})
		govdoc.LogDebug(ctx, "http request", "route", route, "status", rec.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// Source is a retrieved document reported with an answer.
type Source struct {
	ID       string  `json:"id"`
	Title    any     `json:"title,omitempty"`
	Sender   any     `json:"sender,omitempty"`
	SentDate any     `json:"sent_date,omitempty"`
	Distance float64 `json:"distance"`
}

// AskResponse is the body of a successful POST /ask.
type AskResponse struct {
	Answer         string            `json:"answer"`
	ThoughtProcess []string          `json:"thought_process"`
	EnoughContext  bool              `json:"enough_context"`
	Preprocessing  query.Constraints `json:"preprocessing"`
	Sources        []Source          `json:"sources"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AskRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, govdoc.WrapErr(ctx, govdoc.KindValidation, err, "invalid request body"))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, r, govdoc.Validationf(ctx, "question is required"))
		return
	}

	res, err := s.asker.Process(ctx, req.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := AskResponse{
		Answer:         res.Response.Answer,
		ThoughtProcess: res.Response.ThoughtProcess,
		EnoughContext:  res.Response.EnoughContext,
		Preprocessing:  res.Preprocessing,
		Sources:        make([]Source, 0, len(res.Sources)),
	}
	for _, src := range res.Sources {
		md := src.Record.Metadata
		resp.Sources = append(resp.Sources, Source{
			ID:       src.Record.ID,
			Title:    md["title_in_english"],
			Sender:   md["sender"],
			SentDate: md["sent_date"],
			Distance: src.Distance,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := govdoc.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		govdoc.LogError(r.Context(), "ask failed", err, "status", status)
	}
	writeJSON(w, status, ErrorResponse{
		Error:     err.Error(),
		Kind:      kind.String(),
		RequestID: govdoc.RequestID(r.Context()),
	})
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind govdoc.Kind) int {
	switch kind {
	case govdoc.KindValidation:
		return http.StatusBadRequest
	case govdoc.KindTimeout:
		return http.StatusGatewayTimeout
	case govdoc.KindExtraction, govdoc.KindSynthesis, govdoc.KindEmbedding:
		return http.StatusBadGateway
	case govdoc.KindSearch:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

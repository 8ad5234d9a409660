package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/config"
	"github.com/ArturGR3/AI-Hackathon/pkg/govdoc"
	"github.com/ArturGR3/AI-Hackathon/pkg/ingest"
	"github.com/ArturGR3/AI-Hackathon/pkg/observability"
	"github.com/ArturGR3/AI-Hackathon/pkg/query"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// app holds the handles every command shares. They are built once per
// invocation and closed when the command returns.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics observability.MetricsProvider
	prom    *observability.PrometheusProvider
	tracer  observability.TracerProvider
	client  ai.Client
	store   *retrieval.Store
	clock   func() time.Time
}

// loadApp builds the application for a command. Tests replace it.
var loadApp = buildApp

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: cfg.NewLogger(os.Stderr), clock: time.Now}
	a.metrics, a.prom = cfg.NewMetrics()

	if a.tracer, err = cfg.NewTracer(ctx); err != nil {
		return nil, err
	}

	limiter := cfg.NewRateLimiter()
	if a.client, err = cfg.NewClient(ctx, limiter); err != nil {
		return nil, errors.Join(err, a.tracer.Shutdown(ctx))
	}
	embedder, err := cfg.NewEmbedder(ctx, limiter)
	if err != nil {
		return nil, errors.Join(err, a.tracer.Shutdown(ctx))
	}
	backend, err := cfg.NewBackend(ctx)
	if err != nil {
		return nil, errors.Join(err, a.tracer.Shutdown(ctx))
	}
	a.store = cfg.NewStore(backend, embedder, a.metrics)
	return a, nil
}

// context attaches the process logger.
func (a *app) context(ctx context.Context) context.Context {
	return govdoc.WithLogger(ctx, a.logger)
}

func (a *app) processor() (*query.Processor, error) {
	q := a.cfg.Query
	pre, err := query.NewPreprocessor(a.client,
		query.WithRecipients(a.cfg.Recipients()...),
		query.WithExtractionTimeout(q.PreprocessTimeout),
	)
	if err != nil {
		return nil, err
	}
	return query.NewProcessor(pre, a.store, query.NewSynthesizer(a.client, q.SynthesisTimeout),
		query.WithLimit(q.Limit),
		query.WithClock(a.clock),
		query.WithMetrics(a.metrics),
		query.WithTracer(a.tracer),
	), nil
}

func (a *app) ingestor() *ingest.Ingestor {
	return ingest.NewIngestor(a.client, a.store,
		ingest.WithRecipients(a.cfg.Recipients()...),
		ingest.WithAnalysisTimeout(a.cfg.Ingest.AnalysisTimeout),
		ingest.WithClock(a.clock),
		ingest.WithMetrics(a.metrics),
	)
}

// Close flushes traces and releases the store connection.
func (a *app) Close(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return errors.Join(a.tracer.Shutdown(shutdownCtx), a.store.Close())
}

// closeApp closes a and joins any failure onto the command's error.
func closeApp(cmd *cobra.Command, a *app, err error) error {
	return errors.Join(err, a.Close(cmd.Context()))
}

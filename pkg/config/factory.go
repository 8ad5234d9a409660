package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/ai/gemini"
	"github.com/ArturGR3/AI-Hackathon/pkg/ai/ollama"
	"github.com/ArturGR3/AI-Hackathon/pkg/ai/openai"
	"github.com/ArturGR3/AI-Hackathon/pkg/helpers"
	"github.com/ArturGR3/AI-Hackathon/pkg/observability"
	"github.com/ArturGR3/AI-Hackathon/pkg/query"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval/memory"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval/pgvector"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval/qdrant"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval/sqlite"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval/weaviate"
)

// NewLogger builds the process logger.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	return observability.NewLogger(w, c.Log.Format, c.Log.Level)
}

// NewMetrics returns a Prometheus provider, or a no-op one when metrics are
// disabled. The second result is nil in the latter case.
func (c *Config) NewMetrics() (observability.MetricsProvider, *observability.PrometheusProvider) {
	if !c.Metrics.Enabled {
		return observability.NoopMetricsProvider{}, nil
	}
	p := observability.NewPrometheusProvider(observability.WithNamespace(c.Metrics.Namespace))
	return p, p
}

// NewTracer returns an OTLP tracer, or a no-op one without an endpoint.
func (c *Config) NewTracer(ctx context.Context) (observability.TracerProvider, error) {
	if c.Tracing.Endpoint == "" {
		return observability.NoopTracerProvider{}, nil
	}
	return observability.NewOTLPTracerProvider(ctx, observability.OTLPConfig{
		Endpoint:    c.Tracing.Endpoint,
		UseHTTP:     c.Tracing.UseHTTP,
		Insecure:    c.Tracing.Insecure,
		SampleRate:  c.Tracing.SampleRate,
		ServiceName: c.Tracing.ServiceName,
	})
}

// NewClient builds the chat client, rate limited through limiter when it is
// non-nil.
func (c *Config) NewClient(ctx context.Context, limiter *ai.RateLimiter) (ai.Client, error) {
	temp := helpers.PtrOf(float32(c.LLM.Temperature))
	var maxTokens *int
	if c.LLM.MaxTokens > 0 {
		maxTokens = helpers.PtrOf(c.LLM.MaxTokens)
	}

	var (
		client ai.Client
		err    error
	)
	switch c.LLM.Provider {
	case "openai":
		client, err = openai.New(c.LLM.Model, openai.WithConfig(&openai.Config{
			APIKey:      c.LLM.APIKey,
			BaseURL:     c.LLM.BaseURL,
			Temperature: temp,
			MaxTokens:   maxTokens,
		}))
	case "ollama":
		client, err = ollama.New(c.LLM.Model, ollama.WithConfig(&ollama.Config{
			Host:        c.LLM.BaseURL,
			Temperature: temp,
			MaxTokens:   maxTokens,
		}))
	case "gemini":
		client, err = gemini.New(ctx, c.LLM.Model, gemini.WithConfig(&gemini.Config{
			APIKey:      c.LLM.APIKey,
			Temperature: temp,
			MaxTokens:   maxTokens,
		}))
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if err != nil {
		return nil, helpers.WrapErrorf(err, "failed to create %s client", c.LLM.Provider)
	}
	if limiter != nil {
		client = limiter.Client(client)
	}
	return client, nil
}

// NewEmbedder builds the embedding provider.
func (c *Config) NewEmbedder(ctx context.Context, limiter *ai.RateLimiter) (ai.Embedder, error) {
	var (
		embedder ai.Embedder
		err      error
	)
	switch c.Embedding.Provider {
	case "openai":
		embedder, err = openai.NewEmbedder(c.Embedding.Model, openai.WithConfig(&openai.Config{
			APIKey:     c.Embedding.APIKey,
			BaseURL:    c.Embedding.BaseURL,
			Dimensions: helpers.PtrOf(c.Embedding.Dimension),
		}))
	case "ollama":
		embedder, err = ollama.NewEmbedder(c.Embedding.Model, ollama.WithConfig(&ollama.Config{
			Host: c.Embedding.BaseURL,
		}))
	case "gemini":
		embedder, err = gemini.NewEmbedder(ctx, c.Embedding.Model, gemini.WithConfig(&gemini.Config{
			APIKey:     c.Embedding.APIKey,
			Dimensions: helpers.PtrOf(c.Embedding.Dimension),
		}))
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", c.Embedding.Provider)
	}
	if err != nil {
		return nil, helpers.WrapErrorf(err, "failed to create %s embedder", c.Embedding.Provider)
	}
	if limiter != nil {
		embedder = limiter.Embedder(embedder)
	}
	return embedder, nil
}

// NewRateLimiter returns the limiter shared by the chat client and the
// embedder, or nil when rate limiting is off.
func (c *Config) NewRateLimiter() *ai.RateLimiter {
	if c.LLM.RateLimit <= 0 {
		return nil
	}
	return ai.NewRateLimiter(c.LLM.RateLimit, c.LLM.Burst)
}

// NewBackend opens the configured vector store backend.
func (c *Config) NewBackend(ctx context.Context) (retrieval.Backend, error) {
	s := c.Store
	dim := c.Embedding.Dimension
	switch s.Backend {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.New(sqlite.Config{Path: s.Path, TableName: s.TableName, VectorDimension: dim})
	case "pgvector":
		return pgvector.New(ctx, pgvector.Config{
			ConnectionString:      s.DSN,
			TableName:             s.TableName,
			VectorDimension:       dim,
			IndexType:             s.IndexType,
			IterativeScan:         s.IterativeScan,
			TimePartitionInterval: s.TimePartitionInterval,
		})
	case "qdrant":
		return qdrant.New(qdrant.Config{URL: s.URL, CollectionName: s.TableName, APIKey: s.APIKey, VectorDimension: dim})
	case "weaviate":
		return weaviate.New(weaviate.Config{URL: s.URL, ClassName: className(s.TableName), APIKey: s.APIKey, VectorDimension: dim})
	default:
		return nil, fmt.Errorf("unsupported store backend %q", s.Backend)
	}
}

// className upper-cases the first letter; weaviate classes must start with one.
func className(table string) string {
	if table == "" {
		return ""
	}
	b := []byte(table)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

// NewStore wraps backend and embedder with the configured limits and timeouts.
func (c *Config) NewStore(backend retrieval.Backend, embedder retrieval.EmbeddingProvider, metrics observability.MetricsProvider) *retrieval.Store {
	return retrieval.NewStore(backend, embedder,
		retrieval.WithDefaultLimit(c.Query.Limit),
		retrieval.WithDimension(c.Embedding.Dimension),
		retrieval.WithEmbedTimeout(c.Store.EmbedTimeout),
		retrieval.WithSearchTimeout(c.Store.SearchTimeout),
		retrieval.WithWriteTimeout(c.Store.WriteTimeout),
		retrieval.WithMetrics(metrics),
	)
}

// Recipients converts the configured names.
func (c *Config) Recipients() []query.Recipient {
	out := make([]query.Recipient, len(c.Query.Recipients))
	for i, r := range c.Query.Recipients {
		out[i] = query.Recipient(r)
	}
	return out
}

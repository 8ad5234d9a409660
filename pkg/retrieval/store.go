package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ArturGR3/AI-Hackathon/pkg/govdoc"
	"github.com/ArturGR3/AI-Hackathon/pkg/observability"
)

// DefaultLimit bounds search results when a request does not set one.
const DefaultLimit = 3

// Store is the vector store used by the query pipeline. It owns the
// embedding step, so a record's embedding always matches its contents,
// and it enforces result ordering and limits over any Backend.
type Store struct {
	backend  Backend
	embedder EmbeddingProvider
	metrics  observability.MetricsProvider

	defaultLimit  int
	dimension     int
	embedTimeout  time.Duration
	searchTimeout time.Duration
	writeTimeout  time.Duration
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDefaultLimit sets the limit used when SearchRequest.Limit is zero.
func WithDefaultLimit(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// WithDimension makes the store reject embeddings of any other length.
func WithDimension(d int) StoreOption {
	return func(s *Store) {
		s.dimension = d
	}
}

// WithEmbedTimeout bounds each embedding call.
func WithEmbedTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		s.embedTimeout = d
	}
}

// WithSearchTimeout bounds each backend search.
func WithSearchTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		s.searchTimeout = d
	}
}

// WithWriteTimeout bounds upserts, deletes and admin operations.
func WithWriteTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		s.writeTimeout = d
	}
}

// WithMetrics records operation counts and latencies.
func WithMetrics(m observability.MetricsProvider) StoreOption {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewStore wraps a backend and an embedding provider.
//
// Example:
//
//	store := retrieval.NewStore(pgBackend, embedder,
//	    retrieval.WithDimension(1536),
//	    retrieval.WithSearchTimeout(10*time.Second),
//	)
func NewStore(backend Backend, embedder EmbeddingProvider, opts ...StoreOption) *Store {
	s := &Store{
		backend:       backend,
		embedder:      embedder,
		metrics:       observability.NoopMetricsProvider{},
		defaultLimit:  DefaultLimit,
		embedTimeout:  30 * time.Second,
		searchTimeout: 30 * time.Second,
		writeTimeout:  60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// DefaultLimit returns the limit applied to requests without one.
func (s *Store) DefaultLimit() int { return s.defaultLimit }

// SearchRequest is a similarity search. Predicate and TimeRange are optional.
type SearchRequest struct {
	Query     string
	Limit     int
	Predicate *Predicate
	TimeRange *TimeRange
}

// Upsert embeds and writes records. A record whose ID already exists is
// replaced; within one call the last record for an ID wins. Any embedding
// set by the caller is ignored and recomputed from Contents.
func (s *Store) Upsert(ctx context.Context, records []Record) (err error) {
	if len(records) == 0 {
		return nil
	}
	defer s.observe(ctx, "upsert", time.Now(), &err)

	records = dedupeByID(records)
	prepared := make([]Record, 0, len(records))
	for _, r := range records {
		if _, err := IDTime(r.ID); err != nil {
			return govdoc.WrapErr(ctx, govdoc.KindValidation, err, "invalid record id")
		}
		if strings.TrimSpace(r.Contents) == "" {
			return govdoc.Validationf(ctx, "record %s has empty contents", r.ID)
		}

		vec, err := s.embed(ctx, r.Contents)
		if err != nil {
			return err
		}
		out := Record{ID: r.ID, Contents: r.Contents, Metadata: r.Metadata, Embedding: vec}
		if out.Metadata == nil {
			out.Metadata = map[string]any{}
		}
		prepared = append(prepared, out)
	}

	wctx, cancel := s.withTimeout(ctx, s.writeTimeout)
	defer cancel()
	if err := s.backend.Upsert(wctx, prepared); err != nil {
		return s.storeErr(ctx, err, "upsert records")
	}
	govdoc.LogDebug(ctx, "records upserted", "backend", s.backend.Name(), "count", len(prepared))
	return nil
}

// Search embeds the query and returns at most Limit results by ascending
// distance, ties broken by insertion order. Predicate and TimeRange restrict
// the candidate set before ranking.
func (s *Store) Search(ctx context.Context, req SearchRequest) (results []Result, err error) {
	defer s.observe(ctx, "search", time.Now(), &err)

	if strings.TrimSpace(req.Query) == "" {
		return nil, govdoc.Validationf(ctx, "search query is empty")
	}
	if req.Limit < 0 {
		return nil, govdoc.Validationf(ctx, "search limit %d is negative", req.Limit)
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	if err := req.Predicate.Validate(); err != nil {
		return nil, govdoc.WrapErr(ctx, govdoc.KindSearch, err, "malformed predicate")
	}
	var tr TimeRange
	if req.TimeRange != nil {
		tr = *req.TimeRange
		if !tr.Start.IsZero() && !tr.End.IsZero() && tr.End.Before(tr.Start) {
			return nil, govdoc.NewErr(ctx, govdoc.KindSearch, "time range ends before it starts").
				Tag(slog.String("time_range", tr.String()))
		}
	}

	vec, err := s.embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.withTimeout(ctx, s.searchTimeout)
	defer cancel()
	results, err = s.backend.Search(sctx, Query{
		Vector:    vec,
		Limit:     limit,
		Predicate: req.Predicate,
		TimeRange: tr,
	})
	if err != nil {
		return nil, s.storeErr(ctx, err, "vector search failed")
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Seq < results[j].Seq
	})
	if len(results) > limit {
		results = results[:limit]
	}

	govdoc.LogDebug(ctx, "search complete",
		"backend", s.backend.Name(),
		"limit", limit,
		"predicate", req.Predicate.String(),
		"time_range", tr.String(),
		"results", len(results),
	)
	return results, nil
}

// Delete removes records by ids, by metadata equality filter, or all of
// them. Exactly one mode must be set.
func (s *Store) Delete(ctx context.Context, opts DeleteOptions) (n int64, err error) {
	defer s.observe(ctx, "delete", time.Now(), &err)

	if err := opts.Validate(); err != nil {
		return 0, govdoc.WrapErr(ctx, govdoc.KindValidation, err, "invalid delete options").
			Tag(slog.String("mode", opts.Mode()))
	}
	wctx, cancel := s.withTimeout(ctx, s.writeTimeout)
	defer cancel()
	n, err = s.backend.Delete(wctx, opts)
	if err != nil {
		return 0, s.storeErr(ctx, err, "delete records")
	}
	govdoc.LogInfo(ctx, "records deleted", "backend", s.backend.Name(), "mode", opts.Mode(), "deleted", n)
	return n, nil
}

// Exists reports whether a record with id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, govdoc.Validationf(ctx, "record id is empty")
	}
	var ok bool
	err := s.admin(ctx, "exists", func(ctx context.Context) (err error) {
		ok, err = s.backend.Exists(ctx, id)
		return err
	})
	return ok, err
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.admin(ctx, "count", func(ctx context.Context) (err error) {
		n, err = s.backend.Count(ctx)
		return err
	})
	return n, err
}

func (s *Store) CreateTables(ctx context.Context) error {
	return s.admin(ctx, "create_tables", s.backend.CreateTables)
}

func (s *Store) DropTables(ctx context.Context) error {
	return s.admin(ctx, "drop_tables", s.backend.DropTables)
}

func (s *Store) TablesExist(ctx context.Context) (bool, error) {
	var ok bool
	err := s.admin(ctx, "tables_exist", func(ctx context.Context) (err error) {
		ok, err = s.backend.TablesExist(ctx)
		return err
	})
	return ok, err
}

// CreateIndex builds the nearest-neighbour index; an existing one is kept.
func (s *Store) CreateIndex(ctx context.Context) error {
	return s.admin(ctx, "create_index", s.backend.CreateIndex)
}

func (s *Store) DropIndex(ctx context.Context) error {
	return s.admin(ctx, "drop_index", s.backend.DropIndex)
}

// Info describes the backend connection.
func (s *Store) Info(ctx context.Context) (Info, error) {
	var info Info
	err := s.admin(ctx, "info", func(ctx context.Context) (err error) {
		info, err = s.backend.Info(ctx)
		return err
	})
	return info, err
}

// Health checks the backend connection.
func (s *Store) Health(ctx context.Context) error {
	return s.admin(ctx, "health", s.backend.Health)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) admin(ctx context.Context, op string, fn func(context.Context) error) (err error) {
	defer s.observe(ctx, op, time.Now(), &err)
	actx, cancel := s.withTimeout(ctx, s.writeTimeout)
	defer cancel()
	if err := fn(actx); err != nil {
		return s.storeErr(ctx, err, strings.ReplaceAll(op, "_", " ")+" failed")
	}
	return nil
}

// embed normalises newlines to spaces before calling the provider.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	ectx, cancel := s.withTimeout(ctx, s.embedTimeout)
	defer cancel()

	start := time.Now()
	vec, err := s.embedder.Embed(ectx, strings.ReplaceAll(text, "\n", " "))
	s.metrics.RecordDuration(ctx, "embedding_duration_seconds", time.Since(start), map[string]string{"status": status(err)})
	if err != nil {
		return nil, govdoc.WrapErr(ctx, govdoc.KindEmbedding, err, "embedding failed")
	}
	if len(vec) == 0 {
		return nil, govdoc.NewErr(ctx, govdoc.KindEmbedding, "embedding provider returned an empty vector")
	}
	if s.dimension > 0 && len(vec) != s.dimension {
		return nil, govdoc.NewErr(ctx, govdoc.KindEmbedding,
			fmt.Sprintf("embedding has %d dimensions, store expects %d", len(vec), s.dimension))
	}
	return vec, nil
}

func (s *Store) storeErr(ctx context.Context, err error, msg string) error {
	return govdoc.WrapErr(ctx, govdoc.KindSearch, err, msg).Tag(slog.String("backend", s.backend.Name()))
}

func (s *Store) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (s *Store) observe(ctx context.Context, op string, start time.Time, errp *error) {
	labels := map[string]string{"backend": s.backend.Name(), "op": op}
	s.metrics.RecordDuration(ctx, "store_operation_duration_seconds", time.Since(start), labels)
	s.metrics.Counter(ctx, "store_operations_total", 1, map[string]string{
		"backend": s.backend.Name(),
		"op":      op,
		"status":  status(*errp),
	})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func dedupeByID(records []Record) []Record {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.ID] = i
	}
	if len(last) == len(records) {
		return records
	}
	out := make([]Record, 0, len(last))
	for i, r := range records {
		if last[r.ID] == i {
			out = append(out, r)
		}
	}
	return out
}

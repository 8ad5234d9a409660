// Package query answers natural-language questions over the document store:
// question → constraints (model) → predicate → filtered similarity search →
// synthesized answer.
package query

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ArturGR3/AI-Hackathon/pkg/govdoc"
	"github.com/ArturGR3/AI-Hackathon/pkg/observability"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// Searcher is the part of retrieval.Store the processor needs.
type Searcher interface {
	Search(ctx context.Context, req retrieval.SearchRequest) ([]retrieval.Result, error)
}

// Result is the outcome of one question.
type Result struct {
	Response      SynthesizedResponse `json:"response"`
	Preprocessing Constraints         `json:"preprocessing"`
	Sources       []retrieval.Result  `json:"sources"`
}

// Processor runs the question pipeline. Each call is sequential; separate
// calls may run concurrently.
type Processor struct {
	preprocessor *Preprocessor
	searcher     Searcher
	synthesizer  *Synthesizer

	limit   int
	clock   func() time.Time
	metrics observability.MetricsProvider
	tracer  observability.TracerProvider

	mu   sync.Mutex
	last *Constraints
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLimit sets how many records are retrieved per question.
func WithLimit(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithClock sets the source of the reference time given to the preprocessor.
func WithClock(clock func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithMetrics records per-stage latencies and question outcomes.
func WithMetrics(m observability.MetricsProvider) ProcessorOption {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithTracer wraps every stage in a span.
func WithTracer(t observability.TracerProvider) ProcessorOption {
	return func(p *Processor) {
		if t != nil {
			p.tracer = t
		}
	}
}

// NewProcessor wires the three stages together.
//
// Example:
//
//	proc := query.NewProcessor(pre, store, syn,
//	    query.WithLimit(5),
//	    query.WithMetrics(metrics),
//	)
//	res, err := proc.Process(ctx, "What does the tax office want from me?")
func NewProcessor(pre *Preprocessor, searcher Searcher, syn *Synthesizer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		preprocessor: pre,
		searcher:     searcher,
		synthesizer:  syn,
		limit:        retrieval.DefaultLimit,
		clock:        time.Now,
		metrics:      observability.NoopMetricsProvider{},
		tracer:       observability.NoopTracerProvider{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process answers question. Any stage failure aborts the pipeline and is
// returned with the kind of the stage that produced it.
func (p *Processor) Process(ctx context.Context, question string) (res *Result, err error) {
	ctx, span := p.tracer.StartSpan(ctx, "query.process")
	start := time.Now()
	defer func() {
		span.End(err)
		p.metrics.RecordDuration(ctx, "query_duration_seconds", time.Since(start), map[string]string{"status": outcome(err)})
		p.metrics.Counter(ctx, "queries_total", 1, map[string]string{"status": outcome(err)})
		if err != nil {
			govdoc.LogError(ctx, "question failed", err, "kind", govdoc.KindOf(err).String())
		}
	}()

	var constraints Constraints
	err = p.stage(ctx, "preprocess", func(ctx context.Context) error {
		var err error
		constraints, err = p.preprocessor.Preprocess(ctx, question, p.clock())
		return err
	})
	if err != nil {
		return nil, err
	}
	p.setLast(constraints)

	req := retrieval.SearchRequest{
		Query:     question,
		Limit:     p.limit,
		Predicate: BuildPredicate(constraints),
		TimeRange: constraints.TimeRange(),
	}
	if req.Predicate != nil {
		span.SetAttribute("predicate", req.Predicate.String())
	}

	var results []retrieval.Result
	err = p.stage(ctx, "search", func(ctx context.Context) error {
		var err error
		results, err = p.searcher.Search(ctx, req)
		return govdoc.Wrap(ctx, govdoc.KindSearch, err, "search failed")
	})
	if err != nil {
		return nil, err
	}
	govdoc.LogInfo(ctx, "documents retrieved", "count", len(results), "constraints", constraints)

	var response SynthesizedResponse
	err = p.stage(ctx, "synthesize", func(ctx context.Context) error {
		var err error
		response, err = p.synthesizer.Synthesize(ctx, question, results)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Result{Response: response, Preprocessing: constraints, Sources: results}, nil
}

// LastPreprocessing returns the constraints of the most recent successful
// preprocessing step, from any caller.
func (p *Processor) LastPreprocessing() (Constraints, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Constraints{}, false
	}
	return *p.last, true
}

func (p *Processor) setLast(c Constraints) {
	p.mu.Lock()
	p.last = &c
	p.mu.Unlock()
}

func (p *Processor) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.StartSpan(ctx, "query."+name)
	start := time.Now()
	err := fn(ctx)
	span.End(err)
	p.metrics.RecordDuration(ctx, "query_stage_duration_seconds", time.Since(start), map[string]string{
		"stage":  name,
		"status": outcome(err),
	})
	return err
}

// BatchResult pairs a question with its outcome.
type BatchResult struct {
	Question string
	Result   *Result
	Err      error
}

// ProcessBatch answers questions concurrently, at most parallelism at a
// time (unbounded when parallelism < 1). Results keep the input order and
// one failure does not stop the others.
func (p *Processor) ProcessBatch(ctx context.Context, questions []string, parallelism int) []BatchResult {
	out := make([]BatchResult, len(questions))

	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, q := range questions {
		g.Go(func() error {
			res, err := p.Process(ctx, q)
			out[i] = BatchResult{Question: q, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return govdoc.KindOf(err).String()
}

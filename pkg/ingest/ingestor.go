package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/govdoc"
	"github.com/ArturGR3/AI-Hackathon/pkg/observability"
	"github.com/ArturGR3/AI-Hackathon/pkg/query"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// Upserter is the part of retrieval.Store the ingestor writes through.
type Upserter interface {
	Upsert(ctx context.Context, records []retrieval.Record) error
}

const analysisPrompt = `You are a government document expert that is fluent in German bureaucracy.
You are given a document in German or English.
You need to analyze the document and provide a response in JSON format.
Here is the document:
`

// Ingestor analyses letters and writes them to the store.
type Ingestor struct {
	client     ai.Client
	store      Upserter
	format     *ai.ResponseFormat
	recipients []query.Recipient
	timeout    time.Duration
	clock      func() time.Time
	metrics    observability.MetricsProvider
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithRecipients sets the names analysed recipients are canonicalised to.
func WithRecipients(recipients ...query.Recipient) Option {
	return func(i *Ingestor) {
		if len(recipients) > 0 {
			i.recipients = recipients
		}
	}
}

// WithAnalysisTimeout bounds each analysis call.
func WithAnalysisTimeout(d time.Duration) Option {
	return func(i *Ingestor) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithClock sets the source of record creation times.
func WithClock(clock func() time.Time) Option {
	return func(i *Ingestor) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// WithMetrics counts ingested documents.
func WithMetrics(m observability.MetricsProvider) Option {
	return func(i *Ingestor) {
		if m != nil {
			i.metrics = m
		}
	}
}

// NewIngestor creates an ingestor. client may be nil when only already
// analysed documents are ingested.
func NewIngestor(client ai.Client, store Upserter, opts ...Option) *Ingestor {
	i := &Ingestor{
		client:     client,
		store:      store,
		format:     ai.SchemaFor[GovernmentDocument]("government_document"),
		recipients: query.DefaultRecipients,
		timeout:    2 * time.Minute,
		clock:      time.Now,
		metrics:    observability.NoopMetricsProvider{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Analyze asks the model for the structured analysis of text.
func (i *Ingestor) Analyze(ctx context.Context, text string) (GovernmentDocument, error) {
	if strings.TrimSpace(text) == "" {
		return GovernmentDocument{}, govdoc.Validationf(ctx, "document text is empty")
	}
	if i.client == nil {
		return GovernmentDocument{}, govdoc.NewErr(ctx, govdoc.KindExtraction, "no language model configured for analysis")
	}

	cctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	doc, err := ai.Extract[GovernmentDocument](cctx, i.client, []ai.Message{ai.User(analysisPrompt + text)}, i.format)
	if err != nil {
		return GovernmentDocument{}, govdoc.WrapErr(ctx, govdoc.KindExtraction, err, "document analysis failed")
	}

	canonical := CanonicalRecipient(doc.AddressedTo, i.recipients)
	if canonical != doc.AddressedTo {
		govdoc.LogDebug(ctx, "recipient canonicalised", "from", doc.AddressedTo, "to", canonical)
		doc.AddressedTo = canonical
	}
	return doc, nil
}

// Ingest writes doc as one record created now.
func (i *Ingestor) Ingest(ctx context.Context, doc GovernmentDocument) (retrieval.Record, error) {
	records, err := i.write(ctx, []GovernmentDocument{doc})
	if err != nil {
		return retrieval.Record{}, err
	}
	return records[0], nil
}

// IngestTexts analyses texts concurrently, at most parallelism at a time,
// and writes the results in one upsert. Any failure stops the batch before
// anything is written.
func (i *Ingestor) IngestTexts(ctx context.Context, texts []string, parallelism int) ([]retrieval.Record, error) {
	docs := make([]GovernmentDocument, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for n, text := range texts {
		g.Go(func() error {
			doc, err := i.Analyze(gctx, text)
			if err != nil {
				return govdoc.Wrap(ctx, govdoc.KindExtraction, err, "document analysis failed")
			}
			docs[n] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return i.write(ctx, docs)
}

func (i *Ingestor) write(ctx context.Context, docs []GovernmentDocument) ([]retrieval.Record, error) {
	createdAt := i.clock()
	records := make([]retrieval.Record, 0, len(docs))
	for _, doc := range docs {
		r, err := BuildRecord(doc, createdAt)
		if err != nil {
			return nil, govdoc.WrapErr(ctx, govdoc.KindValidation, err, "cannot build record").
				Tag(slog.String("title", doc.TitleInEnglish))
		}
		records = append(records, r)
	}

	if err := i.store.Upsert(ctx, records); err != nil {
		i.metrics.Counter(ctx, "documents_ingested_total", int64(len(records)), map[string]string{"status": govdoc.KindOf(err).String()})
		return nil, govdoc.Wrap(ctx, govdoc.KindSearch, err, "writing records failed")
	}
	i.metrics.Counter(ctx, "documents_ingested_total", int64(len(records)), map[string]string{"status": "ok"})
	for _, r := range records {
		govdoc.LogInfo(ctx, "document ingested", "id", r.ID, "title", r.Metadata["title_in_english"])
	}
	return records, nil
}

package query

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/govdoc"
)

// Preprocessor turns a question into Constraints with one model call.
type Preprocessor struct {
	client     ai.Client
	format     *ai.ResponseFormat
	recipients []Recipient
	timeout    time.Duration
}

// PreprocessorOption configures a Preprocessor.
type PreprocessorOption func(*Preprocessor)

// WithRecipients replaces DefaultRecipients.
func WithRecipients(recipients ...Recipient) PreprocessorOption {
	return func(p *Preprocessor) {
		if len(recipients) > 0 {
			p.recipients = recipients
		}
	}
}

// WithExtractionTimeout bounds the model call.
func WithExtractionTimeout(d time.Duration) PreprocessorOption {
	return func(p *Preprocessor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPreprocessor builds a preprocessor; the response schema enumerates
// the configured recipients.
func NewPreprocessor(client ai.Client, opts ...PreprocessorOption) (*Preprocessor, error) {
	p := &Preprocessor{
		client:     client,
		recipients: DefaultRecipients,
		timeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.format = ai.SchemaFor[extraction]("user_question_preprocessing")
	names := make([]string, len(p.recipients))
	for i, r := range p.recipients {
		names[i] = string(r)
	}
	if err := p.format.SetEnum("addressed_to", names); err != nil {
		return nil, fmt.Errorf("building preprocessing schema: %w", err)
	}
	return p, nil
}

// Recipients returns the recipients the schema allows.
func (p *Preprocessor) Recipients() []Recipient { return p.recipients }

// Preprocess extracts sender, recipient and time filter from question.
// referenceTime is the "current date" the model resolves relative dates
// against. Output outside the allowed values is an extraction error; there
// is no retry.
func (p *Preprocessor) Preprocess(ctx context.Context, question string, referenceTime time.Time) (Constraints, error) {
	if strings.TrimSpace(question) == "" {
		return Constraints{}, govdoc.Validationf(ctx, "question must not be empty")
	}

	messages := []ai.Message{
		ai.System("You are a query generator based on the user's question. The current date is " +
			referenceTime.Format(time.DateOnly)),
		ai.User("# User question: " + question),
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := ai.Extract[extraction](cctx, p.client, messages, p.format)
	if err != nil {
		return Constraints{}, govdoc.WrapErr(ctx, govdoc.KindExtraction, err, "question preprocessing failed")
	}
	if out.AddressedTo != nil && !slices.Contains(p.recipients, *out.AddressedTo) {
		return Constraints{}, govdoc.NewErr(ctx, govdoc.KindExtraction,
			fmt.Sprintf("unknown recipient %q", *out.AddressedTo)).
			Tag(slog.String("addressed_to", string(*out.AddressedTo)))
	}

	c := out.constraints(referenceTime.Location())
	govdoc.LogDebug(ctx, "question preprocessed", "constraints", c)
	return c, nil
}

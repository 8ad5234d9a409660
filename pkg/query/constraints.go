package query

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// Sender is the government body a document came from.
type Sender string

const (
	SenderEmploymentAgency Sender = "Employment Agency"
	SenderTax              Sender = "Tax"
	SenderHealth           Sender = "Health"
	SenderImmigration      Sender = "Immigration"
	SenderOther            Sender = "Other"
)

// Senders lists every valid sender.
var Senders = []Sender{SenderEmploymentAgency, SenderTax, SenderHealth, SenderImmigration, SenderOther}

// Valid reports whether s is one of Senders.
func (s Sender) Valid() bool { return slices.Contains(Senders, s) }

// JSONSchema restricts the sender to the known values.
func (Sender) JSONSchema() *jsonschema.Schema {
	enum := make([]any, len(Senders))
	for i, s := range Senders {
		enum[i] = string(s)
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// Recipient is the person a document is addressed to.
type Recipient string

// DefaultRecipients are the household members documents are addressed to.
var DefaultRecipients = []Recipient{"Artur Grygorian", "Nune Grygorian"}

// TimeFilter bounds the creation time of the documents searched. StartDate
// is inclusive and EndDate exclusive; either may be open.
type TimeFilter struct {
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Constraints is the structured form of a question. Every field is optional.
type Constraints struct {
	Sender      *Sender     `json:"sender,omitempty"`
	AddressedTo *Recipient  `json:"addressed_to,omitempty"`
	TimeFilter  *TimeFilter `json:"time_filter,omitempty"`
}

// TimeRange converts the time filter for the vector store. The result is nil
// when there is no bound at all.
func (c Constraints) TimeRange() *retrieval.TimeRange {
	if c.TimeFilter == nil {
		return nil
	}
	var tr retrieval.TimeRange
	if c.TimeFilter.StartDate != nil {
		tr.Start = *c.TimeFilter.StartDate
	}
	if c.TimeFilter.EndDate != nil {
		tr.End = *c.TimeFilter.EndDate
	}
	if tr.IsZero() {
		return nil
	}
	return &tr
}

// LogValue renders the present fields only.
func (c Constraints) LogValue() slog.Value {
	var attrs []slog.Attr
	if c.Sender != nil {
		attrs = append(attrs, slog.String("sender", string(*c.Sender)))
	}
	if c.AddressedTo != nil {
		attrs = append(attrs, slog.String("addressed_to", string(*c.AddressedTo)))
	}
	if tr := c.TimeRange(); tr != nil {
		attrs = append(attrs, slog.String("time_range", tr.String()))
	}
	return slog.GroupValue(attrs...)
}

// extraction is the model-facing shape of Constraints. Dates stay strings so
// a date-only answer can be told apart from a timestamp.
type extraction struct {
	Sender      *Sender     `json:"sender" jsonschema:"description=The sender of the document"`
	AddressedTo *Recipient  `json:"addressed_to" jsonschema:"description=The recipient of the document"`
	TimeFilter  *timeWindow `json:"time_filter" jsonschema:"description=The time filter for the search"`
}

type timeWindow struct {
	StartDate *string `json:"start_date" jsonschema:"description=Start of the period as YYYY-MM-DD or RFC 3339"`
	EndDate   *string `json:"end_date" jsonschema:"description=Last day of the period as YYYY-MM-DD or RFC 3339"`
}

func (extraction) JSONSchemaExtend(s *jsonschema.Schema) {
	ai.Nullable(s, "sender", "addressed_to", "time_filter")
}

func (timeWindow) JSONSchemaExtend(s *jsonschema.Schema) {
	ai.Nullable(s, "start_date", "end_date")
}

// Validate checks the sender and the date syntax. Recipients are checked
// against the configured list by the preprocessor.
func (e extraction) Validate() error {
	if e.Sender != nil && !e.Sender.Valid() {
		return fmt.Errorf("unknown sender %q", *e.Sender)
	}
	if e.TimeFilter != nil {
		for _, d := range []*string{e.TimeFilter.StartDate, e.TimeFilter.EndDate} {
			if d == nil {
				continue
			}
			if _, _, err := parseDate(*d, time.UTC); err != nil {
				return err
			}
		}
	}
	return nil
}

// constraints converts the extraction. Dates without a time of day are read
// in loc; a date-only end date covers that whole day.
func (e extraction) constraints(loc *time.Location) Constraints {
	c := Constraints{Sender: e.Sender, AddressedTo: e.AddressedTo}
	if e.TimeFilter == nil {
		return c
	}

	var tf TimeFilter
	if s := e.TimeFilter.StartDate; s != nil {
		t, _, _ := parseDate(*s, loc)
		tf.StartDate = &t
	}
	if s := e.TimeFilter.EndDate; s != nil {
		t, dateOnly, _ := parseDate(*s, loc)
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		tf.EndDate = &t
	}
	if tf.StartDate != nil || tf.EndDate != nil {
		c.TimeFilter = &tf
	}
	return c
}

// parseDate accepts YYYY-MM-DD or RFC 3339 and reports which one it saw.
func parseDate(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, false, nil
}

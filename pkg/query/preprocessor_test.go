package query

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/govdoc"
	"github.com/ArturGR3/AI-Hackathon/pkg/helpers"
)

var reference = time.Date(2024, time.June, 15, 14, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestPreprocess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		want  Constraints
	}{
		{
			name:  "all null",
			reply: `{"sender":null,"addressed_to":null,"time_filter":null}`,
			want:  Constraints{},
		},
		{
			name:  "sender and recipient",
			reply: `{"sender":"Tax","addressed_to":"Nune Grygorian","time_filter":null}`,
			want: Constraints{
				Sender:      helpers.PtrOf(SenderTax),
				AddressedTo: helpers.PtrOf(Recipient("Nune Grygorian")),
			},
		},
		{
			name:  "date-only end covers the whole day",
			reply: `{"sender":null,"addressed_to":null,"time_filter":{"start_date":"2024-05-01","end_date":"2024-05-31"}}`,
			want: Constraints{TimeFilter: &TimeFilter{
				StartDate: day(2024, time.May, 1),
				EndDate:   day(2024, time.June, 1),
			}},
		},
		{
			name:  "open start",
			reply: `{"sender":null,"addressed_to":null,"time_filter":{"start_date":null,"end_date":"2024-01-31"}}`,
			want:  Constraints{TimeFilter: &TimeFilter{EndDate: day(2024, time.February, 1)}},
		},
		{
			name:  "timestamp end is kept as is",
			reply: `{"sender":"Health","addressed_to":null,"time_filter":{"start_date":null,"end_date":"2024-06-01T12:00:00Z"}}`,
			want: Constraints{
				Sender: helpers.PtrOf(SenderHealth),
				TimeFilter: &TimeFilter{
					EndDate: helpers.PtrOf(time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)),
				},
			},
		},
		{
			name:  "empty window is dropped",
			reply: `{"sender":null,"addressed_to":null,"time_filter":{"start_date":null,"end_date":null}}`,
			want:  Constraints{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := ai.NewMockClient(tt.reply)
			pre, err := NewPreprocessor(client)
			if err != nil {
				t.Fatalf("NewPreprocessor() error = %v", err)
			}

			got, err := pre.Preprocess(context.Background(), "what do I need to do?", reference)
			if err != nil {
				t.Fatalf("Preprocess() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("constraints mismatch (-want +got):\n%s", diff)
			}
			if client.CallCount() != 1 {
				t.Errorf("made %d calls, want 1", client.CallCount())
			}
		})
	}
}

func TestPreprocessMessages(t *testing.T) {
	t.Parallel()

	client := ai.NewMockClient(`{"sender":null,"addressed_to":null,"time_filter":null}`)
	pre, err := NewPreprocessor(client)
	if err != nil {
		t.Fatalf("NewPreprocessor() error = %v", err)
	}
	if _, err := pre.Preprocess(context.Background(), "Any letters from immigration?", reference); err != nil {
		t.Fatalf("Preprocess() error = %v", err)
	}

	call := client.Calls()[0]
	want := []ai.Message{
		ai.System("You are a query generator based on the user's question. The current date is 2024-06-15"),
		ai.User("# User question: Any letters from immigration?"),
	}
	if diff := cmp.Diff(want, call.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if call.Format == nil || call.Format.Name != "user_question_preprocessing" {
		t.Fatalf("format = %+v, want user_question_preprocessing", call.Format)
	}
}

func TestPreprocessRejectsOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
	}{
		{name: "sender outside enum", reply: `{"sender":"Police","addressed_to":null,"time_filter":null}`},
		{name: "recipient outside list", reply: `{"sender":null,"addressed_to":"John Doe","time_filter":null}`},
		{name: "bad date", reply: `{"sender":null,"addressed_to":null,"time_filter":{"start_date":"last week","end_date":null}}`},
		{name: "extra field", reply: `{"sender":null,"addressed_to":null,"time_filter":null,"category":"Tax"}`},
		{name: "not json", reply: `Tax`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := ai.NewMockClient(tt.reply)
			pre, err := NewPreprocessor(client)
			if err != nil {
				t.Fatalf("NewPreprocessor() error = %v", err)
			}

			_, err = pre.Preprocess(context.Background(), "question", reference)
			if !errors.Is(err, govdoc.ErrExtraction) {
				t.Fatalf("Preprocess() error = %v, want extraction error", err)
			}
			if client.CallCount() != 1 {
				t.Errorf("made %d calls, want 1 (no retry)", client.CallCount())
			}
		})
	}
}

func TestPreprocessErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty question", func(t *testing.T) {
		t.Parallel()
		client := ai.NewMockClient(`{}`)
		pre, _ := NewPreprocessor(client)
		_, err := pre.Preprocess(context.Background(), "  ", reference)
		if !errors.Is(err, govdoc.ErrValidation) {
			t.Fatalf("Preprocess() error = %v, want validation error", err)
		}
		if client.CallCount() != 0 {
			t.Errorf("made %d calls, want 0", client.CallCount())
		}
	})

	t.Run("model failure", func(t *testing.T) {
		t.Parallel()
		pre, _ := NewPreprocessor(ai.NewMockClientWithError(errors.New("503")))
		_, err := pre.Preprocess(context.Background(), "question", reference)
		if !errors.Is(err, govdoc.ErrExtraction) {
			t.Fatalf("Preprocess() error = %v, want extraction error", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		client := ai.NewMockClient(`{}`).WithDelay(time.Second)
		pre, _ := NewPreprocessor(client, WithExtractionTimeout(10*time.Millisecond))
		_, err := pre.Preprocess(context.Background(), "question", reference)
		if !errors.Is(err, govdoc.ErrTimeout) {
			t.Fatalf("Preprocess() error = %v, want timeout", err)
		}
	})
}

func TestPreprocessorRecipients(t *testing.T) {
	t.Parallel()

	client := ai.NewMockClient(`{"sender":null,"addressed_to":"Ada Lovelace","time_filter":null}`)
	pre, err := NewPreprocessor(client, WithRecipients("Ada Lovelace"))
	if err != nil {
		t.Fatalf("NewPreprocessor() error = %v", err)
	}
	if !slices.Equal(pre.Recipients(), []Recipient{"Ada Lovelace"}) {
		t.Errorf("Recipients() = %v", pre.Recipients())
	}

	got, err := pre.Preprocess(context.Background(), "letters for Ada", reference)
	if err != nil {
		t.Fatalf("Preprocess() error = %v", err)
	}
	if got.AddressedTo == nil || *got.AddressedTo != "Ada Lovelace" {
		t.Errorf("AddressedTo = %v, want Ada Lovelace", got.AddressedTo)
	}

	schema, err := client.Calls()[0].Format.Map()
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if !strings.Contains(toJSON(t, schema), `"Ada Lovelace"`) {
		t.Errorf("schema does not enumerate the configured recipient: %s", toJSON(t, schema))
	}
}

func TestConstraintsTimeRange(t *testing.T) {
	t.Parallel()

	if tr := (Constraints{}).TimeRange(); tr != nil {
		t.Errorf("TimeRange() = %v, want nil", tr)
	}
	if tr := (Constraints{TimeFilter: &TimeFilter{}}).TimeRange(); tr != nil {
		t.Errorf("TimeRange() = %v, want nil for open window", tr)
	}

	c := Constraints{TimeFilter: &TimeFilter{StartDate: day(2024, time.May, 1)}}
	tr := c.TimeRange()
	if tr == nil || !tr.Start.Equal(*day(2024, time.May, 1)) || !tr.End.IsZero() {
		t.Errorf("TimeRange() = %v, want [2024-05-01, open)", tr)
	}
}

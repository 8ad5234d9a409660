package qdrant

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	qd "github.com/qdrant/go-client/qdrant"

	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

func TestNewConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "missing url", cfg: Config{VectorDimension: 8}, wantErr: "URL is required"},
		{name: "zero dimension", cfg: Config{URL: "http://localhost:6334"}, wantErr: "dimension must be positive"},
		{name: "missing host", cfg: Config{URL: "localhost", VectorDimension: 8}, wantErr: "missing host"},
		{name: "bad port", cfg: Config{URL: "http://localhost:grpc", VectorDimension: 8}, wantErr: "invalid qdrant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	b, err := New(Config{URL: "http://localhost:6334", VectorDimension: 1536, SkipVersionCheck: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer b.Close()

	if b.collection != "documents" {
		t.Errorf("collection = %q, want documents", b.collection)
	}
	want := map[string]qd.FieldType{
		"created_at":            qd.FieldType_FieldTypeDatetime,
		"metadata.sender":       qd.FieldType_FieldTypeKeyword,
		"metadata.addressed_to": qd.FieldType_FieldTypeKeyword,
	}
	if diff := cmp.Diff(want, b.indexSpecs()); diff != "" {
		t.Errorf("index specs mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFilter(t *testing.T) {
	t.Parallel()

	may := retrieval.TimeRange{
		Start: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("nothing to filter", func(t *testing.T) {
		f, err := buildFilter(nil, retrieval.TimeRange{})
		if err != nil || f != nil {
			t.Errorf("buildFilter() = %v, %v; want nil, nil", f, err)
		}
	})

	t.Run("or becomes should", func(t *testing.T) {
		p := retrieval.AnyOf(retrieval.Eq("sender", "Tax"), retrieval.Eq("addressed_to", "Nune Grygorian"))
		f, err := buildFilter(p, retrieval.TimeRange{})
		if err != nil {
			t.Fatal(err)
		}
		if len(f.Must) != 1 {
			t.Fatalf("must = %d conditions, want 1", len(f.Must))
		}
		inner := f.Must[0].GetFilter()
		if len(inner.GetShould()) != 2 || len(inner.GetMust()) != 0 {
			t.Fatalf("inner filter = %v, want two should conditions", inner)
		}
		first := inner.GetShould()[0].GetField()
		if first.GetKey() != "metadata.sender" || first.GetMatch().GetKeyword() != "Tax" {
			t.Errorf("first condition = %v", first)
		}
	})

	t.Run("time range is datetime range", func(t *testing.T) {
		f, err := buildFilter(nil, may)
		if err != nil {
			t.Fatal(err)
		}
		field := f.Must[0].GetField()
		if field.GetKey() != "created_at" {
			t.Fatalf("key = %q, want created_at", field.GetKey())
		}
		r := field.GetDatetimeRange()
		if !r.GetGte().AsTime().Equal(may.Start) || !r.GetLt().AsTime().Equal(may.End) {
			t.Errorf("range = %v, want [%s, %s)", r, may.Start, may.End)
		}
		if r.Lte != nil || r.Gt != nil {
			t.Errorf("range has unexpected bounds: %v", r)
		}
	})

	t.Run("predicate and time range are both required", func(t *testing.T) {
		f, err := buildFilter(retrieval.Eq("sender", "Tax"), may)
		if err != nil {
			t.Fatal(err)
		}
		if len(f.Must) != 2 {
			t.Errorf("must = %d conditions, want 2", len(f.Must))
		}
	})

	t.Run("string not equal requires the field", func(t *testing.T) {
		f, err := buildFilter(retrieval.Compare("sender", retrieval.OpNe, "Tax"), retrieval.TimeRange{})
		if err != nil {
			t.Fatal(err)
		}
		inner := f.Must[0].GetFilter()
		if len(inner.GetMustNot()) != 1 || inner.GetMustNot()[0].GetIsEmpty().GetKey() != "metadata.sender" {
			t.Errorf("must_not = %v, want is_empty on metadata.sender", inner.GetMustNot())
		}
		if got := inner.GetMust()[0].GetField().GetMatch().GetExceptKeywords().GetStrings(); !cmp.Equal(got, []string{"Tax"}) {
			t.Errorf("except = %v, want [Tax]", got)
		}
	})

	t.Run("number equality is a closed range", func(t *testing.T) {
		f, err := buildFilter(retrieval.Eq("amount", 125), retrieval.TimeRange{})
		if err != nil {
			t.Fatal(err)
		}
		r := f.Must[0].GetField().GetRange()
		if r.GetGte() != 125 || r.GetLte() != 125 {
			t.Errorf("range = %v, want [125, 125]", r)
		}
	})

	t.Run("bool not equal flips the match", func(t *testing.T) {
		f, err := buildFilter(retrieval.Compare("urgent", retrieval.OpNe, true), retrieval.TimeRange{})
		if err != nil {
			t.Fatal(err)
		}
		if f.Must[0].GetField().GetMatch().GetBoolean() {
			t.Error("match = true, want false")
		}
	})

	for _, tc := range []struct {
		name string
		p    *retrieval.Predicate
	}{
		{"string ordering", retrieval.Compare("sent_date", retrieval.OpGt, "2024-05-01")},
		{"unknown operator", &retrieval.Predicate{Field: "sender", Op: "~", Value: "Tax"}},
		{"empty field", retrieval.Eq("", "Tax")},
	} {
		t.Run(tc.name+" is rejected", func(t *testing.T) {
			if _, err := buildFilter(tc.p, retrieval.TimeRange{}); err == nil {
				t.Error("buildFilter() error = nil, want error")
			}
		})
	}
}

func TestPointRecord(t *testing.T) {
	t.Parallel()

	meta, err := payloadMetadataValue(map[string]any{
		"sender":           "Tax",
		"required_actions": []string{"payment_required"},
		"amount":           125.5,
		"count":            2,
		"urgent":           true,
	})
	if err != nil {
		t.Fatalf("payloadMetadataValue() error = %v", err)
	}
	id := retrieval.NewID(time.Now())
	payload := map[string]*qd.Value{
		payloadContents: qd.NewValueString("Sender: Tax"),
		payloadMetadata: meta,
		payloadSeq:      qd.NewValueInt(42),
	}

	rec, seq := pointRecord(qd.NewID(id), payload)
	if seq != 42 || rec.ID != id || rec.Contents != "Sender: Tax" {
		t.Errorf("pointRecord() = %+v, seq %d", rec, seq)
	}
	want := map[string]any{
		"sender":           "Tax",
		"required_actions": []any{"payment_required"},
		"amount":           125.5,
		"count":            2.0,
		"urgent":           true,
	}
	if diff := cmp.Diff(want, rec.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestAssignSeqsKeepsStoredValues(t *testing.T) {
	t.Parallel()

	replaced := retrieval.NewID(time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC))
	added := retrieval.NewID(time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC))
	points := []*qd.PointStruct{
		{Id: qd.NewID(added), Payload: map[string]*qd.Value{}},
		{Id: qd.NewID(replaced), Payload: map[string]*qd.Value{}},
	}

	assignSeqs(points, map[string]int64{replaced: 7}, 1000)

	got := map[string]int64{}
	for _, p := range points {
		got[p.GetId().GetUuid()] = p.GetPayload()[payloadSeq].GetIntegerValue()
	}
	want := map[string]int64{added: 1000, replaced: 7}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("seqs mismatch (-want +got):\n%s", diff)
	}
}

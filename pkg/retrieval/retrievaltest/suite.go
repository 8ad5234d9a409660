package retrievaltest

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ArturGR3/AI-Hackathon/pkg/govdoc"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// Dim is the embedding dimension the suite uses. Backends under test must
// be created for it.
const Dim = 64

// Doc is a fixture record with a fixed creation time.
type Doc struct {
	Name     string
	Created  time.Time
	Contents string
	Metadata map[string]any
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

// Fixtures is the corpus every suite case starts from.
var Fixtures = []Doc{
	{
		Name:     "tax-reminder",
		Created:  date(2024, time.April, 10),
		Contents: "Sender: Tax\nAddressed to: Artur Grygorian\nIncome tax return deadline reminder",
		Metadata: map[string]any{"sender": "Tax", "addressed_to": "Artur Grygorian", "title_in_english": "Tax return reminder", "sent_date": "2024-04-08"},
	},
	{
		Name:     "tax-assessment",
		Created:  date(2024, time.May, 10),
		Contents: "Sender: Tax\nAddressed to: Nune Grygorian\nTax assessment notice for income",
		Metadata: map[string]any{"sender": "Tax", "addressed_to": "Nune Grygorian", "title_in_english": "Tax assessment", "sent_date": "2024-05-07"},
	},
	{
		Name:     "health-card",
		Created:  date(2024, time.May, 20),
		Contents: "Sender: Health\nAddressed to: Nune Grygorian\nHealth insurance card renewal",
		Metadata: map[string]any{"sender": "Health", "addressed_to": "Nune Grygorian", "title_in_english": "Insurance card", "sent_date": "2024-05-18"},
	},
	{
		Name:     "residence-permit",
		Created:  date(2024, time.June, 1),
		Contents: "Sender: Immigration\nAddressed to: Artur Grygorian\nResidence permit appointment",
		Metadata: map[string]any{"sender": "Immigration", "addressed_to": "Artur Grygorian", "title_in_english": "Residence permit", "sent_date": "2024-05-30"},
	},
	{
		Name:     "job-seeker",
		Created:  date(2024, time.May, 25),
		Contents: "Sender: Employment Agency\nAddressed to: Artur Grygorian\nJob seeker appointment invitation",
		Metadata: map[string]any{"sender": "Employment Agency", "addressed_to": "Artur Grygorian", "title_in_english": "Job seeker invitation", "sent_date": "2024-05-22"},
	},
}

// Seeded is a store loaded with Fixtures. IDs maps fixture names to IDs.
type Seeded struct {
	Store *retrieval.Store
	IDs   map[string]string
}

// Name returns the fixture name of a record ID.
func (s Seeded) Name(id string) string {
	for name, v := range s.IDs {
		if v == id {
			return name
		}
	}
	return id
}

// Names maps results to fixture names, sorted.
func (s Seeded) Names(results []retrieval.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = s.Name(r.Record.ID)
	}
	sort.Strings(out)
	return out
}

// Seed creates tables and the index, then upserts Fixtures one at a time so
// insertion order follows the slice.
func Seed(t *testing.T, b retrieval.Backend) Seeded {
	t.Helper()
	ctx := context.Background()
	store := retrieval.NewStore(b, NewHashEmbedder(Dim), retrieval.WithDimension(Dim))

	if err := store.CreateTables(ctx); err != nil {
		t.Fatalf("CreateTables() error = %v", err)
	}
	if err := store.CreateIndex(ctx); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}

	ids := make(map[string]string, len(Fixtures))
	for _, d := range Fixtures {
		id := retrieval.NewID(d.Created)
		ids[d.Name] = id
		if err := store.Upsert(ctx, []retrieval.Record{{ID: id, Contents: d.Contents, Metadata: d.Metadata}}); err != nil {
			t.Fatalf("Upsert(%s) error = %v", d.Name, err)
		}
	}
	return Seeded{Store: store, IDs: ids}
}

// Run exercises the retrieval.Backend contract. newBackend must return an
// empty, isolated backend for Dim-sized vectors each time it is called.
func Run(t *testing.T, newBackend func(t *testing.T) retrieval.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("exact text is the top hit", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		res, err := s.Store.Search(ctx, retrieval.SearchRequest{Query: Fixtures[2].Contents, Limit: 3})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(res) == 0 || res[0].Record.ID != s.IDs["health-card"] {
			t.Fatalf("top result = %v, want health-card", s.Names(res))
		}
		if res[0].Distance > 1e-4 {
			t.Errorf("top distance = %g, want ~0", res[0].Distance)
		}
	})

	t.Run("ordered and bounded by limit", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		for _, limit := range []int{1, 2, 10} {
			res, err := s.Store.Search(ctx, retrieval.SearchRequest{Query: "tax appointment", Limit: limit})
			if err != nil {
				t.Fatalf("Search(limit=%d) error = %v", limit, err)
			}
			want := min(limit, len(Fixtures))
			if len(res) != want {
				t.Errorf("limit %d: got %d results, want %d", limit, len(res), want)
			}
			for i := 1; i < len(res); i++ {
				if res[i].Distance < res[i-1].Distance {
					t.Errorf("limit %d: distance decreases at %d: %g < %g", limit, i, res[i].Distance, res[i-1].Distance)
				}
			}
		}
	})

	t.Run("or predicate matches either field", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		pred := retrieval.AnyOf(
			retrieval.Eq("sender", "Tax"),
			retrieval.Eq("addressed_to", "Nune Grygorian"),
		)
		res, err := s.Store.Search(ctx, retrieval.SearchRequest{Query: "residence permit appointment", Limit: 5, Predicate: pred})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		want := []string{"health-card", "tax-assessment", "tax-reminder"}
		if diff := cmp.Diff(want, s.Names(res)); diff != "" {
			t.Errorf("results mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("predicate filters before ranking", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		res, err := s.Store.Search(ctx, retrieval.SearchRequest{
			Query:     "income tax assessment notice",
			Limit:     1,
			Predicate: retrieval.Eq("sender", "Health"),
		})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if diff := cmp.Diff([]string{"health-card"}, s.Names(res)); diff != "" {
			t.Errorf("results mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("time range uses id creation time", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		tr := &retrieval.TimeRange{Start: date(2024, time.May, 1), End: date(2024, time.June, 1)}
		res, err := s.Store.Search(ctx, retrieval.SearchRequest{Query: "notice", Limit: 10, TimeRange: tr})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		want := []string{"health-card", "job-seeker", "tax-assessment"}
		if diff := cmp.Diff(want, s.Names(res)); diff != "" {
			t.Errorf("results mismatch (-want +got):\n%s", diff)
		}

		res, err = s.Store.Search(ctx, retrieval.SearchRequest{
			Query:     "notice",
			Limit:     10,
			TimeRange: tr,
			Predicate: retrieval.Eq("sender", "Tax"),
		})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if diff := cmp.Diff([]string{"tax-assessment"}, s.Names(res)); diff != "" {
			t.Errorf("predicate and time range mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing field never matches", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		res, err := s.Store.Search(ctx, retrieval.SearchRequest{Query: "tax", Limit: 5, Predicate: retrieval.Eq("department", "Tax")})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(res) != 0 {
			t.Errorf("got %v, want no results", s.Names(res))
		}
	})

	t.Run("ties keep insertion order", func(t *testing.T) {
		b := newBackend(t)
		s := Seed(t, b)
		contents := "Sender: Other\nAddressed to: Nune Grygorian\nParking permit"
		first := retrieval.NewID(date(2024, time.March, 2))
		second := retrieval.NewID(date(2024, time.March, 1))
		for _, id := range []string{first, second} {
			if err := s.Store.Upsert(ctx, []retrieval.Record{{ID: id, Contents: contents, Metadata: map[string]any{"sender": "Other"}}}); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
		}
		res, err := s.Store.Search(ctx, retrieval.SearchRequest{Query: contents, Limit: 2})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(res) != 2 || res[0].Record.ID != first || res[1].Record.ID != second {
			t.Errorf("tie order = %v, want [%s %s]", resultIDs(res), first, second)
		}
	})

	t.Run("replacing a record keeps its tie position", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		contents := "Sender: Other\nAddressed to: Artur Grygorian\nLibrary card renewal"
		first := retrieval.NewID(date(2024, time.March, 4))
		second := retrieval.NewID(date(2024, time.March, 3))
		for _, id := range []string{first, second, first} {
			if err := s.Store.Upsert(ctx, []retrieval.Record{{ID: id, Contents: contents, Metadata: map[string]any{"sender": "Other"}}}); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
		}
		res, err := s.Store.Search(ctx, retrieval.SearchRequest{Query: contents, Limit: 2})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(res) != 2 || res[0].Record.ID != first || res[1].Record.ID != second {
			t.Errorf("tie order after replace = %v, want [%s %s]", resultIDs(res), first, second)
		}
	})

	t.Run("upsert replaces by id", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		id := s.IDs["tax-reminder"]
		updated := retrieval.Record{
			ID:       id,
			Contents: "Sender: Tax\nAddressed to: Artur Grygorian\nVehicle tax payment overdue",
			Metadata: map[string]any{"sender": "Tax", "addressed_to": "Artur Grygorian", "title_in_english": "Vehicle tax"},
		}
		if err := s.Store.Upsert(ctx, []retrieval.Record{updated}); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		n, err := s.Store.Count(ctx)
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n != int64(len(Fixtures)) {
			t.Errorf("Count() = %d, want %d", n, len(Fixtures))
		}
		res, err := s.Store.Search(ctx, retrieval.SearchRequest{Query: updated.Contents, Limit: 1})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(res) != 1 || res[0].Record.ID != id || res[0].Record.Contents != updated.Contents {
			t.Fatalf("Search() = %+v, want updated record", res)
		}
		if res[0].Record.Metadata["title_in_english"] != "Vehicle tax" {
			t.Errorf("metadata not replaced: %v", res[0].Record.Metadata)
		}
	})

	t.Run("metadata round trips", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		meta := map[string]any{
			"title_in_english":           "Payment request",
			"title_in_original_language": "Zahlungsaufforderung",
			"sender":                     "Tax",
			"sent_date":                  "2024-05-02",
			"addressed_to":               "Nune Grygorian",
			"summary_in_english":         "Pay the outstanding amount.",
			"required_actions":           []any{"payment_required"},
			"amount":                     125.5,
			"urgent":                     true,
		}
		rec := retrieval.Record{ID: retrieval.NewID(date(2024, time.May, 3)), Contents: "Sender: Tax\nPayment request for outstanding amount", Metadata: meta}
		if err := s.Store.Upsert(ctx, []retrieval.Record{rec}); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		res, err := s.Store.Search(ctx, retrieval.SearchRequest{Query: rec.Contents, Limit: 1})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(res) != 1 || res[0].Record.ID != rec.ID {
			t.Fatalf("Search() = %v, want %s", resultIDs(res), rec.ID)
		}
		if diff := cmp.Diff(meta, res[0].Record.Metadata); diff != "" {
			t.Errorf("metadata mismatch (-want +got):\n%s", diff)
		}
		if res[0].Record.Contents != rec.Contents {
			t.Errorf("contents = %q, want %q", res[0].Record.Contents, rec.Contents)
		}
	})

	t.Run("delete by ids", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		victim := s.IDs["tax-assessment"]
		n, err := s.Store.Delete(ctx, retrieval.DeleteOptions{IDs: []string{victim}})
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if n >= 0 && n != 1 {
			t.Errorf("Delete() removed %d, want 1", n)
		}
		ok, err := s.Store.Exists(ctx, victim)
		if err != nil || ok {
			t.Errorf("Exists(deleted) = %v, %v; want false", ok, err)
		}
		for name, id := range s.IDs {
			if id == victim {
				continue
			}
			if ok, err := s.Store.Exists(ctx, id); err != nil || !ok {
				t.Errorf("Exists(%s) = %v, %v; want true", name, ok, err)
			}
		}
	})

	t.Run("delete by filter", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		if _, err := s.Store.Delete(ctx, retrieval.DeleteOptions{Filter: map[string]any{"sender": "Tax"}}); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		assertCount(t, s.Store, int64(len(Fixtures)-2))
		if ok, _ := s.Store.Exists(ctx, s.IDs["health-card"]); !ok {
			t.Error("non-matching record was deleted")
		}
	})

	t.Run("delete all", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		if _, err := s.Store.Delete(ctx, retrieval.DeleteOptions{All: true}); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		assertCount(t, s.Store, 0)
	})

	t.Run("delete requires exactly one mode", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		for _, opts := range []retrieval.DeleteOptions{
			{},
			{IDs: []string{s.IDs["tax-reminder"]}, All: true},
			{IDs: []string{s.IDs["tax-reminder"]}, Filter: map[string]any{"sender": "Tax"}},
			{Filter: map[string]any{"sender": "Tax"}, All: true},
		} {
			_, err := s.Store.Delete(ctx, opts)
			if !errors.Is(err, govdoc.ErrValidation) {
				t.Errorf("Delete(%+v) error = %v, want validation error", opts, err)
			}
		}
		assertCount(t, s.Store, int64(len(Fixtures)))
	})

	t.Run("admin operations are idempotent", func(t *testing.T) {
		s := Seed(t, newBackend(t))
		if err := s.Store.CreateIndex(ctx); err != nil {
			t.Errorf("second CreateIndex() error = %v", err)
		}
		if err := s.Store.CreateTables(ctx); err != nil {
			t.Errorf("second CreateTables() error = %v", err)
		}
		if ok, err := s.Store.TablesExist(ctx); err != nil || !ok {
			t.Errorf("TablesExist() = %v, %v", ok, err)
		}
		info, err := s.Store.Info(ctx)
		if err != nil {
			t.Fatalf("Info() error = %v", err)
		}
		if info.Backend != s.Store.Backend().Name() || !info.Connected {
			t.Errorf("Info() = %+v", info)
		}
		if err := s.Store.Health(ctx); err != nil {
			t.Errorf("Health() error = %v", err)
		}
		assertCount(t, s.Store, int64(len(Fixtures)))
	})
}

func assertCount(t *testing.T, s *retrieval.Store, want int64) {
	t.Helper()
	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != want {
		t.Errorf("Count() = %d, want %d", n, want)
	}
}

func resultIDs(res []retrieval.Result) []string {
	ids := make([]string, len(res))
	for i, r := range res {
		ids[i] = r.Record.ID
	}
	return ids
}

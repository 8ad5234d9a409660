package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ArturGR3/AI-Hackathon/pkg/govdoc"
	"github.com/ArturGR3/AI-Hackathon/pkg/helpers"
	"github.com/ArturGR3/AI-Hackathon/pkg/observability"
	"github.com/ArturGR3/AI-Hackathon/pkg/query"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

type askerFunc func(ctx context.Context, q string) (*query.Result, error)

func (f askerFunc) Process(ctx context.Context, q string) (*query.Result, error) { return f(ctx, q) }

func answer(_ context.Context, q string) (*query.Result, error) {
	return &query.Result{
		Response: query.SynthesizedResponse{
			ThoughtProcess: []string{"looked at " + q},
			Answer:         "Pay 120 EUR.",
			EnoughContext:  true,
		},
		Preprocessing: query.Constraints{Sender: helpers.PtrOf(query.SenderTax)},
		Sources: []retrieval.Result{{
			Record: retrieval.Record{
				ID:       "0b5e1c2a-0e8f-11ef-9a3c-0242ac120002",
				Contents: "Sender: Tax",
				Metadata: map[string]any{"title_in_english": "Tax assessment", "sender": "Tax", "sent_date": "2024-05-07"},
			},
			Distance: 0.12,
		}},
	}, nil
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAsk(t *testing.T) {
	t.Parallel()

	metrics := observability.NewInMemoryMetricsProvider()
	h := New(askerFunc(answer), WithMetrics(metrics, nil)).Handler()

	rec := post(t, h, `{"question":"what do I owe?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	var got AskResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Answer != "Pay 120 EUR." || !got.EnoughContext {
		t.Errorf("response = %+v", got)
	}
	if got.Preprocessing.Sender == nil || *got.Preprocessing.Sender != query.SenderTax {
		t.Errorf("preprocessing = %+v", got.Preprocessing)
	}
	if len(got.Sources) != 1 || got.Sources[0].Title != "Tax assessment" || got.Sources[0].Distance != 0.12 {
		t.Errorf("sources = %+v", got.Sources)
	}

	if n := metrics.GetCounter("http_requests_total", map[string]string{"route": "POST /ask", "code": "200"}); n != 1 {
		t.Errorf("http_requests_total = %d, want 1", n)
	}
}

func TestAskErrors(t *testing.T) {
	t.Parallel()

	failWith := func(kind govdoc.Kind) Asker {
		return askerFunc(func(ctx context.Context, _ string) (*query.Result, error) {
			return nil, govdoc.NewErr(ctx, kind, "stage failed")
		})
	}

	tests := []struct {
		name     string
		asker    Asker
		body     string
		want     int
		wantKind string
	}{
		{name: "malformed body", asker: askerFunc(answer), body: `{"question":`, want: http.StatusBadRequest, wantKind: "validation"},
		{name: "unknown field", asker: askerFunc(answer), body: `{"q":"x"}`, want: http.StatusBadRequest, wantKind: "validation"},
		{name: "empty question", asker: askerFunc(answer), body: `{"question":"  "}`, want: http.StatusBadRequest, wantKind: "validation"},
		{name: "extraction", asker: failWith(govdoc.KindExtraction), body: `{"question":"x"}`, want: http.StatusBadGateway, wantKind: "extraction"},
		{name: "search", asker: failWith(govdoc.KindSearch), body: `{"question":"x"}`, want: http.StatusServiceUnavailable, wantKind: "search"},
		{name: "timeout", asker: failWith(govdoc.KindTimeout), body: `{"question":"x"}`, want: http.StatusGatewayTimeout, wantKind: "timeout"},
		{
			name: "untyped",
			asker: askerFunc(func(context.Context, string) (*query.Result, error) {
				return nil, errors.New("boom")
			}),
			body:     `{"question":"x"}`,
			want:     http.StatusInternalServerError,
			wantKind: "unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := post(t, New(tt.asker).Handler(), tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if body.Kind != tt.wantKind || body.RequestID == "" {
				t.Errorf("error body = %+v, want kind %s with request id", body, tt.wantKind)
			}
		})
	}
}

func TestRequestIDPropagates(t *testing.T) {
	t.Parallel()

	var seen string
	h := New(askerFunc(func(ctx context.Context, q string) (*query.Result, error) {
		seen = govdoc.RequestID(ctx)
		return answer(ctx, q)
	})).Handler()

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"x"}`))
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-42" || rec.Header().Get("X-Request-ID") != "req-42" {
		t.Errorf("request id = %q / %q, want req-42", seen, rec.Header().Get("X-Request-ID"))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	prom := observability.NewPrometheusProvider(observability.WithNamespace("govdocs"))
	prom.Counter(context.Background(), "queries_total", 1, map[string]string{"status": "ok"})

	healthy := observability.FuncHealthCheck{CheckName: "store", CheckFunc: func(context.Context) error { return nil }}
	srv := httptest.NewServer(New(askerFunc(answer), WithMetrics(prom, prom.Handler()), WithHealthChecks(healthy)).Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "govdocs_queries_total") {
		t.Errorf("/metrics does not expose govdocs_queries_total:\n%s", body)
	}

	failing := observability.FuncHealthCheck{CheckName: "store", CheckFunc: func(context.Context) error { return errors.New("down") }}
	rec := httptest.NewRecorder()
	New(askerFunc(answer), WithHealthChecks(failing)).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy /healthz status = %d, want 503", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	New(askerFunc(answer)).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ask", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /ask status = %d, want 405", rec.Code)
	}
}

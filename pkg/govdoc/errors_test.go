package govdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestWrapErr(t *testing.T) {
	t.Parallel()

	ctx := WithRequestID(WithTraceID(context.Background(), "trace-1"), "req-1")
	cause := errors.New("connection refused")

	err := WrapErr(ctx, KindSearch, cause, "vector search failed")

	if err.Kind() != KindSearch {
		t.Errorf("Kind() = %v, want %v", err.Kind(), KindSearch)
	}
	if err.TraceID() != "trace-1" || err.RequestID() != "req-1" {
		t.Errorf("ids = (%q, %q), want (trace-1, req-1)", err.TraceID(), err.RequestID())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if got := err.Error(); !strings.Contains(got, "vector search failed") || !strings.Contains(got, "connection refused") {
		t.Errorf("Error() = %q, want message and cause", got)
	}
}

func TestErrorIsSentinel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same kind", NewErr(ctx, KindExtraction, "bad enum"), ErrExtraction, true},
		{"different kind", NewErr(ctx, KindExtraction, "bad enum"), ErrSynthesis, false},
		{"wrapped with fmt", fmt.Errorf("outer: %w", NewErr(ctx, KindEmbedding, "x")), ErrEmbedding, true},
		{"validation", Validationf(ctx, "need %d modes", 1), ErrValidation, true},
		{"plain error", errors.New("boom"), ErrSearch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeadlineBecomesTimeout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cause := fmt.Errorf("embed: %w", context.DeadlineExceeded)

	err := WrapErr(ctx, KindEmbedding, cause, "embedding failed")
	if err.Kind() != KindTimeout {
		t.Errorf("Kind() = %v, want timeout", err.Kind())
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false")
	}
	if errors.Is(err, ErrEmbedding) {
		t.Error("timeout error should not match ErrEmbedding")
	}

	v := WrapErr(ctx, KindValidation, cause, "bad input")
	if v.Kind() != KindValidation {
		t.Errorf("validation kind promoted to %v", v.Kind())
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"typed", NewErr(ctx, KindSynthesis, "x"), KindSynthesis},
		{"wrapped typed", fmt.Errorf("a: %w", NewErr(ctx, KindSearch, "x")), KindSearch},
		{"bare deadline", context.DeadlineExceeded, KindTimeout},
		{"plain", errors.New("x"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsTypedErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := NewErr(ctx, KindEmbedding, "embedder down")

	if got := Wrap(ctx, KindSearch, inner, "search failed"); got != error(inner) {
		t.Errorf("Wrap() replaced a typed error: %v", got)
	}
	if got := Wrap(ctx, KindSearch, nil, "search failed"); got != nil {
		t.Errorf("Wrap(nil) = %v, want nil", got)
	}
	if got := KindOf(Wrap(ctx, KindSearch, errors.New("x"), "search failed")); got != KindSearch {
		t.Errorf("KindOf(Wrap(plain)) = %v, want search", got)
	}
}

func TestErrorLog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithTraceID(WithLogger(context.Background(), logger), "trace-9")

	WrapErr(ctx, KindSearch, errors.New("timeout talking to db"), "search failed").
		Tag(slog.String("backend", "memory")).
		Log(ctx)

	out := buf.String()
	for _, want := range []string{`"kind":"search"`, `"trace_id":"trace-9"`, `"backend":"memory"`, "search failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

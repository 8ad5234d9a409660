package govdoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindExtraction
	KindEmbedding
	KindSearch
	KindSynthesis
	KindValidation
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindExtraction:
		return "extraction"
	case KindEmbedding:
		return "embedding"
	case KindSearch:
		return "search"
	case KindSynthesis:
		return "synthesis"
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks. A sentinel matches any *Error of the same kind.
var (
	ErrExtraction = sentinel(KindExtraction)
	ErrEmbedding  = sentinel(KindEmbedding)
	ErrSearch     = sentinel(KindSearch)
	ErrSynthesis  = sentinel(KindSynthesis)
	ErrValidation = sentinel(KindValidation)
	ErrTimeout    = sentinel(KindTimeout)
)

// Error is a typed pipeline error that carries metadata for logging and tracing.
//
// It supports errors.Is against the kind sentinels above and errors.As for
// inspecting the kind, trace ID and attached attributes.
//
// Example:
//
//	return govdoc.WrapErr(ctx, govdoc.KindSearch, err, "vector search failed").
//	    Tag(slog.String("backend", "pgvector"))
type Error struct {
	kind      Kind
	msg       string
	cause     error
	traceID   string
	requestID string
	attrs     []slog.Attr
	sentinel  bool
}

func sentinel(kind Kind) *Error {
	return &Error{kind: kind, msg: kind.String() + " error", sentinel: true}
}

// WrapErr wraps err with a kind and context metadata.
//
// A cause that is (or wraps) context.DeadlineExceeded is reported as
// KindTimeout regardless of the requested kind, except for validation errors.
func WrapErr(ctx context.Context, kind Kind, err error, msg string) *Error {
	if kind != KindValidation && errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{
		kind:      kind,
		msg:       msg,
		cause:     err,
		traceID:   TraceID(ctx),
		requestID: RequestID(ctx),
	}
}

// NewErr creates an error of the given kind without an underlying cause.
func NewErr(ctx context.Context, kind Kind, msg string) *Error {
	return &Error{
		kind:      kind,
		msg:       msg,
		traceID:   TraceID(ctx),
		requestID: RequestID(ctx),
	}
}

// Validationf is shorthand for a KindValidation error with a formatted message.
func Validationf(ctx context.Context, format string, args ...any) *Error {
	return NewErr(ctx, KindValidation, fmt.Sprintf(format, args...))
}

// Tag adds a slog.Attr to the error. Returns the error for chaining.
func (e *Error) Tag(attr slog.Attr) *Error {
	e.attrs = append(e.attrs, attr)
	return e
}

// Tags adds multiple attributes to the error.
func (e *Error) Tags(attrs ...slog.Attr) *Error {
	e.attrs = append(e.attrs, attrs...)
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error kind.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the error message without the cause.
func (e *Error) Message() string { return e.msg }

// TraceID returns the trace ID captured when the error was created.
func (e *Error) TraceID() string { return e.traceID }

// RequestID returns the request ID captured when the error was created.
func (e *Error) RequestID() string { return e.requestID }

// Attrs returns the attributes attached with Tag.
func (e *Error) Attrs() []slog.Attr { return e.attrs }

// LogAttrs returns all attributes, including kind, cause and context IDs.
func (e *Error) LogAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(e.attrs)+4)
	attrs = append(attrs, slog.String("kind", e.kind.String()))
	if e.cause != nil {
		attrs = append(attrs, slog.Any("error", e.cause))
	}
	if e.traceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.traceID))
	}
	if e.requestID != "" {
		attrs = append(attrs, slog.String("request_id", e.requestID))
	}
	return append(attrs, e.attrs...)
}

// Log logs the error at error level with all metadata.
func (e *Error) Log(ctx context.Context) {
	logger := Logger(ctx)
	if !logger.Enabled(ctx, slog.LevelError) {
		return
	}
	logger.LogAttrs(ctx, slog.LevelError, e.msg, e.LogAttrs()...)
}

// Is reports whether target is a sentinel of the same kind, or an
// equivalent error with the same kind and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.sentinel {
		return e.kind == t.kind
	}
	return e.kind == t.kind && e.msg == t.msg
}

// KindOf returns the kind of the outermost *Error in err's chain.
// Bare deadline errors report KindTimeout.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Wrap returns err unchanged when it already carries a kind, and wraps it
// with kind otherwise. Stages use it to surface the originating error verbatim.
func Wrap(ctx context.Context, kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return WrapErr(ctx, kind, err, msg)
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ArturGR3/AI-Hackathon/pkg/govdoc"
)

// ErrInvalidOutput reports model output that is not JSON, violates the
// response schema, carries unknown fields or fails Validate.
var ErrInvalidOutput = errors.New("invalid model output")

// Validator is implemented by extraction targets.
type Validator interface {
	Validate() error
}

// Extract makes exactly one completion call and decodes the reply into T.
//
// The raw reply is checked against format's schema first, then decoded
// strictly (unknown fields rejected), then T.Validate runs. Nothing is
// coerced and nothing is retried.
func Extract[T Validator](ctx context.Context, client Client, messages []Message, format *ResponseFormat) (T, error) {
	var out T

	raw, err := client.Complete(ctx, messages, format)
	if err != nil {
		return out, fmt.Errorf("completion failed: %w", err)
	}
	raw = cleanJSON(raw)
	govdoc.LogDebug(ctx, "model reply received", "bytes", len(raw))

	var instance any
	if err := json.Unmarshal([]byte(raw), &instance); err != nil {
		return out, fmt.Errorf("%w: reply is not JSON: %v", ErrInvalidOutput, err)
	}
	if format != nil && format.Schema != nil {
		if err := format.validate(instance); err != nil {
			return out, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := out.Validate(); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return out, nil
}

// cleanJSON strips a markdown code fence some local models wrap JSON in.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

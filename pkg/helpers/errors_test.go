package helpers

import (
	"errors"
	"testing"
)

func TestWrapError(t *testing.T) {
	t.Parallel()

	base := errors.New("no such table")
	tests := []struct {
		name    string
		err     error
		message string
		want    string
	}{
		{"wraps", base, "count records", "count records: no such table"},
		{"nil passthrough", nil, "count records", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := WrapError(tt.err, tt.message)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("WrapError(nil) = %v, want nil", got)
				}
				return
			}
			if got.Error() != tt.want {
				t.Errorf("WrapError() = %q, want %q", got.Error(), tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("wrapped error lost its cause")
			}
		})
	}
}

func TestWrapErrorf(t *testing.T) {
	t.Parallel()

	base := errors.New("dial tcp: refused")
	got := WrapErrorf(base, "connect to %s:%d", "localhost", 6334)
	if got.Error() != "connect to localhost:6334: dial tcp: refused" {
		t.Errorf("WrapErrorf() = %q", got.Error())
	}
	if !errors.Is(got, base) {
		t.Error("WrapErrorf lost its cause")
	}
	if WrapErrorf(nil, "x %d", 1) != nil {
		t.Error("WrapErrorf(nil) should be nil")
	}
}

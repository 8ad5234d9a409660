package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ArturGR3/AI-Hackathon/pkg/helpers"
)

type testConfig struct {
	APIKey      string
	Temperature *float32
	MaxTokens   *int
	Timeout     time.Duration
	Stop        []string
	Options     map[string]any
	private     string
}

func TestMerge(t *testing.T) {
	t.Parallel()

	defaults := func() *testConfig {
		return &testConfig{
			APIKey:      "default-key",
			Temperature: helpers.PtrOf(float32(0.7)),
			MaxTokens:   helpers.PtrOf(1000),
			Stop:        []string{"default"},
			Options:     map[string]any{"default": "value"},
		}
	}

	tests := []struct {
		name   string
		source *testConfig
		want   *testConfig
	}{
		{
			name:   "partial override",
			source: &testConfig{Temperature: helpers.PtrOf(float32(0)), Timeout: time.Second},
			want: &testConfig{
				APIKey:      "default-key",
				Temperature: helpers.PtrOf(float32(0)),
				MaxTokens:   helpers.PtrOf(1000),
				Timeout:     time.Second,
				Stop:        []string{"default"},
				Options:     map[string]any{"default": "value"},
			},
		},
		{
			name:   "empty collections preserve defaults",
			source: &testConfig{Stop: []string{}, Options: map[string]any{}},
			want:   defaults(),
		},
		{
			name:   "nil source",
			source: nil,
			want:   defaults(),
		},
		{
			name:   "unexported fields are skipped",
			source: &testConfig{private: "x"},
			want:   defaults(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := defaults()
			Merge(got, tt.source)
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(testConfig{})); diff != "" {
				t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

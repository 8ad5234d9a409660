package helpers

import (
	"reflect"
	"testing"
	"time"
)

// Tests use t.Setenv, which forbids t.Parallel.

func TestGetStringFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback string
		want     string
	}{
		{"set", "gpt-4o-mini", "fallback", "gpt-4o-mini"},
		{"unset", "", "fallback", "fallback"},
		{"blank", "   ", "fallback", "fallback"},
		{"trimmed", "  llama3.2 ", "fallback", "llama3.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOVDOCS_TEST_STRING", tt.value)
			if got := GetStringFromEnv("GOVDOCS_TEST_STRING", tt.fallback); got != tt.want {
				t.Errorf("GetStringFromEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetIntFromEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"valid", "1536", 1536},
		{"negative", "-2", -2},
		{"malformed", "abc", 3},
		{"unset", "", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOVDOCS_TEST_INT", tt.value)
			if got := GetIntFromEnv("GOVDOCS_TEST_INT", 3); got != tt.want {
				t.Errorf("GetIntFromEnv() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetFloatFromEnv(t *testing.T) {
	t.Setenv("GOVDOCS_TEST_FLOAT", "0.25")
	if got := GetFloatFromEnv("GOVDOCS_TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("GetFloatFromEnv() = %v, want 0.25", got)
	}
	t.Setenv("GOVDOCS_TEST_FLOAT", "x")
	if got := GetFloatFromEnv("GOVDOCS_TEST_FLOAT", 1); got != 1 {
		t.Errorf("GetFloatFromEnv(malformed) = %v, want fallback", got)
	}
}

func TestGetBoolFromEnv(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"false", false},
		{"nope", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("GOVDOCS_TEST_BOOL", tt.value)
			if got := GetBoolFromEnv("GOVDOCS_TEST_BOOL", true); got != tt.want {
				t.Errorf("GetBoolFromEnv(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetDurationFromEnv(t *testing.T) {
	t.Setenv("GOVDOCS_TEST_DURATION", "7d")
	if got := GetDurationFromEnv("GOVDOCS_TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("malformed duration = %v, want fallback", got)
	}
	t.Setenv("GOVDOCS_TEST_DURATION", "168h")
	if got := GetDurationFromEnv("GOVDOCS_TEST_DURATION", time.Second); got != 168*time.Hour {
		t.Errorf("GetDurationFromEnv() = %v, want 168h", got)
	}
}

func TestGetListFromEnv(t *testing.T) {
	fallback := []string{"Artur Grygorian"}
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"split and trim", "Artur Grygorian, Nune Grygorian ,", []string{"Artur Grygorian", "Nune Grygorian"}},
		{"unset", "", fallback},
		{"only commas", ",,", fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOVDOCS_TEST_LIST", tt.value)
			if got := GetListFromEnv("GOVDOCS_TEST_LIST", fallback); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetListFromEnv() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

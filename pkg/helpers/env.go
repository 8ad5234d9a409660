// Package helpers provides small utilities shared by the govdocs packages.
package helpers

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetStringFromEnv returns the value of key, or fallback when it is unset or blank.
//
// Example:
//
//	model := helpers.GetStringFromEnv("GOVDOCS_LLM_MODEL", cfg.LLM.Model)
func GetStringFromEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// GetIntFromEnv returns key parsed as an int, or fallback when unset or malformed.
func GetIntFromEnv(key string, fallback int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

// GetFloatFromEnv returns key parsed as a float64, or fallback.
func GetFloatFromEnv(key string, fallback float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetBoolFromEnv returns key parsed with strconv.ParseBool, or fallback.
func GetBoolFromEnv(key string, fallback bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// GetDurationFromEnv returns key parsed with time.ParseDuration, or fallback.
//
// Example:
//
//	timeout := helpers.GetDurationFromEnv("GOVDOCS_SEARCH_TIMEOUT", 10*time.Second)
func GetDurationFromEnv(key string, fallback time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// GetListFromEnv splits a comma-separated variable into trimmed, non-empty
// items. Returns fallback when the variable is unset or yields no items.
func GetListFromEnv(key string, fallback []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

// Package ai is the language model boundary: chat completion with a JSON
// schema response format, structured extraction into validated Go types, and
// embedding. Providers live in the openai, ollama and gemini subpackages.
package ai

import (
	"context"

	"github.com/invopop/jsonschema"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Client is a chat completion provider.
//
// When format is non-nil the provider must ask the model for JSON matching
// format.Schema and return the raw JSON text.
type Client interface {
	Complete(ctx context.Context, messages []Message, format *ResponseFormat) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, messages []Message, format *ResponseFormat) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, messages []Message, format *ResponseFormat) (string, error) {
	return f(ctx, messages, format)
}

// Embedder turns text into a vector. It satisfies retrieval.EmbeddingProvider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ResponseFormat defines structured output requirements
type ResponseFormat struct {
	// Name identifies the schema to providers that require one.
	Name   string
	Schema *jsonschema.Schema

	validator *schemaValidator
}

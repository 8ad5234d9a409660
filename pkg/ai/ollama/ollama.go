// Package ollama provides a chat client and embedder for a local Ollama
// server. Structured output passes the JSON schema as the request format.
//
// Example:
//
//	client, err := ollama.New("llama3.2")
//	embedder, err := ollama.NewEmbedder("nomic-embed-text")
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/ai/config"
	"github.com/ArturGR3/AI-Hackathon/pkg/helpers"
)

// Client implements ai.Client for Ollama.
type Client struct {
	client *api.Client
	model  string
	config *Config
}

// Config holds Ollama-specific configuration.
type Config struct {
	// Optional. Ollama server URL; OLLAMA_HOST or localhost:11434 when empty
	Host string

	// Optional. Controls randomness
	Temperature *float32

	// Optional. Nucleus sampling parameter
	TopP *float32

	// Optional. Maximum tokens to generate (num_predict)
	MaxTokens *int

	// Optional. How long the model stays loaded after a request
	KeepAlive string

	// Optional. Extra model options passed through verbatim
	Options map[string]any
}

// Option interface for functional options pattern
type Option interface {
	Apply(*Config)
}

type configOption struct{ config *Config }

func (o configOption) Apply(opts *Config) { config.Merge(opts, o.config) }

// WithConfig merges cfg over the defaults.
func WithConfig(cfg *Config) Option {
	return configOption{config: cfg}
}

// DefaultConfig returns sensible defaults for Ollama.
func DefaultConfig() *Config {
	return &Config{
		Temperature: helpers.PtrOf(float32(0)),
		KeepAlive:   "5m",
	}
}

// New creates a chat client; the model defaults to llama3.2.
func New(model string, opts ...Option) (*Client, error) {
	if model == "" {
		model = "llama3.2"
	}
	cfg, client, err := build(opts)
	if err != nil {
		return nil, err
	}
	return &Client{client: client, model: model, config: cfg}, nil
}

func build(opts []Option) (*Config, *api.Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(cfg)
	}

	if cfg.Host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create client from environment: %w", err)
		}
		return cfg, client, nil
	}
	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid host URL: %w", err)
	}
	return cfg, api.NewClient(u, http.DefaultClient), nil
}

// Complete sends a non-streaming chat request.
func (o *Client) Complete(ctx context.Context, messages []ai.Message, format *ai.ResponseFormat) (string, error) {
	req, err := o.buildChatRequest(messages, format)
	if err != nil {
		return "", err
	}

	var reply strings.Builder
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to chat with ollama: %w", err)
	}
	return reply.String(), nil
}

func (o *Client) buildChatRequest(messages []ai.Message, format *ai.ResponseFormat) (*api.ChatRequest, error) {
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: make([]api.Message, 0, len(messages)),
		Stream:   helpers.PtrOf(false),
		Options:  make(map[string]any),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, api.Message{Role: string(m.Role), Content: m.Content})
	}

	if o.config.Temperature != nil {
		req.Options["temperature"] = *o.config.Temperature
	}
	if o.config.TopP != nil {
		req.Options["top_p"] = *o.config.TopP
	}
	if o.config.MaxTokens != nil {
		req.Options["num_predict"] = *o.config.MaxTokens
	}
	for key, value := range o.config.Options {
		req.Options[key] = value
	}
	if o.config.KeepAlive != "" {
		d, err := time.ParseDuration(o.config.KeepAlive)
		if err != nil {
			return nil, fmt.Errorf("invalid keep alive %q: %w", o.config.KeepAlive, err)
		}
		req.KeepAlive = &api.Duration{Duration: d}
	}

	if format != nil && format.Schema != nil {
		raw, err := json.Marshal(format.Schema)
		if err != nil {
			return nil, fmt.Errorf("marshaling schema %q: %w", format.Name, err)
		}
		req.Format = raw
	}
	return req, nil
}

// Embedder implements ai.Embedder with the /api/embed endpoint.
type Embedder struct {
	client *api.Client
	model  string
	config *Config
}

// NewEmbedder creates an embedder; the model defaults to nomic-embed-text.
func NewEmbedder(model string, opts ...Option) (*Embedder, error) {
	if model == "" {
		model = "nomic-embed-text"
	}
	cfg, client, err := build(opts)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model, config: cfg}, nil
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed with ollama: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embeddings[0], nil
}

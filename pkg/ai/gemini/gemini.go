// Package gemini provides a Google Gemini chat client and embedder on the
// genai SDK. System messages become the system instruction; assistant
// messages are sent with the model role.
package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/ai/config"
	"github.com/ArturGR3/AI-Hackathon/pkg/helpers"
)

const applicationJSON = "application/json"

// Client implements ai.Client for Gemini.
type Client struct {
	client *genai.Client
	model  string
	config *Config
}

// Config holds Gemini-specific configuration.
type Config struct {
	// Required. API key; GOOGLE_API_KEY by default
	APIKey string

	// Optional. Controls randomness
	Temperature *float32

	// Optional. Nucleus sampling parameter
	TopP *float32

	// Optional. Maximum output tokens
	MaxTokens *int

	// Optional. Output dimensionality for embedding models
	Dimensions *int

	// Optional. Content safety settings
	SafetySettings []*genai.SafetySetting
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

// DefaultConfig reads GOOGLE_API_KEY and uses temperature 0.
func DefaultConfig() *Config {
	return &Config{
		APIKey:      os.Getenv("GOOGLE_API_KEY"),
		Temperature: helpers.PtrOf(float32(0)),
	}
}

// New creates a chat client for model (e.g. gemini-2.5-flash).
func New(ctx context.Context, model string, opts ...Option) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	cfg, client, err := build(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{client: client, model: model, config: cfg}, nil
}

func build(ctx context.Context, opts []Option) (*Config, *genai.Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(cfg)
	}
	if cfg.APIKey == "" {
		return nil, nil, fmt.Errorf("GOOGLE_API_KEY environment variable not set or provided in config")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return cfg, client, nil
}

// Complete calls GenerateContent once and returns the concatenated text.
func (g *Client) Complete(ctx context.Context, messages []ai.Message, format *ai.ResponseFormat) (string, error) {
	contents, system := toContents(messages)
	genConfig := g.buildGenerateConfig(system, format)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genConfig)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from gemini")
	}
	return text, nil
}

func (g *Client) buildGenerateConfig(system string, format *ai.ResponseFormat) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if g.config.Temperature != nil {
		cfg.Temperature = genai.Ptr(*g.config.Temperature)
	}
	if g.config.TopP != nil {
		cfg.TopP = genai.Ptr(*g.config.TopP)
	}
	if g.config.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*g.config.MaxTokens)
	}
	if len(g.config.SafetySettings) > 0 {
		cfg.SafetySettings = g.config.SafetySettings
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if format != nil && format.Schema != nil {
		cfg.ResponseMIMEType = applicationJSON
		cfg.ResponseJsonSchema = format.Schema
	}
	return cfg
}

// toContents splits system messages out; Gemini takes them separately.
func toContents(messages []ai.Message) ([]*genai.Content, string) {
	var (
		contents []*genai.Content
		system   []string
	)
	for _, m := range messages {
		switch m.Role {
		case ai.RoleSystem:
			system = append(system, m.Content)
		case ai.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}

// Embedder implements ai.Embedder with EmbedContent.
type Embedder struct {
	client *genai.Client
	model  string
	config *Config
}

// NewEmbedder creates an embedder for model (e.g. text-embedding-004).
func NewEmbedder(ctx context.Context, model string, opts ...Option) (*Embedder, error) {
	if model == "" {
		return nil, fmt.Errorf("embedding model name is required")
	}
	cfg, client, err := build(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model, config: cfg}, nil
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var embedConfig *genai.EmbedContentConfig
	if e.config.Dimensions != nil {
		embedConfig = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(int32(*e.config.Dimensions))}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, embedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embeddings[0].Values, nil
}

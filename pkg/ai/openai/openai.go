// Package openai provides the OpenAI chat completion client and embedder.
//
// Structured output uses the strict json_schema response format, so the
// schemas passed in must declare every property required and disallow
// additional properties (ai.SchemaFor does both).
//
// Example usage:
//
//	client, err := openai.New("gpt-4o-mini", openai.WithConfig(&openai.Config{
//		Temperature: helpers.PtrOf(float32(0)),
//	}))
//	if err != nil {
//		log.Fatal(err)
//	}
//	reply, err := client.Complete(ctx, messages, ai.SchemaFor[Answer]("answer"))
package openai

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/openai/openai-go/v2/shared/constant"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/ai/config"
	"github.com/ArturGR3/AI-Hackathon/pkg/helpers"
)

// Client implements ai.Client for OpenAI.
type Client struct {
	client *openai.Client
	model  shared.ChatModel
	config *Config
}

// Config holds OpenAI-specific configuration.
//
// Example:
//
//	config := &openai.Config{
//		APIKey: "sk-...",
//		Temperature: helpers.PtrOf(float32(0.2)),
//		MaxTokens: helpers.PtrOf(1000),
//	}
type Config struct {
	// Required. API key for OpenAI authentication
	APIKey string

	// Optional. Base URL for OpenAI API (defaults to official OpenAI API)
	BaseURL string

	// Optional. Organization ID for OpenAI API requests
	OrgID string

	// Optional. Controls randomness in token selection (0.0-2.0)
	Temperature *float32

	// Optional. Nucleus sampling parameter (0.0-1.0)
	TopP *float32

	// Optional. Maximum number of tokens in the response
	MaxTokens *int

	// Optional. Fixed seed for reproducible responses
	Seed *int

	// Optional. User ID for tracking and abuse monitoring
	User string

	// Optional. Output dimensions for text-embedding-3 models
	Dimensions *int
}

// Option interface for functional options pattern
type Option interface {
	Apply(*Config)
}

type configOption struct {
	config *Config
}

func (o configOption) Apply(opts *Config) {
	config.Merge(opts, o.config)
}

// WithConfig merges cfg over the defaults; only non-zero fields override.
func WithConfig(cfg *Config) Option {
	return configOption{config: cfg}
}

// DefaultConfig reads OPENAI_API_KEY and uses temperature 0.
func DefaultConfig() *Config {
	return &Config{
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		Temperature: helpers.PtrOf(float32(0)),
	}
}

// New creates a chat client for model.
func New(model string, opts ...Option) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	cfg, client, err := build(opts)
	if err != nil {
		return nil, err
	}
	return &Client{client: client, model: shared.ChatModel(model), config: cfg}, nil
}

func build(opts []Option) (*Config, *openai.Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(cfg)
	}
	if cfg.APIKey == "" {
		return nil, nil, fmt.Errorf("OPENAI_API_KEY environment variable not set or provided in config")
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.OrgID != "" {
		clientOptions = append(clientOptions, option.WithOrganization(cfg.OrgID))
	}
	client := openai.NewClient(clientOptions...)
	return cfg, &client, nil
}

// Complete sends one non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, messages []ai.Message, format *ai.ResponseFormat) (string, error) {
	params, err := c.buildParams(messages, format)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", choice.Message.Refusal)
	}
	return choice.Message.Content, nil
}

func (c *Client) buildParams(messages []ai.Message, format *ai.ResponseFormat) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: toMessages(messages),
	}

	if c.config.Temperature != nil {
		params.Temperature = openai.Float(float64(*c.config.Temperature))
	}
	if c.config.TopP != nil {
		params.TopP = openai.Float(float64(*c.config.TopP))
	}
	if c.config.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*c.config.MaxTokens))
	}
	if c.config.Seed != nil {
		params.Seed = openai.Int(int64(*c.config.Seed))
	}
	if c.config.User != "" {
		params.User = openai.String(c.config.User)
	}

	if format != nil && format.Schema != nil {
		schema, err := format.Map()
		if err != nil {
			return params, err
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				Type: constant.JSONSchema("").Default(),
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName(format),
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}
	return params, nil
}

func toMessages(messages []ai.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case ai.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case ai.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func schemaName(format *ai.ResponseFormat) string {
	if format.Name == "" {
		return "response_schema"
	}
	return format.Name
}

// Embedder implements ai.Embedder with the embeddings endpoint.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	config *Config
}

// NewEmbedder creates an embedder for model (e.g. text-embedding-3-small).
func NewEmbedder(model string, opts ...Option) (*Embedder, error) {
	if model == "" {
		return nil, fmt.Errorf("embedding model name is required")
	}
	cfg, client, err := build(opts)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: openai.EmbeddingModel(model), config: cfg}, nil
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	}
	if e.config.Dimensions != nil {
		params.Dimensions = openai.Int(int64(*e.config.Dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding data returned")
	}
	v64 := resp.Data[0].Embedding
	v := make([]float32, len(v64))
	for i := range v64 {
		v[i] = float32(v64[i])
	}
	return v, nil
}

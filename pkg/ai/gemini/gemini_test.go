package gemini

import (
	"context"
	"testing"

	"google.golang.org/genai"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/helpers"
)

type summary struct {
	Summary string `json:"summary"`
}

func TestNew(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")

	if _, err := New(context.Background(), ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New(context.Background(), "gemini-2.5-flash"); err == nil {
		t.Error("expected error without an API key")
	}
	if _, err := NewEmbedder(context.Background(), "text-embedding-004"); err == nil {
		t.Error("expected embedder error without an API key")
	}
}

func TestToContents(t *testing.T) {
	t.Parallel()

	contents, system := toContents([]ai.Message{
		ai.System("role"),
		ai.User("question"),
		ai.Assistant("retrieved"),
		ai.System("format"),
	})
	if system != "role\n\nformat" {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 2 {
		t.Fatalf("got %d contents, want 2", len(contents))
	}
	if contents[0].Role != string(genai.RoleUser) || contents[1].Role != string(genai.RoleModel) {
		t.Errorf("roles = %q, %q", contents[0].Role, contents[1].Role)
	}
	if contents[1].Parts[0].Text != "retrieved" {
		t.Errorf("text = %q", contents[1].Parts[0].Text)
	}
}

func TestBuildGenerateConfig(t *testing.T) {
	t.Parallel()

	g := &Client{config: &Config{Temperature: helpers.PtrOf(float32(0.2)), MaxTokens: helpers.PtrOf(300)}}

	cfg := g.buildGenerateConfig("be precise", ai.SchemaFor[summary]("summary"))
	if cfg.ResponseMIMEType != applicationJSON || cfg.ResponseJsonSchema == nil {
		t.Errorf("structured output not requested: %+v", cfg)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0.2 || cfg.MaxOutputTokens != 300 {
		t.Errorf("temperature = %v, max tokens = %d", cfg.Temperature, cfg.MaxOutputTokens)
	}
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "be precise" {
		t.Errorf("system instruction = %+v", cfg.SystemInstruction)
	}

	plain := g.buildGenerateConfig("", nil)
	if plain.ResponseMIMEType != "" || plain.SystemInstruction != nil {
		t.Errorf("unexpected settings: %+v", plain)
	}
}

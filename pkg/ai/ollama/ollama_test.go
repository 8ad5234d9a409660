package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ollama/ollama/api"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/helpers"
)

type constraints struct {
	Sender *string `json:"sender"`
}

func (constraints) Validate() error { return nil }

// createMockOllamaServer answers /api/chat with reply and /api/embed with a
// fixed vector, handing each decoded chat request to inspect.
func createMockOllamaServer(t *testing.T, reply string, inspect func(api.ChatRequest)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		switch r.URL.Path {
		case "/api/chat":
			var req api.ChatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("Failed to decode request: %v", err)
				http.Error(w, "Bad request", http.StatusBadRequest)
				return
			}
			if inspect != nil {
				inspect(req)
			}
			_ = json.NewEncoder(w).Encode(api.ChatResponse{
				Model:   req.Model,
				Message: api.Message{Role: "assistant", Content: reply},
				Done:    true,
			})
		case "/api/embed":
			_ = json.NewEncoder(w).Encode(api.EmbedResponse{
				Model:      "nomic-embed-text",
				Embeddings: [][]float32{{0.1, 0.2, 0.3}},
			})
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}))
}

func TestCompleteSendsSchemaAndOptions(t *testing.T) {
	t.Parallel()

	requests := make(chan api.ChatRequest, 1)
	server := createMockOllamaServer(t, "```json\n{\"sender\": \"Tax\"}\n```", func(r api.ChatRequest) { requests <- r })
	defer server.Close()

	client, err := New("llama3.2", WithConfig(&Config{Host: server.URL, MaxTokens: helpers.PtrOf(256)}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	messages := []ai.Message{ai.System("extract"), ai.User("tax letters?")}
	out, err := ai.Extract[constraints](context.Background(), client, messages, ai.SchemaFor[constraints]("constraints"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.Sender == nil || *out.Sender != "Tax" {
		t.Errorf("Sender = %v, want Tax", out.Sender)
	}

	got := <-requests

	if got.Stream == nil || *got.Stream {
		t.Error("expected a non-streaming request")
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "tax letters?" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if len(got.Format) == 0 || got.Format[0] != '{' {
		t.Errorf("format = %s, want a JSON schema object", got.Format)
	}
	if got.Options["num_predict"] != float64(256) {
		t.Errorf("num_predict = %v, want 256", got.Options["num_predict"])
	}
}

func TestBuildChatRequest(t *testing.T) {
	t.Parallel()

	client := &Client{model: "m", config: &Config{KeepAlive: "10m", Options: map[string]any{"num_ctx": 8192}}}
	req, err := client.buildChatRequest([]ai.Message{ai.User("hi")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if req.Format != nil {
		t.Errorf("format = %s, want none", req.Format)
	}
	if req.KeepAlive == nil || req.KeepAlive.Duration != 10*time.Minute {
		t.Errorf("keep alive = %v", req.KeepAlive)
	}
	if req.Options["num_ctx"] != 8192 {
		t.Errorf("options = %v", req.Options)
	}

	client.config.KeepAlive = "soon"
	if _, err := client.buildChatRequest(nil, nil); err == nil {
		t.Error("expected an error for an invalid keep alive")
	}
}

func TestEmbed(t *testing.T) {
	t.Parallel()

	server := createMockOllamaServer(t, "", nil)
	defer server.Close()

	emb, err := NewEmbedder("", WithConfig(&Config{Host: server.URL}))
	if err != nil {
		t.Fatal(err)
	}
	if emb.model != "nomic-embed-text" {
		t.Errorf("default model = %q", emb.model)
	}
	vec, err := emb.Embed(context.Background(), "letter")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if diff := cmp.Diff([]float32{0.1, 0.2, 0.3}, vec); diff != "" {
		t.Errorf("Embed() mismatch (-want +got):\n%s", diff)
	}
}

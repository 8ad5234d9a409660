package query

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/govdoc"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// SynthesizedResponse is the grounded answer to a question.
type SynthesizedResponse struct {
	ThoughtProcess []string `json:"thought_process" jsonschema:"description=List of thoughts that the AI assistant had while synthesizing the answer"`
	Answer         string   `json:"answer" jsonschema:"description=The synthesized answer to the user's question"`
	EnoughContext  bool     `json:"enough_context" jsonschema:"description=Whether the assistant has enough context to answer the question"`
}

// Validate requires an answer when the model claims enough context. A
// "not enough context" reply may leave it empty.
func (r SynthesizedResponse) Validate() error {
	if r.EnoughContext && strings.TrimSpace(r.Answer) == "" {
		return errors.New("answer is empty")
	}
	return nil
}

// ContextFields are the metadata keys sent to the model after the record
// contents, in this order.
var ContextFields = []string{
	"title_in_english",
	"title_in_original_language",
	"sender",
	"sent_date",
	"addressed_to",
	"summary_in_english",
	"required_actions",
}

const synthesizerPrompt = `# Role and Purpose
You are an AI assistant that helps users answer their questions about the documents they receive from the government.
Your task is to synthesize a coherent and helpful answer based on the given question and relevant context retrieved from a knowledge database.

# Guidelines:
1. Provide a reference to the document that contains the answer. Specify the title and the date of the document.
2. Properly structure your answer, e.g. use bullet points if needed, and use markdown formatting.
3. Provide a clear and concise answer to the question.
4. Use only the information from the relevant context to support your answer.
5. The context is retrieved based on cosine similarity, so some information might be missing or irrelevant.
6. Be transparent when there is insufficient information to fully answer the question.
7. Do not make up or infer information not present in the provided context.
8. If you cannot answer the question based on the given context, clearly state that.
9. Maintain a helpful and professional tone.

Review the question from the user:
`

// Synthesizer answers a question from retrieved records.
type Synthesizer struct {
	client  ai.Client
	format  *ai.ResponseFormat
	timeout time.Duration
}

// NewSynthesizer creates a synthesizer whose model calls time out after
// timeout (30s when zero).
func NewSynthesizer(client ai.Client, timeout time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Synthesizer{
		client:  client,
		format:  ai.SchemaFor[SynthesizedResponse]("synthesized_response"),
		timeout: timeout,
	}
}

// Synthesize makes one model call. EnoughContext is whatever the model
// reports. Failures are synthesis errors and produce no fallback answer.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, results []retrieval.Result) (SynthesizedResponse, error) {
	contextJSON, err := ContextJSON(results)
	if err != nil {
		return SynthesizedResponse{}, govdoc.WrapErr(ctx, govdoc.KindSynthesis, err, "encoding retrieved context")
	}

	messages := []ai.Message{
		ai.System(synthesizerPrompt),
		ai.User("# User question:\n" + question),
		ai.Assistant("# Retrieved information:\n" + contextJSON),
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := ai.Extract[SynthesizedResponse](cctx, s.client, messages, s.format)
	if err != nil {
		return SynthesizedResponse{}, govdoc.WrapErr(ctx, govdoc.KindSynthesis, err, "answer synthesis failed")
	}
	return resp, nil
}

// ContextJSON projects each result to its contents plus ContextFields, in
// a fixed key order. Absent keys are omitted and embeddings never appear.
func ContextJSON(results []retrieval.Result) (string, error) {
	projected := make([]*orderedmap.OrderedMap[string, any], 0, len(results))
	for _, r := range results {
		om := orderedmap.New[string, any]()
		om.Set("content", r.Record.Contents)
		for _, k := range ContextFields {
			if v, ok := r.Record.Metadata[k]; ok {
				om.Set(k, v)
			}
		}
		projected = append(projected, om)
	}

	raw, err := json.MarshalIndent(projected, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Package mcpserver exposes the document store and the question pipeline as
// Model Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ArturGR3/AI-Hackathon/pkg/govdoc"
	"github.com/ArturGR3/AI-Hackathon/pkg/query"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// Asker answers a question.
type Asker interface {
	Process(ctx context.Context, question string) (*query.Result, error)
}

// Store is the part of retrieval.Store the tools read from.
type Store interface {
	Search(ctx context.Context, req retrieval.SearchRequest) ([]retrieval.Result, error)
	Count(ctx context.Context) (int64, error)
}

// AskParams are the arguments of ask_documents.
type AskParams struct {
	Question string `json:"question" jsonschema:"the question about the government letters"`
}

// SearchParams are the arguments of search_documents.
type SearchParams struct {
	Query       string `json:"query" jsonschema:"text to search for"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
	Sender      string `json:"sender,omitempty" jsonschema:"only documents from this sender: Employment Agency, Tax, Health, Immigration or Other"`
	AddressedTo string `json:"addressed_to,omitempty" jsonschema:"only documents addressed to this person"`
	StartDate   string `json:"start_date,omitempty" jsonschema:"only documents created on or after this date (YYYY-MM-DD)"`
	EndDate     string `json:"end_date,omitempty" jsonschema:"only documents created before this date (YYYY-MM-DD), exclusive"`
}

// CountParams are the arguments of count_documents.
type CountParams struct{}

// SearchHit is one search_documents result.
type SearchHit struct {
	ID       string         `json:"id"`
	Created  time.Time      `json:"created"`
	Distance float64        `json:"distance"`
	Contents string         `json:"contents"`
	Metadata map[string]any `json:"metadata"`
}

// New registers the tools on a new server.
//
// Example:
//
//	server := mcpserver.New(processor, store, "1.0.0")
//	err := server.Run(ctx, &mcp.StdioTransport{})
func New(asker Asker, store Store, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "govdocs",
		Version: version,
	}, nil)

	h := &handlers{asker: asker, store: store}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_documents",
		Description: "Answer a question from the stored government letters, citing the documents used",
	}, h.ask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Similarity search over the stored government letters with optional sender, recipient and date filters",
	}, h.search)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "count_documents",
		Description: "Number of documents in the store",
	}, h.count)

	return server
}

type handlers struct {
	asker Asker
	store Store
}

func (h *handlers) ask(ctx context.Context, _ *mcp.CallToolRequest, args AskParams) (*mcp.CallToolResult, any, error) {
	res, err := h.asker.Process(ctx, args.Question)
	if err != nil {
		return toolError(err), nil, nil
	}
	return jsonResult(res)
}

func (h *handlers) search(ctx context.Context, _ *mcp.CallToolRequest, args SearchParams) (*mcp.CallToolResult, any, error) {
	req, err := searchRequest(ctx, args)
	if err != nil {
		return toolError(err), nil, nil
	}
	results, err := h.store.Search(ctx, req)
	if err != nil {
		return toolError(err), nil, nil
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		created, _ := retrieval.IDTime(r.Record.ID)
		hits = append(hits, SearchHit{
			ID:       r.Record.ID,
			Created:  created,
			Distance: r.Distance,
			Contents: r.Record.Contents,
			Metadata: r.Record.Metadata,
		})
	}
	return jsonResult(hits)
}

func (h *handlers) count(ctx context.Context, _ *mcp.CallToolRequest, _ CountParams) (*mcp.CallToolResult, any, error) {
	n, err := h.store.Count(ctx)
	if err != nil {
		return toolError(err), nil, nil
	}
	return textResult(fmt.Sprintf("%d", n)), nil, nil
}

// searchRequest reuses the question pipeline's predicate so tool filters
// behave like extracted constraints.
func searchRequest(ctx context.Context, args SearchParams) (retrieval.SearchRequest, error) {
	var c query.Constraints
	if args.Sender != "" {
		s := query.Sender(args.Sender)
		if !s.Valid() {
			return retrieval.SearchRequest{}, govdoc.Validationf(ctx, "unknown sender %q", args.Sender)
		}
		c.Sender = &s
	}
	if args.AddressedTo != "" {
		r := query.Recipient(args.AddressedTo)
		c.AddressedTo = &r
	}

	var tf query.TimeFilter
	for _, d := range []struct {
		raw string
		dst **time.Time
	}{{args.StartDate, &tf.StartDate}, {args.EndDate, &tf.EndDate}} {
		if d.raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, d.raw)
		if err != nil {
			return retrieval.SearchRequest{}, govdoc.WrapErr(ctx, govdoc.KindValidation, err, "dates must be YYYY-MM-DD")
		}
		*d.dst = &t
	}
	if tf.StartDate != nil || tf.EndDate != nil {
		c.TimeFilter = &tf
	}

	return retrieval.SearchRequest{
		Query:     args.Query,
		Limit:     args.Limit,
		Predicate: query.BuildPredicate(c),
		TimeRange: c.TimeRange(),
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return textResult(string(raw)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(err error) *mcp.CallToolResult {
	res := textResult(fmt.Sprintf("%s error: %v", govdoc.KindOf(err), err))
	res.IsError = true
	return res
}

package retrieval

import (
	"context"
	"errors"
	"strings"
)

// EmbeddingProvider turns text into a fixed-length vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingFunc adapts a function to EmbeddingProvider.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// Embed calls f.
func (f EmbeddingFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Query is what a Backend receives for a similarity search. The vector is
// already computed.
type Query struct {
	Vector    []float32
	Limit     int
	Predicate *Predicate
	TimeRange TimeRange
}

// Backend is implemented by each vector database.
//
// Search must apply Predicate and TimeRange before ranking, never to an
// already truncated top-k. Results come back by ascending Distance with Seq
// set from insertion order; a backend may return more than Limit, the Store
// re-sorts and truncates.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Upsert writes records, replacing any with the same ID. Embeddings are set.
	// A replaced record keeps the Seq it was first written with.
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, q Query) ([]Result, error)

	// Delete removes records per opts, already validated, and reports how
	// many were removed when the backend can tell (-1 otherwise).
	Delete(ctx context.Context, opts DeleteOptions) (int64, error)
	Exists(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)

	CreateTables(ctx context.Context) error
	DropTables(ctx context.Context) error
	TablesExist(ctx context.Context) (bool, error)

	// CreateIndex builds the nearest-neighbour index. An existing index is a
	// no-op.
	CreateIndex(ctx context.Context) error
	DropIndex(ctx context.Context) error

	Info(ctx context.Context) (Info, error)
	Health(ctx context.Context) error
	Close() error
}

// Info describes a backend connection.
type Info struct {
	Backend   string         `json:"backend"`
	Version   string         `json:"version,omitempty"`
	Tables    []string       `json:"tables,omitempty"`
	Indexes   []string       `json:"indexes,omitempty"`
	Connected bool           `json:"connected"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// DeleteOptions selects records to delete. Exactly one mode must be set.
type DeleteOptions struct {
	IDs    []string       `json:"ids,omitempty"`
	Filter map[string]any `json:"filter,omitempty"`
	All    bool           `json:"all,omitempty"`
}

// ErrDeleteMode is returned by Validate when zero or several modes are set.
var ErrDeleteMode = errors.New("exactly one of ids, filter or all must be given")

// Validate enforces the single deletion mode.
func (o DeleteOptions) Validate() error {
	modes := 0
	if len(o.IDs) > 0 {
		modes++
	}
	if len(o.Filter) > 0 {
		modes++
	}
	if o.All {
		modes++
	}
	if modes != 1 {
		return ErrDeleteMode
	}
	for _, id := range o.IDs {
		if strings.TrimSpace(id) == "" {
			return errors.New("delete ids must not be empty strings")
		}
	}
	if p := o.FilterPredicate(); p != nil {
		return p.Validate()
	}
	return nil
}

// FilterPredicate returns the equality filter as a predicate, or nil.
func (o DeleteOptions) FilterPredicate() *Predicate {
	if len(o.Filter) == 0 {
		return nil
	}
	return MetadataEquals(o.Filter)
}

// Mode names the active deletion mode for logging.
func (o DeleteOptions) Mode() string {
	switch {
	case o.All:
		return "all"
	case len(o.Filter) > 0:
		return "filter"
	case len(o.IDs) > 0:
		return "ids"
	}
	return "none"
}

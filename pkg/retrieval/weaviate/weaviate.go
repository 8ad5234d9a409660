// Package weaviate is a retrieval.Backend on Weaviate. Records are objects
// of one class with a caller-supplied vector. Scalar metadata fields are
// flattened into "meta_" properties so they can be filtered; the full
// metadata is kept as JSON for the round trip.
package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/ArturGR3/AI-Hackathon/pkg/helpers"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

var classRe = regexp.MustCompile(`^[A-Z][_0-9A-Za-z]*$`)

// Config holds Weaviate backend configuration.
type Config struct {
	// URL of the Weaviate REST endpoint.
	// Example: "http://localhost:8080"
	URL string

	// ClassName defaults to "Document". Must start with an upper-case letter.
	ClassName string

	// Optional API key for authentication
	APIKey string

	// VectorDimension must match the embedding model output.
	VectorDimension int
}

// Backend implements retrieval.Backend for Weaviate.
type Backend struct {
	client *weaviate.Client
	class  string
	dim    int
	now    func() time.Time

	mu      sync.Mutex
	props   map[string]string // property name -> data type, nil until loaded
	lastSeq int64
}

var _ retrieval.Backend = (*Backend)(nil)

// New creates a Weaviate backend. No request is made until the first
// operation.
//
// Example:
//
//	backend, err := weaviate.New(weaviate.Config{
//	    URL:             "http://localhost:8080",
//	    VectorDimension: 1536,
//	})
func New(cfg Config) (*Backend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("weaviate URL is required")
	}
	if cfg.ClassName == "" {
		cfg.ClassName = "Document"
	}
	if !classRe.MatchString(cfg.ClassName) {
		return nil, fmt.Errorf("invalid class name %q", cfg.ClassName)
	}
	if cfg.VectorDimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", cfg.VectorDimension)
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid weaviate URL: %w", err)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid weaviate URL %q: missing host", cfg.URL)
	}

	wcfg := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	return &Backend{
		client: client,
		class:  cfg.ClassName,
		dim:    cfg.VectorDimension,
		now:    time.Now,
	}, nil
}

func (b *Backend) Name() string { return "weaviate" }

// Upsert writes objects in one batch. New scalar metadata fields get a
// property first; a value whose type differs from the existing property
// is kept in the JSON metadata only.
func (b *Backend) Upsert(ctx context.Context, records []retrieval.Record) error {
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(records))
	for _, r := range records {
		created, err := retrieval.IDTime(r.ID)
		if err != nil {
			return err
		}
		if len(r.Embedding) != b.dim {
			return fmt.Errorf("record %s has %d dimensions, class expects %d", r.ID, len(r.Embedding), b.dim)
		}
		metaJSON, err := json.Marshal(nonNil(r.Metadata))
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for record %s: %w", r.ID, err)
		}

		props := map[string]any{
			propContents:  r.Contents,
			propMetadata:  string(metaJSON),
			propCreatedAt: created.UTC().Format(time.RFC3339Nano),
		}
		flat, err := b.flatten(ctx, r.Metadata)
		if err != nil {
			return err
		}
		maps.Copy(props, flat)

		objects = append(objects, &models.Object{
			Class:      b.class,
			ID:         strfmt.UUID(r.ID),
			Properties: props,
			Vector:     r.Embedding,
		})
	}

	stored, err := b.storedSeqs(ctx, objects)
	if err != nil {
		return err
	}
	b.assignSeqs(objects, stored)

	resp, err := b.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert objects: %w", err)
	}
	for _, item := range resp {
		if item.Result == nil || item.Result.Errors == nil || len(item.Result.Errors.Error) == 0 {
			continue
		}
		return fmt.Errorf("failed to upsert object %s: %s", item.ID, item.Result.Errors.Error[0].Message)
	}
	return nil
}

// storedSeqs returns the seq property of the objects that already exist.
func (b *Backend) storedSeqs(ctx context.Context, objects []*models.Object) (map[string]int64, error) {
	ids := make([]string, 0, len(objects))
	for _, o := range objects {
		ids = append(ids, o.ID.String())
	}
	resp, err := b.client.GraphQL().Get().
		WithClassName(b.class).
		WithFields(
			graphql.Field{Name: propSeq},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
		).
		WithWhere(idsWhere(ids)).
		WithLimit(len(ids)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing objects: %w", err)
	}
	if err := graphQLError(resp); err != nil {
		return nil, err
	}
	existing, err := parseResults(resp, b.class)
	if err != nil {
		return nil, err
	}
	seqs := make(map[string]int64, len(existing))
	for _, r := range existing {
		seqs[r.Record.ID] = r.Seq
	}
	return seqs, nil
}

// assignSeqs keeps the stored seq of replaced objects and stamps new ones.
func (b *Backend) assignSeqs(objects []*models.Object, stored map[string]int64) {
	for _, o := range objects {
		seq, ok := stored[o.ID.String()]
		if !ok {
			seq = b.nextSeq()
		}
		o.Properties.(map[string]any)[propSeq] = seq
	}
}

// nextSeq returns a strictly increasing microsecond stamp. Microseconds keep
// the value exact through GraphQL's float64 numbers.
func (b *Backend) nextSeq() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	seq := b.now().UnixMicro()
	if seq <= b.lastSeq {
		seq = b.lastSeq + 1
	}
	b.lastSeq = seq
	return seq
}

// flatten returns the filterable metadata properties, creating missing ones.
func (b *Backend) flatten(ctx context.Context, meta map[string]any) (map[string]any, error) {
	props, err := b.properties(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		dt := dataTypeOf(v)
		if dt == "" || !propNameRe.MatchString(k) {
			continue
		}
		name := metaProp(k)
		existing, ok := props[name]
		if !ok {
			if err := b.createProperty(ctx, name, dt); err != nil {
				return nil, err
			}
			existing = dt
		}
		if existing != dt {
			continue
		}
		if dt == typeNumber {
			v, _ = retrieval.AsFloat(v)
		}
		out[name] = v
	}
	return out, nil
}

func (b *Backend) createProperty(ctx context.Context, name, dataType string) error {
	prop := &models.Property{Name: name, DataType: []string{dataType}}
	if dataType == typeText {
		prop.Tokenization = models.PropertyTokenizationField
	}
	err := b.client.Schema().PropertyCreator().WithClassName(b.class).WithProperty(prop).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create property %s: %w", name, err)
	}
	b.mu.Lock()
	if b.props != nil {
		b.props[name] = dataType
	}
	b.mu.Unlock()
	return nil
}

// properties returns a copy of the class properties, loading them once.
func (b *Backend) properties(ctx context.Context) (map[string]string, error) {
	b.mu.Lock()
	if b.props != nil {
		defer b.mu.Unlock()
		return maps.Clone(b.props), nil
	}
	b.mu.Unlock()

	class, err := b.client.Schema().ClassGetter().WithClassName(b.class).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read class %s: %w", b.class, err)
	}
	props := make(map[string]string, len(class.Properties))
	for _, p := range class.Properties {
		if len(p.DataType) > 0 {
			props[p.Name] = p.DataType[0]
		}
	}
	b.mu.Lock()
	b.props = props
	b.mu.Unlock()
	return maps.Clone(props), nil
}

func (b *Backend) resetProperties() {
	b.mu.Lock()
	b.props = nil
	b.mu.Unlock()
}

// Search runs a nearVector query. Leaves on fields the class does not
// have are resolved before the query; a tree that is false returns no
// results without a round trip.
func (b *Backend) Search(ctx context.Context, q retrieval.Query) ([]retrieval.Result, error) {
	if len(q.Vector) != b.dim {
		return nil, fmt.Errorf("query has %d dimensions, class expects %d", len(q.Vector), b.dim)
	}
	if err := q.Predicate.Validate(); err != nil {
		return nil, err
	}

	conds := timeWhere(q.TimeRange)
	if q.Predicate != nil {
		props, err := b.properties(ctx)
		if err != nil {
			return nil, err
		}
		pruned, ok := prune(q.Predicate, props)
		if !ok {
			return nil, nil
		}
		w, err := where(pruned)
		if err != nil {
			return nil, err
		}
		conds = append(conds, w)
	}

	limit := 10
	if q.Limit > 0 {
		limit = q.Limit * 2
	}
	get := b.client.GraphQL().Get().
		WithClassName(b.class).
		WithFields(
			graphql.Field{Name: propContents},
			graphql.Field{Name: propMetadata},
			graphql.Field{Name: propSeq},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
		).
		WithNearVector(b.client.GraphQL().NearVectorArgBuilder().WithVector(q.Vector)).
		WithLimit(limit)
	if w := allOrOne(filters.And, conds); w != nil {
		get = get.WithWhere(w)
	}

	resp, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if err := graphQLError(resp); err != nil {
		return nil, err
	}
	return parseResults(resp, b.class)
}

// Delete removes by id list, equality filter, or everything.
func (b *Backend) Delete(ctx context.Context, opts retrieval.DeleteOptions) (int64, error) {
	var w *filters.WhereBuilder
	switch {
	case opts.All:
		w = filters.Where().WithPath([]string{"id"}).WithOperator(filters.Like).WithValueText("*")
	case len(opts.IDs) > 0:
		ids := make([]string, 0, len(opts.IDs))
		for _, id := range opts.IDs {
			if _, err := uuid.Parse(id); err == nil {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return 0, nil
		}
		w = idsWhere(ids)
	default:
		props, err := b.properties(ctx)
		if err != nil {
			return 0, err
		}
		pruned, ok := prune(opts.FilterPredicate(), props)
		if !ok {
			return 0, nil
		}
		if w, err = where(pruned); err != nil {
			return 0, err
		}
	}

	resp, err := b.client.Batch().ObjectsBatchDeleter().
		WithClassName(b.class).
		WithWhere(w).
		WithOutput("minimal").
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete objects: %w", err)
	}
	if resp.Results == nil {
		return -1, nil
	}
	if resp.Results.Failed > 0 {
		return resp.Results.Successful, fmt.Errorf("failed to delete %d objects", resp.Results.Failed)
	}
	return resp.Results.Successful, nil
}

func (b *Backend) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	ok, err := b.client.Data().Checker().WithClassName(b.class).WithID(id).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check object %s: %w", id, err)
	}
	return ok, nil
}

func (b *Backend) Count(ctx context.Context) (int64, error) {
	resp, err := b.client.GraphQL().Aggregate().
		WithClassName(b.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count objects: %w", err)
	}
	if err := graphQLError(resp); err != nil {
		return 0, err
	}
	return parseCount(resp, b.class)
}

// CreateTables creates the class with an HNSW cosine index and no
// vectorizer. Null state is indexed so "!=" can exclude missing fields.
func (b *Backend) CreateTables(ctx context.Context) error {
	exists, err := b.TablesExist(ctx)
	if err != nil || exists {
		return err
	}
	class := &models.Class{
		Class:           b.class,
		Description:     "Government documents",
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]any{
			"distance": "cosine",
		},
		InvertedIndexConfig: &models.InvertedIndexConfig{IndexNullState: true},
		Properties: []*models.Property{
			{Name: propContents, DataType: []string{typeText}},
			{Name: propMetadata, DataType: []string{typeText}, IndexFilterable: helpers.PtrOf(false), IndexSearchable: helpers.PtrOf(false)},
			{Name: propCreatedAt, DataType: []string{"date"}},
			{Name: propSeq, DataType: []string{"int"}},
		},
	}
	if err := b.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create class %s: %w", b.class, err)
	}
	b.resetProperties()
	return nil
}

func (b *Backend) DropTables(ctx context.Context) error {
	exists, err := b.TablesExist(ctx)
	if err != nil || !exists {
		return err
	}
	if err := b.client.Schema().ClassDeleter().WithClassName(b.class).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete class %s: %w", b.class, err)
	}
	b.resetProperties()
	return nil
}

func (b *Backend) TablesExist(ctx context.Context) (bool, error) {
	exists, err := b.client.Schema().ClassExistenceChecker().WithClassName(b.class).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check class %s: %w", b.class, err)
	}
	return exists, nil
}

// CreateIndex verifies the class exists. Weaviate builds the HNSW index
// with the class and maintains it on every write.
func (b *Backend) CreateIndex(ctx context.Context) error {
	exists, err := b.TablesExist(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("class %s does not exist", b.class)
	}
	return nil
}

// DropIndex is not supported: the vector index lives as long as the class.
func (b *Backend) DropIndex(context.Context) error {
	return fmt.Errorf("weaviate cannot drop the vector index of class %s; drop the tables instead", b.class)
}

// Info reports the server version, the class and its vector index type.
func (b *Backend) Info(ctx context.Context) (retrieval.Info, error) {
	info := retrieval.Info{Backend: b.Name(), Extra: map[string]any{
		"class":     b.class,
		"dimension": b.dim,
	}}

	meta, err := b.client.Misc().MetaGetter().Do(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to read weaviate meta: %w", err)
	}
	info.Version = meta.Version
	info.Connected = true

	exists, err := b.TablesExist(ctx)
	if err != nil || !exists {
		return info, err
	}
	class, err := b.client.Schema().ClassGetter().WithClassName(b.class).Do(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to read class %s: %w", b.class, err)
	}
	info.Tables = []string{b.class}
	info.Indexes = []string{class.VectorIndexType}
	info.Extra["properties"] = len(class.Properties)
	return info, nil
}

func (b *Backend) Health(ctx context.Context) error {
	ready, err := b.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate readiness check failed: %w", err)
	}
	if !ready {
		return fmt.Errorf("weaviate is not ready")
	}
	return nil
}

// Close is a no-op; the client holds no persistent connections.
func (b *Backend) Close() error {
	return nil
}

func graphQLError(resp *models.GraphQLResponse) error {
	if resp == nil || len(resp.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("weaviate query error: %s", resp.Errors[0].Message)
}

func parseResults(resp *models.GraphQLResponse, class string) ([]retrieval.Result, error) {
	get, _ := resp.Data["Get"].(map[string]any)
	items, _ := get[class].([]any)

	results := make([]retrieval.Result, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		additional, _ := obj["_additional"].(map[string]any)
		res := retrieval.Result{}
		res.Record.ID, _ = additional["id"].(string)
		res.Record.Contents, _ = obj[propContents].(string)
		res.Distance, _ = additional["distance"].(float64)
		if seq, ok := obj[propSeq].(float64); ok {
			res.Seq = int64(seq)
		}
		res.Record.Metadata = map[string]any{}
		if raw, _ := obj[propMetadata].(string); raw != "" {
			if err := json.Unmarshal([]byte(raw), &res.Record.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata of %s: %w", res.Record.ID, err)
			}
		}
		results = append(results, res)
	}
	return results, nil
}

func parseCount(resp *models.GraphQLResponse, class string) (int64, error) {
	agg, _ := resp.Data["Aggregate"].(map[string]any)
	groups, _ := agg[class].([]any)
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]any)
	meta, _ := group["meta"].(map[string]any)
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate response for class %s", class)
	}
	return int64(count), nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

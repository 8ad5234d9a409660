// Package qdrant is a retrieval.Backend on the Qdrant vector database over
// gRPC. Metadata lives in a nested payload object so predicates address it
// as "metadata.<field>".
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	qd "github.com/qdrant/go-client/qdrant"

	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// Config holds Qdrant backend configuration.
type Config struct {
	// Qdrant server URL. The port is the gRPC port.
	// Example: "http://localhost:6334"
	URL string

	// CollectionName defaults to "documents".
	CollectionName string

	// Optional API key for authentication
	APIKey string

	// VectorDimension must match the embedding model output.
	VectorDimension int

	// IndexedFields are metadata fields that get a keyword payload index
	// on CreateIndex. Defaults to sender and addressed_to.
	IndexedFields []string

	// SkipVersionCheck disables the client-server compatibility probe
	// made while connecting.
	SkipVersionCheck bool
}

// Backend implements retrieval.Backend for Qdrant.
type Backend struct {
	client     *qd.Client
	collection string
	dim        int
	fields     []string
	now        func() time.Time
}

var _ retrieval.Backend = (*Backend)(nil)

// New creates a Qdrant backend.
//
// Example:
//
//	backend, err := qdrant.New(qdrant.Config{
//	    URL:             "http://localhost:6334",
//	    VectorDimension: 1536,
//	})
func New(cfg Config) (*Backend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	if cfg.CollectionName == "" {
		cfg.CollectionName = "documents"
	}
	if cfg.VectorDimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", cfg.VectorDimension)
	}
	if cfg.IndexedFields == nil {
		cfg.IndexedFields = []string{"sender", "addressed_to"}
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant URL: %w", err)
	}
	if parsedURL.Hostname() == "" {
		return nil, fmt.Errorf("invalid qdrant URL %q: missing host", cfg.URL)
	}

	port := 6334
	if parsedURL.Port() != "" {
		p, err := strconv.Atoi(parsedURL.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	client, err := qd.NewClient(&qd.Config{
		Host:   parsedURL.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: parsedURL.Scheme == "https",

		SkipCompatibilityCheck: cfg.SkipVersionCheck,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &Backend{
		client:     client,
		collection: cfg.CollectionName,
		dim:        cfg.VectorDimension,
		fields:     cfg.IndexedFields,
		now:        time.Now,
	}, nil
}

func (b *Backend) Name() string { return "qdrant" }

// Upsert writes points keyed by the record UUID. Each point carries a seq
// payload from the wall clock so equal scores keep insertion order; a
// replaced point keeps the seq it was first written with.
func (b *Backend) Upsert(ctx context.Context, records []retrieval.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qd.PointStruct, 0, len(records))
	for _, r := range records {
		created, err := retrieval.IDTime(r.ID)
		if err != nil {
			return err
		}
		if len(r.Embedding) != b.dim {
			return fmt.Errorf("record %s has %d dimensions, collection expects %d", r.ID, len(r.Embedding), b.dim)
		}
		meta, err := payloadMetadataValue(r.Metadata)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		points = append(points, &qd.PointStruct{
			Id:      qd.NewID(r.ID),
			Vectors: qd.NewVectors(r.Embedding...),
			Payload: map[string]*qd.Value{
				payloadContents:  qd.NewValueString(r.Contents),
				payloadMetadata:  meta,
				payloadCreatedAt: qd.NewValueString(formatCreated(created)),
			},
		})
	}

	stored, err := b.storedSeqs(ctx, points)
	if err != nil {
		return err
	}
	assignSeqs(points, stored, b.now().UnixNano())

	_, err = b.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: b.collection,
		Points:         points,
		Wait:           qd.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search queries with the filter applied inside the HNSW traversal.
// Qdrant reports cosine similarity; distance is 1 - score.
func (b *Backend) Search(ctx context.Context, q retrieval.Query) ([]retrieval.Result, error) {
	if len(q.Vector) != b.dim {
		return nil, fmt.Errorf("query has %d dimensions, collection expects %d", len(q.Vector), b.dim)
	}
	filter, err := buildFilter(q.Predicate, q.TimeRange)
	if err != nil {
		return nil, err
	}

	limit := uint64(10)
	if q.Limit > 0 {
		limit = uint64(q.Limit) * 2
	}
	points, err := b.client.Query(ctx, &qd.QueryPoints{
		CollectionName: b.collection,
		Query:          qd.NewQuery(q.Vector...),
		WithPayload:    qd.NewWithPayload(true),
		Limit:          &limit,
		Filter:         filter,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	results := make([]retrieval.Result, 0, len(points))
	for _, p := range points {
		rec, seq := pointRecord(p.GetId(), p.GetPayload())
		results = append(results, retrieval.Result{
			Record:   rec,
			Distance: 1 - float64(p.GetScore()),
			Seq:      seq,
		})
	}
	return results, nil
}

// Delete counts the matching points, then deletes them by selector.
func (b *Backend) Delete(ctx context.Context, opts retrieval.DeleteOptions) (int64, error) {
	var filter *qd.Filter
	switch {
	case opts.All:
		filter = &qd.Filter{}
	case len(opts.IDs) > 0:
		ids := make([]*qd.PointId, 0, len(opts.IDs))
		for _, id := range opts.IDs {
			if _, err := uuid.Parse(id); err == nil {
				ids = append(ids, qd.NewID(id))
			}
		}
		if len(ids) == 0 {
			return 0, nil
		}
		filter = &qd.Filter{Must: []*qd.Condition{qd.NewHasID(ids...)}}
	default:
		var err error
		filter, err = buildFilter(opts.FilterPredicate(), retrieval.TimeRange{})
		if err != nil {
			return 0, err
		}
	}

	n, err := b.client.Count(ctx, &qd.CountPoints{
		CollectionName: b.collection,
		Filter:         filter,
		Exact:          qd.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points to delete: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	_, err = b.client.Delete(ctx, &qd.DeletePoints{
		CollectionName: b.collection,
		Points:         qd.NewPointsSelectorFilter(filter),
		Wait:           qd.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete points: %w", err)
	}
	return int64(n), nil
}

// storedSeqs returns the seq payload of the points that already exist.
func (b *Backend) storedSeqs(ctx context.Context, points []*qd.PointStruct) (map[string]int64, error) {
	ids := make([]*qd.PointId, 0, len(points))
	for _, p := range points {
		ids = append(ids, p.GetId())
	}
	existing, err := b.client.Get(ctx, &qd.GetPoints{
		CollectionName: b.collection,
		Ids:            ids,
		WithPayload:    qd.NewWithPayloadInclude(payloadSeq),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read existing points: %w", err)
	}
	seqs := make(map[string]int64, len(existing))
	for _, p := range existing {
		if v, ok := p.GetPayload()[payloadSeq]; ok {
			seqs[p.GetId().GetUuid()] = v.GetIntegerValue()
		}
	}
	return seqs, nil
}

// assignSeqs sets the seq payload: the stored value for known points,
// base plus the batch position for new ones.
func assignSeqs(points []*qd.PointStruct, stored map[string]int64, base int64) {
	for i, p := range points {
		seq, ok := stored[p.GetId().GetUuid()]
		if !ok {
			seq = base + int64(i)
		}
		p.Payload[payloadSeq] = qd.NewValueInt(seq)
	}
}

func (b *Backend) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	points, err := b.client.Get(ctx, &qd.GetPoints{
		CollectionName: b.collection,
		Ids:            []*qd.PointId{qd.NewID(id)},
		WithPayload:    qd.NewWithPayload(false),
	})
	if err != nil {
		return false, fmt.Errorf("failed to get point %s: %w", id, err)
	}
	return len(points) > 0, nil
}

func (b *Backend) Count(ctx context.Context) (int64, error) {
	n, err := b.client.Count(ctx, &qd.CountPoints{
		CollectionName: b.collection,
		Exact:          qd.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int64(n), nil
}

// CreateTables creates the collection with cosine distance if missing.
func (b *Backend) CreateTables(ctx context.Context) error {
	exists, err := b.TablesExist(ctx)
	if err != nil || exists {
		return err
	}
	err = b.client.CreateCollection(ctx, &qd.CreateCollection{
		CollectionName: b.collection,
		VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
			Size:     uint64(b.dim),
			Distance: qd.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", b.collection, err)
	}
	return nil
}

func (b *Backend) DropTables(ctx context.Context) error {
	exists, err := b.TablesExist(ctx)
	if err != nil || !exists {
		return err
	}
	if err := b.client.DeleteCollection(ctx, b.collection); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", b.collection, err)
	}
	return nil
}

func (b *Backend) TablesExist(ctx context.Context) (bool, error) {
	exists, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", b.collection, err)
	}
	return exists, nil
}

// CreateIndex adds payload indexes for created_at and the configured
// metadata fields. The vector HNSW index is built by Qdrant itself.
func (b *Backend) CreateIndex(ctx context.Context) error {
	existing, err := b.payloadIndexes(ctx)
	if err != nil {
		return err
	}
	for name, fieldType := range b.indexSpecs() {
		if slices.Contains(existing, name) {
			continue
		}
		_, err := b.client.CreateFieldIndex(ctx, &qd.CreateFieldIndexCollection{
			CollectionName: b.collection,
			FieldName:      name,
			FieldType:      qd.PtrOf(fieldType),
			Wait:           qd.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("failed to create payload index %s: %w", name, err)
		}
	}
	return nil
}

func (b *Backend) DropIndex(ctx context.Context) error {
	existing, err := b.payloadIndexes(ctx)
	if err != nil {
		return err
	}
	for name := range b.indexSpecs() {
		if !slices.Contains(existing, name) {
			continue
		}
		_, err := b.client.DeleteFieldIndex(ctx, &qd.DeleteFieldIndexCollection{
			CollectionName: b.collection,
			FieldName:      name,
			Wait:           qd.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("failed to drop payload index %s: %w", name, err)
		}
	}
	return nil
}

func (b *Backend) indexSpecs() map[string]qd.FieldType {
	specs := map[string]qd.FieldType{payloadCreatedAt: qd.FieldType_FieldTypeDatetime}
	for _, f := range b.fields {
		specs[metadataKey(f)] = qd.FieldType_FieldTypeKeyword
	}
	return specs
}

func (b *Backend) payloadIndexes(ctx context.Context) ([]string, error) {
	info, err := b.client.GetCollectionInfo(ctx, b.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", b.collection, err)
	}
	names := make([]string, 0, len(info.GetPayloadSchema()))
	for name := range info.GetPayloadSchema() {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Info reports the server version, collection status and payload indexes.
func (b *Backend) Info(ctx context.Context) (retrieval.Info, error) {
	info := retrieval.Info{Backend: b.Name(), Extra: map[string]any{
		"collection": b.collection,
		"dimension":  b.dim,
	}}

	health, err := b.client.HealthCheck(ctx)
	if err != nil {
		return info, fmt.Errorf("qdrant health check failed: %w", err)
	}
	info.Version = health.GetVersion()
	info.Connected = true

	exists, err := b.TablesExist(ctx)
	if err != nil || !exists {
		return info, err
	}
	info.Tables = []string{b.collection}

	coll, err := b.client.GetCollectionInfo(ctx, b.collection)
	if err != nil {
		return info, fmt.Errorf("failed to read collection %s: %w", b.collection, err)
	}
	info.Extra["status"] = coll.GetStatus().String()
	info.Extra["points"] = coll.GetPointsCount()
	info.Indexes, err = b.payloadIndexes(ctx)
	return info, err
}

func (b *Backend) Health(ctx context.Context) error {
	if _, err := b.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

// payloadMetadataValue converts metadata into a payload struct. The JSON
// round trip normalises Go types the payload codec does not accept, such
// as []string.
func payloadMetadataValue(meta map[string]any) (*qd.Value, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	var normalised map[string]any
	if err := json.Unmarshal(raw, &normalised); err != nil {
		return nil, fmt.Errorf("failed to normalise metadata: %w", err)
	}
	fields, err := qd.TryValueMap(normalised)
	if err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return qd.NewValueFromFields(fields), nil
}

func pointRecord(id *qd.PointId, payload map[string]*qd.Value) (retrieval.Record, int64) {
	rec := retrieval.Record{
		ID:       id.GetUuid(),
		Contents: payload[payloadContents].GetStringValue(),
		Metadata: map[string]any{},
	}
	for k, v := range payload[payloadMetadata].GetStructValue().GetFields() {
		rec.Metadata[k] = fromValue(v)
	}
	return rec, payload[payloadSeq].GetIntegerValue()
}

// fromValue converts a payload value back into the JSON-shaped Go value.
func fromValue(v *qd.Value) any {
	switch k := v.GetKind().(type) {
	case *qd.Value_BoolValue:
		return k.BoolValue
	case *qd.Value_IntegerValue:
		return float64(k.IntegerValue)
	case *qd.Value_DoubleValue:
		return k.DoubleValue
	case *qd.Value_StringValue:
		return k.StringValue
	case *qd.Value_ListValue:
		out := make([]any, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			out = append(out, fromValue(item))
		}
		return out
	case *qd.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.GetFields()))
		for key, item := range k.StructValue.GetFields() {
			out[key] = fromValue(item)
		}
		return out
	}
	return nil
}

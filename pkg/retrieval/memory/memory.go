// Package memory is an in-process retrieval.Backend. It does exact
// brute-force cosine search and is meant for tests, demos and small corpora.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

type entry struct {
	record retrieval.Record
	seq    int64
}

// Backend keeps records in a map guarded by a RWMutex.
type Backend struct {
	mu      sync.RWMutex
	records map[string]*entry
	nextSeq int64
	tables  bool
	indexed bool
}

var _ retrieval.Backend = (*Backend)(nil)

// New returns an empty backend with its table already created.
func New() *Backend {
	return &Backend{records: make(map[string]*entry), tables: true}
}

func (b *Backend) Name() string { return "memory" }

// Upsert replaces records by ID. A replaced record keeps its original
// insertion sequence.
func (b *Backend) Upsert(_ context.Context, records []retrieval.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tables {
		return fmt.Errorf("memory: table does not exist")
	}
	for _, r := range records {
		stored := retrieval.Record{
			ID:        r.ID,
			Contents:  r.Contents,
			Metadata:  maps.Clone(r.Metadata),
			Embedding: append([]float32(nil), r.Embedding...),
		}
		if e, ok := b.records[r.ID]; ok {
			e.record = stored
			continue
		}
		b.nextSeq++
		b.records[r.ID] = &entry{record: stored, seq: b.nextSeq}
	}
	return nil
}

// Search scans every record that passes the predicate and time range.
func (b *Backend) Search(ctx context.Context, q retrieval.Query) ([]retrieval.Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.tables {
		return nil, fmt.Errorf("memory: table does not exist")
	}

	results := make([]retrieval.Result, 0, len(b.records))
	for _, e := range b.records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !q.TimeRange.IsZero() {
			created, err := retrieval.IDTime(e.record.ID)
			if err != nil || !q.TimeRange.Contains(created) {
				continue
			}
		}
		if !q.Predicate.Match(e.record.Metadata) {
			continue
		}
		if len(e.record.Embedding) != len(q.Vector) {
			return nil, fmt.Errorf("memory: query has %d dimensions, record %s has %d",
				len(q.Vector), e.record.ID, len(e.record.Embedding))
		}
		results = append(results, retrieval.Result{
			Record: retrieval.Record{
				ID:       e.record.ID,
				Contents: e.record.Contents,
				Metadata: maps.Clone(e.record.Metadata),
			},
			Distance: retrieval.CosineDistance(q.Vector, e.record.Embedding),
			Seq:      e.seq,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Seq < results[j].Seq
	})
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func (b *Backend) Delete(_ context.Context, opts retrieval.DeleteOptions) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int64
	switch {
	case opts.All:
		n = int64(len(b.records))
		b.records = make(map[string]*entry)
	case len(opts.IDs) > 0:
		for _, id := range opts.IDs {
			if _, ok := b.records[id]; ok {
				delete(b.records, id)
				n++
			}
		}
	default:
		p := opts.FilterPredicate()
		for id, e := range b.records {
			if p.Match(e.record.Metadata) {
				delete(b.records, id)
				n++
			}
		}
	}
	return n, nil
}

func (b *Backend) Exists(_ context.Context, id string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.records[id]
	return ok, nil
}

func (b *Backend) Count(context.Context) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int64(len(b.records)), nil
}

func (b *Backend) CreateTables(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables = true
	return nil
}

// DropTables removes every record and the index.
func (b *Backend) DropTables(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = make(map[string]*entry)
	b.tables = false
	b.indexed = false
	return nil
}

func (b *Backend) TablesExist(context.Context) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tables, nil
}

// CreateIndex only flips a flag; search is always exact.
func (b *Backend) CreateIndex(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tables {
		return fmt.Errorf("memory: table does not exist")
	}
	b.indexed = true
	return nil
}

func (b *Backend) DropIndex(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indexed = false
	return nil
}

func (b *Backend) Info(context.Context) (retrieval.Info, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	info := retrieval.Info{
		Backend:   b.Name(),
		Connected: true,
		Extra:     map[string]any{"records": len(b.records)},
	}
	if b.tables {
		info.Tables = []string{"documents"}
	}
	if b.indexed {
		info.Indexes = []string{"documents_exact"}
	}
	return info, nil
}

func (b *Backend) Health(context.Context) error { return nil }

func (b *Backend) Close() error { return nil }

// Package sqlite is a single-file retrieval.Backend on SQLite (pure Go, no
// cgo). Metadata predicates and the time range are evaluated in SQL; the
// surviving rows are ranked by exact cosine distance in process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Config holds backend configuration.
type Config struct {
	// Path of the database file. ":memory:" keeps everything in process.
	Path string

	// TableName defaults to "documents".
	TableName string

	// VectorDimension must match the embedding model output.
	VectorDimension int
}

// Backend implements retrieval.Backend on database/sql.
type Backend struct {
	db    *sql.DB
	path  string
	table string
	ident string
	index string
	dim   int
}

var _ retrieval.Backend = (*Backend)(nil)

// New opens (or creates) the database file with WAL journaling.
//
// Example:
//
//	backend, err := sqlite.New(sqlite.Config{
//	    Path:            "data/govdocs.db",
//	    VectorDimension: 768,
//	})
func New(cfg Config) (*Backend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if cfg.TableName == "" {
		cfg.TableName = "documents"
	}
	if !identRe.MatchString(cfg.TableName) {
		return nil, fmt.Errorf("invalid table name %q", cfg.TableName)
	}
	if cfg.VectorDimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", cfg.VectorDimension)
	}

	memory := cfg.Path == ":memory:"
	dsn := cfg.Path
	if !memory {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	return &Backend{
		db:    db,
		path:  cfg.Path,
		table: cfg.TableName,
		ident: `"` + cfg.TableName + `"`,
		index: cfg.TableName + "_created_idx",
		dim:   cfg.VectorDimension,
	}, nil
}

func (b *Backend) Name() string { return "sqlite" }

// Upsert writes records in one transaction. A replaced row keeps its seq.
func (b *Backend) Upsert(ctx context.Context, records []retrieval.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, created_at, metadata, contents, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			metadata = excluded.metadata,
			contents = excluded.contents,
			embedding = excluded.embedding`, b.ident))
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		created, err := retrieval.IDTime(r.ID)
		if err != nil {
			return err
		}
		if len(r.Embedding) != b.dim {
			return fmt.Errorf("record %s has %d dimensions, table expects %d", r.ID, len(r.Embedding), b.dim)
		}
		meta, err := json.Marshal(nonNil(r.Metadata))
		if err != nil {
			return fmt.Errorf("marshaling metadata for record %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, created.UnixNano(), string(meta), r.Contents, retrieval.EncodeVector(r.Embedding)); err != nil {
			return fmt.Errorf("upserting record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Search filters in SQL, then ranks every surviving row by cosine distance.
func (b *Backend) Search(ctx context.Context, q retrieval.Query) ([]retrieval.Result, error) {
	if len(q.Vector) != b.dim {
		return nil, fmt.Errorf("query has %d dimensions, table expects %d", len(q.Vector), b.dim)
	}
	where, args, err := whereClause(q.Predicate, q.TimeRange)
	if err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, contents, metadata, seq, embedding FROM %s %s", b.ident, where), args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var results []retrieval.Result
	for rows.Next() {
		var (
			res  retrieval.Result
			meta string
			blob []byte
		)
		if err := rows.Scan(&res.Record.ID, &res.Record.Contents, &meta, &res.Seq, &blob); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &res.Record.Metadata); err != nil {
			return nil, fmt.Errorf("parsing metadata of %s: %w", res.Record.ID, err)
		}
		vec, err := retrieval.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding of %s: %w", res.Record.ID, err)
		}
		res.Distance = retrieval.CosineDistance(q.Vector, vec)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
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

func (b *Backend) Delete(ctx context.Context, opts retrieval.DeleteOptions) (int64, error) {
	var (
		query string
		args  []any
	)
	switch {
	case opts.All:
		query = "DELETE FROM " + b.ident
	case len(opts.IDs) > 0:
		query = fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", b.ident, placeholders(len(opts.IDs)))
		for _, id := range opts.IDs {
			args = append(args, id)
		}
	default:
		where, whereArgs, err := whereClause(opts.FilterPredicate(), retrieval.TimeRange{})
		if err != nil {
			return 0, err
		}
		query = fmt.Sprintf("DELETE FROM %s %s", b.ident, where)
		args = whereArgs
	}

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}

func (b *Backend) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := b.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = ?)", b.ident), id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking record %s: %w", id, err)
	}
	return ok, nil
}

func (b *Backend) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := b.db.QueryRowContext(ctx, "SELECT count(*) FROM "+b.ident).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func (b *Backend) CreateTables(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			contents TEXT NOT NULL,
			embedding BLOB NOT NULL
		)`, b.ident))
	if err != nil {
		return fmt.Errorf("creating table %s: %w", b.table, err)
	}
	return nil
}

func (b *Backend) DropTables(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+b.ident); err != nil {
		return fmt.Errorf("dropping table %s: %w", b.table, err)
	}
	return nil
}

func (b *Backend) TablesExist(ctx context.Context) (bool, error) {
	var ok bool
	err := b.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)", b.table).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", b.table, err)
	}
	return ok, nil
}

// CreateIndex indexes created_at for time range scans. Vectors are always
// compared exhaustively.
func (b *Backend) CreateIndex(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s" ON %s (created_at)`, b.index, b.ident))
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	return nil
}

func (b *Backend) DropIndex(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS "%s"`, b.index)); err != nil {
		return fmt.Errorf("dropping index: %w", err)
	}
	return nil
}

func (b *Backend) Info(ctx context.Context) (retrieval.Info, error) {
	info := retrieval.Info{Backend: b.Name(), Extra: map[string]any{
		"path":      b.path,
		"table":     b.table,
		"dimension": b.dim,
	}}
	if err := b.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&info.Version); err != nil {
		return info, fmt.Errorf("reading sqlite version: %w", err)
	}
	info.Connected = true

	exists, err := b.TablesExist(ctx)
	if err != nil || !exists {
		return info, err
	}
	info.Tables = []string{b.table}

	rows, err := b.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL ORDER BY name", b.table)
	if err != nil {
		return info, fmt.Errorf("listing indexes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return info, fmt.Errorf("listing indexes: %w", err)
		}
		info.Indexes = append(info.Indexes, name)
	}
	return info, rows.Err()
}

func (b *Backend) Health(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

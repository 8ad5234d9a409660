//go:build integration

package pgvector

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval/retrievaltest"
)

// startPostgres runs pgvector/pgvector:pg16 and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "govdocs",
				"POSTGRES_PASSWORD": "govdocs",
				"POSTGRES_DB":       "govdocs",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("postgres://govdocs:govdocs@%s:%s/govdocs?sslmode=disable", host, port.Port())
}

func TestIntegrationBackendContract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	dsn := startPostgres(t)

	var n atomic.Int64
	retrievaltest.Run(t, func(t *testing.T) retrieval.Backend {
		b, err := New(context.Background(), Config{
			ConnectionString: dsn,
			TableName:        fmt.Sprintf("documents_%d", n.Add(1)),
			VectorDimension:  retrievaltest.Dim,
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		t.Cleanup(func() {
			_ = b.DropTables(context.Background())
			_ = b.Close()
		})
		return b
	})
}

func TestIntegrationIndexLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	dsn := startPostgres(t)

	for _, indexType := range []string{IndexHNSW, IndexIVFFlat} {
		t.Run(indexType, func(t *testing.T) {
			b, err := New(ctx, Config{
				ConnectionString: dsn,
				TableName:        "lifecycle_" + indexType,
				VectorDimension:  retrievaltest.Dim,
				IndexType:        indexType,
			})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer b.Close()

			if ok, err := b.TablesExist(ctx); err != nil || ok {
				t.Fatalf("TablesExist() before create = %v, %v", ok, err)
			}
			if err := b.CreateTables(ctx); err != nil {
				t.Fatalf("CreateTables() error = %v", err)
			}
			for range 2 {
				if err := b.CreateIndex(ctx); err != nil {
					t.Fatalf("CreateIndex() error = %v", err)
				}
			}
			info, err := b.Info(ctx)
			if err != nil {
				t.Fatalf("Info() error = %v", err)
			}
			if !slices.Contains(info.Indexes, b.index) {
				t.Errorf("indexes = %v, want %s", info.Indexes, b.index)
			}
			if info.Extra["pgvector_version"] == nil {
				t.Error("pgvector version missing from info")
			}

			if err := b.DropIndex(ctx); err != nil {
				t.Fatalf("DropIndex() error = %v", err)
			}
			info, _ = b.Info(ctx)
			if slices.Contains(info.Indexes, b.index) {
				t.Errorf("index still present after drop: %v", info.Indexes)
			}
			if err := b.DropTables(ctx); err != nil {
				t.Fatalf("DropTables() error = %v", err)
			}
			if ok, _ := b.TablesExist(ctx); ok {
				t.Error("table still exists after drop")
			}
		})
	}
}

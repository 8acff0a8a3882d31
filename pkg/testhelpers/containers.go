// Package testhelpers provides shared test infrastructure: a pooled
// Postgres container for driver integration tests and a func-field mock
// of the storage contract for unit tests.
package testhelpers

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/reelsight/reelsight-engine/pkg/metrics"
	"github.com/reelsight/reelsight-engine/pkg/storage/postgres"
)

// PostgresTestImage ships the pgvector extension preinstalled, which the
// transcript embedding table needs.
const PostgresTestImage = "pgvector/pgvector:pg16"

// PostgresDB holds a shared test container and an opened, migrated store.
type PostgresDB struct {
	Container testcontainers.Container
	Store     *postgres.Store
	ConnStr   string
}

var (
	sharedPostgres     *PostgresDB
	sharedPostgresOnce sync.Once
	sharedPostgresErr  error
)

// GetPostgresDB returns a shared Postgres container with migrations
// applied. The container is created once and reused across all tests in
// the run.
func GetPostgresDB(t *testing.T) *PostgresDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedPostgresOnce.Do(func() {
		sharedPostgres, sharedPostgresErr = setupPostgresDB()
	})

	if sharedPostgresErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedPostgresErr)
	}

	return sharedPostgres
}

func setupPostgresDB() (*PostgresDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "reelsight_test",
			"POSTGRES_USER":     "reelsight",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://reelsight:test_password@%s:%s/reelsight_test?sslmode=disable",
		host, port.Port())

	store := postgres.New(postgres.Config{URL: connStr}, metrics.New(), zap.NewNop())
	var openErr error
	for i := 0; i < 10; i++ {
		if openErr = store.Open(ctx); openErr == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if openErr != nil {
		return nil, fmt.Errorf("failed to open store: %w", openErr)
	}

	if err := store.Migrate(migrationsDir("postgres")); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresDB{
		Container: container,
		Store:     store,
		ConnStr:   connStr,
	}, nil
}

// migrationsDir resolves the repo-level migrations directory for the given
// backend relative to this source file, so tests work from any package dir.
func migrationsDir(backend string) string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "migrations", backend)
}

// MigrationsDir exposes the resolved migrations path for driver tests.
func MigrationsDir(backend string) string {
	return migrationsDir(backend)
}

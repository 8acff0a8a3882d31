// Package postgres implements the storage contract on PostgreSQL via a
// pgx connection pool. The pool lives for the store's lifetime: Open
// creates it once and every logical operation is a pool checkout, never a
// pool creation. This driver hosts the transcript vector column and its
// nearest-neighbor index, so it reports the vector-search capability.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/logging"
	"github.com/reelsight/reelsight-engine/pkg/metrics"
	"github.com/reelsight/reelsight-engine/pkg/sqlguard"
	"github.com/reelsight/reelsight-engine/pkg/storage"
)

// Config holds Postgres connection configuration.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// QueryTimeout bounds every logical operation. Zero means 10s.
	QueryTimeout time.Duration
}

// Store is the Postgres driver. Connection state is owned by the instance;
// two stores never share lifecycle flags.
type Store struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Engine

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// New creates a Postgres store. Open must be called before use.
func New(cfg Config, engine *metrics.Engine, logger *zap.Logger) *Store {
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if engine == nil {
		engine = metrics.New()
	}
	return &Store{
		cfg:     cfg,
		logger:  logger.Named("postgres"),
		metrics: engine,
	}
}

// Open establishes the connection pool. Idempotent: a second call on an
// open store is a no-op.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		return nil
	}

	poolConfig, err := pgxpool.ParseConfig(s.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = s.cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 25
	}
	poolConfig.MaxConnLifetime = s.cfg.MaxConnLifetime
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = time.Hour
	}
	poolConfig.MaxConnIdleTime = s.cfg.MaxConnIdleTime
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = 30 * time.Minute
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.pool = pool
	s.logger.Info("connected",
		zap.String("url", logging.SanitizeConnectionString(s.cfg.URL)),
		zap.Int32("max_conns", poolConfig.MaxConns))
	return nil
}

// Close releases the pool. Idempotent and safe before Open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool == nil {
		return nil
	}
	s.pool.Close()
	s.pool = nil
	s.logger.Info("closed")
	return nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Capabilities implements storage.Store.
func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{VectorSearch: true}
}

// conn returns the pool or ErrNotConnected.
func (s *Store) conn() (*pgxpool.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == nil {
		return nil, apperrors.ErrNotConnected
	}
	return s.pool, nil
}

// opCtx applies the configured per-operation timeout.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.QueryTimeout)
}

// Query is the raw parameterized escape hatch. String args are screened
// for injection patterns; hits are logged as diagnostics (values stay
// bound either way).
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]storage.Row, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}

	for _, hit := range sqlguard.CheckParams(args) {
		s.logger.Warn("injection pattern in raw query parameter",
			zap.Int("position", hit.Position),
			zap.String("fingerprint", hit.Fingerprint))
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []storage.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(storage.Row, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

// Exec runs a raw parameterized statement.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	pool, err := s.conn()
	if err != nil {
		return 0, err
	}

	for _, hit := range sqlguard.CheckParams(args) {
		s.logger.Warn("injection pattern in raw exec parameter",
			zap.Int("position", hit.Position),
			zap.String("fingerprint", hit.Fingerprint))
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tag, err := pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Migrate runs pending versioned migrations. It opens a short-lived
// database/sql handle because golang-migrate speaks database/sql, not pgx
// pools. Safe to call repeatedly; only pending migrations execute.
func (s *Store) Migrate(migrationsPath string) error {
	db, err := sql.Open("pgx", s.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to open migration handle: %w", err)
	}
	defer db.Close()

	return runMigrations(db, migrationsPath, s.logger)
}

// Ensure Store implements the contract at compile time.
var _ storage.Store = (*Store)(nil)

// Package sqlite implements the storage contract on an embedded SQLite
// database via modernc.org/sqlite. The database file is auto-created and
// the production pragmas (foreign_keys, WAL, busy_timeout) are applied on
// open. This driver hosts no vector index: the vector-search capability is
// off and the embedding layer degrades to unavailable.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/metrics"
	"github.com/reelsight/reelsight-engine/pkg/sqlguard"
	"github.com/reelsight/reelsight-engine/pkg/storage"
)

// Config holds SQLite configuration.
type Config struct {
	// Path is the database file path. Parent directories are created.
	Path string
	// BusyTimeout is the PRAGMA busy_timeout in milliseconds. Zero means
	// 10000.
	BusyTimeout int
	// QueryTimeout bounds every logical operation. Zero means 10s.
	QueryTimeout time.Duration
}

// Store is the SQLite driver. Connection state is owned per instance.
type Store struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Engine

	mu sync.Mutex
	db *sql.DB
}

// New creates a SQLite store. Open must be called before use.
func New(cfg Config, engine *metrics.Engine, logger *zap.Logger) *Store {
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 10_000
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if engine == nil {
		engine = metrics.New()
	}
	return &Store{
		cfg:     cfg,
		logger:  logger.Named("sqlite"),
		metrics: engine,
	}
}

// Open opens the database file, creating parent directories, and applies
// the production pragmas. Idempotent.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	if s.cfg.Path != ":memory:" {
		if dir := filepath.Dir(s.cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", s.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.cfg.BusyTimeout),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	s.logger.Info("opened", zap.String("path", s.cfg.Path))
	return nil
}

// Close closes the database handle. Idempotent and safe before Open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.logger.Info("closed")
	return nil
}

// Ping verifies the handle is usable.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Capabilities implements storage.Store. SQLite has no nearest-neighbor
// index, so vector search reports unavailable rather than brute-forcing.
func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{VectorSearch: false}
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, apperrors.ErrNotConnected
	}
	return s.db, nil
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.QueryTimeout)
}

// Query is the raw parameterized escape hatch.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]storage.Row, error) {
	db, err := s.conn()
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

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []storage.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(storage.Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
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
	db, err := s.conn()
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

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

// Ensure Store implements the contract at compile time.
var _ storage.Store = (*Store)(nil)

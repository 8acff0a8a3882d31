package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/reelsight/reelsight-engine/pkg/config"
	"github.com/reelsight/reelsight-engine/pkg/embeddings"
	"github.com/reelsight/reelsight-engine/pkg/llm"
	"github.com/reelsight/reelsight-engine/pkg/logging"
	"github.com/reelsight/reelsight-engine/pkg/metrics"
	"github.com/reelsight/reelsight-engine/pkg/storage"
	"github.com/reelsight/reelsight-engine/pkg/storage/postgres"
	"github.com/reelsight/reelsight-engine/pkg/storage/sqlite"
)

// Version is set at build time via ldflags
var Version = "dev"

// main opens the configured backend, applies migrations and verifies the
// deployment: it is the migration and health entrypoint for a module that
// is otherwise consumed as a library by the bot and ingestion processes.
func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("storage_backend", cfg.Storage.Backend))

	engine := metrics.New(metrics.WithReferenceAudience(cfg.Metrics.ReferenceAudience))
	store, migrationsPath := buildStore(cfg, engine, logger)

	ctx := context.Background()
	if err := store.Open(ctx); err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	if err := store.Migrate(migrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	if err := store.Ping(ctx); err != nil {
		logger.Fatal("storage health check failed", zap.Error(err))
	}

	client := llm.NewClient(&llm.Config{
		Endpoint:       cfg.OpenAI.BaseURL,
		ChatModel:      cfg.OpenAI.ChatModel,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		APIKey:         cfg.OpenAI.APIKey,
		Timeout:        cfg.OpenAI.Timeout(),
	}, logger)
	if !client.Available() {
		logger.Warn("no OpenAI credential configured, retrieval features disabled")
	}
	embeddingStore := embeddings.NewStore(store, client, logger)

	logger.Info("reelsight-engine ready",
		zap.Bool("vector_search", store.Capabilities().VectorSearch),
		zap.Bool("retrieval", embeddingStore.Available()))
}

// migratableStore is what main needs beyond the storage contract. Both
// drivers satisfy it.
type migratableStore interface {
	storage.Store
	Migrate(migrationsPath string) error
}

func buildStore(cfg *config.Config, engine *metrics.Engine, logger *zap.Logger) (migratableStore, string) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		return postgres.New(postgres.Config{
			URL:            cfg.Storage.Postgres.ConnectionString(),
			MaxConnections: cfg.Storage.Postgres.MaxConnections,
			QueryTimeout:   cfg.Storage.QueryTimeout(),
		}, engine, logger), "migrations/postgres"
	default:
		return sqlite.New(sqlite.Config{
			Path:         cfg.Storage.SQLite.Path,
			BusyTimeout:  cfg.Storage.SQLite.BusyTimeoutMS,
			QueryTimeout: cfg.Storage.QueryTimeout(),
		}, engine, logger), "migrations/sqlite"
	}
}

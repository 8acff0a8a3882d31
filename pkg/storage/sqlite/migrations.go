package sqlite

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrate runs pending versioned migrations against the open database.
// Schema evolution happens here at startup, never on a write path.
func (s *Store) Migrate(migrationsPath string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// m.Close is skipped on purpose: it would close the store's own
	// database handle.
	err = m.Up()
	if err == migrate.ErrNoChange {
		s.logger.Info("No migrations to apply (database up-to-date)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, _ := m.Version()
	s.logger.Info("Applied migrations successfully", zap.Uint("version", newVersion))
	return nil
}

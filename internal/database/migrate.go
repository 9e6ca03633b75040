package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations brings the ledger schema up to date, applying any pending
// up-migrations from the configured directory. Safe to run on every start;
// an already-current schema is not an error.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		dsn,
	)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("ledger schema already current")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrating ledger schema: %w", err)
	}

	ver, dirty, _ := m.Version()
	slog.Info("ledger schema migrated", "version", ver, "dirty", dirty)
	return nil
}

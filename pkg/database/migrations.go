package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for the migration connection
	"go.uber.org/zap"
)

// Migrate brings the schema up to the latest version found in dir. It is
// idempotent: already-applied migrations are skipped. golang-migrate drives
// database/sql while the application pool is pgx-native, so a short-lived
// connection is opened from the DSN here and closed when the run finishes.
func Migrate(dsn, dir string, logger *zap.Logger) error {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	driver, err := pgxmigrate.WithInstance(conn, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "pgx", driver)
	if err != nil {
		return fmt.Errorf("read migrations from %s: %w", dir, err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("Migration cleanup reported errors",
				zap.NamedError("source", srcErr),
				zap.NamedError("database", dbErr))
		}
	}()

	switch err := m.Up(); {
	case err == nil:
		version, _, _ := m.Version()
		logger.Info("Schema migrated", zap.Uint("version", version))
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("Schema already current")
	default:
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

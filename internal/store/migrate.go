package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// migrateUp applies all pending embedded migrations for the given driver.
// The migrate instance is not closed because that would close db.
func migrateUp(db *sql.DB, driverName string) error {
	var (
		fsys   embed.FS
		dir    string
		driver database.Driver
		err    error
	)
	switch driverName {
	case DSNTypeSQLite:
		fsys, dir = sqliteMigrations, "migrations/sqlite"
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case DSNTypePostgres:
		fsys, dir = postgresMigrations, "migrations/postgres"
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		return fmt.Errorf("unsupported migration driver %q", driverName)
	}
	if err != nil {
		slog.Error("Migrations driver init failed", "driver", driverName, "error", err)
		return fmt.Errorf("failed to initialize migration driver: %w", err)
	}

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		slog.Error("Migrations init failed", "driver", driverName, "error", err)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	fromVer, _, _ := m.Version()
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("Migrations up to date", "driver", driverName, "version", fromVer)
			return nil
		}
		slog.Error("Migration failed", "driver", driverName, "error", err)
		return fmt.Errorf("migration execution failed: %w", err)
	}
	toVer, _, _ := m.Version()
	slog.Info("Migrations applied", "driver", driverName, "from_ver", fromVer, "to_ver", toVer)
	return nil
}

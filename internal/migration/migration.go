package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/railzwaylabs/cipherpoll/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Run brings the schema up to date and records the schema state. Postgres
// uses the embedded SQL migrations; sqlite and mysql use AutoMigrate.
func Run(ctx context.Context, conn *gorm.DB, log *zap.Logger) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	log = log.Named("migration")

	cat, err := LoadCatalog()
	if err != nil {
		return err
	}

	if db.IsPostgres(conn) {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(ctx, sqlDB, cat.Latest); err != nil {
			return err
		}
	} else {
		if err := conn.WithContext(ctx).AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	if err := activateSchemaState(ctx, conn, cat.Version(), cat.Checksum); err != nil {
		return err
	}

	log.Info("schema migrated",
		zap.String("driver", conn.Dialector.Name()),
		zap.Uint("version", cat.Latest),
	)
	return nil
}

// RunMigrations applies the embedded postgres migrations while holding the
// migration lock.
func RunMigrations(ctx context.Context, sqlDB *sql.DB, latestVersion uint) error {
	if sqlDB == nil {
		return errors.New("migration database handle is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	return withMigrationLock(ctx, sqlDB, func() error {
		return migrateUp(sqlDB, latestVersion)
	})
}

func migrateUp(sqlDB *sql.DB, latestVersion uint) error {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if _, err := ensureNotDirty(migrator); err != nil {
		return err
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	current, err := ensureNotDirty(migrator)
	if err != nil {
		return err
	}
	if current != latestVersion {
		return fmt.Errorf("schema version mismatch after migrate: got %d want %d", current, latestVersion)
	}
	return nil
}

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", version)
	}
	return version, nil
}

// Package migration brings the schema up to date on startup.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/usagelens/internal/audit/domain"
	managerdomain "github.com/smallbiznis/usagelens/internal/manager/domain"
	uploaddomain "github.com/smallbiznis/usagelens/internal/upload/domain"
	usagemetric "github.com/smallbiznis/usagelens/internal/usagemetric/domain"
	"github.com/smallbiznis/usagelens/pkg/db"
	"gorm.io/gorm"
)

//go:embed sql
var embeddedMigrations embed.FS

// Models lists every table owned by this service, for dialects without
// embedded SQL and for tests.
func Models() []any {
	return []any{
		&usagemetric.MetricRecord{},
		&uploaddomain.UploadMetadata{},
		&managerdomain.ManagerRecord{},
		&auditdomain.AuditLog{},
	}
}

// Run applies pending migrations for dbType. MySQL has no embedded SQL and
// falls back to gorm AutoMigrate.
func Run(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	switch dbType {
	case db.TypeMySQL:
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	case db.TypePostgres, db.TypeSQLite, "":
	default:
		return fmt.Errorf("unsupported database type %q", dbType)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunSQL(sqlDB, dbType)
}

// RunSQL applies the embedded migrations for postgres or sqlite.
func RunSQL(sqlDB *sql.DB, dbType string) error {
	dir := "sql/sqlite"
	if dbType == db.TypePostgres {
		dir = "sql/postgres"
	}

	sub, err := fs.Sub(embeddedMigrations, dir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	var driver database.Driver
	if dbType == db.TypePostgres {
		driver, err = postgres.WithInstance(sqlDB, &postgres.Config{})
	} else {
		driver, err = sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	}
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, dbType, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

package infra

import (
	"fmt"
	"time"

	"cashregister/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported DB_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// NewDatabase opens a GORM connection for the configured driver.
// TranslateError is enabled so unique violations surface as
// gorm.ErrDuplicatedKey on both drivers.
func NewDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres, "":
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// SQLite has a single writer; one connection keeps lock handling
		// inside the driver's busy timeout instead of across the pool.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}
	return db, nil
}

// SQLiteDSN builds a mattn/go-sqlite3 DSN with the pragmas the register
// store relies on: immediate write transactions, WAL and a busy timeout.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=on", path)
}

// RunMigrations creates or updates the schema and then applies the
// constraints GORM tags cannot express.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.RegisterSession{},
		&model.LedgerEntry{},
		&model.OutboxEvent{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL. The statements are valid on both
// PostgreSQL and SQLite.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// Single-open invariant: the check and the insert are one statement.
		{"unique open register session", `
CREATE UNIQUE INDEX IF NOT EXISTS uq_register_sessions_single_open
    ON register_sessions (status)
    WHERE status = 'open'`},
		{"outbox pending scan", `
CREATE INDEX IF NOT EXISTS idx_register_outbox_pending
    ON register_outbox (next_attempt_at)
    WHERE published_at IS NULL AND dead_at IS NULL`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}

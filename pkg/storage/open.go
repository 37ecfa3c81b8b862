package storage

import (
	"strings"

	"github.com/cockroachdb/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("jobs: unknown database driver")

// Config selects and tunes the database behind a GormStorage.
type Config struct {
	// Driver is DriverSQLite or DriverPostgres.
	Driver string
	// DSN is a file path (or ":memory:") for sqlite, a connection string
	// for postgres.
	DSN string
	// Pool overrides DefaultPoolConfig; zero fields keep the defaults.
	Pool PoolConfig
	// LogLevel is the gorm log level: silent, error, warn or info.
	// Default: silent
	LogLevel string
}

// Dialector returns the gorm dialector for a driver name.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite3", "":
		return sqlite.Open(dsn), nil
	case DriverPostgres, "postgresql", "pgx":
		return postgres.Open(dsn), nil
	default:
		return nil, errors.WithHintf(ErrUnknownDriver, "driver %q; use %q or %q", driver, DriverSQLite, DriverPostgres)
	}
}

// Open connects to the configured database and applies the pool settings.
// Sqlite is held on a single connection that never expires: the database
// allows one writer at a time and each ":memory:" connection is a separate
// database.
func Open(cfg Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "jobs: open %s database", dialector.Name())
	}

	opts := []PoolOption{WithPoolConfig(cfg.Pool)}
	if dialector.Name() == DriverSQLite {
		opts = append(opts, MaxOpenConns(1), MaxIdleConns(1), ConnMaxLifetime(0), ConnMaxIdleTime(0))
	}
	if err := ConfigurePool(db, opts...); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenStorage is Open followed by NewGormStorage.
func OpenStorage(cfg Config) (*GormStorage, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return NewGormStorage(db), nil
}

func logLevel(s string) logger.LogLevel {
	switch strings.ToLower(s) {
	case "error":
		return logger.Error
	case "warn", "warning":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

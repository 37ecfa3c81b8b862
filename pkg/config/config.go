// Package config loads scheduler, database and logging settings from a TOML
// file, JOBS_* environment variables and built-in defaults.
package config

import (
	"time"

	"github.com/jdziat/simple-recurring-jobs/pkg/logging"
	"github.com/jdziat/simple-recurring-jobs/pkg/scheduler"
	"github.com/jdziat/simple-recurring-jobs/pkg/storage"
)

// Config is the complete configuration of a scheduler process.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig selects the job store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

// SchedulerConfig tunes the polling loop.
type SchedulerConfig struct {
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	ReadinessInterval time.Duration `mapstructure:"readiness_interval"`
	DrainTimeout      time.Duration `mapstructure:"drain_timeout"`
	QueueThreshold    int           `mapstructure:"queue_threshold"`
	Concurrency       int           `mapstructure:"concurrency"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Storage converts the database section for storage.Open.
func (c DatabaseConfig) Storage() storage.Config {
	return storage.Config{
		Driver: c.Driver,
		DSN:    c.DSN,
		Pool: storage.PoolConfig{
			MaxOpenConns:    c.MaxOpenConns,
			MaxIdleConns:    c.MaxIdleConns,
			ConnMaxLifetime: c.ConnMaxLifetime,
		},
		LogLevel: c.LogLevel,
	}
}

// Options converts the scheduler section to scheduler options.
func (c SchedulerConfig) Options() []scheduler.Option {
	return []scheduler.Option{
		scheduler.WithTickInterval(c.TickInterval),
		scheduler.WithRefreshInterval(c.RefreshInterval),
		scheduler.WithReadinessInterval(c.ReadinessInterval),
		scheduler.WithDrainTimeout(c.DrainTimeout),
		scheduler.WithQueueThreshold(c.QueueThreshold),
		scheduler.WithConcurrency(c.Concurrency),
	}
}

// Logging converts the log section for logging.New.
func (c LogConfig) Logging() logging.Config {
	return logging.Config{Level: c.Level, JSON: c.JSON}
}

package config

import (
	"github.com/spf13/viper"

	"github.com/jdziat/simple-recurring-jobs/pkg/scheduler"
	"github.com/jdziat/simple-recurring-jobs/pkg/security"
	"github.com/jdziat/simple-recurring-jobs/pkg/storage"
)

// SetDefaults configures default values for every key. Keys without a
// default are not picked up from the environment.
func SetDefaults(v *viper.Viper) {
	pool := storage.DefaultPoolConfig()

	// Database
	v.SetDefault("database.driver", storage.DriverSQLite)
	v.SetDefault("database.dsn", "jobs.db")
	v.SetDefault("database.max_open_conns", pool.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", pool.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", pool.ConnMaxLifetime)
	v.SetDefault("database.log_level", "silent")

	// Scheduler
	v.SetDefault("scheduler.tick_interval", scheduler.DefaultTickInterval)
	v.SetDefault("scheduler.refresh_interval", scheduler.DefaultRefreshInterval)
	v.SetDefault("scheduler.readiness_interval", scheduler.DefaultReadinessInterval)
	v.SetDefault("scheduler.drain_timeout", scheduler.DefaultDrainTimeout)
	v.SetDefault("scheduler.queue_threshold", security.DefaultQueueThreshold)
	v.SetDefault("scheduler.concurrency", scheduler.DefaultConcurrency)

	// Logging
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

package config

import (
	"github.com/cockroachdb/errors"

	"github.com/jdziat/simple-recurring-jobs/pkg/logging"
	"github.com/jdziat/simple-recurring-jobs/pkg/security"
	"github.com/jdziat/simple-recurring-jobs/pkg/storage"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, err := storage.Dialector(c.Database.Driver, c.Database.DSN); err != nil {
		return errors.Wrap(err, "database.driver")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn cannot be empty")
	}
	if c.Database.MaxOpenConns < 0 {
		return errors.Newf("database.max_open_conns must be >= 0, got %d", c.Database.MaxOpenConns)
	}
	if c.Database.MaxIdleConns < 0 {
		return errors.Newf("database.max_idle_conns must be >= 0, got %d", c.Database.MaxIdleConns)
	}

	s := c.Scheduler
	if s.TickInterval <= 0 {
		return errors.Newf("scheduler.tick_interval must be > 0, got %s", s.TickInterval)
	}
	if s.RefreshInterval <= 0 {
		return errors.Newf("scheduler.refresh_interval must be > 0, got %s", s.RefreshInterval)
	}
	if s.ReadinessInterval <= 0 {
		return errors.Newf("scheduler.readiness_interval must be > 0, got %s", s.ReadinessInterval)
	}
	if s.DrainTimeout <= 0 {
		return errors.Newf("scheduler.drain_timeout must be > 0, got %s", s.DrainTimeout)
	}
	if s.QueueThreshold < 1 || s.QueueThreshold > security.MaxQueueThreshold {
		return errors.Newf("scheduler.queue_threshold must be in [1, %d], got %d", security.MaxQueueThreshold, s.QueueThreshold)
	}
	if s.Concurrency < 1 || s.Concurrency > security.MaxConcurrency {
		return errors.Newf("scheduler.concurrency must be in [1, %d], got %d", security.MaxConcurrency, s.Concurrency)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}

package scheduler

import (
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/simple-recurring-jobs/pkg/logging"
	"github.com/jdziat/simple-recurring-jobs/pkg/security"
	"github.com/jdziat/simple-recurring-jobs/pkg/worker"
)

// Default values.
const (
	DefaultTickInterval      = time.Second
	DefaultRefreshInterval   = 5 * time.Minute
	DefaultReadinessInterval = 2 * time.Second
	DefaultDrainTimeout      = 30 * time.Second
	DefaultConcurrency       = 10
)

// Option configures a Scheduler.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

type config struct {
	tickInterval      time.Duration
	refreshInterval   time.Duration
	readinessInterval time.Duration
	drainTimeout      time.Duration
	queueThreshold    int
	concurrency       int
	logger            *zap.SugaredLogger
	clock             func() time.Time
	retry             worker.RetryConfig
	readiness         Readiness
}

func defaultConfig() config {
	retry := worker.DefaultRetryConfig()
	retry.MaxAttempts = 3
	return config{
		tickInterval:      DefaultTickInterval,
		refreshInterval:   DefaultRefreshInterval,
		readinessInterval: DefaultReadinessInterval,
		drainTimeout:      DefaultDrainTimeout,
		queueThreshold:    security.DefaultQueueThreshold,
		concurrency:       DefaultConcurrency,
		logger:            logging.Nop(),
		clock:             time.Now,
		retry:             retry,
		readiness:         AlwaysReady,
	}
}

// WithTickInterval sets the delay between polls. Non-positive values are ignored.
func WithTickInterval(d time.Duration) Option {
	return optionFunc(func(c *config) {
		if d > 0 {
			c.tickInterval = d
		}
	})
}

// WithRefreshInterval sets how often job records are reloaded from storage.
// Non-positive values are ignored.
func WithRefreshInterval(d time.Duration) Option {
	return optionFunc(func(c *config) {
		if d > 0 {
			c.refreshInterval = d
		}
	})
}

// WithReadinessInterval sets how often readiness is polled during startup,
// and how often a failed registration is retried. Non-positive values are
// ignored.
func WithReadinessInterval(d time.Duration) Option {
	return optionFunc(func(c *config) {
		if d > 0 {
			c.readinessInterval = d
		}
	})
}

// WithDrainTimeout bounds how long Run waits for in-flight jobs after
// cancellation. Non-positive values are ignored.
func WithDrainTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		if d > 0 {
			c.drainTimeout = d
		}
	})
}

// WithQueueThreshold sets the number of failed attempts after which a queue
// item is moved to QueueFailed. Values are clamped by security.ClampThreshold.
func WithQueueThreshold(n int) Option {
	return optionFunc(func(c *config) {
		c.queueThreshold = security.ClampThreshold(n)
	})
}

// WithConcurrency caps the number of jobs running at once.
// Values are clamped to [1, security.MaxConcurrency].
func WithConcurrency(n int) Option {
	return optionFunc(func(c *config) {
		c.concurrency = security.ClampConcurrency(n)
	})
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *zap.SugaredLogger) Option {
	return optionFunc(func(c *config) {
		if l != nil {
			c.logger = l
		}
	})
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(c *config) {
		if now != nil {
			c.clock = now
		}
	})
}

// WithBackoff sets the retry policy for storage writes made after a run.
func WithBackoff(cfg worker.RetryConfig) Option {
	return optionFunc(func(c *config) {
		c.retry = cfg
	})
}

// WithReadiness sets the readiness provider polled before registration.
// A nil provider is ignored. Default: AlwaysReady.
func WithReadiness(r Readiness) Option {
	return optionFunc(func(c *config) {
		if r != nil {
			c.readiness = r
		}
	})
}

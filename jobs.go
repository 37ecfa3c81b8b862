// Package jobs runs recurring background jobs from a relational job store.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	store, _ := jobs.OpenStorage(jobs.StorageConfig{Driver: "sqlite", DSN: "jobs.db"})
//	store.Migrate(ctx)
//
//	catalog, _ := jobs.NewCatalog(
//	    jobs.NewJob(jobs.Definition{TypeID: "reports.nightly", Recurrence: "02:00:00"},
//	        func(ctx context.Context, a *jobs.Args) error {
//	            return buildReport(ctx)
//	        }),
//	)
//
//	s := jobs.New(store, catalog, jobs.WithTickInterval(time.Second))
//	s.Run(ctx) // blocks until ctx is cancelled, then drains
package jobs

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jdziat/simple-recurring-jobs/pkg/args"
	"github.com/jdziat/simple-recurring-jobs/pkg/config"
	"github.com/jdziat/simple-recurring-jobs/pkg/core"
	"github.com/jdziat/simple-recurring-jobs/pkg/jobctx"
	"github.com/jdziat/simple-recurring-jobs/pkg/logging"
	"github.com/jdziat/simple-recurring-jobs/pkg/queue"
	"github.com/jdziat/simple-recurring-jobs/pkg/schedule"
	"github.com/jdziat/simple-recurring-jobs/pkg/scheduler"
	"github.com/jdziat/simple-recurring-jobs/pkg/storage"
	"github.com/jdziat/simple-recurring-jobs/pkg/worker"
)

// Type aliases
type (
	// Job is implemented by every unit of recurring work.
	Job = core.Job

	// JobRecord is the persisted registration and schedule of a Job.
	JobRecord = core.JobRecord

	// QueueItem is one unit of work for a queue-driven job.
	QueueItem = core.QueueItem

	// QueueStatus is the state of a QueueItem.
	QueueStatus = core.QueueStatus

	// Storage is the persistence gateway.
	Storage = core.Storage

	// Event is the interface for all scheduler events.
	Event = core.Event

	// RunStarted is emitted when a due job is dispatched.
	RunStarted = core.RunStarted

	// RunCompleted is emitted when a job body returns without error.
	RunCompleted = core.RunCompleted

	// RunFailed is emitted when a job body returns an error or panics.
	RunFailed = core.RunFailed

	// QueueItemCompleted is emitted when a queue item is processed.
	QueueItemCompleted = core.QueueItemCompleted

	// QueueItemFailed is emitted after a failed attempt on a queue item.
	QueueItemFailed = core.QueueItemFailed

	// WindowPersistFailed is emitted when post-run timestamps were not stored.
	WindowPersistFailed = core.WindowPersistFailed

	// Args is the ordered token payload handed to a job.
	Args = args.Args

	// Rule is a recurrence rule.
	Rule = schedule.Rule

	// TimeOfDay is the clock time used by calendar rules.
	TimeOfDay = schedule.TimeOfDay

	// Scheduler polls the store and runs due jobs.
	Scheduler = scheduler.Scheduler

	// Catalog is the table of job implementations known to a process.
	Catalog = scheduler.Catalog

	// Definition describes a job built with NewJob.
	Definition = scheduler.Definition

	// ExecuteFunc is the body of a job built with NewJob.
	ExecuteFunc = scheduler.ExecuteFunc

	// Option configures a Scheduler.
	Option = scheduler.Option

	// Readiness reports whether the host may start the scheduler.
	Readiness = scheduler.Readiness

	// ReadinessFunc adapts a function to Readiness.
	ReadinessFunc = scheduler.ReadinessFunc

	// ReadyFlag is a Readiness the host flips once it is ready.
	ReadyFlag = scheduler.ReadyFlag

	// ContextInfo is a read-only view of one job's in-memory schedule.
	ContextInfo = scheduler.ContextInfo

	// State is the lifecycle phase of a Scheduler.
	State = scheduler.State

	// Queue enqueues and administers queue items.
	Queue = queue.Queue

	// QueueOption configures an enqueued item.
	QueueOption = queue.Option

	// GormStorage implements Storage using GORM.
	GormStorage = storage.GormStorage

	// StorageConfig selects the database behind a GormStorage.
	StorageConfig = storage.Config

	// RetryConfig is the backoff policy for storage writes.
	RetryConfig = worker.RetryConfig

	// Config is the file and environment configuration of a process.
	Config = config.Config
)

// Queue status constants
const (
	QueueNormal    = core.QueueNormal
	QueueFailed    = core.QueueFailed
	QueueDisabled  = core.QueueDisabled
	QueueCompleted = core.QueueCompleted
)

// Scheduler states
const (
	StateIdle          = scheduler.StateIdle
	StateBootstrapping = scheduler.StateBootstrapping
	StateRegistering   = scheduler.StateRegistering
	StatePolling       = scheduler.StatePolling
	StateDraining      = scheduler.StateDraining
	StateStopped       = scheduler.StateStopped
)

// Error variables
var (
	ErrInvalidTypeID     = core.ErrInvalidTypeID
	ErrDuplicateTypeID   = core.ErrDuplicateTypeID
	ErrJobNotFound       = core.ErrJobNotFound
	ErrQueueItemNotFound = core.ErrQueueItemNotFound
	ErrNotQueueDriven    = core.ErrNotQueueDriven
	ErrPayloadTooLarge   = core.ErrPayloadTooLarge
	ErrInvalidRule       = schedule.ErrInvalidRule
	ErrDrainTimeout      = scheduler.ErrDrainTimeout
	ErrAlreadyStarted    = scheduler.ErrAlreadyStarted
)

// AlwaysReady is the default Readiness.
var AlwaysReady = scheduler.AlwaysReady

// New creates a Scheduler for the jobs in catalog.
func New(s Storage, catalog *Catalog, opts ...Option) *Scheduler {
	return scheduler.New(s, catalog, opts...)
}

// NewCatalog validates jobs and indexes them by type id.
func NewCatalog(jobs ...Job) (*Catalog, error) {
	return scheduler.NewCatalog(jobs...)
}

// NewJob adapts a function into a Job.
func NewJob(def Definition, fn ExecuteFunc) Job {
	return scheduler.NewJob(def, fn)
}

// NewQueue creates a Queue for producers of queue items.
func NewQueue(s Storage) *Queue {
	return queue.New(s)
}

// NewGormStorage creates a GORM-backed storage on an open connection.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return storage.NewGormStorage(db)
}

// OpenStorage connects to the configured database.
func OpenStorage(cfg StorageConfig) (*GormStorage, error) {
	return storage.OpenStorage(cfg)
}

// LoadConfig reads a TOML file (optional) and JOBS_* environment variables.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewFromConfig opens and migrates the configured store, builds the logger
// and returns a Scheduler for jobs. Extra options are applied after the
// configured ones.
func NewFromConfig(ctx context.Context, cfg *Config, jobs []Job, opts ...Option) (*Scheduler, *GormStorage, error) {
	log, err := logging.New(cfg.Log.Logging())
	if err != nil {
		return nil, nil, err
	}

	catalog, err := scheduler.NewCatalog(jobs...)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.OpenStorage(cfg.Database.Storage())
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "jobs: migrate")
	}

	all := append([]Option{scheduler.WithLogger(log)}, cfg.Scheduler.Options()...)
	all = append(all, opts...)
	return scheduler.New(store, catalog, all...), store, nil
}

// Scheduler option functions

// WithTickInterval sets the delay between polls.
func WithTickInterval(d time.Duration) Option {
	return scheduler.WithTickInterval(d)
}

// WithRefreshInterval sets how often job records are reloaded.
func WithRefreshInterval(d time.Duration) Option {
	return scheduler.WithRefreshInterval(d)
}

// WithReadinessInterval sets the readiness and registration retry cadence.
func WithReadinessInterval(d time.Duration) Option {
	return scheduler.WithReadinessInterval(d)
}

// WithDrainTimeout bounds how long Run waits for running jobs.
func WithDrainTimeout(d time.Duration) Option {
	return scheduler.WithDrainTimeout(d)
}

// WithQueueThreshold sets the failed attempts before an item is parked.
func WithQueueThreshold(n int) Option {
	return scheduler.WithQueueThreshold(n)
}

// WithConcurrency caps the number of jobs running at once.
func WithConcurrency(n int) Option {
	return scheduler.WithConcurrency(n)
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return scheduler.WithLogger(l)
}

// WithReadiness sets the readiness provider.
func WithReadiness(r Readiness) Option {
	return scheduler.WithReadiness(r)
}

// WithBackoff sets the retry policy for storage writes after a run.
func WithBackoff(cfg RetryConfig) Option {
	return scheduler.WithBackoff(cfg)
}

// Queue option functions

// Group files a queue item under an extension group.
func Group(name string) QueueOption {
	return queue.Group(name)
}

// Rule functions

// ParseRule parses the compact recurrence form.
func ParseRule(s string) (Rule, error) {
	return schedule.Parse(s)
}

// MustParseRule is ParseRule that panics on error.
func MustParseRule(s string) Rule {
	return schedule.MustParse(s)
}

// Every creates a rule that runs every seconds seconds.
func Every(seconds int) (Rule, error) {
	return schedule.Every(seconds)
}

// Daily creates a rule that runs once a day.
func Daily(at TimeOfDay) (Rule, error) {
	return schedule.Daily(at)
}

// Monthly creates a rule that runs once a month.
func Monthly(day int, at TimeOfDay) (Rule, error) {
	return schedule.Monthly(day, at)
}

// Yearly creates a rule that runs once a year.
func Yearly(month time.Month, day int, at TimeOfDay) (Rule, error) {
	return schedule.Yearly(month, day, at)
}

// Cron creates a rule from a five-field cron expression.
func Cron(expr string) (Rule, error) {
	return schedule.Cron(expr)
}

// At builds a TimeOfDay.
func At(hour, minute, second int) TimeOfDay {
	return schedule.At(hour, minute, second)
}

// Payload functions

// NewArgs creates a payload from tokens.
func NewArgs(tokens ...string) *Args {
	return args.New(tokens...)
}

// Job context functions

// JobIDFromContext returns the record id of the running job.
func JobIDFromContext(ctx context.Context) string {
	return jobctx.JobIDFromContext(ctx)
}

// TypeIDFromContext returns the type id of the running job.
func TypeIDFromContext(ctx context.Context) string {
	return jobctx.TypeIDFromContext(ctx)
}

// QueueItemIDFromContext returns the id of the queue item being processed.
func QueueItemIDFromContext(ctx context.Context) string {
	return jobctx.QueueItemIDFromContext(ctx)
}

// AttemptFromContext returns the 1-based attempt on the current queue item.
func AttemptFromContext(ctx context.Context) int {
	return jobctx.AttemptFromContext(ctx)
}

// SavePayload persists changes the running job made to its queue payload.
func SavePayload(ctx context.Context) error {
	return jobctx.SavePayload(ctx)
}

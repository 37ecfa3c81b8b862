package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/jdziat/simple-recurring-jobs/pkg/args"
	"github.com/jdziat/simple-recurring-jobs/pkg/core"
	intctx "github.com/jdziat/simple-recurring-jobs/pkg/internal/context"
	"github.com/jdziat/simple-recurring-jobs/pkg/logging"
	"github.com/jdziat/simple-recurring-jobs/pkg/schedule"
	"github.com/jdziat/simple-recurring-jobs/pkg/worker"
)

var (
	// ErrDrainTimeout is returned by Run when jobs were still running after
	// the drain timeout. Their contexts have been cancelled.
	ErrDrainTimeout = errors.New("scheduler: drain timeout exceeded")

	// ErrAlreadyStarted is returned by a second call to Run.
	ErrAlreadyStarted = errors.New("scheduler: already started")
)

// State is the lifecycle phase of a Scheduler.
type State int32

const (
	StateIdle State = iota
	StateBootstrapping
	StateRegistering
	StatePolling
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBootstrapping:
		return "bootstrapping"
	case StateRegistering:
		return "registering"
	case StatePolling:
		return "polling"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Scheduler polls stored job records and runs the due ones on a worker pool.
type Scheduler struct {
	storage core.Storage
	catalog *Catalog
	cfg     config
	log     *zap.SugaredLogger
	pool    *worker.Pool

	state   atomic.Int32
	started atomic.Bool

	mu       sync.RWMutex
	contexts map[string]*RunContext

	// lastRefresh is only touched by the polling goroutine.
	lastRefresh time.Time

	subMu sync.RWMutex
	subs  []chan core.Event
}

// New creates a Scheduler for the jobs in catalog. A nil catalog is empty.
func New(storage core.Storage, catalog *Catalog, opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if catalog == nil {
		catalog = MustCatalog()
	}

	s := &Scheduler{
		storage:  storage,
		catalog:  catalog,
		cfg:      cfg,
		log:      cfg.logger,
		contexts: make(map[string]*RunContext),
	}
	s.pool = worker.NewPool(cfg.concurrency, worker.OnError(func(name string, err error) {
		s.log.Errorw("job task aborted", logging.FieldTypeID, name, logging.FieldError, err)
	}))
	return s
}

// Catalog returns the job table.
func (s *Scheduler) Catalog() *Catalog { return s.catalog }

// State returns the current lifecycle phase.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// InFlight returns the number of runs dispatched and not yet finished.
func (s *Scheduler) InFlight() int { return s.pool.InFlight() }

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
	s.log.Debugw("scheduler state changed", logging.FieldState, st.String())
}

func (s *Scheduler) now() time.Time { return s.cfg.clock() }

// Run blocks until ctx is cancelled. It waits for readiness, registers the
// catalog, then polls. On cancellation it stops dispatching and waits up
// to the drain timeout for running jobs. Run can only be called once.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	// Jobs outlive ctx until the drain timeout.
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	s.setState(StateBootstrapping)
	if s.awaitReady(ctx) {
		s.setState(StateRegistering)
		if s.register(ctx) {
			s.setState(StatePolling)
			s.log.Infow("scheduler polling",
				"tick_interval", s.cfg.tickInterval,
				"refresh_interval", s.cfg.refreshInterval,
				"concurrency", s.pool.Size())
			s.poll(ctx, jobCtx)
		}
	}
	return s.drain(cancelJobs)
}

func (s *Scheduler) awaitReady(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		ready, err := s.cfg.readiness.Ready(ctx)
		switch {
		case err != nil:
			s.log.Warnw("readiness check failed", logging.FieldError, err)
		case ready:
			return true
		default:
			s.log.Debugw("waiting for readiness")
		}
		if !sleep(ctx, s.cfg.readinessInterval) {
			return false
		}
	}
}

func (s *Scheduler) register(ctx context.Context) bool {
	regs := s.catalog.Registrations()
	for {
		if ctx.Err() != nil {
			return false
		}
		n, err := s.storage.EnsureRegistered(ctx, regs, s.now())
		if err == nil {
			s.log.Infow("jobs registered", logging.FieldCount, len(regs), "inserted", n)
			return true
		}
		s.log.Errorw("job registration failed", logging.FieldError, err)
		if !sleep(ctx, s.cfg.readinessInterval) {
			return false
		}
	}
}

func (s *Scheduler) poll(ctx, jobCtx context.Context) {
	ticker := time.NewTicker(s.cfg.tickInterval)
	defer ticker.Stop()

	for {
		s.tick(ctx, jobCtx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick refreshes the snapshot when it is stale and dispatches every due,
// idle context. Failures are logged and the next tick proceeds as usual.
func (s *Scheduler) tick(ctx, jobCtx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("scheduler tick panicked", logging.FieldError, fmt.Sprint(r))
		}
	}()

	now := s.now()
	if s.lastRefresh.IsZero() || now.Sub(s.lastRefresh) >= s.cfg.refreshInterval {
		if err := s.refresh(ctx); err != nil {
			s.log.Errorw("job snapshot refresh failed", logging.FieldError, err)
		} else {
			s.lastRefresh = now
		}
	}

	for _, rc := range s.snapshot() {
		if ctx.Err() != nil {
			return
		}
		if !rc.due(now) || !rc.tryStart() {
			continue
		}
		s.dispatch(jobCtx, rc)
	}
}

// refresh reloads job records. Known contexts keep their timestamps and
// adopt rule and metadata changes. Records of jobs this process does not
// implement are ignored. Idle contexts whose record vanished are dropped.
func (s *Scheduler) refresh(ctx context.Context) error {
	records, err := s.storage.LoadAll(ctx)
	if err != nil {
		return errors.Wrap(err, "jobs: load job records")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		job, ok := s.catalog.Lookup(rec.TypeID)
		if !ok {
			continue
		}
		seen[rec.TypeID] = struct{}{}

		rc, exists := s.contexts[rec.TypeID]
		rule, err := rec.Rule()
		if err != nil {
			s.log.Errorw("stored recurrence is invalid",
				logging.FieldJob, rec.Name,
				logging.FieldTypeID, rec.TypeID,
				"recurrence", rec.Recurrence,
				logging.FieldError, err)
			if exists {
				continue
			}
			rule, _ = s.catalog.DefaultRule(rec.TypeID)
		}

		if !exists {
			s.contexts[rec.TypeID] = newRunContext(rec, job, rule)
			continue
		}
		rc.adopt(rec, rule)
	}

	for typeID, rc := range s.contexts {
		if _, ok := seen[typeID]; !ok && !rc.isRunning() {
			delete(s.contexts, typeID)
		}
	}
	return nil
}

// snapshot returns the contexts ordered by type id.
func (s *Scheduler) snapshot() []*RunContext {
	s.mu.RLock()
	out := make([]*RunContext, 0, len(s.contexts))
	for _, rc := range s.contexts {
		out = append(out, rc)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].typeID < out[j].typeID })
	return out
}

// Contexts returns a read-only view of the current contexts ordered by type id.
func (s *Scheduler) Contexts() []ContextInfo {
	snap := s.snapshot()
	out := make([]ContextInfo, len(snap))
	for i, rc := range snap {
		out[i] = rc.Info()
	}
	return out
}

// dispatch hands a started context to the pool. The context's running flag
// is cleared when the run returns.
func (s *Scheduler) dispatch(jobCtx context.Context, rc *RunContext) {
	accepted := s.pool.Go(jobCtx, rc.typeID, func(ctx context.Context) error {
		defer rc.finish()
		s.execute(ctx, rc)
		return nil
	})
	if !accepted {
		rc.finish()
	}
}

// execute performs one run: fetch the queue item if the job consumes a
// queue, call the job, record the item outcome, advance the schedule and
// persist it.
func (s *Scheduler) execute(ctx context.Context, rc *RunContext) {
	id, name, queued, rule := rc.identity()
	log := logging.ForJob(s.log, name, rc.typeID)
	started := s.now()
	s.Emit(&core.RunStarted{JobID: id, TypeID: rc.typeID, Timestamp: started})

	var (
		payload *args.Args
		item    *core.QueueItem
		runErr  error
		skip    bool
	)
	if queued {
		item, runErr = s.nextQueueItem(ctx, id)
		switch {
		case runErr != nil:
			log.Errorw("queue item fetch failed", logging.FieldError, runErr, logging.FieldTimestamp, started)
			skip = true
		case item == nil:
			log.Debugw("queue empty", logging.FieldTimestamp, started)
			skip = true
		default:
			payload = s.itemPayload(item)
		}
	} else {
		payload = args.New()
	}

	if !skip {
		runErr = s.invoke(ctx, rc, id, name, item, payload, started)
	}
	finished := s.now()

	if item != nil {
		s.recordOutcome(ctx, log, item, runErr, finished)
	}

	rule = s.applyOverride(ctx, log, rc, id, rule, payload)
	next := s.nextRun(log, rc, rule, finished)
	rc.advance(finished, next)
	s.persistWindow(ctx, log, rc.typeID, id, next, finished)

	itemID := ""
	if item != nil {
		itemID = item.ID
	}
	duration := finished.Sub(started)

	if runErr != nil {
		log.Errorw("job failed",
			logging.FieldError, runErr,
			logging.FieldQueueItemID, itemID,
			logging.FieldDurationMS, duration.Milliseconds(),
			logging.FieldNextRun, next,
			logging.FieldTimestamp, finished)
		s.Emit(&core.RunFailed{
			JobID:       id,
			TypeID:      rc.typeID,
			QueueItemID: itemID,
			Error:       runErr,
			NextRun:     next,
			Timestamp:   finished,
		})
		return
	}

	reported := payload.LastError()
	if reported != "" {
		log.Warnw("job reported error", logging.FieldError, reported, logging.FieldTimestamp, finished)
	}
	log.Infow("job finished",
		logging.FieldQueueItemID, itemID,
		logging.FieldDurationMS, duration.Milliseconds(),
		logging.FieldNextRun, next,
		logging.FieldTimestamp, finished)
	s.Emit(&core.RunCompleted{
		JobID:         id,
		TypeID:        rc.typeID,
		QueueItemID:   itemID,
		Duration:      duration,
		NextRun:       next,
		ReportedError: reported,
		Timestamp:     finished,
	})
}

// invoke calls the job body, converting a panic into an error.
func (s *Scheduler) invoke(ctx context.Context, rc *RunContext, id, name string, item *core.QueueItem, a *args.Args, started time.Time) (err error) {
	run := &intctx.Run{
		JobID:     id,
		TypeID:    rc.typeID,
		Name:      name,
		StartedAt: started,
		Args:      a,
	}
	if item != nil {
		run.QueueItemID = item.ID
		run.TryCount = item.TryCount
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic: %v", r)
		}
	}()
	return rc.job.Execute(intctx.WithRun(ctx, run), a)
}

func (s *Scheduler) nextQueueItem(ctx context.Context, jobID string) (*core.QueueItem, error) {
	var item *core.QueueItem
	err := worker.Retry(ctx, s.cfg.retry, func() error {
		var err error
		item, err = s.storage.NextQueueItem(ctx, jobID)
		return err
	})
	return item, err
}

// itemPayload decodes an item's payload and lets the job persist changes
// to it through Args.Save.
func (s *Scheduler) itemPayload(item *core.QueueItem) *args.Args {
	itemID := item.ID
	return item.Args().WithSaveHook(func(ctx context.Context, a *args.Args) error {
		return s.storage.SaveQueuePayload(ctx, itemID, a.Encode())
	})
}

func (s *Scheduler) recordOutcome(ctx context.Context, log *zap.SugaredLogger, item *core.QueueItem, runErr error, finished time.Time) {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}

	var updated *core.QueueItem
	err := worker.Retry(ctx, s.cfg.retry, func() error {
		var err error
		updated, err = s.storage.RecordQueueOutcome(ctx, item.ID, runErr == nil, msg, s.cfg.queueThreshold, finished)
		return err
	})
	if err != nil {
		log.Errorw("queue item outcome not recorded",
			logging.FieldQueueItemID, item.ID,
			logging.FieldError, err,
			logging.FieldTimestamp, finished)
		return
	}

	if runErr == nil {
		s.Emit(&core.QueueItemCompleted{Item: updated, Timestamp: finished})
		return
	}

	escalated := updated.Status == core.QueueFailed
	if escalated {
		log.Warnw("queue item failed permanently",
			logging.FieldQueueItemID, updated.ID,
			logging.FieldTryCount, updated.TryCount,
			logging.FieldTimestamp, finished)
	}
	s.Emit(&core.QueueItemFailed{Item: updated, Error: runErr, Escalated: escalated, Timestamp: finished})
}

// applyOverride switches the context to the rule a job set on its payload
// and stores it. It returns the rule to schedule the next run with.
func (s *Scheduler) applyOverride(ctx context.Context, log *zap.SugaredLogger, rc *RunContext, id string, current schedule.Rule, payload *args.Args) schedule.Rule {
	override, ok := payload.Recurrence()
	if !ok || override.IsZero() || override.Equal(current) {
		return current
	}

	rc.setRule(override)
	err := worker.Retry(ctx, s.cfg.retry, func() error {
		return s.storage.UpdateRecurrence(ctx, id, override.String())
	})
	if err != nil {
		log.Errorw("recurrence change not persisted", "recurrence", override.String(), logging.FieldError, err)
	} else {
		log.Infow("recurrence changed by job", "from", current.String(), "to", override.String())
	}
	return override
}

// nextRun computes the activation after finished. A rule that does not
// move forward falls back to the job's default rule, then to one refresh
// interval, so the job cannot become due on every tick.
func (s *Scheduler) nextRun(log *zap.SugaredLogger, rc *RunContext, rule schedule.Rule, finished time.Time) time.Time {
	next := rule.Next(finished)
	if next.After(finished) {
		return next
	}
	log.Warnw("recurrence did not advance",
		"recurrence", rule.String(),
		logging.FieldNextRun, next,
		logging.FieldTimestamp, finished)

	if def, ok := s.catalog.DefaultRule(rc.typeID); ok {
		if n := def.Next(finished); n.After(finished) {
			rc.setRule(def)
			return n
		}
	}
	return finished.Add(s.cfg.refreshInterval)
}

func (s *Scheduler) persistWindow(ctx context.Context, log *zap.SugaredLogger, typeID, id string, next, last time.Time) {
	err := worker.Retry(ctx, s.cfg.retry, func() error {
		return s.storage.UpdateExecutionWindow(ctx, id, next, last)
	})
	if err == nil {
		return
	}
	log.Errorw("execution window not persisted",
		logging.FieldError, err,
		logging.FieldNextRun, next,
		logging.FieldTimestamp, last)
	s.Emit(&core.WindowPersistFailed{JobID: id, TypeID: typeID, Error: err, Timestamp: last})
}

func (s *Scheduler) drain(cancelJobs context.CancelFunc) error {
	s.setState(StateDraining)
	s.log.Infow("scheduler draining", "in_flight", s.pool.InFlight())

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.drainTimeout)
	defer cancel()

	var result error
	if err := s.pool.Drain(ctx); err != nil {
		cancelJobs()
		s.log.Warnw("drain timeout exceeded, cancelling running jobs",
			"in_flight", s.pool.InFlight(),
			"drain_timeout", s.cfg.drainTimeout)
		result = ErrDrainTimeout
	}

	s.setState(StateStopped)
	s.log.Infow("scheduler stopped")
	return result
}

// sleep waits for d or until ctx ends. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

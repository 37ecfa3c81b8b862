package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jdziat/simple-recurring-jobs/pkg/args"
	"github.com/jdziat/simple-recurring-jobs/pkg/core"
	"github.com/jdziat/simple-recurring-jobs/pkg/jobctx"
	"github.com/jdziat/simple-recurring-jobs/pkg/schedule"
	"github.com/jdziat/simple-recurring-jobs/pkg/storage"
	"github.com/jdziat/simple-recurring-jobs/pkg/worker"
)

// ─── Helpers ──────────────────────────────────────────────────────────────

func newStore(t *testing.T) *storage.GormStorage {
	t.Helper()
	store, err := storage.OpenStorage(storage.Config{Driver: storage.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// fastOptions keep tests quick: short cadences and a single storage attempt.
func fastOptions(extra ...Option) []Option {
	opts := []Option{
		WithTickInterval(10 * time.Millisecond),
		WithReadinessInterval(10 * time.Millisecond),
		WithDrainTimeout(2 * time.Second),
		WithBackoff(worker.NoRetry()),
	}
	return append(opts, extra...)
}

// fastClock runs a thousand times faster than the wall clock, so one-second
// interval rules are due on every tick.
func fastClock() func() time.Time {
	start := time.Now()
	return func() time.Time {
		return start.Add(time.Since(start) * 1000)
	}
}

// startScheduler runs s in the background and returns a function that
// stops it and returns the result of Run.
func startScheduler(t *testing.T, s *Scheduler) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var (
		once   sync.Once
		result error
	)
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case result = <-done:
			case <-time.After(5 * time.Second):
				t.Error("scheduler did not stop")
			}
		})
		return result
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func waitEvent[T core.Event](t *testing.T, ch <-chan core.Event, match func(T) bool) T {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-ch:
			if ev, ok := e.(T); ok && (match == nil || match(ev)) {
				return ev
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func register(t *testing.T, store core.Storage, c *Catalog, typeID string) *core.JobRecord {
	t.Helper()
	ctx := context.Background()
	_, err := store.EnsureRegistered(ctx, c.Registrations(), time.Now())
	require.NoError(t, err)
	rec, err := store.GetJobByType(ctx, typeID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func enqueue(t *testing.T, store core.Storage, jobID string, tokens ...string) *core.QueueItem {
	t.Helper()
	item := &core.QueueItem{JobID: jobID, Payload: args.New(tokens...).Encode()}
	require.NoError(t, store.Enqueue(context.Background(), item))
	return item
}

// flakyStorage injects failures into selected storage calls.
type flakyStorage struct {
	core.Storage
	registerFailures atomic.Int32
	registerCalls    atomic.Int32
	windowErr        error
}

func (f *flakyStorage) EnsureRegistered(ctx context.Context, regs []core.Registration, now time.Time) (int, error) {
	f.registerCalls.Add(1)
	if f.registerFailures.Add(-1) >= 0 {
		return 0, errors.New("database unavailable")
	}
	return f.Storage.EnsureRegistered(ctx, regs, now)
}

func (f *flakyStorage) UpdateExecutionWindow(ctx context.Context, id string, next, last time.Time) error {
	if f.windowErr != nil {
		return f.windowErr
	}
	return f.Storage.UpdateExecutionWindow(ctx, id, next, last)
}

// ─── Lifecycle ────────────────────────────────────────────────────────────

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "bootstrapping", StateBootstrapping.String())
	assert.Equal(t, "registering", StateRegistering.String())
	assert.Equal(t, "polling", StatePolling.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestScheduler_RunsDueJobAndAdvances(t *testing.T) {
	store := newStore(t)
	var runs atomic.Int32
	var seenType, seenName string

	job := NewJob(Definition{TypeID: "reports.hourly", Name: "Hourly report", Recurrence: "3600"},
		func(ctx context.Context, a *args.Args) error {
			runs.Add(1)
			seenType = jobctx.TypeIDFromContext(ctx)
			seenName = jobctx.RunFromContext(ctx).Name
			return nil
		})
	s := New(store, MustCatalog(job), fastOptions()...)
	assert.Equal(t, StateIdle, s.State())

	events := s.Events()
	defer s.Unsubscribe(events)
	stop := startScheduler(t, s)

	ev := waitEvent[*core.RunCompleted](t, events, nil)
	assert.Equal(t, "reports.hourly", ev.TypeID)
	assert.Empty(t, ev.QueueItemID)
	assert.Equal(t, time.Hour, ev.NextRun.Sub(ev.Timestamp))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, stop())
	assert.Equal(t, int32(1), runs.Load(), "job must not run again before its next activation")
	assert.Equal(t, "reports.hourly", seenType)
	assert.Equal(t, "Hourly report", seenName)
	assert.Equal(t, StateStopped, s.State())

	rec, err := store.GetJobByType(context.Background(), "reports.hourly")
	require.NoError(t, err)
	require.NotNil(t, rec.LastExecuted)
	assert.WithinDuration(t, ev.Timestamp, *rec.LastExecuted, time.Millisecond)
	assert.WithinDuration(t, ev.NextRun, rec.NextExecuting, time.Millisecond)
}

func TestScheduler_RunTwice(t *testing.T) {
	s := New(newStore(t), MustCatalog(), fastOptions()...)
	startScheduler(t, s)

	require.Eventually(t, func() bool { return s.State() == StatePolling }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Run(context.Background()), ErrAlreadyStarted)
}

func TestScheduler_WaitsForReadiness(t *testing.T) {
	store := newStore(t)
	var runs atomic.Int32
	job := NewJob(Definition{TypeID: "sync", Recurrence: "3600"}, func(context.Context, *args.Args) error {
		runs.Add(1)
		return nil
	})

	flag := &ReadyFlag{}
	s := New(store, MustCatalog(job), fastOptions(WithReadiness(flag))...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateBootstrapping, s.State())
	assert.Zero(t, runs.Load())
	rec, err := store.GetJobByType(context.Background(), "sync")
	require.NoError(t, err)
	assert.Nil(t, rec, "nothing is registered before the host is ready")

	flag.Set(true)
	waitEvent[*core.RunCompleted](t, events, nil)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_ReadinessErrorKeepsWaiting(t *testing.T) {
	var calls atomic.Int32
	readiness := ReadinessFunc(func(context.Context) (bool, error) {
		if calls.Add(1) < 3 {
			return false, errors.New("host still booting")
		}
		return true, nil
	})

	s := New(newStore(t), MustCatalog(), fastOptions(WithReadiness(readiness))...)
	startScheduler(t, s)

	require.Eventually(t, func() bool { return s.State() == StatePolling }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestScheduler_RegistrationRetried(t *testing.T) {
	store := &flakyStorage{Storage: newStore(t)}
	store.registerFailures.Store(2)

	job := NewJob(Definition{TypeID: "sync", Recurrence: "3600"}, func(context.Context, *args.Args) error { return nil })
	s := New(store, MustCatalog(job), fastOptions()...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	waitEvent[*core.RunCompleted](t, events, nil)
	assert.GreaterOrEqual(t, store.registerCalls.Load(), int32(3))
}

func TestScheduler_RegistrationKeepsStoredRule(t *testing.T) {
	store := newStore(t)
	job := NewJob(Definition{TypeID: "sync", Recurrence: "3600"}, func(context.Context, *args.Args) error { return nil })
	catalog := MustCatalog(job)

	rec := register(t, store, catalog, "sync")
	require.NoError(t, store.UpdateRecurrence(context.Background(), rec.ID, "120"))

	s := New(store, catalog, fastOptions()...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	ev := waitEvent[*core.RunCompleted](t, events, nil)
	assert.Equal(t, rec.ID, ev.JobID)
	assert.Equal(t, 2*time.Minute, ev.NextRun.Sub(ev.Timestamp))

	records, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "120", records[0].Recurrence)
}

func TestScheduler_IgnoresRecordsWithoutImplementation(t *testing.T) {
	store := newStore(t)
	other := MustCatalog(NewJob(Definition{TypeID: "elsewhere", Recurrence: "60"}, nil))
	register(t, store, other, "elsewhere")

	job := NewJob(Definition{TypeID: "local", Recurrence: "60"}, func(context.Context, *args.Args) error { return nil })
	s := New(store, MustCatalog(job), fastOptions()...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	waitEvent[*core.RunCompleted](t, events, nil)
	infos := s.Contexts()
	require.Len(t, infos, 1)
	assert.Equal(t, "local", infos[0].TypeID)
}

// ─── Dispatch ─────────────────────────────────────────────────────────────

func TestScheduler_NoOverlappingRuns(t *testing.T) {
	store := newStore(t)
	release := make(chan struct{})
	var starts, active, maxActive atomic.Int32

	job := NewJob(Definition{TypeID: "slow", Recurrence: "1"}, func(context.Context, *args.Args) error {
		starts.Add(1)
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		<-release
		active.Add(-1)
		return nil
	})

	s := New(store, MustCatalog(job), fastOptions(WithClock(fastClock()))...)
	events := s.Events()
	defer s.Unsubscribe(events)
	stop := startScheduler(t, s)

	waitEvent[*core.RunStarted](t, events, nil)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), starts.Load(), "a running job must not be dispatched again")

	infos := s.Contexts()
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Running)
	assert.Equal(t, 1, s.InFlight())

	close(release)
	require.NoError(t, stop())
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestScheduler_PanickingJobDoesNotStopLoop(t *testing.T) {
	store := newStore(t)
	panicky := NewJob(Definition{TypeID: "a.panics", Recurrence: "3600"}, func(context.Context, *args.Args) error {
		panic("boom")
	})
	var healthy atomic.Int32
	steady := NewJob(Definition{TypeID: "b.works", Recurrence: "3600"}, func(context.Context, *args.Args) error {
		healthy.Add(1)
		return nil
	})

	s := New(store, MustCatalog(panicky, steady), fastOptions()...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	var failed *core.RunFailed
	var completed *core.RunCompleted
	timeout := time.After(5 * time.Second)
	for failed == nil || completed == nil {
		select {
		case e := <-events:
			switch ev := e.(type) {
			case *core.RunFailed:
				failed = ev
			case *core.RunCompleted:
				completed = ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for both runs")
		}
	}

	assert.Equal(t, "a.panics", failed.TypeID)
	assert.Contains(t, failed.Error.Error(), "panic: boom")
	assert.Equal(t, time.Hour, failed.NextRun.Sub(failed.Timestamp), "a failed run still advances")
	assert.Equal(t, "b.works", completed.TypeID)
	assert.Equal(t, StatePolling, s.State())

	rec, err := store.GetJobByType(context.Background(), "a.panics")
	require.NoError(t, err)
	assert.NotNil(t, rec.LastExecuted)
}

func TestScheduler_JobErrorAdvancesSchedule(t *testing.T) {
	store := newStore(t)
	job := NewJob(Definition{TypeID: "flaky", Recurrence: "600"}, func(context.Context, *args.Args) error {
		return errors.New("upstream timeout")
	})

	s := New(store, MustCatalog(job), fastOptions()...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	ev := waitEvent[*core.RunFailed](t, events, nil)
	assert.EqualError(t, ev.Error, "upstream timeout")
	assert.Equal(t, 10*time.Minute, ev.NextRun.Sub(ev.Timestamp))
}

func TestScheduler_ReportedErrorDoesNotFailRun(t *testing.T) {
	job := NewJob(Definition{TypeID: "partial", Recurrence: "600"}, func(_ context.Context, a *args.Args) error {
		a.SetLastError("3 of 10 rows skipped")
		return nil
	})

	s := New(newStore(t), MustCatalog(job), fastOptions()...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	ev := waitEvent[*core.RunCompleted](t, events, nil)
	assert.Equal(t, "3 of 10 rows skipped", ev.ReportedError)
}

// ─── Persistence ──────────────────────────────────────────────────────────

func TestScheduler_PersistFailureIsSwallowed(t *testing.T) {
	store := &flakyStorage{Storage: newStore(t), windowErr: errors.New("disk full")}
	var runs atomic.Int32
	job := NewJob(Definition{TypeID: "sync", Name: "Sync", Recurrence: "3600"}, func(context.Context, *args.Args) error {
		runs.Add(1)
		return nil
	})

	obsCore, logs := observer.New(zapcore.ErrorLevel)
	s := New(store, MustCatalog(job), fastOptions(WithLogger(zap.New(obsCore).Sugar()))...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	failed := waitEvent[*core.WindowPersistFailed](t, events, nil)
	assert.Equal(t, "sync", failed.TypeID)
	assert.EqualError(t, failed.Error, "disk full")
	waitEvent[*core.RunCompleted](t, events, nil)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load(), "in-memory schedule must advance even when the store is behind")
	assert.Equal(t, StatePolling, s.State())

	entries := logs.FilterMessage("execution window not persisted").All()
	require.NotEmpty(t, entries)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Sync", fields["job"])
	assert.Equal(t, "sync", fields["type_id"])
	assert.Contains(t, fields, "at")

	infos := s.Contexts()
	require.Len(t, infos, 1)
	assert.NotNil(t, infos[0].LastExecuted)
}

func TestScheduler_RecurrenceOverride(t *testing.T) {
	store := newStore(t)
	job := NewJob(Definition{TypeID: "adaptive", Recurrence: "60"}, func(_ context.Context, a *args.Args) error {
		a.SetRecurrence(schedule.MustParse("7200"))
		return nil
	})

	s := New(store, MustCatalog(job), fastOptions()...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	ev := waitEvent[*core.RunCompleted](t, events, nil)
	assert.Equal(t, 2*time.Hour, ev.NextRun.Sub(ev.Timestamp))

	rec, err := store.GetJobByType(context.Background(), "adaptive")
	require.NoError(t, err)
	assert.Equal(t, "7200", rec.Recurrence)
	assert.Equal(t, "7200", s.Contexts()[0].Rule.String())
}

func TestScheduler_StalledRuleFallsBackToDefault(t *testing.T) {
	store := newStore(t)
	job := NewJob(Definition{TypeID: "stalled", Recurrence: "3600"}, func(context.Context, *args.Args) error { return nil })
	rec := register(t, store, MustCatalog(job), "stalled")
	s := New(store, MustCatalog(job), fastOptions()...)

	rc := newRunContext(rec, job, schedule.Rule{})
	require.True(t, rc.tryStart())
	s.execute(context.Background(), rc)
	rc.finish()

	info := rc.Info()
	require.NotNil(t, info.LastExecuted)
	assert.Equal(t, time.Hour, info.NextExecuting.Sub(*info.LastExecuted))
	assert.Equal(t, "3600", info.Rule.String())

	stored, err := store.GetJobByType(context.Background(), "stalled")
	require.NoError(t, err)
	assert.WithinDuration(t, info.NextExecuting, stored.NextExecuting, time.Millisecond)
}

func TestScheduler_RefreshAdoptsRuleChange(t *testing.T) {
	store := newStore(t)
	job := NewJob(Definition{TypeID: "sync", Recurrence: "3600"}, func(context.Context, *args.Args) error { return nil })

	s := New(store, MustCatalog(job), fastOptions(WithRefreshInterval(20*time.Millisecond))...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	ev := waitEvent[*core.RunCompleted](t, events, nil)
	require.NoError(t, store.UpdateRecurrence(context.Background(), ev.JobID, "04:30:00"))

	require.Eventually(t, func() bool {
		infos := s.Contexts()
		return len(infos) == 1 && infos[0].Rule.Kind() == schedule.KindDaily
	}, 2*time.Second, 10*time.Millisecond)

	info := s.Contexts()[0]
	assert.WithinDuration(t, ev.NextRun, info.NextExecuting, time.Millisecond, "refresh keeps in-memory timestamps")
}

// ─── Queue-driven jobs ────────────────────────────────────────────────────

func TestScheduler_QueueItemsProcessedInOrder(t *testing.T) {
	store := newStore(t)
	var mu sync.Mutex
	var seen []string
	var attempts []int

	job := NewJob(Definition{TypeID: "mailer", Recurrence: "1", DependsOnQueue: true},
		func(ctx context.Context, a *args.Args) error {
			mu.Lock()
			seen = append(seen, a.Get(0))
			attempts = append(attempts, jobctx.AttemptFromContext(ctx))
			mu.Unlock()
			return nil
		})
	catalog := MustCatalog(job)
	rec := register(t, store, catalog, "mailer")
	first := enqueue(t, store, rec.ID, "first")
	time.Sleep(5 * time.Millisecond)
	second := enqueue(t, store, rec.ID, "second")

	s := New(store, catalog, fastOptions(WithClock(fastClock()))...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	done1 := waitEvent[*core.QueueItemCompleted](t, events, nil)
	done2 := waitEvent[*core.QueueItemCompleted](t, events, nil)
	assert.Equal(t, first.ID, done1.Item.ID)
	assert.Equal(t, second.ID, done2.Item.ID)

	empty := waitEvent[*core.RunCompleted](t, events, func(ev *core.RunCompleted) bool { return ev.QueueItemID == "" })
	assert.Equal(t, rec.ID, empty.JobID)

	mu.Lock()
	assert.Equal(t, []string{"first", "second"}, seen)
	assert.Equal(t, []int{1, 1}, attempts)
	mu.Unlock()

	for _, id := range []string{first.ID, second.ID} {
		item, err := store.GetQueueItem(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, core.QueueCompleted, item.Status)
		assert.Zero(t, item.TryCount)
		assert.Nil(t, item.LastError)
		assert.NotNil(t, item.LastExecuted)
	}
}

func TestScheduler_QueueItemEscalatesAfterThreshold(t *testing.T) {
	store := newStore(t)
	var attempts atomic.Int32
	job := NewJob(Definition{TypeID: "importer", Recurrence: "1", DependsOnQueue: true},
		func(context.Context, *args.Args) error {
			attempts.Add(1)
			return errors.New("remote rejected file")
		})
	catalog := MustCatalog(job)
	rec := register(t, store, catalog, "importer")
	item := enqueue(t, store, rec.ID, "batch-7")

	s := New(store, catalog, fastOptions(WithClock(fastClock()), WithQueueThreshold(3))...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	escalated := waitEvent[*core.QueueItemFailed](t, events, func(ev *core.QueueItemFailed) bool { return ev.Escalated })
	assert.Equal(t, item.ID, escalated.Item.ID)
	assert.Equal(t, 3, escalated.Item.TryCount)

	// Once failed the item is no longer selected.
	waitEvent[*core.RunCompleted](t, events, func(ev *core.RunCompleted) bool { return ev.QueueItemID == "" })
	assert.Equal(t, int32(3), attempts.Load())

	stored, err := store.GetQueueItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, core.QueueFailed, stored.Status)
	assert.Equal(t, 3, stored.TryCount)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "remote rejected file", *stored.LastError)
}

func TestScheduler_QueuePayloadSavedByJob(t *testing.T) {
	store := newStore(t)
	job := NewJob(Definition{TypeID: "crawler", Recurrence: "3600", DependsOnQueue: true},
		func(ctx context.Context, a *args.Args) error {
			a.Append("page-2")
			return jobctx.SavePayload(ctx)
		})
	catalog := MustCatalog(job)
	rec := register(t, store, catalog, "crawler")
	item := enqueue(t, store, rec.ID, "page-1")

	s := New(store, catalog, fastOptions()...)
	events := s.Events()
	defer s.Unsubscribe(events)
	startScheduler(t, s)

	waitEvent[*core.QueueItemCompleted](t, events, nil)

	stored, err := store.GetQueueItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"page-1", "page-2"}, stored.Args().Tokens())
}

// ─── Drain ────────────────────────────────────────────────────────────────

func TestScheduler_DrainWaitsForRunningJobs(t *testing.T) {
	store := newStore(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	job := NewJob(Definition{TypeID: "long", Recurrence: "3600"}, func(context.Context, *args.Args) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	})

	s := New(store, MustCatalog(job), fastOptions()...)
	stop := startScheduler(t, s)
	<-started

	result := make(chan error, 1)
	go func() { result <- stop() }()

	require.Eventually(t, func() bool { return s.State() == StateDraining }, 2*time.Second, 5*time.Millisecond)
	close(release)

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("drain did not finish")
	}
	assert.True(t, finished.Load())
	assert.Equal(t, StateStopped, s.State())

	rec, err := store.GetJobByType(context.Background(), "long")
	require.NoError(t, err)
	assert.NotNil(t, rec.LastExecuted, "a job finishing during drain still persists its window")
}

func TestScheduler_DrainTimeoutCancelsJobs(t *testing.T) {
	started := make(chan struct{})
	var cancelled atomic.Bool

	job := NewJob(Definition{TypeID: "stuck", Recurrence: "3600"}, func(ctx context.Context, _ *args.Args) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})

	s := New(newStore(t), MustCatalog(job), fastOptions(WithDrainTimeout(50*time.Millisecond))...)
	stop := startScheduler(t, s)
	<-started

	assert.ErrorIs(t, stop(), ErrDrainTimeout)
	assert.Equal(t, StateStopped, s.State())
	require.Eventually(t, cancelled.Load, 2*time.Second, 5*time.Millisecond)
}

// ─── Events ───────────────────────────────────────────────────────────────

func TestScheduler_Unsubscribe(t *testing.T) {
	s := New(newStore(t), MustCatalog())
	ch := s.Events()
	s.Unsubscribe(ch)

	s.Emit(&core.RunStarted{JobID: "j"})
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %T after unsubscribe", e)
	default:
	}

	foreign := make(chan core.Event)
	s.Unsubscribe(foreign)
}

func TestScheduler_EmitDropsWhenFull(t *testing.T) {
	s := New(newStore(t), MustCatalog())
	ch := s.Events()
	defer s.Unsubscribe(ch)

	for i := 0; i < eventBuffer+10; i++ {
		s.Emit(&core.RunStarted{JobID: "j"})
	}
	assert.Len(t, ch, eventBuffer)
}

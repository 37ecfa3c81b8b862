package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobs "github.com/jdziat/simple-recurring-jobs"
	"github.com/jdziat/simple-recurring-jobs/pkg/config"
)

// setupTestStorage opens a migrated in-memory SQLite store.
func setupTestStorage(t *testing.T) *jobs.GormStorage {
	t.Helper()
	store, err := jobs.OpenStorage(jobs.StorageConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func runUntil[T jobs.Event](t *testing.T, s *jobs.Scheduler, match func(T) bool) T {
	t.Helper()
	events := s.Events()
	defer s.Unsubscribe(events)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
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

// ---------------------------------------------------------------------------
// Scheduler construction
// ---------------------------------------------------------------------------

func TestFacade_RunsJob(t *testing.T) {
	store := setupTestStorage(t)
	var typeID string

	catalog, err := jobs.NewCatalog(
		jobs.NewJob(jobs.Definition{TypeID: "facade.job", Recurrence: "3600"}, func(ctx context.Context, _ *jobs.Args) error {
			typeID = jobs.TypeIDFromContext(ctx)
			return nil
		}),
	)
	require.NoError(t, err)

	s := jobs.New(store, catalog, jobs.WithTickInterval(10*time.Millisecond))
	ev := runUntil[*jobs.RunCompleted](t, s, nil)

	assert.Equal(t, "facade.job", ev.TypeID)
	assert.Equal(t, "facade.job", typeID)
	assert.Equal(t, jobs.StateStopped, s.State())
}

func TestFacade_NewCatalogRejectsDuplicates(t *testing.T) {
	j := jobs.NewJob(jobs.Definition{TypeID: "dup", Recurrence: "60"}, nil)
	_, err := jobs.NewCatalog(j, j)
	assert.True(t, errors.Is(err, jobs.ErrDuplicateTypeID))
}

func TestFacade_NewFromConfig(t *testing.T) {
	cfg, err := config.LoadWithViper(config.NewViper())
	require.NoError(t, err)
	cfg.Database.DSN = ":memory:"
	cfg.Scheduler.TickInterval = 10 * time.Millisecond

	job := jobs.NewJob(jobs.Definition{TypeID: "configured", Recurrence: "60"}, nil)
	s, store, err := jobs.NewFromConfig(context.Background(), cfg, []jobs.Job{job})
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.True(t, store.IsSQLite())

	runUntil[*jobs.RunCompleted](t, s, nil)

	rec, err := store.GetJobByType(context.Background(), "configured")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotNil(t, rec.LastExecuted)
}

func TestFacade_NewFromConfigInvalidCatalog(t *testing.T) {
	cfg, err := config.LoadWithViper(config.NewViper())
	require.NoError(t, err)
	cfg.Database.DSN = ":memory:"

	bad := jobs.NewJob(jobs.Definition{TypeID: "bad", Recurrence: "sometimes"}, nil)
	_, _, err = jobs.NewFromConfig(context.Background(), cfg, []jobs.Job{bad})
	assert.True(t, errors.Is(err, jobs.ErrInvalidRule))
}

// ---------------------------------------------------------------------------
// Queue
// ---------------------------------------------------------------------------

func TestFacade_QueueRoundTrip(t *testing.T) {
	store := setupTestStorage(t)
	var got []string

	catalog, err := jobs.NewCatalog(
		jobs.NewJob(jobs.Definition{TypeID: "mailer", Recurrence: "3600", DependsOnQueue: true},
			func(ctx context.Context, a *jobs.Args) error {
				got = a.Tokens()
				return nil
			}),
	)
	require.NoError(t, err)
	_, err = store.EnsureRegistered(context.Background(), catalog.Registrations(), time.Now())
	require.NoError(t, err)

	q := jobs.NewQueue(store)
	id, err := q.Enqueue(context.Background(), "mailer", jobs.NewArgs("a@example.com", "hi"), jobs.Group("mail"))
	require.NoError(t, err)

	s := jobs.New(store, catalog, jobs.WithTickInterval(10*time.Millisecond))
	ev := runUntil[*jobs.QueueItemCompleted](t, s, nil)

	assert.Equal(t, id, ev.Item.ID)
	assert.Equal(t, jobs.QueueCompleted, ev.Item.Status)
	assert.Equal(t, []string{"a@example.com", "hi"}, got)
}

func TestFacade_EnqueueUnknownJob(t *testing.T) {
	q := jobs.NewQueue(setupTestStorage(t))
	_, err := q.Enqueue(context.Background(), "missing", nil)
	assert.True(t, errors.Is(err, jobs.ErrJobNotFound))
}

// ---------------------------------------------------------------------------
// Rules and context helpers
// ---------------------------------------------------------------------------

func TestFacade_Rules(t *testing.T) {
	r, err := jobs.ParseRule("3600")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, r.Interval())

	every, err := jobs.Every(3600)
	require.NoError(t, err)
	assert.True(t, every.Equal(r))

	daily, err := jobs.Daily(jobs.At(4, 30, 0))
	require.NoError(t, err)
	assert.True(t, daily.Equal(jobs.MustParseRule("04:30:00")))

	_, err = jobs.Monthly(15, jobs.At(4, 30, 0))
	assert.NoError(t, err)
	_, err = jobs.Yearly(time.December, 24, jobs.At(18, 0, 0))
	assert.NoError(t, err)
	_, err = jobs.Cron("*/5 * * * *")
	assert.NoError(t, err)

	_, err = jobs.ParseRule("never")
	assert.True(t, errors.Is(err, jobs.ErrInvalidRule))
}

func TestFacade_ContextHelpersOutsideJob(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, jobs.JobIDFromContext(ctx))
	assert.Empty(t, jobs.TypeIDFromContext(ctx))
	assert.Empty(t, jobs.QueueItemIDFromContext(ctx))
	assert.Zero(t, jobs.AttemptFromContext(ctx))
	assert.NoError(t, jobs.SavePayload(ctx))
}

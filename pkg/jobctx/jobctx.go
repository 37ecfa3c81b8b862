// Package jobctx provides public access to run information for job bodies.
package jobctx

import (
	"context"
	"time"

	"github.com/jdziat/simple-recurring-jobs/pkg/args"
	intctx "github.com/jdziat/simple-recurring-jobs/pkg/internal/context"
)

// Run is the information the scheduler exposes about the current invocation.
type Run = intctx.Run

// RunFromContext returns the current run, or nil outside a job body.
func RunFromContext(ctx context.Context) *Run {
	return intctx.GetRun(ctx)
}

// JobIDFromContext returns the current job record ID, or empty string
// outside a job body. Use this for logging or progress tracking.
func JobIDFromContext(ctx context.Context) string {
	if r := intctx.GetRun(ctx); r != nil {
		return r.JobID
	}
	return ""
}

// TypeIDFromContext returns the current job type id, or empty string
// outside a job body.
func TypeIDFromContext(ctx context.Context) string {
	if r := intctx.GetRun(ctx); r != nil {
		return r.TypeID
	}
	return ""
}

// QueueItemIDFromContext returns the ID of the queue item being processed.
// It is empty for jobs that do not consume a queue and for runs that found
// the queue empty.
func QueueItemIDFromContext(ctx context.Context) string {
	if r := intctx.GetRun(ctx); r != nil {
		return r.QueueItemID
	}
	return ""
}

// AttemptFromContext returns the 1-based attempt number of the current
// queue item, or 0 when no queue item is being processed.
func AttemptFromContext(ctx context.Context) int {
	r := intctx.GetRun(ctx)
	if r == nil || r.QueueItemID == "" {
		return 0
	}
	return r.TryCount + 1
}

// ArgsFromContext returns the payload passed to the current job body.
func ArgsFromContext(ctx context.Context) *args.Args {
	if r := intctx.GetRun(ctx); r != nil {
		return r.Args
	}
	return nil
}

// Elapsed returns how long the current run has been executing.
func Elapsed(ctx context.Context) time.Duration {
	r := intctx.GetRun(ctx)
	if r == nil || r.StartedAt.IsZero() {
		return 0
	}
	return time.Since(r.StartedAt)
}

// SavePayload persists the current payload through its save hook. It is a
// no-op outside a job body or when the payload has no hook.
func SavePayload(ctx context.Context) error {
	r := intctx.GetRun(ctx)
	if r == nil {
		return nil
	}
	return r.Args.Save(ctx)
}

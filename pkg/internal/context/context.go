// Package context provides context helpers for the jobs package.
package context

import (
	"context"
	"time"

	"github.com/jdziat/simple-recurring-jobs/pkg/args"
)

// RunKey is the key for storing run info in context.Context.
type RunKey struct{}

// Run describes the invocation a job body is executing.
type Run struct {
	JobID       string
	TypeID      string
	Name        string
	QueueItemID string
	TryCount    int
	StartedAt   time.Time
	Args        *args.Args
}

// GetRun retrieves the run info from a context.Context.
func GetRun(ctx context.Context) *Run {
	if r, ok := ctx.Value(RunKey{}).(*Run); ok {
		return r
	}
	return nil
}

// WithRun adds run info to a context.Context.
func WithRun(ctx context.Context, r *Run) context.Context {
	return context.WithValue(ctx, RunKey{}, r)
}

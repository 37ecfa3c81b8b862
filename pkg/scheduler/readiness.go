package scheduler

import (
	"context"
	"sync/atomic"
)

// Readiness tells the scheduler whether the host system is ready for jobs
// to be registered and run, e.g. once migrations or installation finished.
type Readiness interface {
	Ready(ctx context.Context) (bool, error)
}

// ReadinessFunc adapts a function to Readiness.
type ReadinessFunc func(ctx context.Context) (bool, error)

// Ready calls f.
func (f ReadinessFunc) Ready(ctx context.Context) (bool, error) { return f(ctx) }

// AlwaysReady reports ready immediately.
var AlwaysReady Readiness = ReadinessFunc(func(context.Context) (bool, error) { return true, nil })

// ReadyFlag is a Readiness the host flips once it has finished starting.
// The zero value is not ready.
type ReadyFlag struct {
	ready atomic.Bool
}

// Set marks the host ready or not ready.
func (f *ReadyFlag) Set(ready bool) { f.ready.Store(ready) }

// Ready reports the current value.
func (f *ReadyFlag) Ready(context.Context) (bool, error) { return f.ready.Load(), nil }

package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jdziat/simple-recurring-jobs/pkg/core"
	"github.com/jdziat/simple-recurring-jobs/pkg/schedule"
)

// RunContext joins a stored JobRecord with the implementation that runs it.
// The running flag is the only guard against overlapping runs of one job.
type RunContext struct {
	typeID string
	job    core.Job

	running atomic.Bool

	mu     sync.Mutex
	id     string
	name   string
	group  string
	queued bool
	rule   schedule.Rule
	last   *time.Time
	next   time.Time
}

func newRunContext(rec *core.JobRecord, job core.Job, rule schedule.Rule) *RunContext {
	rc := &RunContext{
		typeID: rec.TypeID,
		job:    job,
		id:     rec.ID,
		name:   rec.Name,
		group:  rec.ExtensionGroup,
		queued: rec.DependsOnQueue,
		rule:   rule,
		next:   rec.NextExecuting,
	}
	if rec.LastExecuted != nil {
		last := *rec.LastExecuted
		rc.last = &last
	}
	return rc
}

// tryStart sets the running flag. It returns false if a run is in progress.
func (rc *RunContext) tryStart() bool {
	return rc.running.CompareAndSwap(false, true)
}

func (rc *RunContext) finish() {
	rc.running.Store(false)
}

func (rc *RunContext) isRunning() bool {
	return rc.running.Load()
}

// due reports whether the job should start at now.
func (rc *RunContext) due(now time.Time) bool {
	if rc.running.Load() {
		return false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return !rc.next.After(now)
}

// advance records a finished run.
func (rc *RunContext) advance(last, next time.Time) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.last = &last
	rc.next = next
}

// adopt takes metadata and rule changes from a refreshed record. The
// in-memory timestamps stay authoritative since a failed write may have
// left the store behind.
func (rc *RunContext) adopt(rec *core.JobRecord, rule schedule.Rule) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.id = rec.ID
	rc.name = rec.Name
	rc.group = rec.ExtensionGroup
	rc.queued = rec.DependsOnQueue
	rc.rule = rule
}

func (rc *RunContext) setRule(rule schedule.Rule) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.rule = rule
}

// identity returns the fields a run needs, read under one lock.
func (rc *RunContext) identity() (id, name string, queued bool, rule schedule.Rule) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.id, rc.name, rc.queued, rc.rule
}

// Info returns a copy of the context's state.
func (rc *RunContext) Info() ContextInfo {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	info := ContextInfo{
		ID:             rc.id,
		TypeID:         rc.typeID,
		Name:           rc.name,
		ExtensionGroup: rc.group,
		DependsOnQueue: rc.queued,
		Rule:           rc.rule,
		Running:        rc.running.Load(),
		NextExecuting:  rc.next,
	}
	if rc.last != nil {
		last := *rc.last
		info.LastExecuted = &last
	}
	return info
}

// ContextInfo is a read-only view of a RunContext.
type ContextInfo struct {
	ID             string
	TypeID         string
	Name           string
	ExtensionGroup string
	DependsOnQueue bool
	Rule           schedule.Rule
	Running        bool
	LastExecuted   *time.Time
	NextExecuting  time.Time
}

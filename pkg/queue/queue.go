package queue

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/jdziat/simple-recurring-jobs/pkg/args"
	"github.com/jdziat/simple-recurring-jobs/pkg/core"
	"github.com/jdziat/simple-recurring-jobs/pkg/security"
)

// Queue enqueues and administers items for queue-driven jobs.
type Queue struct {
	storage core.Storage
	mu      sync.RWMutex

	// Hooks
	onEnqueue      []func(context.Context, *core.QueueItem)
	onStatusChange []func(context.Context, string, core.QueueStatus)
}

// New creates a Queue on the given storage backend.
func New(s core.Storage) *Queue {
	return &Queue{storage: s}
}

// Storage returns the storage backend.
func (q *Queue) Storage() core.Storage {
	return q.storage
}

// Enqueue adds a work item for the job with the given type id and returns
// the item id. The job must be registered and consume a queue. A nil
// payload is stored as an empty one.
func (q *Queue) Enqueue(ctx context.Context, typeID string, a *args.Args, opts ...Option) (string, error) {
	if err := security.ValidateTypeID(typeID); err != nil {
		return "", errors.Wrapf(err, "jobs: enqueue for %q", typeID)
	}

	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}
	if err := security.ValidateExtensionGroup(options.Group); err != nil {
		return "", errors.Wrapf(err, "jobs: enqueue for %s group %q", typeID, options.Group)
	}

	rec, err := q.storage.GetJobByType(ctx, typeID)
	if err != nil {
		return "", errors.Wrapf(err, "jobs: look up %s", typeID)
	}
	if rec == nil {
		return "", errors.WithHintf(
			errors.Wrapf(core.ErrJobNotFound, "jobs: enqueue for %s", typeID),
			"the job is registered when a scheduler implementing %s first starts", typeID)
	}
	if !rec.DependsOnQueue {
		return "", errors.Wrapf(core.ErrNotQueueDriven, "jobs: enqueue for %s", typeID)
	}

	payload := a.Encode()
	if err := security.ValidatePayload(payload); err != nil {
		return "", errors.Wrapf(err, "jobs: enqueue for %s", typeID)
	}

	item := &core.QueueItem{
		ID:             options.ID,
		JobID:          rec.ID,
		ExtensionGroup: options.Group,
		Payload:        payload,
	}
	if err := q.storage.Enqueue(ctx, item); err != nil {
		return "", err
	}

	q.callEnqueueHooks(ctx, item)
	return item.ID, nil
}

// Get returns a queue item, or nil when it does not exist.
func (q *Queue) Get(ctx context.Context, itemID string) (*core.QueueItem, error) {
	return q.storage.GetQueueItem(ctx, itemID)
}

// List returns items in a status, oldest first. An empty group matches
// every extension group; a non-positive limit uses the storage default.
func (q *Queue) List(ctx context.Context, group string, status core.QueueStatus, limit int) ([]*core.QueueItem, error) {
	return q.storage.ListQueueItems(ctx, group, status, limit)
}

// Retry puts an item back in QueueNormal with a fresh set of attempts.
func (q *Queue) Retry(ctx context.Context, itemID string) error {
	return q.setStatus(ctx, itemID, core.QueueNormal)
}

// Disable parks an item so the scheduler no longer selects it.
func (q *Queue) Disable(ctx context.Context, itemID string) error {
	return q.setStatus(ctx, itemID, core.QueueDisabled)
}

func (q *Queue) setStatus(ctx context.Context, itemID string, status core.QueueStatus) error {
	if err := q.storage.SetQueueStatus(ctx, itemID, status); err != nil {
		return errors.Wrapf(err, "jobs: set item %s to %s", itemID, status)
	}
	q.callStatusHooks(ctx, itemID, status)
	return nil
}

// OnEnqueue registers a callback for newly stored items.
func (q *Queue) OnEnqueue(fn func(context.Context, *core.QueueItem)) {
	q.mu.Lock()
	q.onEnqueue = append(q.onEnqueue, fn)
	q.mu.Unlock()
}

// OnStatusChange registers a callback for administrative status changes.
func (q *Queue) OnStatusChange(fn func(context.Context, string, core.QueueStatus)) {
	q.mu.Lock()
	q.onStatusChange = append(q.onStatusChange, fn)
	q.mu.Unlock()
}

func (q *Queue) callEnqueueHooks(ctx context.Context, item *core.QueueItem) {
	q.mu.RLock()
	hooks := make([]func(context.Context, *core.QueueItem), len(q.onEnqueue))
	copy(hooks, q.onEnqueue)
	q.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, item)
	}
}

func (q *Queue) callStatusHooks(ctx context.Context, itemID string, status core.QueueStatus) {
	q.mu.RLock()
	hooks := make([]func(context.Context, string, core.QueueStatus), len(q.onStatusChange))
	copy(hooks, q.onStatusChange)
	q.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, itemID, status)
	}
}

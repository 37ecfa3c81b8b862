package core

import (
	"context"
	"time"
)

// Storage is the persistence gateway for job records and queue items.
type Storage interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Job records
	EnsureRegistered(ctx context.Context, regs []Registration, now time.Time) (int, error)
	LoadAll(ctx context.Context) ([]*JobRecord, error)
	GetJob(ctx context.Context, id string) (*JobRecord, error)
	GetJobByType(ctx context.Context, typeID string) (*JobRecord, error)
	UpdateExecutionWindow(ctx context.Context, id string, next time.Time, last time.Time) error
	UpdateRecurrence(ctx context.Context, id string, rule string) error

	// Queue items
	Enqueue(ctx context.Context, item *QueueItem) error
	NextQueueItem(ctx context.Context, jobID string) (*QueueItem, error)
	RecordQueueOutcome(ctx context.Context, itemID string, success bool, errMsg string, threshold int, now time.Time) (*QueueItem, error)
	SaveQueuePayload(ctx context.Context, itemID string, payload string) error
	GetQueueItem(ctx context.Context, itemID string) (*QueueItem, error)
	ListQueueItems(ctx context.Context, group string, status QueueStatus, limit int) ([]*QueueItem, error)
	SetQueueStatus(ctx context.Context, itemID string, status QueueStatus) error
}

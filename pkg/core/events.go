package core

import "time"

// Event is the interface for all scheduler events.
type Event interface {
	eventMarker()
}

// RunStarted is emitted when a due job is dispatched.
type RunStarted struct {
	JobID     string
	TypeID    string
	Timestamp time.Time
}

func (*RunStarted) eventMarker() {}

// RunCompleted is emitted when a job body returns without error.
// ReportedError carries the message the job set on its payload, if any.
type RunCompleted struct {
	JobID         string
	TypeID        string
	QueueItemID   string
	Duration      time.Duration
	NextRun       time.Time
	ReportedError string
	Timestamp     time.Time
}

func (*RunCompleted) eventMarker() {}

// RunFailed is emitted when a job body returns an error or panics. The job
// still advances to its next scheduled time.
type RunFailed struct {
	JobID       string
	TypeID      string
	QueueItemID string
	Error       error
	NextRun     time.Time
	Timestamp   time.Time
}

func (*RunFailed) eventMarker() {}

// QueueItemCompleted is emitted when a queue item is processed successfully.
type QueueItemCompleted struct {
	Item      *QueueItem
	Timestamp time.Time
}

func (*QueueItemCompleted) eventMarker() {}

// QueueItemFailed is emitted after a failed attempt on a queue item.
// Escalated is true when the attempt moved the item to QueueFailed.
type QueueItemFailed struct {
	Item      *QueueItem
	Error     error
	Escalated bool
	Timestamp time.Time
}

func (*QueueItemFailed) eventMarker() {}

// WindowPersistFailed is emitted when post-run timestamps could not be
// stored. The in-memory schedule has advanced regardless.
type WindowPersistFailed struct {
	JobID     string
	TypeID    string
	Error     error
	Timestamp time.Time
}

func (*WindowPersistFailed) eventMarker() {}

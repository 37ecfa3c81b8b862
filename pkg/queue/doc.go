// Package queue provides the producer side of queue-driven jobs.
//
// This package includes:
//   - Queue: enqueues work items for jobs that consume a queue
//   - Option: per-item settings such as the extension group
//   - Administrative re-enable, disable and listing of items
//   - Hook registration for enqueue and status changes
//
// Items are consumed by the scheduler, one per run of the owning job.
// Most users should import the root package github.com/jdziat/simple-recurring-jobs
// which re-exports Queue and its options.
package queue

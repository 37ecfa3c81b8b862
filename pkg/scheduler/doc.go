// Package scheduler provides the Scheduler that runs recurring jobs.
//
// This package includes:
//   - Catalog: the explicit {type id → Job} table a process implements
//   - Scheduler: waits for readiness, registers the catalog, polls for due jobs
//   - RunContext: per-job in-memory schedule state, keyed by type id
//   - Readiness: the injected "may we start" check
//   - Option: tick, refresh, drain and queue settings
//
// Each job runs at most once at a time. A run always advances the job to
// its next activation, whether it succeeded or not, and the in-memory
// schedule stays authoritative when the store cannot be written.
//
// Most users should import the root package github.com/jdziat/simple-recurring-jobs
// which re-exports the Scheduler and its options.
package scheduler

// Package security provides validation, sanitization, and limits for the
// scheduler and its storage.
//
// This package includes:
//   - Validation of job type ids and extension group names
//   - Error message sanitization before queue item errors are stored
//   - Clamping of the queue escalation threshold and worker concurrency
//
// Most users never call it directly; the scheduler, the queue producer and
// the gorm storage apply these checks.
package security

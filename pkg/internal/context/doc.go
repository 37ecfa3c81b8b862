// Package context provides internal context helpers for job execution.
//
// This package is internal and should not be imported directly. The
// scheduler stores a Run here before calling a job body; pkg/jobctx reads
// it back for job authors.
package context

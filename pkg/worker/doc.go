// Package worker provides the supervised goroutine pool that runs due jobs
// and the backoff helper used for storage writes.
//
// This package includes:
//   - Pool: bounded, non-blocking task submission with panic recovery and drain
//   - Retry: exponential backoff with jitter
package worker

// Package core provides the fundamental types and interfaces for the jobs package.
//
// This package contains:
//   - JobRecord and QueueItem data models with GORM annotations
//   - Job, the contract every recurring job implementation satisfies
//   - Storage interface defining the persistence contract
//   - Event types for scheduler monitoring
//   - Error sentinels
//
// Most users should import the root package github.com/jdziat/simple-recurring-jobs
// instead of this package directly.
package core

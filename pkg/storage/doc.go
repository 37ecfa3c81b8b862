// Package storage provides the gorm-backed persistence gateway for job
// records and queue items.
//
// This package includes:
//   - GormStorage: the core.Storage implementation used by the scheduler
//   - Open: connects to sqlite or postgres and sizes the connection pool
//
// The Storage interface is defined in pkg/core and must be implemented
// by any custom storage backend.
package storage

package core

import (
	"github.com/cockroachdb/errors"
)

// Validation errors
var (
	ErrInvalidTypeID      = errors.New("jobs: invalid job type id (must be alphanumeric, start with letter)")
	ErrTypeIDTooLong      = errors.New("jobs: job type id too long")
	ErrDuplicateTypeID    = errors.New("jobs: duplicate job type id")
	ErrInvalidGroup       = errors.New("jobs: invalid extension group")
	ErrPayloadTooLarge    = errors.New("jobs: queue payload exceeds size limit")
	ErrNotQueueDriven     = errors.New("jobs: job does not consume a queue")
	ErrInvalidQueueStatus = errors.New("jobs: invalid queue status")
)

// Lookup errors
var (
	ErrJobNotFound       = errors.New("jobs: job record not found")
	ErrQueueItemNotFound = errors.New("jobs: queue item not found")
)

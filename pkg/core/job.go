// Package core provides the domain models and interfaces for the jobs package.
package core

import (
	"context"
	"time"

	"github.com/jdziat/simple-recurring-jobs/pkg/args"
	"github.com/jdziat/simple-recurring-jobs/pkg/schedule"
)

// Job is implemented by every unit of recurring background work. The
// scheduler receives a collection of Jobs at startup; it never discovers
// them on its own.
type Job interface {
	// TypeID is the stable identifier used to match the implementation with
	// its stored JobRecord. It must not change between deployments.
	TypeID() string
	Name() string
	Description() string
	ExtensionGroup() string
	// Recurrence is the default rule in the compact form accepted by
	// schedule.Parse. It is only used when the job is first registered.
	Recurrence() string
	// DependsOnQueue makes the job consume QueueItems instead of running
	// with an empty payload.
	DependsOnQueue() bool
	Execute(ctx context.Context, a *args.Args) error
}

// JobRecord is the persisted registration and schedule state of a Job.
type JobRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	TypeID         string `gorm:"uniqueIndex;size:255;not null"`
	Name           string `gorm:"size:255;not null"`
	Description    string `gorm:"type:text"`
	ExtensionGroup string `gorm:"index;size:255"`
	DependsOnQueue bool   `gorm:"default:false"`
	Recurrence     string `gorm:"size:255;not null"`
	LastExecuted   *time.Time
	NextExecuting  time.Time `gorm:"index;not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName pins the table name.
func (JobRecord) TableName() string { return "jobs" }

// Rule parses the stored recurrence.
func (r *JobRecord) Rule() (schedule.Rule, error) {
	return schedule.Parse(r.Recurrence)
}

// Registration describes a Job implementation for Storage.EnsureRegistered.
type Registration struct {
	TypeID         string
	Name           string
	Description    string
	ExtensionGroup string
	Recurrence     string
	DependsOnQueue bool
}

// RegistrationFor captures the static description of j.
func RegistrationFor(j Job) Registration {
	return Registration{
		TypeID:         j.TypeID(),
		Name:           j.Name(),
		Description:    j.Description(),
		ExtensionGroup: j.ExtensionGroup(),
		Recurrence:     j.Recurrence(),
		DependsOnQueue: j.DependsOnQueue(),
	}
}

// Package storage provides storage implementations for the jobs package.
package storage

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jdziat/simple-recurring-jobs/pkg/core"
	"github.com/jdziat/simple-recurring-jobs/pkg/schedule"
	"github.com/jdziat/simple-recurring-jobs/pkg/security"
)

// initialBacklog is subtracted from the registration time so that newly
// registered jobs are due on the first tick.
const initialBacklog = 24 * time.Hour

// defaultListLimit caps ListQueueItems when no limit is given.
const defaultListLimit = 50

// GormStorage implements core.Storage using GORM.
type GormStorage struct {
	db *gorm.DB
}

var _ core.Storage = (*GormStorage)(nil)

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// DB returns the underlying connection.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// IsSQLite reports whether the storage runs on the sqlite dialect.
func (s *GormStorage) IsSQLite() bool {
	return s.db != nil && s.db.Dialector != nil && s.db.Dialector.Name() == "sqlite"
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.JobRecord{}, &core.QueueItem{})
}

// EnsureRegistered inserts a JobRecord for every registration whose type id
// is not stored yet. Existing records are left untouched, so rules changed
// by an administrator survive redeployments. It returns the number of
// records inserted.
func (s *GormStorage) EnsureRegistered(ctx context.Context, regs []core.Registration, now time.Time) (int, error) {
	inserted := 0
	due := now.Add(-initialBacklog)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, reg := range regs {
			rec := &core.JobRecord{
				ID:             uuid.New().String(),
				TypeID:         reg.TypeID,
				Name:           reg.Name,
				Description:    reg.Description,
				ExtensionGroup: reg.ExtensionGroup,
				DependsOnQueue: reg.DependsOnQueue,
				Recurrence:     reg.Recurrence,
				NextExecuting:  due,
			}
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "type_id"}},
				DoNothing: true,
			}).Create(rec)
			if result.Error != nil {
				return errors.Wrapf(result.Error, "jobs: register %s", reg.TypeID)
			}
			inserted += int(result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// LoadAll returns every stored JobRecord.
func (s *GormStorage) LoadAll(ctx context.Context) ([]*core.JobRecord, error) {
	var records []*core.JobRecord
	err := s.db.WithContext(ctx).
		Order("type_id ASC").
		Find(&records).Error
	return records, err
}

// GetJob retrieves a record by ID. It returns nil when no record exists.
func (s *GormStorage) GetJob(ctx context.Context, id string) (*core.JobRecord, error) {
	var rec core.JobRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetJobByType retrieves a record by its type id. It returns nil when no
// record exists.
func (s *GormStorage) GetJobByType(ctx context.Context, typeID string) (*core.JobRecord, error) {
	var rec core.JobRecord
	err := s.db.WithContext(ctx).First(&rec, "type_id = ?", typeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateExecutionWindow persists the timestamps of a finished run.
func (s *GormStorage) UpdateExecutionWindow(ctx context.Context, id string, next time.Time, last time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&core.JobRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"next_executing": next,
			"last_executed":  last,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotFound
	}
	return nil
}

// UpdateRecurrence replaces the stored rule of a job. The rule must parse.
func (s *GormStorage) UpdateRecurrence(ctx context.Context, id string, rule string) error {
	r, err := schedule.Parse(rule)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Model(&core.JobRecord{}).
		Where("id = ?", id).
		Update("recurrence", r.String())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotFound
	}
	return nil
}

// Enqueue adds a queue item for a queue-driven job. The item always starts
// in QueueNormal with a zero try count; an empty extension group is taken
// from the owning job.
func (s *GormStorage) Enqueue(ctx context.Context, item *core.QueueItem) error {
	if err := security.ValidatePayload(item.Payload); err != nil {
		return err
	}

	rec, err := s.GetJob(ctx, item.JobID)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.Wrapf(core.ErrJobNotFound, "jobs: enqueue for %s", item.JobID)
	}
	if !rec.DependsOnQueue {
		return errors.Wrapf(core.ErrNotQueueDriven, "jobs: enqueue for %s", rec.TypeID)
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.ExtensionGroup == "" {
		item.ExtensionGroup = rec.ExtensionGroup
	}
	item.Status = core.QueueNormal
	item.TryCount = 0
	item.LastError = nil
	item.LastExecuted = nil

	return s.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

// NextQueueItem returns the oldest QueueNormal item of a job, or nil when
// there is none.
func (s *GormStorage) NextQueueItem(ctx context.Context, jobID string) (*core.QueueItem, error) {
	var item core.QueueItem
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Where("status = ?", core.QueueNormal).
		Order("created_at ASC, id ASC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RecordQueueOutcome applies the result of one attempt. Success resets the
// try count, clears the error and completes the item. Failure increments
// the try count, stores the sanitized error and moves the item to
// QueueFailed once the try count reaches threshold. Status changes only
// apply to items still in QueueNormal.
func (s *GormStorage) RecordQueueOutcome(ctx context.Context, itemID string, success bool, errMsg string, threshold int, now time.Time) (*core.QueueItem, error) {
	threshold = security.ClampThreshold(threshold)

	var item core.QueueItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.ErrQueueItemNotFound
			}
			return err
		}

		// An item moved out of QueueNormal while it ran keeps that status.
		active := item.Status == core.QueueNormal
		item.LastExecuted = &now
		if success {
			item.TryCount = 0
			item.LastError = nil
			if active {
				item.Status = core.QueueCompleted
			}
		} else {
			msg := security.SanitizeErrorMessage(errMsg)
			item.TryCount++
			item.LastError = &msg
			if active && item.TryCount >= threshold {
				item.Status = core.QueueFailed
			}
		}

		return tx.Model(&core.QueueItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]any{
				"try_count":     item.TryCount,
				"status":        item.Status,
				"last_error":    item.LastError,
				"last_executed": item.LastExecuted,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SaveQueuePayload stores a payload modified by a running job.
func (s *GormStorage) SaveQueuePayload(ctx context.Context, itemID string, payload string) error {
	if err := security.ValidatePayload(payload); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Model(&core.QueueItem{}).
		Where("id = ?", itemID).
		Update("payload", payload)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrQueueItemNotFound
	}
	return nil
}

// GetQueueItem retrieves a queue item by ID. It returns nil when no item
// exists.
func (s *GormStorage) GetQueueItem(ctx context.Context, itemID string) (*core.QueueItem, error) {
	var item core.QueueItem
	err := s.db.WithContext(ctx).First(&item, "id = ?", itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListQueueItems returns items in the given status, oldest first. An empty
// group matches every extension group.
func (s *GormStorage) ListQueueItems(ctx context.Context, group string, status core.QueueStatus, limit int) ([]*core.QueueItem, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := s.db.WithContext(ctx).Model(&core.QueueItem{})
	if group != "" {
		q = q.Where("extension_group = ?", group)
	}

	var items []*core.QueueItem
	err := q.Where("status = ?", status).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// SetQueueStatus moves an item to another status. Moving an item back to
// QueueNormal resets its try count so it gets a full set of attempts.
func (s *GormStorage) SetQueueStatus(ctx context.Context, itemID string, status core.QueueStatus) error {
	if status.String() == "unknown" {
		return core.ErrInvalidQueueStatus
	}

	updates := map[string]any{"status": status}
	if status == core.QueueNormal {
		updates["try_count"] = 0
	}

	result := s.db.WithContext(ctx).
		Model(&core.QueueItem{}).
		Where("id = ?", itemID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrQueueItemNotFound
	}
	return nil
}

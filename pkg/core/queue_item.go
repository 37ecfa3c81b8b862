package core

import (
	"time"

	"github.com/jdziat/simple-recurring-jobs/pkg/args"
)

// QueueStatus is the state of a QueueItem. The numeric values are part of
// the stored format.
type QueueStatus int

const (
	QueueNormal    QueueStatus = 0
	QueueFailed    QueueStatus = 5
	QueueDisabled  QueueStatus = 99999
	QueueCompleted QueueStatus = 999999
)

func (s QueueStatus) String() string {
	switch s {
	case QueueNormal:
		return "normal"
	case QueueFailed:
		return "failed"
	case QueueDisabled:
		return "disabled"
	case QueueCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseQueueStatus maps a status name back to its value.
func ParseQueueStatus(s string) (QueueStatus, bool) {
	for _, st := range []QueueStatus{QueueNormal, QueueFailed, QueueDisabled, QueueCompleted} {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}

// QueueItem is one durable, retryable unit of work for a queue-driven job.
// Items are produced outside the scheduler and never deleted by it.
type QueueItem struct {
	ID             string      `gorm:"primaryKey;size:36"`
	JobID          string      `gorm:"index;size:36;not null"`
	Job            *JobRecord  `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
	ExtensionGroup string      `gorm:"size:255;index:idx_queue_items_group_status,priority:1"`
	TryCount       int         `gorm:"default:0"`
	Payload        string      `gorm:"type:text"`
	Status         QueueStatus `gorm:"default:0;index:idx_queue_items_group_status,priority:2"`
	LastExecuted   *time.Time
	LastError      *string   `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// TableName pins the table name.
func (QueueItem) TableName() string { return "queue_items" }

// Args decodes the stored payload.
func (q *QueueItem) Args() *args.Args {
	return args.Decode(q.Payload)
}

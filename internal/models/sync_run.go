package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/enum"
)

// SyncRun audits one folder sync
type SyncRun struct {
	ID            string             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MailboxID     string             `gorm:"column:mailbox_id;type:varchar(50);index;not null" json:"mailboxId"`
	Folder        string             `gorm:"column:folder;type:varchar(100);not null" json:"folder"`
	Mode          enum.SyncMode      `gorm:"column:mode;type:varchar(20);not null" json:"mode"`
	Trigger       enum.SyncTrigger   `gorm:"column:trigger;type:varchar(20);not null" json:"trigger"`
	Status        enum.SyncRunStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	ImportedCount int                `gorm:"column:imported_count;default:0" json:"importedCount"`
	SkippedCount  int                `gorm:"column:skipped_count;default:0" json:"skippedCount"`
	ErrorCount    int                `gorm:"column:error_count;default:0" json:"errorCount"`
	Errors        pq.StringArray     `gorm:"column:errors;type:text[]" json:"errors"`
	FromUID       uint32             `gorm:"column:from_uid" json:"fromUid"`
	ToUID         uint32             `gorm:"column:to_uid" json:"toUid"`
	StartedAt     time.Time          `gorm:"column:started_at;type:timestamp;not null" json:"startedAt"`
	FinishedAt    *time.Time         `gorm:"column:finished_at;type:timestamp" json:"finishedAt"`
	CreatedAt     time.Time          `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

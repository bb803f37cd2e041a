package models

import (
	"time"
)

// MailboxSyncState is the checkpoint of a mailbox folder: the last UID fully processed.
// LastUID only means something under the UIDVALIDITY it was taken with.
type MailboxSyncState struct {
	ID          string    `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	MailboxID   string    `gorm:"column:mailbox_id;type:varchar(50);not null;uniqueIndex:idx_sync_state_folder,priority:1"`
	FolderName  string    `gorm:"column:folder_name;type:varchar(100);not null;uniqueIndex:idx_sync_state_folder,priority:2"`
	UIDValidity uint32    `gorm:"column:uid_validity;not null;default:0"`
	LastUID     uint32    `gorm:"column:last_uid;not null"`
	LastSync    time.Time `gorm:"column:last_sync;type:timestamp;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (MailboxSyncState) TableName() string {
	return "mailbox_sync_states"
}

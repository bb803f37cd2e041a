package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/utils"
)

// EmailAttachment is the metadata of an attachment part. Bytes are fetched on demand
// and the storage fields stay empty until then.
type EmailAttachment struct {
	ID              string `gorm:"type:varchar(50);primaryKey" json:"id"`
	EmailID         string `gorm:"type:varchar(50);index;not null;uniqueIndex:idx_attachment_part,priority:1" json:"emailId"`
	ThreadID        string `gorm:"type:varchar(50);index" json:"threadId"`
	MailboxID       string `gorm:"type:varchar(50);index;not null" json:"mailboxId"`
	Folder          string `gorm:"type:varchar(100);not null" json:"folder"`
	ImapUID         uint32 `gorm:"not null" json:"imapUid"`
	// ImapUIDValidity is the folder UIDVALIDITY ImapUID was read under
	ImapUIDValidity uint32 `gorm:"not null;default:0" json:"imapUidValidity"`
	Locator         string `gorm:"type:varchar(100);not null;uniqueIndex:idx_attachment_part,priority:2" json:"locator"`
	Encoding        string `gorm:"type:varchar(50)" json:"encoding"`
	Filename        string `gorm:"type:varchar(500)" json:"filename"`
	ContentType     string `gorm:"type:varchar(255)" json:"contentType"`
	ContentID       string `gorm:"type:varchar(255)" json:"contentId"`
	Size            uint32 `gorm:"default:0" json:"size"`
	IsInline        bool   `gorm:"default:false" json:"isInline"`

	// Storage, set once the bytes were downloaded
	StorageService string     `gorm:"type:varchar(50)" json:"storageService"`
	StorageBucket  string     `gorm:"type:varchar(255)" json:"storageBucket"`
	StorageKey     string     `gorm:"type:varchar(1000)" json:"storageKey"`
	ContentHash    string     `gorm:"type:varchar(64);index" json:"contentHash"`
	DownloadedAt   *time.Time `gorm:"type:timestamp" json:"downloadedAt"`

	// Standard timestamps
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

// TableName overrides the table name for EmailAttachment
func (EmailAttachment) TableName() string {
	return "email_attachments"
}

func (e *EmailAttachment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("file", 12)
	}
	e.CreatedAt = utils.Now()
	return nil
}

func (e *EmailAttachment) IsStored() bool {
	return e.StorageKey != ""
}

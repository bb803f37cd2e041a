package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/utils"
)

type EmailThread struct {
	ID                string         `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MailboxID         string         `gorm:"column:mailbox_id;type:varchar(50);index:idx_thread_key,priority:1;index:idx_thread_subject,priority:1" json:"mailboxId"`
	ThreadKey         string         `gorm:"column:thread_key;type:varchar(1000);index:idx_thread_key,priority:2" json:"threadKey"`
	Subject           string         `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	NormalizedSubject string         `gorm:"column:normalized_subject;type:varchar(1000);index:idx_thread_subject,priority:2" json:"normalizedSubject"`
	Participants      pq.StringArray `gorm:"column:participants;type:text[]" json:"participants"`
	MessageCount      int            `gorm:"column:message_count;default:0" json:"messageCount"`
	Unread            bool           `gorm:"column:unread;default:false" json:"unread"`
	LastMessageID     string         `gorm:"column:last_message_id;type:varchar(255)" json:"lastMessageId"`
	HasAttachments    bool           `gorm:"column:has_attachments;default:false" json:"hasAttachments"`
	OrderID           string         `gorm:"column:order_id;type:varchar(50);index" json:"orderId"`
	LastMessageAt     *time.Time     `gorm:"column:last_message_at;type:timestamp" json:"lastMessageAt"`
	FirstMessageAt    *time.Time     `gorm:"column:first_message_at;type:timestamp" json:"firstMessageAt"`
	CreatedAt         time.Time      `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (EmailThread) TableName() string {
	return "email_threads"
}

func (e *EmailThread) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("thrd", 16)
	}
	e.CreatedAt = utils.Now()
	return nil
}

// AddMessage folds one message into the thread aggregates
func (e *EmailThread) AddMessage(messageID string, participants []string, at time.Time, unread, hasAttachments bool, orderID string) {
	e.Participants = utils.AppendUnique(e.Participants, participants...)
	e.MessageCount++
	e.Unread = e.Unread || unread
	e.HasAttachments = e.HasAttachments || hasAttachments
	if e.OrderID == "" {
		e.OrderID = orderID
	}

	if !at.IsZero() {
		messageAt := at.UTC()
		if e.LastMessageAt == nil || messageAt.After(*e.LastMessageAt) {
			e.LastMessageAt = &messageAt
			e.LastMessageID = utils.NormalizeMessageID(messageID)
		}
		if e.FirstMessageAt == nil || messageAt.Before(*e.FirstMessageAt) {
			e.FirstMessageAt = &messageAt
		}
	}
	e.UpdatedAt = utils.Now()
}

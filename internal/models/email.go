package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/utils"
)

// Email represents an imported message
type Email struct {
	ID              string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MailboxID       string             `gorm:"column:mailbox_id;type:varchar(50);not null;uniqueIndex:idx_email_remote_uid,priority:1" json:"mailboxId"`
	Provider        enum.EmailProvider `gorm:"column:provider;type:varchar(50);index;not null" json:"provider"`
	Folder          string             `gorm:"column:folder;type:varchar(100);not null;uniqueIndex:idx_email_remote_uid,priority:2" json:"folder"`
	// UIDs are unique per folder and UIDVALIDITY
	ImapUIDValidity uint32             `gorm:"column:imap_uid_validity;not null;default:0;uniqueIndex:idx_email_remote_uid,priority:3" json:"imapUidValidity"`
	ImapUID         uint32             `gorm:"column:imap_uid;not null;uniqueIndex:idx_email_remote_uid,priority:4" json:"imapUid"`
	MessageID       string             `gorm:"column:message_id;type:varchar(255);uniqueIndex:idx_email_message_id,where:message_id <> ''" json:"messageId"`
	ThreadID        string             `gorm:"column:thread_id;type:varchar(50);index" json:"threadId"`
	InReplyTo       string             `gorm:"column:in_reply_to;type:varchar(255);index" json:"inReplyTo"`
	References      pq.StringArray     `gorm:"column:references;type:text[]" json:"references"`

	// Core email metadata
	Subject      string         `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	FromAddress  string         `gorm:"column:from_address;type:varchar(255);index" json:"fromAddress"`
	FromName     string         `gorm:"column:from_name;type:varchar(255)" json:"fromName"`
	ToAddresses  pq.StringArray `gorm:"column:to_addresses;type:text[]" json:"toAddresses"`
	CcAddresses  pq.StringArray `gorm:"column:cc_addresses;type:text[]" json:"ccAddresses"`
	Unread       bool           `gorm:"column:unread;default:false" json:"unread"`

	// Time information
	SentAt     *time.Time `gorm:"column:sent_at;type:timestamp;index" json:"sentAt"`
	ReceivedAt *time.Time `gorm:"column:received_at;type:timestamp;index" json:"receivedAt"`

	// Content, only the preferred representation is stored
	BodyText        string `gorm:"column:body_text;type:text" json:"bodyText"`
	BodyHTML        string `gorm:"column:body_html;type:text" json:"bodyHtml"`
	BodyUnavailable bool   `gorm:"column:body_unavailable;default:false" json:"bodyUnavailable"`
	HasAttachment   bool   `gorm:"column:has_attachment;default:false" json:"hasAttachment"`

	// Order link
	OrderID     string           `gorm:"column:order_id;type:varchar(50);index" json:"orderId"`
	MatchMethod enum.MatchMethod `gorm:"column:match_method;type:varchar(50)" json:"matchMethod"`

	// Standard timestamps
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	e.CreatedAt = utils.Now()
	return nil
}

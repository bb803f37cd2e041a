package dto

import (
	"time"

	"github.com/customeros/mailsync/internal/enum"
)

// EmailImported is published once per newly stored message
type EmailImported struct {
	EmailID       string           `json:"emailId"`
	ThreadID      string           `json:"threadId"`
	MailboxID     string           `json:"mailboxId"`
	Folder        string           `json:"folder"`
	ImapUID       uint32           `json:"imapUid"`
	MessageID     string           `json:"messageId"`
	FromAddress   string           `json:"fromAddress"`
	Subject       string           `json:"subject"`
	SentAt        *time.Time       `json:"sentAt,omitempty"`
	HasAttachment bool             `json:"hasAttachment"`
	OrderID       string           `json:"orderId,omitempty"`
	MatchMethod   enum.MatchMethod `json:"matchMethod"`
	NewThread     bool             `json:"newThread"`
	Backfill      bool             `json:"backfill"`
}

package dto

import (
	"github.com/customeros/mailsync/internal/enum"
)

type AddMailboxRequest struct {
	EmailAddress string             `json:"emailAddress" binding:"required"`
	DisplayName  string             `json:"displayName"`
	Provider     enum.EmailProvider `json:"provider"`
	ImapServer   string             `json:"imapServer" binding:"required"`
	ImapPort     int                `json:"imapPort" binding:"required"`
	ImapUsername string             `json:"imapUsername" binding:"required"`
	ImapPassword string             `json:"imapPassword" binding:"required"`
	ImapSecurity enum.EmailSecurity `json:"imapSecurity"`
	Folders      []string           `json:"folders"`
	// SyncEnabled defaults to true
	SyncEnabled *bool `json:"syncEnabled"`
}

type BackfillRequest struct {
	Folder string `json:"folder"`
	Limit  int    `json:"limit"`
	Force  bool   `json:"force"`
}

type OrderMatchRequest struct {
	Subject     string `json:"subject"`
	Text        string `json:"text"`
	SenderEmail string `json:"senderEmail"`
}

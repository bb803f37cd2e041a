package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/utils"
)

type Mailbox struct {
	ID       string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Provider enum.EmailProvider `gorm:"column:provider;type:varchar(50);index;not null" json:"provider"`
	// IMAP Configuration
	ImapServer   string             `gorm:"column:imap_server;type:varchar(255);not null" json:"imapServer"`
	ImapPort     int                `gorm:"column:imap_port;not null" json:"imapPort"`
	ImapUsername string             `gorm:"column:imap_username;type:varchar(255);not null" json:"imapUsername"`
	ImapPassword string             `gorm:"column:imap_password;type:varchar(255);not null" json:"-"`
	ImapSecurity enum.EmailSecurity `gorm:"column:imap_security;type:varchar(50);not null;default:tls" json:"imapSecurity"`
	// Other Configuration
	Folders      pq.StringArray `gorm:"column:folders;type:text[];not null" json:"folders"`
	DisplayName  string         `gorm:"column:display_name;type:varchar(255)" json:"displayName"`
	EmailAddress string         `gorm:"column:email_address;type:varchar(255);uniqueIndex" json:"emailAddress"`
	SyncEnabled  bool           `gorm:"column:sync_enabled;not null;default:true" json:"syncEnabled"`
	// Status Information
	LastSynced   *time.Time `gorm:"column:last_synced;type:timestamp" json:"lastSynced"`
	SyncStatus   string     `gorm:"column:sync_status;type:varchar(50)" json:"syncStatus"`
	ErrorMessage string     `gorm:"column:error_message;type:text" json:"errorMessage"`
	// Standard timestamps
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName sets the table name
func (Mailbox) TableName() string {
	return "mailboxes"
}

func (m *Mailbox) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("mbox", 16)
	}
	return nil
}

// HasCredentials reports whether the mailbox carries everything needed to log in.
func (m *Mailbox) HasCredentials() bool {
	return m.ImapServer != "" && m.ImapPort > 0 && m.ImapUsername != "" && m.ImapPassword != ""
}

// SyncFolders returns the configured folders, or the given defaults when none are set.
func (m *Mailbox) SyncFolders(defaults []string) []string {
	if len(m.Folders) > 0 {
		return m.Folders
	}
	return defaults
}

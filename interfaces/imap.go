package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/services/mime"
)

// RemoteMessageRef identifies a message as the IMAP server sees it
type RemoteMessageRef struct {
	MailboxID   string
	Folder      string
	UIDValidity uint32
	UID         uint32
	MessageID   string
}

type ParsedEnvelope struct {
	From       string
	FromName   string
	To         []string
	Cc         []string
	Subject    string
	Date       time.Time
	MessageID  string
	InReplyTo  string
	References []string
	Unread     bool
}

// Participants returns sender and recipients, deduplicated
func (e ParsedEnvelope) Participants() []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]string{{e.From}, e.To, e.Cc} {
		for _, addr := range group {
			if addr == "" || seen[addr] {
				continue
			}
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}

type FetchedMessage struct {
	Ref      RemoteMessageRef
	Envelope ParsedEnvelope
	// Structure is nil when the server returned no BODYSTRUCTURE
	Structure mime.Node
	Size      uint32
}

type FolderInfo struct {
	Name        string
	Messages    uint32
	UIDNext     uint32
	UIDValidity uint32
}

// MailSession is one logged-in IMAP connection. It is not safe for concurrent use.
type MailSession interface {
	SelectFolder(ctx context.Context, folder string) (*FolderInfo, error)
	SearchUIDsSince(ctx context.Context, afterUID uint32) ([]uint32, error)
	LastUIDs(ctx context.Context, n int) ([]uint32, error)
	FetchMessages(ctx context.Context, uids []uint32) ([]*FetchedMessage, error)
	FetchPart(ctx context.Context, uid uint32, locator string, timeout time.Duration) ([]byte, error)
	FetchRaw(ctx context.Context, uid uint32, timeout time.Duration) ([]byte, error)
	Logout() error
}

type SessionDialer interface {
	Dial(ctx context.Context, mailbox *models.Mailbox) (MailSession, error)
}

type MailboxStatus struct {
	MailboxID   string                 `json:"mailboxId"`
	Connected   bool                   `json:"connected"`
	Syncing     bool                   `json:"syncing"`
	LastError   string                 `json:"lastError,omitempty"`
	LastChecked time.Time              `json:"lastChecked"`
	Folders     map[string]FolderStats `json:"folders"`
}

type FolderStats struct {
	Total    uint32    `json:"total"`
	LastUID  uint32    `json:"lastUid"`
	Imported int       `json:"imported"`
	LastSync time.Time `json:"lastSync"`
}

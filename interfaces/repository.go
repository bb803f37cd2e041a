package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailsync/internal/models"
)

type MailboxRepository interface {
	GetMailboxes(ctx context.Context) ([]*models.Mailbox, error)
	GetMailbox(ctx context.Context, id string) (*models.Mailbox, error)
	GetMailboxByEmailAddress(ctx context.Context, emailAddress string) (*models.Mailbox, error)
	SaveMailbox(ctx context.Context, mailbox *models.Mailbox) error
	DeleteMailbox(ctx context.Context, id string) error
	UpdateSyncStatus(ctx context.Context, mailboxID, status, errorMessage string, syncedAt *time.Time) error
}

type MailboxSyncRepository interface {
	GetSyncState(ctx context.Context, mailboxID, folderName string) (*models.MailboxSyncState, error)
	AdvanceSyncState(ctx context.Context, mailboxID, folderName string, uidValidity, uid uint32) error
	DeleteSyncState(ctx context.Context, mailboxID, folderName string) error
	DeleteMailboxSyncStates(ctx context.Context, mailboxID string) error
	GetMailboxSyncStates(ctx context.Context, mailboxID string) (map[string]uint32, error)
	DeleteOrphanedSyncStates(ctx context.Context) (int64, error)
}

type EmailRepository interface {
	// Create reports created=false when the message is already stored
	Create(ctx context.Context, email *models.Email) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Email, error)
	GetByUID(ctx context.Context, mailboxID, folder string, uidValidity, uid uint32) (*models.Email, error)
	GetByMessageID(ctx context.Context, messageID string) (*models.Email, error)
	ListByThread(ctx context.Context, threadID string) ([]*models.Email, error)
}

// ThreadMerge carries what a new message contributes to its thread
type ThreadMerge struct {
	MessageID      string
	Participants   []string
	MessageAt      time.Time
	Unread         bool
	HasAttachments bool
	OrderID        string
}

type EmailThreadRepository interface {
	Create(ctx context.Context, thread *models.EmailThread) (string, error)
	GetByID(ctx context.Context, id string) (*models.EmailThread, error)
	GetByThreadKey(ctx context.Context, mailboxID, threadKey string) (*models.EmailThread, error)
	FindBySubjectWithin(ctx context.Context, mailboxID, normalizedSubject string, at time.Time, window time.Duration) (*models.EmailThread, error)
	MergeMessage(ctx context.Context, threadID string, merge ThreadMerge) (*models.EmailThread, error)
	DeleteIfEmpty(ctx context.Context, threadID string) (bool, error)
}

type EmailAttachmentRepository interface {
	Create(ctx context.Context, attachment *models.EmailAttachment) error
	GetByID(ctx context.Context, id string) (*models.EmailAttachment, error)
	ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error)
	SetStorage(ctx context.Context, id, service, bucket, key, contentHash string) error
}

type OrderRepository interface {
	GetByOrderNumbers(ctx context.Context, orderNumbers []string) ([]*models.Order, error)
	ListByCustomerEmail(ctx context.Context, email string) ([]*models.Order, error)
}

type SyncRunRepository interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Finish(ctx context.Context, run *models.SyncRun) error
	ListByMailbox(ctx context.Context, mailboxID string, limit int) ([]*models.SyncRun, error)
}

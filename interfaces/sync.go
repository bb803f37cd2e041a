package interfaces

import (
	"context"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

// MailboxSyncScheduler is what the cron jobs need from the sync service
type MailboxSyncScheduler interface {
	SyncAllMailboxes(ctx context.Context) error
	CleanupSyncStates(ctx context.Context) (int64, error)
}

// MailboxSyncService is the sync surface used by the REST API and the CLI
type MailboxSyncService interface {
	MailboxSyncScheduler
	SyncMailbox(ctx context.Context, mailboxID string, trigger enum.SyncTrigger) (*dto.MailboxSyncCompleted, error)
	RequestRefresh(ctx context.Context, mailboxID string) (*dto.MailboxSyncCompleted, error)
	Backfill(ctx context.Context, mailboxID, folder string, limit int, force bool, trigger enum.SyncTrigger) (*dto.MailboxSyncCompleted, error)
	AddMailbox(ctx context.Context, mailbox *models.Mailbox) error
	RemoveMailbox(ctx context.Context, mailboxID string) error
	ListMailboxes(ctx context.Context) ([]*models.Mailbox, error)
	Status(ctx context.Context) (map[string]*MailboxStatus, error)
	MailboxStatus(ctx context.Context, mailboxID string) (*MailboxStatus, error)
	RecentRuns(ctx context.Context, mailboxID string, limit int) ([]*models.SyncRun, error)
}

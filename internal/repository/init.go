package repository

import (
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
)

type Repositories struct {
	EmailRepository           interfaces.EmailRepository
	EmailAttachmentRepository interfaces.EmailAttachmentRepository
	EmailThreadRepository     interfaces.EmailThreadRepository
	MailboxRepository         interfaces.MailboxRepository
	MailboxSyncRepository     interfaces.MailboxSyncRepository
	OrderRepository           interfaces.OrderRepository
	SyncRunRepository         interfaces.SyncRunRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		EmailRepository:           NewEmailRepository(db),
		EmailAttachmentRepository: NewEmailAttachmentRepository(db),
		EmailThreadRepository:     NewEmailThreadRepository(db),
		MailboxRepository:         NewMailboxRepository(db),
		MailboxSyncRepository:     NewMailboxSyncRepository(db),
		OrderRepository:           NewOrderRepository(db),
		SyncRunRepository:         NewSyncRunRepository(db),
	}
}

func MigrateMailsyncDB(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

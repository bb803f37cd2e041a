package services

import (
	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/services/attachments"
	"github.com/customeros/mailsync/services/events"
	"github.com/customeros/mailsync/services/imap"
	"github.com/customeros/mailsync/services/mailboxsync"
	"github.com/customeros/mailsync/services/ordermatch"
	"github.com/customeros/mailsync/services/storage"
	"github.com/customeros/mailsync/services/threading"
)

type Services struct {
	EventsService     *events.EventsService
	StorageService    interfaces.StorageService
	SyncService       *mailboxsync.SyncService
	AttachmentService *attachments.AttachmentService
	ThreadService     *threading.Resolver
	OrderMatcher      *ordermatch.Matcher
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	syncConfig := cfg.SyncConfig
	if syncConfig == nil {
		syncConfig = config.DefaultSyncConfig()
	}

	eventsService, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, events.DefaultPublisherConfig())
	if err != nil {
		return nil, err
	}

	// attachments are served straight from IMAP when R2 is not configured
	var storageService interfaces.StorageService
	if r2 := storage.NewR2StorageService(cfg.R2StorageConfig); r2 != nil {
		storageService = r2
	} else {
		log.Warn("R2 storage not configured, attachments will not be cached")
	}

	dialer := imap.NewDialer(log, syncConfig.ConnectTimeout)

	services := Services{
		EventsService:     eventsService,
		StorageService:    storageService,
		SyncService:       mailboxsync.NewSyncService(syncConfig, log, repos, dialer, eventsService.Publisher),
		AttachmentService: attachments.NewAttachmentService(syncConfig, log, repos.EmailAttachmentRepository, repos.MailboxRepository, dialer, storageService),
		ThreadService:     threading.NewResolver(repos.EmailThreadRepository, repos.EmailRepository, log, syncConfig.ThreadSubjectWindow),
		OrderMatcher:      ordermatch.NewMatcher(repos.OrderRepository, log, syncConfig.OrderNumberMaxPadWidth),
	}

	return &services, nil
}

package mailboxsync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	mailsyncErrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
	"github.com/customeros/mailsync/services/imap"
)

const (
	SyncStatusSyncing = "syncing"
	SyncStatusOK      = "ok"
	SyncStatusError   = "error"
)

// SyncService runs mailbox syncs for the scheduler, the API and the CLI
type SyncService struct {
	cfg          *config.SyncConfig
	log          logger.Logger
	repos        *repository.Repositories
	dialer       interfaces.SessionDialer
	publisher    interfaces.EventPublisher
	orchestrator *Orchestrator
	gate         *MailboxGate

	statusMutex sync.RWMutex
	statuses    map[string]*interfaces.MailboxStatus
}

func NewSyncService(cfg *config.SyncConfig, log logger.Logger, repos *repository.Repositories, dialer interfaces.SessionDialer, publisher interfaces.EventPublisher) *SyncService {
	if cfg == nil {
		cfg = config.DefaultSyncConfig()
	}
	return &SyncService{
		cfg:          cfg,
		log:          log,
		repos:        repos,
		dialer:       dialer,
		publisher:    publisher,
		orchestrator: NewOrchestrator(cfg, log, repos, publisher),
		gate:         NewMailboxGate(cfg.ManualRefreshInterval),
		statuses:     make(map[string]*interfaces.MailboxStatus),
	}
}

// SyncMailbox syncs every configured folder of the mailbox over one session.
// It fails fast with ErrSyncInProgress when another run holds the mailbox.
func (s *SyncService) SyncMailbox(ctx context.Context, mailboxID string, trigger enum.SyncTrigger) (*dto.MailboxSyncCompleted, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.SyncMailbox")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMailbox(span, mailboxID, "")
	span.LogFields(tracingLog.String("trigger", trigger.String()))

	mailbox, err := s.loadMailbox(ctx, mailboxID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	unlock, ok := s.gate.TryLock(mailboxID)
	if !ok {
		return nil, mailsyncErrors.ErrSyncInProgress
	}
	defer unlock()

	summary, err := s.runFolders(ctx, mailbox, trigger, func(ctx context.Context, session interfaces.MailSession, folder string) (*SyncResult, error) {
		return s.orchestrator.SyncFolder(ctx, session, mailbox, folder)
	}, mailbox.SyncFolders(s.cfg.DefaultFolders))
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return summary, err
}

// Backfill imports the most recent limit messages of one folder
func (s *SyncService) Backfill(ctx context.Context, mailboxID, folder string, limit int, force bool, trigger enum.SyncTrigger) (*dto.MailboxSyncCompleted, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.Backfill")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMailbox(span, mailboxID, folder)

	mailbox, err := s.loadMailbox(ctx, mailboxID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if folder == "" {
		folder = mailbox.SyncFolders(s.cfg.DefaultFolders)[0]
	}

	unlock, ok := s.gate.TryLock(mailboxID)
	if !ok {
		return nil, mailsyncErrors.ErrSyncInProgress
	}
	defer unlock()

	return s.runFolders(ctx, mailbox, trigger, func(ctx context.Context, session interfaces.MailSession, folder string) (*SyncResult, error) {
		return s.orchestrator.RunBackfill(ctx, session, mailbox, folder, limit, force)
	}, []string{folder})
}

// RequestRefresh is the manual trigger, limited to one run per refresh interval
func (s *SyncService) RequestRefresh(ctx context.Context, mailboxID string) (*dto.MailboxSyncCompleted, error) {
	if _, err := s.loadMailbox(ctx, mailboxID); err != nil {
		return nil, err
	}
	if s.gate.IsLocked(mailboxID) {
		return nil, mailsyncErrors.ErrSyncInProgress
	}
	if !s.gate.AllowRefresh(mailboxID) {
		return nil, mailsyncErrors.ErrRateLimited
	}
	return s.SyncMailbox(ctx, mailboxID, enum.SyncTriggerManual)
}

// SyncAllMailboxes is the scheduled trigger. Mailboxes already syncing are skipped.
func (s *SyncService) SyncAllMailboxes(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.SyncAllMailboxes")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	mailboxes, err := s.repos.MailboxRepository.GetMailboxes(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "error listing mailboxes")
	}

	synced := 0
	for _, mailbox := range mailboxes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !mailbox.SyncEnabled {
			continue
		}

		_, err := s.SyncMailbox(ctx, mailbox.ID, enum.SyncTriggerScheduled)
		switch {
		case errors.Is(err, mailsyncErrors.ErrSyncInProgress):
			s.log.Debugf("[%s] Sync already running, skipping", mailbox.ID)
		case err != nil:
			s.log.Errorf("[%s] Scheduled sync failed: %v", mailbox.ID, err)
		default:
			synced++
		}
	}

	span.LogFields(tracingLog.Int("mailboxes.synced", synced))
	return nil
}

type folderRunner func(ctx context.Context, session interfaces.MailSession, folder string) (*SyncResult, error)

// runFolders opens one session and runs each folder in order. A connection failure
// ends the whole run, other folder errors are recorded and the next folder runs.
func (s *SyncService) runFolders(ctx context.Context, mailbox *models.Mailbox, trigger enum.SyncTrigger, run folderRunner, folders []string) (*dto.MailboxSyncCompleted, error) {
	summary := &dto.MailboxSyncCompleted{
		MailboxID: mailbox.ID,
		Trigger:   trigger,
		StartedAt: utils.Now(),
	}
	s.setSyncing(mailbox.ID, true)
	defer s.setSyncing(mailbox.ID, false)

	s.updateMailboxStatus(ctx, mailbox.ID, SyncStatusSyncing, "", nil)

	session, err := s.dialer.Dial(ctx, mailbox)
	if err != nil {
		s.recordFailure(ctx, mailbox.ID, err)
		return nil, errors.Wrap(err, "error connecting to mailbox")
	}
	s.setConnected(mailbox.ID, true)
	defer func() {
		if err := session.Logout(); err != nil {
			s.log.Debugf("[%s] Logout error: %v", mailbox.ID, err)
		}
		s.setConnected(mailbox.ID, false)
	}()

	var runErr error
	for _, folder := range folders {
		syncRun := s.startRun(ctx, mailbox.ID, folder, trigger)

		result, err := run(ctx, session, folder)
		if result == nil {
			result = newSyncResult(mailbox.ID, folder, enum.SyncModeIncremental, s.cfg.MaxErrorsReported)
		}
		if err != nil && result.AbortErr == nil {
			result.AbortErr = err
		}
		s.finishRun(ctx, syncRun, result)
		s.recordFolder(mailbox.ID, result)

		summary.Folders = append(summary.Folders, result.toDTO())
		summary.Imported += result.ImportedCount
		summary.Errors += result.ErrorCount

		if err != nil {
			s.log.Errorf("[%s][%s] Folder sync failed: %v", mailbox.ID, folder, err)
			if imap.IsConnectionError(err) || ctx.Err() != nil {
				runErr = err
				summary.Aborted = true
				break
			}
			summary.Errors++
		}
	}
	summary.FinishedAt = utils.Now()

	if runErr != nil {
		s.recordFailure(ctx, mailbox.ID, runErr)
	} else {
		finished := summary.FinishedAt
		s.updateMailboxStatus(ctx, mailbox.ID, SyncStatusOK, "", &finished)
		s.setLastError(mailbox.ID, "")
	}

	if s.publisher != nil {
		if err := s.publisher.PublishFanoutEvent(ctx, mailbox.ID, enum.MAILBOX_SYNC, *summary); err != nil {
			s.log.Warnf("[%s] Failed to publish sync summary: %v", mailbox.ID, err)
		}
	}

	return summary, runErr
}

func (s *SyncService) loadMailbox(ctx context.Context, mailboxID string) (*models.Mailbox, error) {
	mailbox, err := s.repos.MailboxRepository.GetMailbox(ctx, mailboxID)
	if err != nil {
		return nil, err
	}
	if mailbox == nil {
		return nil, mailsyncErrors.ErrMailboxNotFound
	}
	if !mailbox.HasCredentials() {
		return nil, mailsyncErrors.ErrMissingCredentials
	}
	return mailbox, nil
}

func (s *SyncService) startRun(ctx context.Context, mailboxID, folder string, trigger enum.SyncTrigger) *models.SyncRun {
	run := &models.SyncRun{
		MailboxID: mailboxID,
		Folder:    folder,
		Trigger:   trigger,
		Mode:      enum.SyncModeIncremental,
		Status:    enum.SyncRunRunning,
		StartedAt: utils.Now(),
	}
	if err := s.repos.SyncRunRepository.Create(ctx, run); err != nil {
		s.log.Warnf("[%s][%s] Failed to record sync run: %v", mailboxID, folder, err)
		return nil
	}
	return run
}

func (s *SyncService) finishRun(ctx context.Context, run *models.SyncRun, result *SyncResult) {
	if run == nil {
		return
	}
	finished := utils.Now()
	run.Mode = result.Mode
	run.ImportedCount = result.ImportedCount
	run.SkippedCount = result.SkippedCount
	run.ErrorCount = result.ErrorCount
	run.Errors = result.Errors
	run.FromUID = result.FromUID
	run.ToUID = result.LastUID
	run.FinishedAt = &finished
	run.Status = enum.SyncRunCompleted
	if result.Aborted() {
		run.Status = enum.SyncRunAborted
		run.Errors = append(run.Errors, "aborted: "+result.AbortErr.Error())
	}
	if err := s.repos.SyncRunRepository.Finish(ctx, run); err != nil {
		s.log.Warnf("[%s][%s] Failed to finish sync run %s: %v", run.MailboxID, run.Folder, run.ID, err)
	}
}

func (s *SyncService) recordFailure(ctx context.Context, mailboxID string, err error) {
	s.updateMailboxStatus(ctx, mailboxID, SyncStatusError, utils.Truncate(err.Error(), 1000), nil)
	s.setLastError(mailboxID, err.Error())
}

func (s *SyncService) updateMailboxStatus(ctx context.Context, mailboxID, status, errMsg string, syncedAt *time.Time) {
	if err := s.repos.MailboxRepository.UpdateSyncStatus(ctx, mailboxID, status, errMsg, syncedAt); err != nil {
		s.log.Warnf("[%s] Failed to update sync status: %v", mailboxID, err)
	}
}

// AddMailbox validates and stores a new mailbox
func (s *SyncService) AddMailbox(ctx context.Context, mailbox *models.Mailbox) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.AddMailbox")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	mailbox.EmailAddress = utils.CleanEmailAddress(mailbox.EmailAddress)
	if mailbox.EmailAddress == "" {
		return errors.Wrap(mailsyncErrors.ErrMissingCredentials, "valid email address required")
	}
	if !mailbox.HasCredentials() {
		return mailsyncErrors.ErrMissingCredentials
	}

	existing, err := s.repos.MailboxRepository.GetMailboxByEmailAddress(ctx, mailbox.EmailAddress)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if existing != nil {
		return mailsyncErrors.ErrMailboxExists
	}

	if mailbox.Provider == "" {
		mailbox.Provider = enum.EmailGeneric
	}
	if mailbox.ImapSecurity == "" {
		mailbox.ImapSecurity = enum.EmailSecurityTLS
	}
	folders := make([]string, 0, len(mailbox.Folders))
	for _, f := range mailbox.Folders {
		if f = strings.TrimSpace(f); f != "" {
			folders = utils.AppendUnique(folders, f)
		}
	}
	if len(folders) == 0 {
		folders = append(folders, s.cfg.DefaultFolders...)
	}
	mailbox.Folders = folders

	if err = s.repos.MailboxRepository.SaveMailbox(ctx, mailbox); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, mailbox.ID)

	s.statusMutex.Lock()
	s.statuses[mailbox.ID] = newStatus(mailbox.ID)
	s.statusMutex.Unlock()

	s.log.Infof("[%s] Mailbox %s added with folders %v", mailbox.ID, mailbox.EmailAddress, mailbox.Folders)
	return nil
}

// RemoveMailbox deletes the mailbox and its checkpoints. Imported emails stay.
func (s *SyncService) RemoveMailbox(ctx context.Context, mailboxID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.RemoveMailbox")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, mailboxID)

	mailbox, err := s.repos.MailboxRepository.GetMailbox(ctx, mailboxID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if mailbox == nil {
		return mailsyncErrors.ErrMailboxNotFound
	}

	if err = s.repos.MailboxRepository.DeleteMailbox(ctx, mailboxID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if err = s.repos.MailboxSyncRepository.DeleteMailboxSyncStates(ctx, mailboxID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	s.gate.Forget(mailboxID)
	s.statusMutex.Lock()
	delete(s.statuses, mailboxID)
	s.statusMutex.Unlock()
	return nil
}

func (s *SyncService) ListMailboxes(ctx context.Context) ([]*models.Mailbox, error) {
	return s.repos.MailboxRepository.GetMailboxes(ctx)
}

// CleanupSyncStates removes checkpoints of mailboxes that no longer exist
func (s *SyncService) CleanupSyncStates(ctx context.Context) (int64, error) {
	deleted, err := s.repos.MailboxSyncRepository.DeleteOrphanedSyncStates(ctx)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Infof("Deleted %d orphaned sync states", deleted)
	}
	return deleted, nil
}

// RecentRuns lists the latest sync runs of a mailbox
func (s *SyncService) RecentRuns(ctx context.Context, mailboxID string, limit int) ([]*models.SyncRun, error) {
	return s.repos.SyncRunRepository.ListByMailbox(ctx, mailboxID, limit)
}

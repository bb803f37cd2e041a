package mailboxsync

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
	"github.com/customeros/mailsync/services/imap"
	"github.com/customeros/mailsync/services/mime"
	"github.com/customeros/mailsync/services/ordermatch"
	"github.com/customeros/mailsync/services/threading"
)

// Orchestrator imports the messages of one folder through an open session.
// Messages are processed in ascending UID order and the checkpoint advances after
// each one, so an aborted run resumes where it stopped.
type Orchestrator struct {
	cfg       *config.SyncConfig
	log       logger.Logger
	repos     *repository.Repositories
	bodies    *mime.Resolver
	threads   *threading.Resolver
	matcher   *ordermatch.Matcher
	dedup     *DedupGuard
	publisher interfaces.EventPublisher
}

func NewOrchestrator(cfg *config.SyncConfig, log logger.Logger, repos *repository.Repositories, publisher interfaces.EventPublisher) *Orchestrator {
	if cfg == nil {
		cfg = config.DefaultSyncConfig()
	}
	return &Orchestrator{
		cfg:   cfg,
		log:   log,
		repos: repos,
		bodies: mime.NewResolver(log, mime.ResolverConfig{
			Attempts: cfg.PartFetchAttempts,
			Delay:    cfg.PartFetchDelay,
			IsFatal:  imap.IsFatalSessionError,
		}),
		threads:   threading.NewResolver(repos.EmailThreadRepository, repos.EmailRepository, log, cfg.ThreadSubjectWindow),
		matcher:   ordermatch.NewMatcher(repos.OrderRepository, log, cfg.OrderNumberMaxPadWidth),
		dedup:     NewDedupGuard(repos.EmailRepository),
		publisher: publisher,
	}
}

// SyncFolder backfills a folder without checkpoint, otherwise syncs incrementally
func (o *Orchestrator) SyncFolder(ctx context.Context, session interfaces.MailSession, mailbox *models.Mailbox, folder string) (*SyncResult, error) {
	state, err := o.repos.MailboxSyncRepository.GetSyncState(ctx, mailbox.ID, folder)
	if err != nil {
		return nil, errors.Wrap(err, "error reading checkpoint")
	}
	if state == nil || state.LastUID == 0 {
		return o.RunBackfill(ctx, session, mailbox, folder, o.cfg.BackfillLimit, false)
	}
	return o.RunIncrementalSync(ctx, session, mailbox, folder)
}

// RunIncrementalSync imports every message above the checkpoint
func (o *Orchestrator) RunIncrementalSync(ctx context.Context, session interfaces.MailSession, mailbox *models.Mailbox, folder string) (*SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Orchestrator.RunIncrementalSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMailbox(span, mailbox.ID, folder)

	result := newSyncResult(mailbox.ID, folder, enum.SyncModeIncremental, o.cfg.MaxErrorsReported)

	info, checkpoint, reset, err := o.openFolder(ctx, session, mailbox.ID, folder)
	if err != nil {
		tracing.TraceErr(span, err)
		return result, err
	}
	if reset {
		span.LogFields(tracingLog.Bool("checkpointReset", true))
		return o.RunBackfill(ctx, session, mailbox, folder, o.cfg.BackfillLimit, false)
	}
	result.FromUID = checkpoint
	result.LastUID = checkpoint

	uids, err := session.SearchUIDsSince(ctx, checkpoint)
	if err != nil {
		tracing.TraceErr(span, err)
		return result, err
	}
	span.LogFields(tracingLog.Uint32("checkpoint", checkpoint), tracingLog.Int("uids", len(uids)))

	if len(uids) == 0 {
		o.log.Debugf("[%s][%s] No new messages since UID %d", mailbox.ID, folder, checkpoint)
		return result, nil
	}

	o.log.Infof("[%s][%s] Syncing %d new messages since UID %d", mailbox.ID, folder, len(uids), checkpoint)
	err = o.processUIDs(ctx, session, mailbox, folder, info.UIDValidity, uids, o.cfg.IncrementalPartTimeout, result)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return result, err
}

// RunBackfill imports the limit most recent messages of the folder. Without force
// messages at or below the checkpoint are left alone.
func (o *Orchestrator) RunBackfill(ctx context.Context, session interfaces.MailSession, mailbox *models.Mailbox, folder string, limit int, force bool) (*SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Orchestrator.RunBackfill")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMailbox(span, mailbox.ID, folder)
	span.LogFields(tracingLog.Int("limit", limit), tracingLog.Bool("force", force))

	result := newSyncResult(mailbox.ID, folder, enum.SyncModeBackfill, o.cfg.MaxErrorsReported)

	if limit <= 0 {
		limit = o.cfg.BackfillLimit
	}
	if o.cfg.MaxBackfillLimitPerRequest > 0 && limit > o.cfg.MaxBackfillLimitPerRequest {
		limit = o.cfg.MaxBackfillLimitPerRequest
	}

	info, checkpoint, _, err := o.openFolder(ctx, session, mailbox.ID, folder)
	if err != nil {
		tracing.TraceErr(span, err)
		return result, err
	}
	result.LastUID = checkpoint

	uids, err := session.LastUIDs(ctx, limit)
	if err != nil {
		tracing.TraceErr(span, err)
		return result, err
	}
	if !force {
		uids = uidsAbove(uids, checkpoint)
	}
	if len(uids) == 0 {
		o.log.Debugf("[%s][%s] Nothing to backfill", mailbox.ID, folder)
		return result, nil
	}
	result.FromUID = uids[0]

	o.log.Infof("[%s][%s] Backfilling %d messages from UID %d", mailbox.ID, folder, len(uids), uids[0])
	err = o.processUIDs(ctx, session, mailbox, folder, info.UIDValidity, uids, o.cfg.BackfillPartTimeout, result)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return result, err
}

// openFolder selects the folder and reads its checkpoint. A checkpoint taken under
// another UIDVALIDITY is deleted and reported as reset, its UIDs now name other messages.
func (o *Orchestrator) openFolder(ctx context.Context, session interfaces.MailSession, mailboxID, folder string) (*interfaces.FolderInfo, uint32, bool, error) {
	info, err := session.SelectFolder(ctx, folder)
	if err != nil {
		return nil, 0, false, err
	}

	state, err := o.repos.MailboxSyncRepository.GetSyncState(ctx, mailboxID, folder)
	if err != nil {
		return nil, 0, false, errors.Wrap(err, "error reading checkpoint")
	}
	if state == nil {
		return info, 0, false, nil
	}
	if state.UIDValidity != info.UIDValidity {
		o.log.Warnf("[%s][%s] UIDVALIDITY changed from %d to %d, dropping checkpoint %d",
			mailboxID, folder, state.UIDValidity, info.UIDValidity, state.LastUID)
		if err = o.repos.MailboxSyncRepository.DeleteSyncState(ctx, mailboxID, folder); err != nil {
			return nil, 0, false, errors.Wrap(err, "error dropping stale checkpoint")
		}
		return info, 0, true, nil
	}
	return info, state.LastUID, false, nil
}

// processUIDs fetches metadata in batches and imports the messages one by one.
// It returns only errors that end the run.
func (o *Orchestrator) processUIDs(ctx context.Context, session interfaces.MailSession, mailbox *models.Mailbox, folder string, uidValidity uint32, uids []uint32, partTimeout time.Duration, result *SyncResult) error {
	batchSize := o.cfg.FetchBatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	for start := 0; start < len(uids); start += batchSize {
		if err := ctx.Err(); err != nil {
			result.AbortErr = err
			return err
		}

		end := start + batchSize
		if end > len(uids) {
			end = len(uids)
		}

		messages, err := session.FetchMessages(ctx, uids[start:end])
		if err != nil {
			result.AbortErr = err
			return errors.Wrapf(err, "error fetching UIDs %d-%d", uids[start], uids[end-1])
		}

		for _, msg := range messages {
			msg.Ref.UIDValidity = uidValidity
			err = o.importMessage(ctx, session, mailbox, msg, partTimeout, result)
			if err != nil {
				result.AbortErr = err
				return err
			}

			if err = o.repos.MailboxSyncRepository.AdvanceSyncState(ctx, mailbox.ID, folder, uidValidity, msg.Ref.UID); err != nil {
				result.AbortErr = err
				return errors.Wrap(err, "error advancing checkpoint")
			}
			if msg.Ref.UID > result.LastUID {
				result.LastUID = msg.Ref.UID
			}
		}
	}

	o.log.Infof("[%s][%s] Imported %d, skipped %d, %d errors, checkpoint %d",
		mailbox.ID, folder, result.ImportedCount, result.SkippedCount, result.ErrorCount, result.LastUID)
	return nil
}

// importMessage runs the per message pipeline. Failures that only concern this
// message are recorded on result and swallowed, the returned error aborts the run.
func (o *Orchestrator) importMessage(ctx context.Context, session interfaces.MailSession, mailbox *models.Mailbox, msg *interfaces.FetchedMessage, partTimeout time.Duration, result *SyncResult) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Orchestrator.importMessage")
	defer span.Finish()
	tracing.TagMailbox(span, mailbox.ID, msg.Ref.Folder)
	span.LogFields(tracingLog.Uint32("uid", msg.Ref.UID), tracingLog.String("messageId", msg.Ref.MessageID))

	uid := msg.Ref.UID
	env := msg.Envelope

	imported, err := o.dedup.IsAlreadyImported(ctx, msg.Ref)
	if err != nil {
		tracing.TraceErr(span, err)
		result.addError("UID %d: dedup lookup failed: %v", uid, err)
		return nil
	}
	if imported {
		result.SkippedCount++
		return nil
	}

	var body mime.DecodedBody
	var attachments []mime.AttachmentMeta
	if msg.Structure != nil {
		body = o.bodies.Resolve(ctx, session, uid, msg.Structure, partTimeout)
		attachments = mime.ExtractAttachments(msg.Structure)
	} else {
		body, attachments = o.bodies.ResolveRaw(ctx, session, uid, partTimeout)
	}
	if body.ConnErr != nil {
		tracing.TraceErr(span, body.ConnErr)
		return errors.Wrapf(body.ConnErr, "connection lost fetching body of UID %d", uid)
	}
	if body.Unavailable {
		result.addError("UID %d: body unavailable: %s", uid, body.Failure)
	}

	orderID, matchMethod := "", enum.MatchMethodNone
	match, err := o.matcher.MatchOrder(ctx, env.Subject, body.PlainText(), env.From)
	if err != nil {
		o.log.Warnf("[%s][%s] Order match failed for UID %d: %v", mailbox.ID, msg.Ref.Folder, uid, err)
		result.addError("UID %d: order match failed: %v", uid, err)
	} else {
		orderID, matchMethod = match.OrderID(), match.Method
	}

	thread, newThread, err := o.threads.FindOrCreate(ctx, mailbox.ID, env)
	if err != nil {
		tracing.TraceErr(span, err)
		result.addError("UID %d: thread resolution failed: %v", uid, err)
		return nil
	}

	email := buildEmail(mailbox, msg, body, thread.ID, len(attachments) > 0, orderID, matchMethod)
	created, err := o.repos.EmailRepository.Create(ctx, email)
	if err != nil {
		tracing.TraceErr(span, err)
		result.addError("UID %d: store failed: %v", uid, err)
		o.discardThread(ctx, mailbox.ID, thread.ID, newThread)
		return nil
	}
	if !created {
		result.SkippedCount++
		o.discardThread(ctx, mailbox.ID, thread.ID, newThread)
		return nil
	}

	if _, err = o.threads.AddMessage(ctx, thread.ID, env, len(attachments) > 0, orderID); err != nil {
		tracing.TraceErr(span, err)
		result.addError("UID %d: thread update failed: %v", uid, err)
	}

	for _, meta := range attachments {
		attachment := buildAttachment(email, meta)
		if err = o.repos.EmailAttachmentRepository.Create(ctx, attachment); err != nil {
			tracing.TraceErr(span, err)
			result.addError("UID %d: attachment %s not stored: %v", uid, meta.Locator, err)
		}
	}

	result.ImportedCount++
	o.publishImported(ctx, email, newThread, result.Mode == enum.SyncModeBackfill)
	return nil
}

// discardThread drops a thread created for a message that was not stored after all
func (o *Orchestrator) discardThread(ctx context.Context, mailboxID, threadID string, newThread bool) {
	if !newThread {
		return
	}
	if _, err := o.repos.EmailThreadRepository.DeleteIfEmpty(ctx, threadID); err != nil {
		o.log.Warnf("[%s] Failed to remove empty thread %s: %v", mailboxID, threadID, err)
	}
}

func (o *Orchestrator) publishImported(ctx context.Context, email *models.Email, newThread, backfill bool) {
	if o.publisher == nil || !o.cfg.PublishImportedEvents {
		return
	}
	err := o.publisher.PublishFanoutEvent(ctx, email.ID, enum.EMAIL, dto.EmailImported{
		EmailID:       email.ID,
		ThreadID:      email.ThreadID,
		MailboxID:     email.MailboxID,
		Folder:        email.Folder,
		ImapUID:       email.ImapUID,
		MessageID:     email.MessageID,
		FromAddress:   email.FromAddress,
		Subject:       email.Subject,
		SentAt:        email.SentAt,
		HasAttachment: email.HasAttachment,
		OrderID:       email.OrderID,
		MatchMethod:   email.MatchMethod,
		NewThread:     newThread,
		Backfill:      backfill,
	})
	if err != nil {
		o.log.Warnf("[%s][%s] Failed to publish import of email %s: %v", email.MailboxID, email.Folder, email.ID, err)
	}
}

func buildEmail(mailbox *models.Mailbox, msg *interfaces.FetchedMessage, body mime.DecodedBody, threadID string, hasAttachment bool, orderID string, method enum.MatchMethod) *models.Email {
	env := msg.Envelope
	now := utils.Now()

	email := &models.Email{
		MailboxID:       mailbox.ID,
		Provider:        mailbox.Provider,
		Folder:          msg.Ref.Folder,
		ImapUIDValidity: msg.Ref.UIDValidity,
		ImapUID:         msg.Ref.UID,
		MessageID:       env.MessageID,
		ThreadID:        threadID,
		InReplyTo:       env.InReplyTo,
		References:      env.References,
		Subject:         env.Subject,
		FromAddress:     env.From,
		FromName:        env.FromName,
		ToAddresses:     env.To,
		CcAddresses:     env.Cc,
		Unread:          env.Unread,
		ReceivedAt:      &now,
		BodyUnavailable: body.Unavailable,
		HasAttachment:   hasAttachment,
		OrderID:         orderID,
		MatchMethod:     method,
	}
	if !env.Date.IsZero() {
		sentAt := env.Date.UTC()
		email.SentAt = &sentAt
	}
	if body.IsHTML() {
		email.BodyHTML = body.Text
	} else {
		email.BodyText = body.Text
	}
	return email
}

func buildAttachment(email *models.Email, meta mime.AttachmentMeta) *models.EmailAttachment {
	return &models.EmailAttachment{
		EmailID:         email.ID,
		ThreadID:        email.ThreadID,
		MailboxID:       email.MailboxID,
		Folder:          email.Folder,
		ImapUID:         email.ImapUID,
		ImapUIDValidity: email.ImapUIDValidity,
		Locator:         meta.Locator,
		Encoding:        meta.Encoding,
		Filename:        meta.Filename,
		ContentType:     meta.ContentType,
		ContentID:       meta.ContentID,
		Size:            meta.Size,
		IsInline:        meta.Inline,
	}
}

func uidsAbove(uids []uint32, checkpoint uint32) []uint32 {
	var out []uint32
	for _, uid := range uids {
		if uid > checkpoint {
			out = append(out, uid)
		}
	}
	return out
}

package attachments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	mailsyncErrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/retry"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
	"github.com/customeros/mailsync/services/imap"
	"github.com/customeros/mailsync/services/mime"
)

// Content is an attachment with its decoded bytes
type Content struct {
	Attachment *models.EmailAttachment
	Data       []byte
}

// AttachmentService downloads attachment bytes on demand. Sync only stores metadata;
// the first download fetches the part from IMAP and caches it in object storage.
type AttachmentService struct {
	log         logger.Logger
	attachments interfaces.EmailAttachmentRepository
	mailboxes   interfaces.MailboxRepository
	dialer      interfaces.SessionDialer
	storage     interfaces.StorageService
	timeout     time.Duration
	attempts    int
	delay       time.Duration
}

// NewAttachmentService builds the service. storage may be nil, then bytes are always
// fetched from the mail server.
func NewAttachmentService(cfg *config.SyncConfig, log logger.Logger, attachments interfaces.EmailAttachmentRepository, mailboxes interfaces.MailboxRepository, dialer interfaces.SessionDialer, storage interfaces.StorageService) *AttachmentService {
	if cfg == nil {
		cfg = config.DefaultSyncConfig()
	}
	return &AttachmentService{
		log:         log,
		attachments: attachments,
		mailboxes:   mailboxes,
		dialer:      dialer,
		storage:     storage,
		timeout:     cfg.AttachmentDownloadTimeout,
		attempts:    cfg.PartFetchAttempts,
		delay:       cfg.PartFetchDelay,
	}
}

func (s *AttachmentService) GetContent(ctx context.Context, attachmentID string) (*Content, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AttachmentService.GetContent")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, attachmentID)

	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if attachment == nil {
		return nil, mailsyncErrors.ErrAttachmentNotFound
	}
	tracing.TagMailbox(span, attachment.MailboxID, attachment.Folder)

	if attachment.IsStored() && s.storage != nil {
		data, err := s.storage.Download(ctx, attachment.StorageKey)
		if err == nil {
			span.LogFields(tracingLog.String("source", "storage"))
			return &Content{Attachment: attachment, Data: data}, nil
		}
		s.log.Warnf("[%s] Cached attachment %s unavailable, fetching from server: %v", attachment.MailboxID, attachment.ID, err)
	}

	data, err := s.fetchFromServer(ctx, attachment)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogFields(tracingLog.String("source", "imap"), tracingLog.Int("size", len(data)))

	if s.storage != nil {
		if err := s.store(ctx, attachment, data); err != nil {
			s.log.Errorf("[%s] Failed to cache attachment %s: %v", attachment.MailboxID, attachment.ID, err)
		}
	}

	return &Content{Attachment: attachment, Data: data}, nil
}

// ListByEmail returns the attachment metadata of one email, nothing is downloaded
func (s *AttachmentService) ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AttachmentService.ListByEmail")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, emailID)

	attachments, err := s.attachments.ListByEmail(ctx, emailID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if attachments == nil {
		attachments = []*models.EmailAttachment{}
	}
	return attachments, nil
}

func (s *AttachmentService) fetchFromServer(ctx context.Context, attachment *models.EmailAttachment) ([]byte, error) {
	mailbox, err := s.mailboxes.GetMailbox(ctx, attachment.MailboxID)
	if err != nil {
		return nil, err
	}
	if mailbox == nil {
		return nil, mailsyncErrors.ErrMailboxNotFound
	}

	session, err := s.dialer.Dial(ctx, mailbox)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to mailbox")
	}
	defer func() {
		if err := session.Logout(); err != nil {
			s.log.Debugf("[%s] Logout error: %v", mailbox.ID, err)
		}
	}()

	info, err := session.SelectFolder(ctx, attachment.Folder)
	if err != nil {
		return nil, err
	}
	// a UID read under another UIDVALIDITY names a different message now
	if attachment.ImapUIDValidity != 0 && info.UIDValidity != attachment.ImapUIDValidity {
		return nil, errors.Wrapf(mailsyncErrors.ErrAttachmentNotFound, "UIDVALIDITY of %s changed from %d to %d",
			attachment.Folder, attachment.ImapUIDValidity, info.UIDValidity)
	}

	var raw []byte
	err = retry.Do(ctx, s.attempts, s.delay, func(attempt int) error {
		raw, err = session.FetchPart(ctx, attachment.ImapUID, attachment.Locator, s.timeout)
		if errors.Is(err, imap.ErrMessageNotFound) || imap.IsFatalSessionError(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if errors.Is(err, imap.ErrMessageNotFound) {
		return nil, errors.Wrapf(mailsyncErrors.ErrAttachmentNotFound, "uid %d gone from %s", attachment.ImapUID, attachment.Folder)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error fetching part %s of uid %d", attachment.Locator, attachment.ImapUID)
	}

	return mime.DecodeAttachment(attachment.Encoding, raw)
}

func (s *AttachmentService) store(ctx context.Context, attachment *models.EmailAttachment, data []byte) error {
	key := StorageKey(attachment)
	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.storage.Upload(ctx, key, data, contentType); err != nil {
		return errors.Wrap(err, "upload failed")
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if err := s.attachments.SetStorage(ctx, attachment.ID, s.storage.Name(), s.storage.Bucket(), key, hash); err != nil {
		return err
	}

	now := utils.Now()
	attachment.StorageService = s.storage.Name()
	attachment.StorageBucket = s.storage.Bucket()
	attachment.StorageKey = key
	attachment.ContentHash = hash
	attachment.DownloadedAt = &now
	return nil
}

// StorageKey is mailbox/email/attachment-id plus the file extension
func StorageKey(attachment *models.EmailAttachment) string {
	ext := utils.FileExtension(attachment.Filename, attachment.ContentType)
	return fmt.Sprintf("%s/%s/%s%s", attachment.MailboxID, attachment.EmailID, attachment.ID, ext)
}

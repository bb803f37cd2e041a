package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) interfaces.EmailRepository {
	return &emailRepository{
		db: db,
	}
}

// Create inserts the email. A message already stored under the same Message-ID or
// the same (mailbox, folder, uid) is not an error: created is false.
func (r *emailRepository) Create(ctx context.Context, email *models.Email) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, email.MailboxID, email.Folder)
	span.SetTag("imap_uid", email.ImapUID)

	email.MessageID = utils.NormalizeMessageID(email.MessageID)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(email)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			span.SetTag("duplicate", true)
			return false, nil
		}
		tracing.TraceErr(span, result.Error)
		return false, result.Error
	}

	if result.RowsAffected == 0 {
		span.SetTag("duplicate", true)
		return false, nil
	}

	tracing.TagEntity(span, email.ID)
	return true, nil
}

// GetByID retrieves an email by its ID
func (r *emailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var email models.Email
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

// GetByUID retrieves an email by its UID within a specific mailbox and folder.
// Rows stored under another UIDVALIDITY do not match.
func (r *emailRepository) GetByUID(ctx context.Context, mailboxID, folder string, uidValidity, uid uint32) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, mailboxID, folder)
	span.SetTag("imap_uid", uid)
	span.SetTag("imap_uid_validity", uidValidity)

	var email models.Email
	if err := r.db.WithContext(ctx).
		Where("mailbox_id = ? AND folder = ? AND imap_uid_validity = ? AND imap_uid = ?", mailboxID, folder, uidValidity, uid).
		First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

// GetByMessageID retrieves an email by its Message-ID header
func (r *emailRepository) GetByMessageID(ctx context.Context, messageID string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("message_id", messageID)

	messageID = utils.NormalizeMessageID(messageID)
	if messageID == "" {
		return nil, nil
	}

	var email models.Email
	if err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

// ListByThread retrieves the emails of a thread, oldest first
func (r *emailRepository) ListByThread(ctx context.Context, threadID string) ([]*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListByThread")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("thread_id", threadID)

	var emails []*models.Email
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("sent_at ASC").
		Find(&emails).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return emails, nil
}

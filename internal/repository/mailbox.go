package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type mailboxRepository struct {
	db *gorm.DB
}

func NewMailboxRepository(db *gorm.DB) interfaces.MailboxRepository {
	return &mailboxRepository{db: db}
}

func (r *mailboxRepository) GetMailboxes(ctx context.Context) ([]*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.GetMailboxes")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var mailboxes []*models.Mailbox
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&mailboxes).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return mailboxes, nil
}

func (r *mailboxRepository) GetMailbox(ctx context.Context, id string) (*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.GetMailbox")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var mailbox models.Mailbox
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&mailbox).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &mailbox, nil
}

func (r *mailboxRepository) GetMailboxByEmailAddress(ctx context.Context, emailAddress string) (*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.GetMailboxByEmailAddress")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("email_address", emailAddress)

	var mailbox models.Mailbox
	err := r.db.WithContext(ctx).
		Where("email_address = ?", strings.ToLower(emailAddress)).
		First(&mailbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &mailbox, nil
}

// SaveMailbox inserts or fully updates the mailbox
func (r *mailboxRepository) SaveMailbox(ctx context.Context, mailbox *models.Mailbox) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.SaveMailbox")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	mailbox.UpdatedAt = utils.Now()
	if err := r.db.WithContext(ctx).Save(mailbox).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, mailbox.ID)
	return nil
}

func (r *mailboxRepository) DeleteMailbox(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.DeleteMailbox")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Mailbox{}).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *mailboxRepository) UpdateSyncStatus(ctx context.Context, mailboxID, status, errorMessage string, syncedAt *time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.UpdateSyncStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, mailboxID)
	span.SetTag("status", status)

	updates := map[string]interface{}{
		"sync_status":   status,
		"error_message": errorMessage,
		"updated_at":    utils.Now(),
	}
	if syncedAt != nil {
		updates["last_synced"] = *syncedAt
	}

	err := r.db.WithContext(ctx).
		Model(&models.Mailbox{}).
		Where("id = ?", mailboxID).
		Updates(updates).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

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

type emailAttachmentRepository struct {
	db *gorm.DB
}

func NewEmailAttachmentRepository(db *gorm.DB) interfaces.EmailAttachmentRepository {
	return &emailAttachmentRepository{db: db}
}

// Create stores attachment metadata, ignoring a part already recorded for the email
func (r *emailAttachmentRepository) Create(ctx context.Context, attachment *models.EmailAttachment) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("email_id", attachment.EmailID)
	span.SetTag("locator", attachment.Locator)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(attachment).Error
	if err != nil && !isDuplicateKey(err) {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *emailAttachmentRepository) GetByID(ctx context.Context, id string) (*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var attachment models.EmailAttachment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&attachment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &attachment, nil
}

func (r *emailAttachmentRepository) ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.ListByEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("email_id", emailID)

	var attachments []*models.EmailAttachment
	if err := r.db.WithContext(ctx).
		Where("email_id = ?", emailID).
		Order("locator ASC").
		Find(&attachments).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return attachments, nil
}

// SetStorage records where the downloaded bytes were stored
func (r *emailAttachmentRepository) SetStorage(ctx context.Context, id, service, bucket, key, contentHash string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.SetStorage")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	now := utils.Now()
	err := r.db.WithContext(ctx).
		Model(&models.EmailAttachment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"storage_service": service,
			"storage_bucket":  bucket,
			"storage_key":     key,
			"content_hash":    contentHash,
			"downloaded_at":   now,
			"updated_at":      now,
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

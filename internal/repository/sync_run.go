package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type syncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) interfaces.SyncRunRepository {
	return &syncRunRepository{db: db}
}

func (r *syncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncRunRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, run.MailboxID, run.Folder)

	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, run.ID)
	return nil
}

// Finish stores the outcome of the run
func (r *syncRunRepository) Finish(ctx context.Context, run *models.SyncRun) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncRunRepository.Finish")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, run.ID)

	err := r.db.WithContext(ctx).
		Model(&models.SyncRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"mode":           run.Mode,
			"status":         run.Status,
			"imported_count": run.ImportedCount,
			"skipped_count":  run.SkippedCount,
			"error_count":    run.ErrorCount,
			"errors":         run.Errors,
			"from_uid":       run.FromUID,
			"to_uid":         run.ToUID,
			"finished_at":    run.FinishedAt,
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *syncRunRepository) ListByMailbox(ctx context.Context, mailboxID string, limit int) ([]*models.SyncRun, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncRunRepository.ListByMailbox")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, mailboxID, "")

	var runs []*models.SyncRun
	err := r.db.WithContext(ctx).
		Where("mailbox_id = ?", mailboxID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return runs, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type mailboxSyncRepository struct {
	db *gorm.DB
}

func NewMailboxSyncRepository(db *gorm.DB) interfaces.MailboxSyncRepository {
	return &mailboxSyncRepository{db: db}
}

// GetSyncState retrieves the sync state for a specific mailbox and folder
func (r *mailboxSyncRepository) GetSyncState(ctx context.Context, mailboxID, folderName string) (*models.MailboxSyncState, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxSyncRepository.GetSyncState")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, mailboxID, folderName)

	var state models.MailboxSyncState
	result := r.db.WithContext(ctx).
		Where("mailbox_id = ? AND folder_name = ?", mailboxID, folderName).
		First(&state)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil // No sync state yet
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get sync state: %w", result.Error)
	}

	return &state, nil
}

// AdvanceSyncState upserts the folder checkpoint. Under the same UIDVALIDITY the
// stored uid never decreases, so repeating a call is harmless. A new UIDVALIDITY
// replaces the checkpoint.
func (r *mailboxSyncRepository) AdvanceSyncState(ctx context.Context, mailboxID, folderName string, uidValidity, uid uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxSyncRepository.AdvanceSyncState")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, mailboxID, folderName)
	span.SetTag("uid", uid)
	span.SetTag("uid_validity", uidValidity)

	now := utils.Now()
	state := models.MailboxSyncState{
		ID:          uuid.NewString(),
		MailboxID:   mailboxID,
		FolderName:  folderName,
		UIDValidity: uidValidity,
		LastUID:     uid,
		LastSync:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "mailbox_id"}, {Name: "folder_name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_uid": gorm.Expr("CASE WHEN mailbox_sync_states.uid_validity = EXCLUDED.uid_validity " +
					"THEN GREATEST(mailbox_sync_states.last_uid, EXCLUDED.last_uid) ELSE EXCLUDED.last_uid END"),
				"uid_validity": gorm.Expr("EXCLUDED.uid_validity"),
				"last_sync":    now,
				"updated_at":   now,
			}),
		}).
		Create(&state).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to advance sync state: %w", err)
	}

	return nil
}

// DeleteSyncState deletes the sync state for a mailbox folder
func (r *mailboxSyncRepository) DeleteSyncState(ctx context.Context, mailboxID, folderName string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxSyncRepository.DeleteSyncState")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, mailboxID, folderName)

	result := r.db.WithContext(ctx).
		Where("mailbox_id = ? AND folder_name = ?", mailboxID, folderName).
		Delete(&models.MailboxSyncState{})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete sync state: %w", result.Error)
	}

	return nil
}

// DeleteMailboxSyncStates deletes all sync states for a mailbox
func (r *mailboxSyncRepository) DeleteMailboxSyncStates(ctx context.Context, mailboxID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxSyncRepository.DeleteMailboxSyncStates")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, mailboxID, "")

	result := r.db.WithContext(ctx).
		Where("mailbox_id = ?", mailboxID).
		Delete(&models.MailboxSyncState{})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete mailbox sync states: %w", result.Error)
	}

	return nil
}

// GetMailboxSyncStates gets the checkpoint of every folder of a mailbox
func (r *mailboxSyncRepository) GetMailboxSyncStates(ctx context.Context, mailboxID string) (map[string]uint32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxSyncRepository.GetMailboxSyncStates")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, mailboxID, "")

	var states []models.MailboxSyncState
	if err := r.db.WithContext(ctx).Where("mailbox_id = ?", mailboxID).Find(&states).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get mailbox sync states: %w", err)
	}

	result := make(map[string]uint32)
	for _, state := range states {
		result[state.FolderName] = state.LastUID
	}

	return result, nil
}

// DeleteOrphanedSyncStates removes checkpoints of mailboxes that no longer exist
func (r *mailboxSyncRepository) DeleteOrphanedSyncStates(ctx context.Context) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxSyncRepository.DeleteOrphanedSyncStates")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	activeMailboxes := r.db.Model(&models.Mailbox{}).Select("id")
	result := r.db.WithContext(ctx).
		Where("mailbox_id NOT IN (?)", activeMailboxes).
		Delete(&models.MailboxSyncState{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, fmt.Errorf("failed to delete orphaned sync states: %w", result.Error)
	}

	span.SetTag("deleted", result.RowsAffected)
	return result.RowsAffected, nil
}

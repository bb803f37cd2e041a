package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type emailThreadRepository struct {
	db *gorm.DB
}

// NewEmailThreadRepository creates a new email thread repository
func NewEmailThreadRepository(db *gorm.DB) interfaces.EmailThreadRepository {
	return &emailThreadRepository{
		db: db,
	}
}

// Create inserts a new email thread into the database
func (r *emailThreadRepository) Create(ctx context.Context, thread *models.EmailThread) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if thread == nil {
		err := errors.New("thread cannot be nil")
		tracing.TraceErr(span, err)
		return "", err
	}
	tracing.TagMailbox(span, thread.MailboxID, "")

	if thread.ID == "" {
		thread.ID = utils.GenerateNanoIDWithPrefix("thrd", 16)
	}
	thread.LastMessageID = utils.NormalizeMessageID(thread.LastMessageID)

	now := utils.Now()
	thread.CreatedAt = now
	thread.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(thread).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	tracing.TagEntity(span, thread.ID)
	return thread.ID, nil
}

// GetByID retrieves an email thread by its ID
func (r *emailThreadRepository) GetByID(ctx context.Context, id string) (*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	if id == "" {
		return nil, nil
	}

	var thread models.EmailThread
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &thread, nil
}

// GetByThreadKey returns the oldest thread of the mailbox stored under the key
func (r *emailThreadRepository) GetByThreadKey(ctx context.Context, mailboxID, threadKey string) (*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.GetByThreadKey")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, mailboxID, "")
	span.SetTag("thread_key", threadKey)

	var thread models.EmailThread
	err := r.db.WithContext(ctx).
		Where("mailbox_id = ? AND thread_key = ?", mailboxID, threadKey).
		Order("created_at ASC").
		First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &thread, nil
}

// FindBySubjectWithin finds the most recently active thread with the same normalized
// subject whose last activity lies within window of at
func (r *emailThreadRepository) FindBySubjectWithin(ctx context.Context, mailboxID, normalizedSubject string, at time.Time, window time.Duration) (*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.FindBySubjectWithin")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, mailboxID, "")
	span.SetTag("normalized_subject", normalizedSubject)

	var thread models.EmailThread
	err := r.db.WithContext(ctx).
		Where("mailbox_id = ? AND normalized_subject = ?", mailboxID, normalizedSubject).
		Where("last_message_at BETWEEN ? AND ?", at.Add(-window), at.Add(window)).
		Order("last_message_at DESC").
		First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "error querying threads by subject")
	}

	return &thread, nil
}

// MergeMessage folds a new message into the thread under a row lock
func (r *emailThreadRepository) MergeMessage(ctx context.Context, threadID string, merge interfaces.ThreadMerge) (*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.MergeMessage")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, threadID)
	span.SetTag("message_id", merge.MessageID)

	if threadID == "" {
		err := errors.New("thread ID cannot be empty")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var thread models.EmailThread
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", threadID).
			First(&thread).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("thread with ID %s not found", threadID)
			}
			return err
		}

		applyMerge(&thread, merge)

		return tx.Model(&models.EmailThread{}).
			Where("id = ?", threadID).
			Updates(map[string]interface{}{
				"participants":     thread.Participants,
				"message_count":    gorm.Expr("message_count + 1"),
				"last_message_id":  thread.LastMessageID,
				"last_message_at":  thread.LastMessageAt,
				"first_message_at": thread.FirstMessageAt,
				"unread":           thread.Unread,
				"has_attachments":  thread.HasAttachments,
				"order_id":         thread.OrderID,
				"updated_at":       thread.UpdatedAt,
			}).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &thread, nil
}

// DeleteIfEmpty removes a thread no email points to. It reports whether a row was deleted.
func (r *emailThreadRepository) DeleteIfEmpty(ctx context.Context, threadID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.DeleteIfEmpty")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, threadID)

	result := r.db.WithContext(ctx).
		Where("id = ?", threadID).
		Where("NOT EXISTS (SELECT 1 FROM emails WHERE emails.thread_id = email_threads.id)").
		Delete(&models.EmailThread{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, errors.Wrap(result.Error, "error deleting empty thread")
	}

	return result.RowsAffected > 0, nil
}

// applyMerge computes the thread aggregates after adding one message
func applyMerge(thread *models.EmailThread, merge interfaces.ThreadMerge) {
	thread.AddMessage(merge.MessageID, merge.Participants, merge.MessageAt, merge.Unread, merge.HasAttachments, merge.OrderID)
}

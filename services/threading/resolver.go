package threading

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/customeros/mailsync/interfaces"
	mailsyncErrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

const DefaultSubjectWindow = 60 * time.Second

// Resolver groups messages of a mailbox into conversation threads. It is the only
// component creating threads.
type Resolver struct {
	threads interfaces.EmailThreadRepository
	emails  interfaces.EmailRepository
	log     logger.Logger
	window  time.Duration
}

func NewResolver(threads interfaces.EmailThreadRepository, emails interfaces.EmailRepository, log logger.Logger, subjectWindow time.Duration) *Resolver {
	if subjectWindow <= 0 {
		subjectWindow = DefaultSubjectWindow
	}
	return &Resolver{
		threads: threads,
		emails:  emails,
		log:     log,
		window:  subjectWindow,
	}
}

// AssignThread finds or creates the thread of the message and folds the message into it
func (r *Resolver) AssignThread(ctx context.Context, mailboxID string, env interfaces.ParsedEnvelope, hasAttachments bool, orderID string) (*models.EmailThread, bool, error) {
	thread, created, err := r.FindOrCreate(ctx, mailboxID, env)
	if err != nil {
		return nil, false, err
	}
	thread, err = r.AddMessage(ctx, thread.ID, env, hasAttachments, orderID)
	if err != nil {
		return nil, created, err
	}
	return thread, created, nil
}

// FindOrCreate returns the thread the message belongs to without updating its aggregates
func (r *Resolver) FindOrCreate(ctx context.Context, mailboxID string, env interfaces.ParsedEnvelope) (*models.EmailThread, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ThreadResolver.FindOrCreate")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMailbox(span, mailboxID, "")

	key := ResolveKey(env)
	normalized := NormalizeSubject(env.Subject)
	span.LogFields(tracingLog.String("thread.key", key.Value), tracingLog.String("thread.keyKind", key.Kind.String()))

	thread, err := r.find(ctx, mailboxID, key, normalized, env)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	if thread != nil {
		span.LogFields(tracingLog.String("result.threadId", thread.ID))
		return thread, false, nil
	}

	thread = &models.EmailThread{
		MailboxID:         mailboxID,
		ThreadKey:         key.Value,
		Subject:           env.Subject,
		NormalizedSubject: normalized,
	}
	if _, err = r.threads.Create(ctx, thread); err != nil {
		tracing.TraceErr(span, err)
		return nil, false, errors.Wrap(err, "error creating thread")
	}

	span.LogFields(tracingLog.String("result.threadId", thread.ID), tracingLog.Bool("result.created", true))
	return thread, true, nil
}

// AddMessage updates participants, activity, unread and attachment aggregates
func (r *Resolver) AddMessage(ctx context.Context, threadID string, env interfaces.ParsedEnvelope, hasAttachments bool, orderID string) (*models.EmailThread, error) {
	thread, err := r.threads.MergeMessage(ctx, threadID, interfaces.ThreadMerge{
		MessageID:      env.MessageID,
		Participants:   env.Participants(),
		MessageAt:      env.Date,
		Unread:         env.Unread,
		HasAttachments: hasAttachments,
		OrderID:        orderID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error updating thread")
	}
	return thread, nil
}

func (r *Resolver) find(ctx context.Context, mailboxID string, key ThreadKey, normalized string, env interfaces.ParsedEnvelope) (*models.EmailThread, error) {
	thread, err := r.threads.GetByThreadKey(ctx, mailboxID, key.Value)
	if err != nil || thread != nil {
		return thread, err
	}

	if key.IsHeaderKey() {
		for _, id := range referencedIDs(env) {
			thread, err = r.threadOfMessage(ctx, mailboxID, id)
			if err != nil || thread != nil {
				return thread, err
			}
		}
	}

	// replies imported before their parent are keyed by the parent's id
	if id := utils.NormalizeMessageID(env.MessageID); id != "" && id != key.Value {
		thread, err = r.threads.GetByThreadKey(ctx, mailboxID, id)
		if err != nil || thread != nil {
			return thread, err
		}
	}

	if normalized == "" || env.Date.IsZero() {
		return nil, nil
	}
	thread, err = r.threads.FindBySubjectWithin(ctx, mailboxID, normalized, env.Date, r.window)
	if thread != nil {
		r.log.Debugf("[%s] Message %s joined thread %s by subject", mailboxID, env.MessageID, thread.ID)
	}
	return thread, err
}

func (r *Resolver) threadOfMessage(ctx context.Context, mailboxID, messageID string) (*models.EmailThread, error) {
	email, err := r.emails.GetByMessageID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if email == nil || email.MailboxID != mailboxID || email.ThreadID == "" {
		return nil, nil
	}
	return r.threads.GetByID(ctx, email.ThreadID)
}

func referencedIDs(env interfaces.ParsedEnvelope) []string {
	ids := utils.AppendUnique(nil, utils.NormalizeMessageID(env.InReplyTo))
	for _, ref := range env.References {
		ids = utils.AppendUnique(ids, utils.NormalizeMessageID(ref))
	}
	return ids
}

// ThreadEmails returns the thread and its stored messages, oldest first
func (r *Resolver) ThreadEmails(ctx context.Context, threadID string) (*models.EmailThread, []*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ThreadResolver.ThreadEmails")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, threadID)

	thread, err := r.threads.GetByID(ctx, threadID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}
	if thread == nil {
		return nil, nil, mailsyncErrors.ErrThreadNotFound
	}

	emails, err := r.emails.ListByThread(ctx, threadID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, errors.Wrap(err, "error listing thread emails")
	}
	span.LogFields(tracingLog.Int("emails", len(emails)))
	return thread, emails, nil
}

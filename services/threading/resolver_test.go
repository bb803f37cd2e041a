package threading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/interfaces"
	mailsyncErrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/testutil"
)

const mailboxID = "mbox_1"

func newTestResolver(store *testutil.MemoryStore) *Resolver {
	return NewResolver(store.Threads(), store.Emails(), logger.NewNopLogger(), time.Minute)
}

func TestAssignThread_SameInReplyToSameThread(t *testing.T) {
	store := testutil.NewMemoryStore()
	resolver := newTestResolver(store)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	first, created, err := resolver.AssignThread(ctx, mailboxID, interfaces.ParsedEnvelope{
		MessageID: "r1@x", InReplyTo: "<root@x>", Subject: "Re: Order #8891", From: "a@x", Date: at, Unread: true,
	}, false, "")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := resolver.AssignThread(ctx, mailboxID, interfaces.ParsedEnvelope{
		MessageID: "r2@x", InReplyTo: "root@x", Subject: "totally different", From: "b@x", Date: at.Add(-time.Hour),
	}, true, "ord_1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 2, second.MessageCount)
	assert.ElementsMatch(t, []string{"a@x", "b@x"}, second.Participants)
	assert.True(t, second.Unread)
	assert.True(t, second.HasAttachments)
	assert.Equal(t, "ord_1", second.OrderID)
	require.NotNil(t, second.LastMessageAt)
	assert.Equal(t, at, *second.LastMessageAt)
	require.NotNil(t, second.FirstMessageAt)
	assert.Equal(t, at.Add(-time.Hour), *second.FirstMessageAt)
	assert.Equal(t, "r1@x", second.LastMessageID)
}

func TestAssignThread_JoinsThreadOfReferencedMessage(t *testing.T) {
	store := testutil.NewMemoryStore()
	resolver := newTestResolver(store)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	root, _, err := resolver.AssignThread(ctx, mailboxID, interfaces.ParsedEnvelope{
		MessageID: "root@x", Subject: "Order #8891", Date: at,
	}, false, "")
	require.NoError(t, err)
	_, err = store.Emails().Create(ctx, &models.Email{MailboxID: mailboxID, Folder: "INBOX", ImapUID: 1, MessageID: "root@x", ThreadID: root.ID})
	require.NoError(t, err)

	reply, created, err := resolver.AssignThread(ctx, mailboxID, interfaces.ParsedEnvelope{
		MessageID: "r1@x", InReplyTo: "root@x", Subject: "Re: Order #8891", Date: at.Add(24 * time.Hour),
	}, false, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, root.ID, reply.ID)
}

func TestAssignThread_ParentAfterReply(t *testing.T) {
	store := testutil.NewMemoryStore()
	resolver := newTestResolver(store)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	reply, _, err := resolver.AssignThread(ctx, mailboxID, interfaces.ParsedEnvelope{
		MessageID: "r1@x", InReplyTo: "root@x", Subject: "Re: Hello", Date: at,
	}, false, "")
	require.NoError(t, err)

	root, created, err := resolver.AssignThread(ctx, mailboxID, interfaces.ParsedEnvelope{
		MessageID: "root@x", Subject: "Hello", Date: at.Add(-48 * time.Hour),
	}, false, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, reply.ID, root.ID)
}

func TestAssignThread_SubjectWindow(t *testing.T) {
	store := testutil.NewMemoryStore()
	resolver := newTestResolver(store)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	// a reply keyed by headers absorbs a thread created from its subject seconds before
	first, _, err := resolver.AssignThread(ctx, mailboxID, interfaces.ParsedEnvelope{
		MessageID: "a@x", Subject: "Return request #8891", Date: at,
	}, false, "")
	require.NoError(t, err)

	near, created, err := resolver.AssignThread(ctx, mailboxID, interfaces.ParsedEnvelope{
		MessageID: "b@x", InReplyTo: "unknown@x", Subject: "RE: return request #8891", Date: at.Add(30 * time.Second),
	}, false, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, near.ID)

	far, created, err := resolver.AssignThread(ctx, mailboxID, interfaces.ParsedEnvelope{
		MessageID: "c@x", InReplyTo: "other@x", Subject: "Re: Return request #8891", Date: at.Add(2 * time.Hour),
	}, false, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, far.ID)
}

func TestAssignThread_SubjectKeyIsPerMailbox(t *testing.T) {
	store := testutil.NewMemoryStore()
	resolver := newTestResolver(store)
	ctx := context.Background()
	env := interfaces.ParsedEnvelope{MessageID: "a@x", Subject: "Order #123", Date: time.Now()}

	a, _, err := resolver.AssignThread(ctx, "mbox_a", env, false, "")
	require.NoError(t, err)
	b, created, err := resolver.AssignThread(ctx, "mbox_b", env, false, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, store.AllThreads(), 2)
}

func TestFindOrCreate_DoesNotMerge(t *testing.T) {
	store := testutil.NewMemoryStore()
	resolver := newTestResolver(store)

	thread, created, err := resolver.FindOrCreate(context.Background(), mailboxID, interfaces.ParsedEnvelope{Subject: "Re: Re: Order #123"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "subject:order #123", thread.ThreadKey)
	assert.Equal(t, "order #123", thread.NormalizedSubject)
	assert.Equal(t, 0, thread.MessageCount)
}

func TestThreadEmails(t *testing.T) {
	store := testutil.NewMemoryStore()
	resolver := newTestResolver(store)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	thread, _, err := resolver.AssignThread(ctx, mailboxID, interfaces.ParsedEnvelope{MessageID: "root@x", Subject: "Order #8891", Date: at}, false, "")
	require.NoError(t, err)
	_, err = store.Emails().Create(ctx, &models.Email{MailboxID: mailboxID, Folder: "INBOX", ImapUID: 1, MessageID: "root@x", ThreadID: thread.ID})
	require.NoError(t, err)
	_, err = store.Emails().Create(ctx, &models.Email{MailboxID: mailboxID, Folder: "INBOX", ImapUID: 2, MessageID: "other@x", ThreadID: "thrd_other"})
	require.NoError(t, err)

	found, emails, err := resolver.ThreadEmails(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, thread.ID, found.ID)
	require.Len(t, emails, 1)
	assert.Equal(t, "root@x", emails[0].MessageID)

	_, _, err = resolver.ThreadEmails(ctx, "thrd_missing")
	assert.ErrorIs(t, err, mailsyncErrors.ErrThreadNotFound)
}

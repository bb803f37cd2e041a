package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/testutil"
)

func TestRepositories_Postgres(t *testing.T) {
	db := testutil.NewTestDB(t)
	repos := InitRepositories(db)
	ctx := context.Background()

	t.Run("email create is idempotent", func(t *testing.T) {
		email := &models.Email{
			MailboxID: "mbox_1",
			Provider:  "generic",
			Folder:    "INBOX",
			ImapUID:   10,
			MessageID: "<m10@example.com>",
			Subject:   "hello",
		}
		created, err := repos.EmailRepository.Create(ctx, email)
		require.NoError(t, err)
		assert.True(t, created)

		sameUID := &models.Email{MailboxID: "mbox_1", Provider: "generic", Folder: "INBOX", ImapUID: 10, MessageID: "other@example.com"}
		created, err = repos.EmailRepository.Create(ctx, sameUID)
		require.NoError(t, err)
		assert.False(t, created)

		sameMessageID := &models.Email{MailboxID: "mbox_1", Provider: "generic", Folder: "Archive", ImapUID: 3, MessageID: "m10@example.com"}
		created, err = repos.EmailRepository.Create(ctx, sameMessageID)
		require.NoError(t, err)
		assert.False(t, created)

		byUID, err := repos.EmailRepository.GetByUID(ctx, "mbox_1", "INBOX", 0, 10)
		require.NoError(t, err)
		require.NotNil(t, byUID)
		assert.Equal(t, email.ID, byUID.ID)

		byMessageID, err := repos.EmailRepository.GetByMessageID(ctx, "<m10@example.com>")
		require.NoError(t, err)
		require.NotNil(t, byMessageID)

		missing, err := repos.EmailRepository.GetByUID(ctx, "mbox_1", "INBOX", 0, 11)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("uid lookups are scoped to uidvalidity", func(t *testing.T) {
		old := &models.Email{MailboxID: "mbox_3", Provider: "generic", Folder: "INBOX", ImapUIDValidity: 100, ImapUID: 1}
		created, err := repos.EmailRepository.Create(ctx, old)
		require.NoError(t, err)
		assert.True(t, created)

		// same UID after the folder was recreated is another message
		renumbered := &models.Email{MailboxID: "mbox_3", Provider: "generic", Folder: "INBOX", ImapUIDValidity: 200, ImapUID: 1}
		created, err = repos.EmailRepository.Create(ctx, renumbered)
		require.NoError(t, err)
		assert.True(t, created)

		found, err := repos.EmailRepository.GetByUID(ctx, "mbox_3", "INBOX", 200, 1)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, renumbered.ID, found.ID)

		missing, err := repos.EmailRepository.GetByUID(ctx, "mbox_3", "INBOX", 300, 1)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("emails without message id do not collide", func(t *testing.T) {
		for uid := uint32(20); uid < 22; uid++ {
			created, err := repos.EmailRepository.Create(ctx, &models.Email{MailboxID: "mbox_1", Provider: "generic", Folder: "INBOX", ImapUID: uid})
			require.NoError(t, err)
			assert.True(t, created)
		}
	})

	t.Run("checkpoint never decreases", func(t *testing.T) {
		state, err := repos.MailboxSyncRepository.GetSyncState(ctx, "mbox_1", "INBOX")
		require.NoError(t, err)
		assert.Nil(t, state)

		require.NoError(t, repos.MailboxSyncRepository.AdvanceSyncState(ctx, "mbox_1", "INBOX", 100, 5))
		require.NoError(t, repos.MailboxSyncRepository.AdvanceSyncState(ctx, "mbox_1", "INBOX", 100, 9))
		require.NoError(t, repos.MailboxSyncRepository.AdvanceSyncState(ctx, "mbox_1", "INBOX", 100, 7))
		require.NoError(t, repos.MailboxSyncRepository.AdvanceSyncState(ctx, "mbox_1", "INBOX", 100, 9))

		state, err = repos.MailboxSyncRepository.GetSyncState(ctx, "mbox_1", "INBOX")
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, uint32(9), state.LastUID)
		assert.Equal(t, uint32(100), state.UIDValidity)
	})

	t.Run("new uidvalidity replaces the checkpoint", func(t *testing.T) {
		require.NoError(t, repos.MailboxSyncRepository.AdvanceSyncState(ctx, "mbox_1", "Archive", 100, 50))
		require.NoError(t, repos.MailboxSyncRepository.AdvanceSyncState(ctx, "mbox_1", "Archive", 200, 3))

		state, err := repos.MailboxSyncRepository.GetSyncState(ctx, "mbox_1", "Archive")
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, uint32(200), state.UIDValidity)
		assert.Equal(t, uint32(3), state.LastUID)

		require.NoError(t, repos.MailboxSyncRepository.DeleteSyncState(ctx, "mbox_1", "Archive"))
		state, err = repos.MailboxSyncRepository.GetSyncState(ctx, "mbox_1", "Archive")
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("orphaned checkpoints are removed", func(t *testing.T) {
		mailbox := &models.Mailbox{Provider: "generic", ImapServer: "imap.example.com", ImapPort: 993, ImapUsername: "u", ImapPassword: "p", Folders: []string{"INBOX"}, EmailAddress: "u@example.com"}
		require.NoError(t, repos.MailboxRepository.SaveMailbox(ctx, mailbox))
		require.NoError(t, repos.MailboxSyncRepository.AdvanceSyncState(ctx, mailbox.ID, "INBOX", 100, 1))

		deleted, err := repos.MailboxSyncRepository.DeleteOrphanedSyncStates(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted) // mbox_1 has no mailbox row

		states, err := repos.MailboxSyncRepository.GetMailboxSyncStates(ctx, mailbox.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]uint32{"INBOX": 1}, states)
	})

	t.Run("thread lookup and merge", func(t *testing.T) {
		at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		thread := &models.EmailThread{
			MailboxID:         "mbox_2",
			ThreadKey:         "root@example.com",
			Subject:           "Order #123",
			NormalizedSubject: "subject:order #123",
			MessageCount:      1,
			LastMessageAt:     &at,
			FirstMessageAt:    &at,
		}
		_, err := repos.EmailThreadRepository.Create(ctx, thread)
		require.NoError(t, err)

		byKey, err := repos.EmailThreadRepository.GetByThreadKey(ctx, "mbox_2", "root@example.com")
		require.NoError(t, err)
		require.NotNil(t, byKey)
		assert.Equal(t, thread.ID, byKey.ID)

		near, err := repos.EmailThreadRepository.FindBySubjectWithin(ctx, "mbox_2", "subject:order #123", at.Add(30*time.Second), time.Minute)
		require.NoError(t, err)
		require.NotNil(t, near)

		far, err := repos.EmailThreadRepository.FindBySubjectWithin(ctx, "mbox_2", "subject:order #123", at.Add(2*time.Minute), time.Minute)
		require.NoError(t, err)
		assert.Nil(t, far)

		merged, err := repos.EmailThreadRepository.MergeMessage(ctx, thread.ID, interfaces.ThreadMerge{
			MessageID:    "reply@example.com",
			Participants: []string{"bob@example.com"},
			MessageAt:    at.Add(time.Hour),
			Unread:       true,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, merged.MessageCount)
		assert.True(t, merged.Unread)

		stored, err := repos.EmailThreadRepository.GetByID(ctx, thread.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.MessageCount)
		assert.Equal(t, "reply@example.com", stored.LastMessageID)
	})

	t.Run("only empty threads are deleted", func(t *testing.T) {
		used := &models.EmailThread{MailboxID: "mbox_4", ThreadKey: "used@example.com"}
		_, err := repos.EmailThreadRepository.Create(ctx, used)
		require.NoError(t, err)
		_, err = repos.EmailRepository.Create(ctx, &models.Email{MailboxID: "mbox_4", Provider: "generic", Folder: "INBOX", ImapUID: 1, ThreadID: used.ID})
		require.NoError(t, err)

		empty := &models.EmailThread{MailboxID: "mbox_4", ThreadKey: "empty@example.com"}
		_, err = repos.EmailThreadRepository.Create(ctx, empty)
		require.NoError(t, err)

		deleted, err := repos.EmailThreadRepository.DeleteIfEmpty(ctx, used.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = repos.EmailThreadRepository.DeleteIfEmpty(ctx, empty.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		gone, err := repos.EmailThreadRepository.GetByID(ctx, empty.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("orders by number and email", func(t *testing.T) {
		require.NoError(t, db.Create(&models.Order{ID: "ord_a", OrderNumber: "#8891", CustomerEmail: "Jane@Example.com", OrderDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}).Error)
		require.NoError(t, db.Create(&models.Order{ID: "ord_b", OrderNumber: "8892", CustomerEmail: "jane@example.com", OrderDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}).Error)

		orders, err := repos.OrderRepository.GetByOrderNumbers(ctx, []string{"8891", "#8891"})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "ord_a", orders[0].ID)

		orders, err = repos.OrderRepository.ListByCustomerEmail(ctx, "jane@example.com")
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, "ord_b", orders[0].ID)
	})
}

package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
)

func TestApplyMerge(t *testing.T) {
	first := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	thread := &models.EmailThread{
		Participants:   []string{"alice@shop.com"},
		MessageCount:   1,
		LastMessageAt:  &first,
		FirstMessageAt: &first,
		LastMessageID:  "a@shop.com",
		HasAttachments: true,
	}

	t.Run("newer message moves last activity", func(t *testing.T) {
		th := *thread
		later := first.Add(time.Hour)
		applyMerge(&th, interfaces.ThreadMerge{
			MessageID:    "<b@shop.com>",
			Participants: []string{"bob@client.com", "alice@shop.com"},
			MessageAt:    later,
			Unread:       true,
			OrderID:      "ord_1",
		})

		assert.Equal(t, 2, th.MessageCount)
		assert.ElementsMatch(t, []string{"alice@shop.com", "bob@client.com"}, th.Participants)
		assert.Equal(t, later, *th.LastMessageAt)
		assert.Equal(t, first, *th.FirstMessageAt)
		assert.Equal(t, "b@shop.com", th.LastMessageID)
		assert.True(t, th.Unread)
		assert.True(t, th.HasAttachments)
		assert.Equal(t, "ord_1", th.OrderID)
	})

	t.Run("older message moves first activity only", func(t *testing.T) {
		th := *thread
		th.OrderID = "ord_existing"
		earlier := first.Add(-time.Hour)
		applyMerge(&th, interfaces.ThreadMerge{
			MessageID: "c@shop.com",
			MessageAt: earlier,
			OrderID:   "ord_other",
		})

		assert.Equal(t, first, *th.LastMessageAt)
		assert.Equal(t, earlier, *th.FirstMessageAt)
		assert.Equal(t, "a@shop.com", th.LastMessageID)
		assert.False(t, th.Unread)
		assert.Equal(t, "ord_existing", th.OrderID)
	})
}

func TestIsDuplicateKey(t *testing.T) {
	assert.False(t, isDuplicateKey(nil))
	assert.False(t, isDuplicateKey(assert.AnError))
	assert.True(t, isDuplicateKey(errDuplicate("ERROR: duplicate key value violates unique constraint \"idx_email_message_id\" (SQLSTATE 23505)")))
}

type errDuplicate string

func (e errDuplicate) Error() string { return string(e) }

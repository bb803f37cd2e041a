package mailboxsync

import (
	"context"

	"github.com/customeros/mailsync/interfaces"
)

// DedupGuard tells whether a remote message is already stored. It runs before any
// body download.
type DedupGuard struct {
	emails interfaces.EmailRepository
}

func NewDedupGuard(emails interfaces.EmailRepository) *DedupGuard {
	return &DedupGuard{emails: emails}
}

// IsAlreadyImported looks the message up by folder UID, then by Message-ID. A UID
// only matches rows stored under the same UIDVALIDITY.
func (g *DedupGuard) IsAlreadyImported(ctx context.Context, ref interfaces.RemoteMessageRef) (bool, error) {
	email, err := g.emails.GetByUID(ctx, ref.MailboxID, ref.Folder, ref.UIDValidity, ref.UID)
	if err != nil {
		return false, err
	}
	if email != nil {
		return true, nil
	}

	if ref.MessageID == "" {
		return false, nil
	}
	email, err = g.emails.GetByMessageID(ctx, ref.MessageID)
	if err != nil {
		return false, err
	}
	return email != nil, nil
}

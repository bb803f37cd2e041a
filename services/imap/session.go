package imap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/services/mime"
)

const referencesSection = "BODY.PEEK[HEADER.FIELDS (REFERENCES)]"

// session wraps one logged in client. Commands are serialised by go-imap itself,
// callers still must not share a session between goroutines.
type session struct {
	c         *client.Client
	log       logger.Logger
	mailboxID string
	// redial opens a replacement connection after a command timeout, nil disables it
	redial func(ctx context.Context) (*client.Client, error)

	folder      string
	messages    uint32
	uidValidity uint32
}

func newSession(c *client.Client, mailboxID string, log logger.Logger) *session {
	return &session{c: c, log: log, mailboxID: mailboxID}
}

func (s *session) SelectFolder(ctx context.Context, folder string) (*interfaces.FolderInfo, error) {
	var status *imap.MailboxStatus
	err := s.run(ctx, 30*time.Second, func() error {
		var err error
		status, err = s.c.Select(folder, true)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error selecting folder %s: %w", folder, err)
	}

	s.folder = folder
	s.messages = status.Messages
	s.uidValidity = status.UidValidity
	s.log.Debugf("[%s][%s] Selected folder - Messages: %d, UIDNext: %d", s.mailboxID, folder, status.Messages, status.UidNext)

	return &interfaces.FolderInfo{
		Name:        folder,
		Messages:    status.Messages,
		UIDNext:     status.UidNext,
		UIDValidity: status.UidValidity,
	}, nil
}

// SearchUIDsSince returns the UIDs strictly greater than afterUID, ascending.
// "n:*" always matches the highest UID, so the result is filtered again.
func (s *session) SearchUIDsSince(ctx context.Context, afterUID uint32) ([]uint32, error) {
	if s.folder == "" {
		return nil, ErrNoFolderSelected
	}

	criteria := imap.NewSearchCriteria()
	criteria.Uid = new(imap.SeqSet)
	criteria.Uid.AddRange(afterUID+1, 0)

	var uids []uint32
	err := s.run(ctx, 60*time.Second, func() error {
		var err error
		uids, err = s.c.UidSearch(criteria)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("uid search error: %w", err)
	}

	filtered := uids[:0]
	for _, uid := range uids {
		if uid > afterUID {
			filtered = append(filtered, uid)
		}
	}
	sortUIDs(filtered)
	return filtered, nil
}

// LastUIDs returns the UIDs of the n most recent messages in the selected folder, ascending
func (s *session) LastUIDs(ctx context.Context, n int) ([]uint32, error) {
	if s.folder == "" {
		return nil, ErrNoFolderSelected
	}
	if s.messages == 0 || n <= 0 {
		return nil, nil
	}

	from := uint32(1)
	if uint32(n) < s.messages {
		from = s.messages - uint32(n) + 1
	}

	criteria := imap.NewSearchCriteria()
	criteria.SeqNum = new(imap.SeqSet)
	criteria.SeqNum.AddRange(from, s.messages)

	var uids []uint32
	err := s.run(ctx, 60*time.Second, func() error {
		var err error
		uids, err = s.c.UidSearch(criteria)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("uid search error: %w", err)
	}
	sortUIDs(uids)
	return uids, nil
}

// FetchMessages fetches envelope, flags and body structure for the given UIDs,
// returned in ascending UID order. UIDs the server no longer has are omitted.
func (s *session) FetchMessages(ctx context.Context, uids []uint32) ([]*interfaces.FetchedMessage, error) {
	if s.folder == "" {
		return nil, ErrNoFolderSelected
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	refSection, err := imap.ParseBodySectionName(referencesSection)
	if err != nil {
		return nil, err
	}
	items := []imap.FetchItem{
		imap.FetchUid,
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchBodyStructure,
		imap.FetchRFC822Size,
		refSection.FetchItem(),
	}

	messages := make(chan *imap.Message, len(uids))
	err = s.run(ctx, 60*time.Second, func() error {
		return s.c.UidFetch(seqSet, items, messages)
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	var out []*interfaces.FetchedMessage
	for msg := range messages {
		if msg == nil || msg.Uid == 0 {
			continue
		}
		fetched := &interfaces.FetchedMessage{
			Ref: interfaces.RemoteMessageRef{
				MailboxID:   s.mailboxID,
				Folder:      s.folder,
				UIDValidity: s.uidValidity,
				UID:         msg.Uid,
			},
			Envelope: parseEnvelope(msg.Envelope, msg.Flags, headerLiteral(msg)),
			Size:     msg.Size,
		}
		fetched.Ref.MessageID = fetched.Envelope.MessageID
		if msg.BodyStructure != nil {
			fetched.Structure = mime.FromIMAP(msg.BodyStructure)
		}
		out = append(out, fetched)
	}
	if err != nil {
		return out, fmt.Errorf("IMAP fetch error: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Ref.UID < out[j].Ref.UID })
	return out, nil
}

// FetchPart downloads one body part, still transfer encoded. timeout bounds this
// command only.
func (s *session) FetchPart(ctx context.Context, uid uint32, locator string, timeout time.Duration) ([]byte, error) {
	name := "BODY.PEEK[TEXT]"
	if locator != "" {
		name = "BODY.PEEK[" + locator + "]"
	}
	return s.fetchSection(ctx, uid, name, timeout)
}

// FetchRaw downloads the whole RFC 822 message
func (s *session) FetchRaw(ctx context.Context, uid uint32, timeout time.Duration) ([]byte, error) {
	return s.fetchSection(ctx, uid, "BODY.PEEK[]", timeout)
}

func (s *session) fetchSection(ctx context.Context, uid uint32, name string, timeout time.Duration) ([]byte, error) {
	if s.folder == "" {
		return nil, ErrNoFolderSelected
	}

	section, err := imap.ParseBodySectionName(imap.FetchItem(name))
	if err != nil {
		return nil, fmt.Errorf("invalid section %s: %w", name, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	messages := make(chan *imap.Message, 1)
	err = s.run(ctx, timeout, func() error {
		return s.c.UidFetch(seqSet, []imap.FetchItem{section.FetchItem()}, messages)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("IMAP fetch error: %w", err)
	}

	var body []byte
	found := false
	for msg := range messages {
		if msg == nil {
			continue
		}
		literal := msg.GetBody(section)
		if literal == nil {
			continue
		}
		body, err = io.ReadAll(literal)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", name, err)
		}
		found = true
	}
	if !found {
		return nil, ErrMessageNotFound
	}
	return body, nil
}

func (s *session) Logout() error {
	s.c.Timeout = 5 * time.Second
	err := s.c.Logout()
	if errors.Is(err, client.ErrAlreadyLoggedOut) {
		return nil
	}
	return err
}

// run executes one IMAP command under timeout. go-imap has no context support so
// cancellation only stops the wait, the command keeps the connection busy.
// A command that runs out of time takes the connection down with it, run then
// reconnects so the caller can go on with the same session.
func (s *session) run(ctx context.Context, timeout time.Duration, cmd func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.c.Timeout = timeout
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- cmd()
	}()

	select {
	case err := <-done:
		s.c.Timeout = 0
		if err != nil && timeout > 0 && time.Since(start) >= timeout && IsConnectionError(err) {
			return s.reopen(ctx, &CommandTimeoutError{After: timeout, Err: err})
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reopen replaces the connection dropped by a timed out command and selects the
// current folder again. It returns cause when the session is usable again.
func (s *session) reopen(ctx context.Context, cause *CommandTimeoutError) error {
	if s.redial == nil {
		return fmt.Errorf("%w: %v", ErrSessionLost, cause)
	}
	_ = s.c.Terminate()

	c, err := s.redial(ctx)
	if err != nil {
		return fmt.Errorf("%w: reconnect after %v: %v", ErrSessionLost, cause, err)
	}
	s.c = c

	if s.folder != "" {
		c.Timeout = 30 * time.Second
		status, err := c.Select(s.folder, true)
		c.Timeout = 0
		if err != nil {
			return fmt.Errorf("%w: reselecting %s: %v", ErrSessionLost, s.folder, err)
		}
		if status.UidValidity != s.uidValidity {
			return fmt.Errorf("%w: UIDVALIDITY of %s changed from %d to %d", ErrSessionLost, s.folder, s.uidValidity, status.UidValidity)
		}
		s.messages = status.Messages
	}

	s.log.Warnf("[%s][%s] Reconnected after %v", s.mailboxID, s.folder, cause)
	return cause
}

func headerLiteral(msg *imap.Message) io.Reader {
	for section, literal := range msg.Body {
		if section != nil && section.Specifier == imap.HeaderSpecifier && literal != nil {
			return literal
		}
	}
	return nil
}

func sortUIDs(uids []uint32) {
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
}

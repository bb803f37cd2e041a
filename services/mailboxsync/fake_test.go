package mailboxsync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/testutil"
	"github.com/customeros/mailsync/services/mime"
)

const (
	testMailboxID   = "mbox_test"
	testUIDValidity = uint32(1)
)

var errConnClosed = fmt.Errorf("imap: connection closed")

type fakeMessage struct {
	env       interfaces.ParsedEnvelope
	structure *imap.BodyStructure
	parts     map[string][]byte
	raw       []byte
}

// fakeSession serves messages from memory with the same UID semantics as the
// real session: search results and fetches are ascending and strictly above the
// given UID.
type fakeSession struct {
	mu        sync.Mutex
	mailboxID string
	folders   map[string]map[uint32]*fakeMessage
	selected  string

	// uidValidity is reported for every folder
	uidValidity uint32

	partErrs  map[uint32]error
	fetchErrs map[uint32]error
	selectErr error

	partCalls int
	loggedOut bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		mailboxID:   testMailboxID,
		folders:     make(map[string]map[uint32]*fakeMessage),
		uidValidity: testUIDValidity,
		partErrs:    make(map[uint32]error),
		fetchErrs:   make(map[uint32]error),
	}
}

func (s *fakeSession) add(folder string, uid uint32, msg *fakeMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.folders[folder] == nil {
		s.folders[folder] = make(map[uint32]*fakeMessage)
	}
	s.folders[folder][uid] = msg
}

func (s *fakeSession) uids() []uint32 {
	var out []uint32
	for uid := range s.folders[s.selected] {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *fakeSession) SelectFolder(_ context.Context, folder string) (*interfaces.FolderInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	if _, ok := s.folders[folder]; !ok {
		return nil, fmt.Errorf("no such mailbox %s", folder)
	}
	s.selected = folder
	return &interfaces.FolderInfo{Name: folder, Messages: uint32(len(s.folders[folder])), UIDValidity: s.uidValidity}, nil
}

func (s *fakeSession) SearchUIDsSince(_ context.Context, afterUID uint32) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint32
	for _, uid := range s.uids() {
		if uid > afterUID {
			out = append(out, uid)
		}
	}
	return out, nil
}

func (s *fakeSession) LastUIDs(_ context.Context, n int) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uids := s.uids()
	if n > 0 && len(uids) > n {
		uids = uids[len(uids)-n:]
	}
	return uids, nil
}

func (s *fakeSession) FetchMessages(_ context.Context, uids []uint32) ([]*interfaces.FetchedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*interfaces.FetchedMessage
	for _, uid := range uids {
		if err := s.fetchErrs[uid]; err != nil {
			return nil, err
		}
		msg, ok := s.folders[s.selected][uid]
		if !ok {
			continue
		}
		out = append(out, &interfaces.FetchedMessage{
			Ref: interfaces.RemoteMessageRef{
				MailboxID:   s.mailboxID,
				Folder:      s.selected,
				UIDValidity: s.uidValidity,
				UID:         uid,
				MessageID:   msg.env.MessageID,
			},
			Envelope:  msg.env,
			Structure: mime.FromIMAP(msg.structure),
		})
	}
	return out, nil
}

func (s *fakeSession) FetchPart(_ context.Context, uid uint32, locator string, _ time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partCalls++
	if err := s.partErrs[uid]; err != nil {
		return nil, err
	}
	msg, ok := s.folders[s.selected][uid]
	if !ok {
		return nil, fmt.Errorf("uid %d not found", uid)
	}
	return msg.parts[locator], nil
}

func (s *fakeSession) FetchRaw(_ context.Context, uid uint32, _ time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.partErrs[uid]; err != nil {
		return nil, err
	}
	msg, ok := s.folders[s.selected][uid]
	if !ok {
		return nil, fmt.Errorf("uid %d not found", uid)
	}
	return msg.raw, nil
}

func (s *fakeSession) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedOut = true
	return nil
}

// rejectingEmails fails every insert with err, or reports a duplicate when err is nil
type rejectingEmails struct {
	interfaces.EmailRepository
	err error
}

func (r *rejectingEmails) Create(context.Context, *models.Email) (bool, error) {
	return false, r.err
}

type fakeDialer struct {
	session *fakeSession
	err     error
	dials   int
}

func (d *fakeDialer) Dial(ctx context.Context, _ *models.Mailbox) (interfaces.MailSession, error) {
	d.dials++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []enum.EntityType
	bodies []interface{}
}

func (p *recordingPublisher) PublishFanoutEvent(_ context.Context, _ string, entityType enum.EntityType, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, entityType)
	p.bodies = append(p.bodies, message)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(entityType enum.EntityType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == entityType {
			n++
		}
	}
	return n
}

func testSyncConfig() *config.SyncConfig {
	cfg := config.DefaultSyncConfig()
	cfg.PartFetchDelay = time.Millisecond
	cfg.FetchBatchSize = 2
	cfg.ManualRefreshInterval = time.Hour
	return cfg
}

func testRepositories(store *testutil.MemoryStore) *repository.Repositories {
	return &repository.Repositories{
		EmailRepository:           store.Emails(),
		EmailAttachmentRepository: store.Attachments(),
		EmailThreadRepository:     store.Threads(),
		MailboxRepository:         store.Mailboxes(),
		MailboxSyncRepository:     store.SyncStates(),
		OrderRepository:           store.Orders(),
		SyncRunRepository:         store.SyncRuns(),
	}
}

func testMailbox(t *testing.T, store *testutil.MemoryStore) *models.Mailbox {
	t.Helper()
	mailbox := &models.Mailbox{
		ID:           testMailboxID,
		Provider:     enum.EmailGeneric,
		ImapServer:   "imap.shop.test",
		ImapPort:     993,
		ImapUsername: "support@shop.test",
		ImapPassword: "secret",
		ImapSecurity: enum.EmailSecurityTLS,
		EmailAddress: "support@shop.test",
		Folders:      []string{"INBOX"},
		SyncEnabled:  true,
	}
	require.NoError(t, store.Mailboxes().SaveMailbox(context.Background(), mailbox))
	return mailbox
}

func newTestOrchestrator(store *testutil.MemoryStore, publisher interfaces.EventPublisher) *Orchestrator {
	return NewOrchestrator(testSyncConfig(), logger.NewNopLogger(), testRepositories(store), publisher)
}

// plainMessage is a single text/plain part
func plainMessage(messageID, subject, body string, at time.Time) *fakeMessage {
	return &fakeMessage{
		env: interfaces.ParsedEnvelope{
			From:      "customer@example.com",
			To:        []string{"support@shop.test"},
			Subject:   subject,
			Date:      at,
			MessageID: messageID,
			Unread:    true,
		},
		structure: &imap.BodyStructure{
			MIMEType:    "text",
			MIMESubType: "plain",
			Params:      map[string]string{"charset": "utf-8"},
			Encoding:    "7bit",
		},
		parts: map[string][]byte{"1": []byte(body)},
	}
}

// withAttachment is a mixed message with a text part and a PDF attachment
func withAttachment(messageID, subject, body, encoding string, at time.Time) *fakeMessage {
	msg := plainMessage(messageID, subject, body, at)
	msg.structure = &imap.BodyStructure{
		MIMEType:    "multipart",
		MIMESubType: "mixed",
		Parts: []*imap.BodyStructure{
			{MIMEType: "text", MIMESubType: "plain", Params: map[string]string{"charset": "utf-8"}, Encoding: encoding},
			{
				MIMEType:          "application",
				MIMESubType:       "pdf",
				Encoding:          "base64",
				Disposition:       "attachment",
				DispositionParams: map[string]string{"filename": "invoice.pdf"},
				Size:              2048,
			},
		},
	}
	return msg
}

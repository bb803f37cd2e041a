package attachments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	mailsyncErrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/testutil"
	"github.com/customeros/mailsync/services/imap"
)

type partSession struct {
	interfaces.MailSession
	parts       map[string][]byte
	errs        []error
	uidValidity uint32
	selected    string
	calls       int
}

func (s *partSession) SelectFolder(_ context.Context, folder string) (*interfaces.FolderInfo, error) {
	s.selected = folder
	return &interfaces.FolderInfo{Name: folder, UIDValidity: s.uidValidity}, nil
}

func (s *partSession) FetchPart(_ context.Context, uid uint32, locator string, _ time.Duration) ([]byte, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	data, ok := s.parts[locator]
	if !ok {
		return nil, imap.ErrMessageNotFound
	}
	return data, nil
}

func (s *partSession) Logout() error { return nil }

type sessionDialer struct {
	session *partSession
	dials   int
}

func (d *sessionDialer) Dial(context.Context, *models.Mailbox) (interfaces.MailSession, error) {
	d.dials++
	return d.session, nil
}

type memStorage struct {
	objects map[string][]byte
	failGet bool
}

func (m *memStorage) Upload(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = data
	return nil
}

func (m *memStorage) Download(_ context.Context, key string) ([]byte, error) {
	if m.failGet {
		return nil, errors.New("r2 unavailable")
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStorage) Bucket() string { return "attachments" }

func (m *memStorage) Name() string { return "r2" }

type fixture struct {
	store   *testutil.MemoryStore
	session *partSession
	dialer  *sessionDialer
	storage *memStorage
	svc     *AttachmentService
	file    *models.EmailAttachment
}

func newFixture(t *testing.T, withStorage bool) *fixture {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	require.NoError(t, store.Mailboxes().SaveMailbox(ctx, &models.Mailbox{
		ID: "mbox_1", ImapServer: "imap.x", ImapPort: 993, ImapUsername: "u", ImapPassword: "p",
	}))
	file := &models.EmailAttachment{
		EmailID:         "email_1",
		MailboxID:       "mbox_1",
		Folder:          "INBOX",
		ImapUID:         42,
		ImapUIDValidity: 1700000000,
		Locator:         "2",
		Encoding:        "base64",
		Filename:        "label.pdf",
		ContentType:     "application/pdf",
	}
	require.NoError(t, store.Attachments().Create(ctx, file))

	session := &partSession{parts: map[string][]byte{"2": []byte("JVBERi0xLjQ=")}, uidValidity: 1700000000}
	dialer := &sessionDialer{session: session}
	cfg := config.DefaultSyncConfig()
	cfg.PartFetchDelay = time.Millisecond

	f := &fixture{store: store, session: session, dialer: dialer, file: file}
	var storage interfaces.StorageService
	if withStorage {
		f.storage = &memStorage{objects: make(map[string][]byte)}
		storage = f.storage
	}
	f.svc = NewAttachmentService(cfg, logger.NewNopLogger(), store.Attachments(), store.Mailboxes(), dialer, storage)
	return f
}

func TestGetContent_FetchesAndCaches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	content, err := f.svc.GetContent(ctx, f.file.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content.Data))
	assert.Equal(t, "INBOX", f.session.selected)

	key := "mbox_1/email_1/" + f.file.ID + ".pdf"
	assert.Equal(t, []byte("%PDF-1.4"), f.storage.objects[key])

	stored, err := f.store.Attachments().GetByID(ctx, f.file.ID)
	require.NoError(t, err)
	assert.Equal(t, key, stored.StorageKey)
	assert.Equal(t, "r2", stored.StorageService)
	assert.Equal(t, "attachments", stored.StorageBucket)
	assert.Len(t, stored.ContentHash, 64)
	assert.NotNil(t, stored.DownloadedAt)

	// served from storage the second time
	content, err = f.svc.GetContent(ctx, f.file.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content.Data))
	assert.Equal(t, 1, f.dialer.dials)
}

func TestGetContent_StorageFailureFallsBackToServer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_, err := f.svc.GetContent(ctx, f.file.ID)
	require.NoError(t, err)

	f.storage.failGet = true
	content, err := f.svc.GetContent(ctx, f.file.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content.Data))
	assert.Equal(t, 2, f.dialer.dials)
}

func TestGetContent_WithoutStorage(t *testing.T) {
	f := newFixture(t, false)

	content, err := f.svc.GetContent(context.Background(), f.file.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content.Data))
	assert.Empty(t, content.Attachment.StorageKey)
}

func TestGetContent_RetriesTransientFailures(t *testing.T) {
	f := newFixture(t, false)
	f.session.errs = []error{errors.New("i/o timeout"), errors.New("NO try later")}

	content, err := f.svc.GetContent(context.Background(), f.file.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content.Data))
	assert.Equal(t, 3, f.session.calls)
}

func TestGetContent_MessageGone(t *testing.T) {
	f := newFixture(t, false)
	f.session.parts = map[string][]byte{}

	_, err := f.svc.GetContent(context.Background(), f.file.ID)
	assert.ErrorIs(t, err, mailsyncErrors.ErrAttachmentNotFound)
	assert.Equal(t, 1, f.session.calls)
}

func TestGetContent_UIDValidityChanged(t *testing.T) {
	f := newFixture(t, true)
	// the folder was recreated, UID 42 now names another message
	f.session.uidValidity = 1800000000

	_, err := f.svc.GetContent(context.Background(), f.file.ID)
	assert.ErrorIs(t, err, mailsyncErrors.ErrAttachmentNotFound)
	assert.Zero(t, f.session.calls)
	assert.Empty(t, f.storage.objects)
}

func TestGetContent_UnknownAttachment(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.GetContent(context.Background(), "file_missing")
	assert.ErrorIs(t, err, mailsyncErrors.ErrAttachmentNotFound)
	assert.Zero(t, f.dialer.dials)
}

func TestListByEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	require.NoError(t, f.store.Attachments().Create(ctx, &models.EmailAttachment{EmailID: "email_1", MailboxID: "mbox_1", Folder: "INBOX", ImapUID: 42, Locator: "3", Filename: "photo.jpg"}))

	list, err := f.svc.ListByEmail(ctx, "email_1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "label.pdf", list[0].Filename)
	assert.Equal(t, "photo.jpg", list[1].Filename)

	empty, err := f.svc.ListByEmail(ctx, "email_unknown")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
	assert.Zero(t, f.dialer.dials)
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "m/e/f.pdf", StorageKey(&models.EmailAttachment{MailboxID: "m", EmailID: "e", ID: "f", Filename: "x.pdf"}))
	assert.Equal(t, "m/e/f.png", StorageKey(&models.EmailAttachment{MailboxID: "m", EmailID: "e", ID: "f", ContentType: "image/png"}))
	assert.Equal(t, "m/e/f", StorageKey(&models.EmailAttachment{MailboxID: "m", EmailID: "e", ID: "f", ContentType: "application/x-custom"}))
}

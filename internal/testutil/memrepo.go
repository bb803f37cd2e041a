package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/utils"
)

// MemoryStore is an in-memory stand-in for the postgres repositories with the
// same idempotency rules. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.Mutex
	emails      []*models.Email
	threads     []*models.EmailThread
	attachments []*models.EmailAttachment
	orders      []*models.Order
	syncStates  map[string]*models.MailboxSyncState
	syncRuns    []*models.SyncRun
	mailboxes   map[string]*models.Mailbox
	seq         int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		syncStates: make(map[string]*models.MailboxSyncState),
		mailboxes:  make(map[string]*models.Mailbox),
	}
}

func (s *MemoryStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

func (s *MemoryStore) Emails() interfaces.EmailRepository { return memEmails{s} }

func (s *MemoryStore) Threads() interfaces.EmailThreadRepository { return memThreads{s} }

func (s *MemoryStore) Attachments() interfaces.EmailAttachmentRepository { return memAttachments{s} }

func (s *MemoryStore) Orders() interfaces.OrderRepository { return memOrders{s} }

func (s *MemoryStore) SyncStates() interfaces.MailboxSyncRepository { return memSyncStates{s} }

func (s *MemoryStore) SyncRuns() interfaces.SyncRunRepository { return memSyncRuns{s} }

func (s *MemoryStore) Mailboxes() interfaces.MailboxRepository { return memMailboxes{s} }

func (s *MemoryStore) AddOrder(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == "" {
		order.ID = s.nextID("ord")
	}
	s.orders = append(s.orders, order)
}

// AllEmails returns a snapshot ordered by insertion
func (s *MemoryStore) AllEmails() []models.Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Email, 0, len(s.emails))
	for _, e := range s.emails {
		out = append(out, *e)
	}
	return out
}

func (s *MemoryStore) AllThreads() []models.EmailThread {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EmailThread, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, *t)
	}
	return out
}

func (s *MemoryStore) AllAttachments() []models.EmailAttachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EmailAttachment, 0, len(s.attachments))
	for _, a := range s.attachments {
		out = append(out, *a)
	}
	return out
}

func (s *MemoryStore) AllSyncRuns() []models.SyncRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SyncRun, 0, len(s.syncRuns))
	for _, r := range s.syncRuns {
		out = append(out, *r)
	}
	return out
}

// Checkpoint returns the stored last UID, 0 when absent
func (s *MemoryStore) Checkpoint(mailboxID, folder string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.syncStates[mailboxID+"/"+folder]; ok {
		return st.LastUID
	}
	return 0
}

type memEmails struct{ s *MemoryStore }

func (r memEmails) Create(_ context.Context, email *models.Email) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email.MessageID = utils.NormalizeMessageID(email.MessageID)
	for _, e := range r.s.emails {
		if e.MailboxID == email.MailboxID && e.Folder == email.Folder && e.ImapUIDValidity == email.ImapUIDValidity && e.ImapUID == email.ImapUID {
			return false, nil
		}
		if email.MessageID != "" && e.MessageID == email.MessageID {
			return false, nil
		}
	}
	if email.ID == "" {
		email.ID = r.s.nextID("email")
	}
	copied := *email
	r.s.emails = append(r.s.emails, &copied)
	return true, nil
}

func (r memEmails) GetByID(_ context.Context, id string) (*models.Email, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.emails {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (r memEmails) GetByUID(_ context.Context, mailboxID, folder string, uidValidity, uid uint32) (*models.Email, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.emails {
		if e.MailboxID == mailboxID && e.Folder == folder && e.ImapUIDValidity == uidValidity && e.ImapUID == uid {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (r memEmails) GetByMessageID(_ context.Context, messageID string) (*models.Email, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	messageID = utils.NormalizeMessageID(messageID)
	if messageID == "" {
		return nil, nil
	}
	for _, e := range r.s.emails {
		if e.MessageID == messageID {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (r memEmails) ListByThread(_ context.Context, threadID string) ([]*models.Email, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Email
	for _, e := range r.s.emails {
		if e.ThreadID == threadID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memThreads struct{ s *MemoryStore }

func (r memThreads) Create(_ context.Context, thread *models.EmailThread) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if thread.ID == "" {
		thread.ID = r.s.nextID("thrd")
	}
	thread.CreatedAt = utils.Now()
	copied := *thread
	r.s.threads = append(r.s.threads, &copied)
	return thread.ID, nil
}

func (r memThreads) GetByID(_ context.Context, id string) (*models.EmailThread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.threads {
		if t.ID == id {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

func (r memThreads) GetByThreadKey(_ context.Context, mailboxID, threadKey string) (*models.EmailThread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.threads {
		if t.MailboxID == mailboxID && t.ThreadKey == threadKey {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

func (r memThreads) FindBySubjectWithin(_ context.Context, mailboxID, normalizedSubject string, at time.Time, window time.Duration) (*models.EmailThread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *models.EmailThread
	for _, t := range r.s.threads {
		if t.MailboxID != mailboxID || t.NormalizedSubject != normalizedSubject || t.LastMessageAt == nil {
			continue
		}
		diff := t.LastMessageAt.Sub(at)
		if diff < -window || diff > window {
			continue
		}
		if best == nil || t.LastMessageAt.After(*best.LastMessageAt) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (r memThreads) MergeMessage(_ context.Context, threadID string, merge interfaces.ThreadMerge) (*models.EmailThread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.threads {
		if t.ID == threadID {
			t.AddMessage(merge.MessageID, merge.Participants, merge.MessageAt, merge.Unread, merge.HasAttachments, merge.OrderID)
			copied := *t
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("thread with ID %s not found", threadID)
}

func (r memThreads) DeleteIfEmpty(_ context.Context, threadID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.emails {
		if e.ThreadID == threadID {
			return false, nil
		}
	}
	for i, t := range r.s.threads {
		if t.ID == threadID {
			r.s.threads = append(r.s.threads[:i], r.s.threads[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type memAttachments struct{ s *MemoryStore }

func (r memAttachments) Create(_ context.Context, attachment *models.EmailAttachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.attachments {
		if a.EmailID == attachment.EmailID && a.Locator == attachment.Locator {
			return nil
		}
	}
	if attachment.ID == "" {
		attachment.ID = r.s.nextID("file")
	}
	copied := *attachment
	r.s.attachments = append(r.s.attachments, &copied)
	return nil
}

func (r memAttachments) GetByID(_ context.Context, id string) (*models.EmailAttachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.attachments {
		if a.ID == id {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (r memAttachments) ListByEmail(_ context.Context, emailID string) ([]*models.EmailAttachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.EmailAttachment
	for _, a := range r.s.attachments {
		if a.EmailID == emailID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r memAttachments) SetStorage(_ context.Context, id, service, bucket, key, contentHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.attachments {
		if a.ID == id {
			now := utils.Now()
			a.StorageService = service
			a.StorageBucket = bucket
			a.StorageKey = key
			a.ContentHash = contentHash
			a.DownloadedAt = &now
			return nil
		}
	}
	return fmt.Errorf("attachment %s not found", id)
}

type memOrders struct{ s *MemoryStore }

func (r memOrders) GetByOrderNumbers(_ context.Context, orderNumbers []string) ([]*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Order
	for _, o := range r.s.orders {
		if utils.IsStringInSlice(o.OrderNumber, orderNumbers) {
			copied := *o
			out = append(out, &copied)
		}
	}
	sortOrders(out)
	return out, nil
}

func (r memOrders) ListByCustomerEmail(_ context.Context, email string) ([]*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Order
	for _, o := range r.s.orders {
		if email != "" && strings.EqualFold(o.CustomerEmail, email) {
			copied := *o
			out = append(out, &copied)
		}
	}
	sortOrders(out)
	return out, nil
}

func sortOrders(orders []*models.Order) {
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].OrderDate.After(orders[j].OrderDate) })
}

type memSyncStates struct{ s *MemoryStore }

func (r memSyncStates) GetSyncState(_ context.Context, mailboxID, folderName string) (*models.MailboxSyncState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if st, ok := r.s.syncStates[mailboxID+"/"+folderName]; ok {
		copied := *st
		return &copied, nil
	}
	return nil, nil
}

func (r memSyncStates) AdvanceSyncState(_ context.Context, mailboxID, folderName string, uidValidity, uid uint32) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := mailboxID + "/" + folderName
	st, ok := r.s.syncStates[key]
	if !ok {
		st = &models.MailboxSyncState{MailboxID: mailboxID, FolderName: folderName, UIDValidity: uidValidity}
		r.s.syncStates[key] = st
	}
	if st.UIDValidity != uidValidity {
		st.UIDValidity = uidValidity
		st.LastUID = uid
	} else if uid > st.LastUID {
		st.LastUID = uid
	}
	st.LastSync = utils.Now()
	return nil
}

func (r memSyncStates) DeleteSyncState(_ context.Context, mailboxID, folderName string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.syncStates, mailboxID+"/"+folderName)
	return nil
}

func (r memSyncStates) DeleteMailboxSyncStates(_ context.Context, mailboxID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for key, st := range r.s.syncStates {
		if st.MailboxID == mailboxID {
			delete(r.s.syncStates, key)
		}
	}
	return nil
}

func (r memSyncStates) GetMailboxSyncStates(_ context.Context, mailboxID string) (map[string]uint32, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string]uint32)
	for _, st := range r.s.syncStates {
		if st.MailboxID == mailboxID {
			out[st.FolderName] = st.LastUID
		}
	}
	return out, nil
}

func (r memSyncStates) DeleteOrphanedSyncStates(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var deleted int64
	for key, st := range r.s.syncStates {
		if _, ok := r.s.mailboxes[st.MailboxID]; !ok {
			delete(r.s.syncStates, key)
			deleted++
		}
	}
	return deleted, nil
}

type memSyncRuns struct{ s *MemoryStore }

func (r memSyncRuns) Create(_ context.Context, run *models.SyncRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if run.ID == "" {
		run.ID = r.s.nextID("run")
	}
	copied := *run
	r.s.syncRuns = append(r.s.syncRuns, &copied)
	return nil
}

func (r memSyncRuns) Finish(_ context.Context, run *models.SyncRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, existing := range r.s.syncRuns {
		if existing.ID == run.ID {
			copied := *run
			r.s.syncRuns[i] = &copied
			return nil
		}
	}
	return fmt.Errorf("sync run %s not found", run.ID)
}

func (r memSyncRuns) ListByMailbox(_ context.Context, mailboxID string, limit int) ([]*models.SyncRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.SyncRun
	for i := len(r.s.syncRuns) - 1; i >= 0; i-- {
		if r.s.syncRuns[i].MailboxID != mailboxID {
			continue
		}
		copied := *r.s.syncRuns[i]
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type memMailboxes struct{ s *MemoryStore }

func (r memMailboxes) GetMailboxes(_ context.Context) ([]*models.Mailbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Mailbox
	for _, m := range r.s.mailboxes {
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memMailboxes) GetMailbox(_ context.Context, id string) (*models.Mailbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.mailboxes[id]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

func (r memMailboxes) GetMailboxByEmailAddress(_ context.Context, emailAddress string) (*models.Mailbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.mailboxes {
		if strings.EqualFold(m.EmailAddress, emailAddress) {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (r memMailboxes) SaveMailbox(_ context.Context, mailbox *models.Mailbox) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if mailbox.ID == "" {
		mailbox.ID = r.s.nextID("mbox")
	}
	copied := *mailbox
	r.s.mailboxes[mailbox.ID] = &copied
	return nil
}

func (r memMailboxes) DeleteMailbox(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.mailboxes, id)
	return nil
}

func (r memMailboxes) UpdateSyncStatus(_ context.Context, mailboxID, status, errorMessage string, syncedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.mailboxes[mailboxID]
	if !ok {
		return fmt.Errorf("mailbox %s not found", mailboxID)
	}
	m.SyncStatus = status
	m.ErrorMessage = errorMessage
	if syncedAt != nil {
		m.LastSynced = syncedAt
	}
	return nil
}

package mailboxsync

import (
	"context"

	"github.com/customeros/mailsync/interfaces"
	mailsyncErrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/utils"
)

func newStatus(mailboxID string) *interfaces.MailboxStatus {
	return &interfaces.MailboxStatus{
		MailboxID: mailboxID,
		Folders:   make(map[string]interfaces.FolderStats),
	}
}

// statusFor must be called with statusMutex held
func (s *SyncService) statusFor(mailboxID string) *interfaces.MailboxStatus {
	status, ok := s.statuses[mailboxID]
	if !ok {
		status = newStatus(mailboxID)
		s.statuses[mailboxID] = status
	}
	return status
}

func (s *SyncService) setSyncing(mailboxID string, syncing bool) {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()
	status := s.statusFor(mailboxID)
	status.Syncing = syncing
	status.LastChecked = utils.Now()
}

func (s *SyncService) setConnected(mailboxID string, connected bool) {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()
	s.statusFor(mailboxID).Connected = connected
}

func (s *SyncService) setLastError(mailboxID, msg string) {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()
	s.statusFor(mailboxID).LastError = msg
}

func (s *SyncService) recordFolder(mailboxID string, result *SyncResult) {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	status := s.statusFor(mailboxID)
	stats := status.Folders[result.Folder]
	stats.Imported += result.ImportedCount
	if result.LastUID > stats.LastUID {
		stats.LastUID = result.LastUID
	}
	stats.LastSync = utils.Now()
	status.Folders[result.Folder] = stats
}

// MailboxStatus returns the in-memory status of one mailbox merged with its stored checkpoints
func (s *SyncService) MailboxStatus(ctx context.Context, mailboxID string) (*interfaces.MailboxStatus, error) {
	mailbox, err := s.repos.MailboxRepository.GetMailbox(ctx, mailboxID)
	if err != nil {
		return nil, err
	}
	if mailbox == nil {
		return nil, mailsyncErrors.ErrMailboxNotFound
	}

	checkpoints, err := s.repos.MailboxSyncRepository.GetMailboxSyncStates(ctx, mailboxID)
	if err != nil {
		return nil, err
	}

	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()

	out := newStatus(mailboxID)
	if status, ok := s.statuses[mailboxID]; ok {
		out.Connected = status.Connected
		out.Syncing = status.Syncing
		out.LastError = status.LastError
		out.LastChecked = status.LastChecked
		for folder, stats := range status.Folders {
			out.Folders[folder] = stats
		}
	}
	if out.LastError == "" {
		out.LastError = mailbox.ErrorMessage
	}
	for folder, lastUID := range checkpoints {
		stats := out.Folders[folder]
		stats.LastUID = lastUID
		out.Folders[folder] = stats
	}
	return out, nil
}

// Status returns the status of every mailbox
func (s *SyncService) Status(ctx context.Context) (map[string]*interfaces.MailboxStatus, error) {
	mailboxes, err := s.repos.MailboxRepository.GetMailboxes(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*interfaces.MailboxStatus, len(mailboxes))
	for _, mailbox := range mailboxes {
		status, err := s.MailboxStatus(ctx, mailbox.ID)
		if err != nil {
			return nil, err
		}
		out[mailbox.ID] = status
	}
	return out, nil
}

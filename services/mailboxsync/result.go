package mailboxsync

import (
	"fmt"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/enum"
)

// SyncResult summarises one folder run
type SyncResult struct {
	MailboxID     string        `json:"mailboxId"`
	Folder        string        `json:"folder"`
	Mode          enum.SyncMode `json:"mode"`
	ImportedCount int           `json:"importedCount"`
	SkippedCount  int           `json:"skippedCount"`
	// Errors holds the first maxErrors per-message failures, ErrorCount counts all of them
	Errors     []string `json:"errors"`
	ErrorCount int      `json:"errorCount"`
	FromUID    uint32   `json:"fromUid"`
	LastUID    uint32   `json:"lastUid"`
	// AbortErr is the connection or store failure that ended the run early
	AbortErr error `json:"-"`

	maxErrors int
}

func newSyncResult(mailboxID, folder string, mode enum.SyncMode, maxErrors int) *SyncResult {
	return &SyncResult{
		MailboxID: mailboxID,
		Folder:    folder,
		Mode:      mode,
		Errors:    []string{},
		maxErrors: maxErrors,
	}
}

func (r *SyncResult) Aborted() bool {
	return r.AbortErr != nil
}

func (r *SyncResult) addError(format string, args ...interface{}) {
	r.ErrorCount++
	if r.maxErrors > 0 && len(r.Errors) >= r.maxErrors {
		return
	}
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *SyncResult) toDTO() dto.FolderSyncResult {
	out := dto.FolderSyncResult{
		Folder:   r.Folder,
		Mode:     r.Mode,
		Imported: r.ImportedCount,
		Skipped:  r.SkippedCount,
		Errors:   r.Errors,
		LastUID:  r.LastUID,
		Aborted:  r.Aborted(),
	}
	if r.AbortErr != nil {
		out.AbortedBy = r.AbortErr.Error()
	}
	return out
}

package dto

import (
	"time"

	"github.com/customeros/mailsync/internal/enum"
)

type MailboxSyncCompleted struct {
	MailboxID  string             `json:"mailboxId"`
	Trigger    enum.SyncTrigger   `json:"trigger"`
	Folders    []FolderSyncResult `json:"folders"`
	Imported   int                `json:"imported"`
	Errors     int                `json:"errors"`
	Aborted    bool               `json:"aborted"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
}

type FolderSyncResult struct {
	Folder    string        `json:"folder"`
	Mode      enum.SyncMode `json:"mode"`
	Imported  int           `json:"imported"`
	Skipped   int           `json:"skipped"`
	Errors    []string      `json:"errors,omitempty"`
	LastUID   uint32        `json:"lastUid"`
	Aborted   bool          `json:"aborted"`
	AbortedBy string        `json:"abortedBy,omitempty"`
}

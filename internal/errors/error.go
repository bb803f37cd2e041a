package errors

import "github.com/pkg/errors"

var (
	// common errors
	ErrConnectionTimeout = errors.New("connection timeout")

	// mailbox errors
	ErrMailboxExists      = errors.New("mailbox already exists")
	ErrMailboxNotFound    = errors.New("mailbox not found")
	ErrMissingCredentials = errors.New("mailbox credentials are missing")

	// sync errors
	ErrRateLimited    = errors.New("refresh rate limited")
	ErrSyncInProgress = errors.New("sync already in progress")

	// thread errors
	ErrThreadNotFound = errors.New("thread not found")

	// attachment errors
	ErrAttachmentNotFound = errors.New("attachment not found")
)

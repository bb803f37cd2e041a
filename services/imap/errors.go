package imap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/emersion/go-imap/client"
)

var (
	ErrMessageNotFound  = errors.New("message not found on server")
	ErrNoFolderSelected = errors.New("no folder selected")
	// ErrSessionLost is returned when a timed out connection could not be reopened
	ErrSessionLost = errors.New("imap session lost")
)

// CommandTimeoutError reports a command that ran past its timeout. go-imap drops
// the connection when that happens; the session has already been reconnected
// when this error is returned, so the command may be retried.
type CommandTimeoutError struct {
	After time.Duration
	Err   error
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("imap command timed out after %v: %v", e.After, e.Err)
}

func (e *CommandTimeoutError) Timeout() bool   { return true }
func (e *CommandTimeoutError) Temporary() bool { return true }

// IsTimeout reports a deadline hit on a single IMAP command
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "i/o timeout")
}

// IsFatalSessionError reports errors after which the session cannot be used any more.
// Timeouts are not fatal, the command may be retried.
func IsFatalSessionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionLost) {
		return true
	}
	if IsTimeout(err) {
		return false
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, client.ErrNotLoggedIn) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "eof") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "login error") ||
		strings.Contains(msg, "not logged in")
}

// IsConnectionError reports any transport level failure, timeouts included
func IsConnectionError(err error) bool {
	return IsTimeout(err) || IsFatalSessionError(err)
}

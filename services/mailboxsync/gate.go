package mailboxsync

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MailboxGate keeps one sync per mailbox in flight and throttles manual refreshes
type MailboxGate struct {
	mu              sync.Mutex
	locks           map[string]*sync.Mutex
	limiters        map[string]*rate.Limiter
	refreshInterval time.Duration
}

func NewMailboxGate(refreshInterval time.Duration) *MailboxGate {
	return &MailboxGate{
		locks:           make(map[string]*sync.Mutex),
		limiters:        make(map[string]*rate.Limiter),
		refreshInterval: refreshInterval,
	}
}

// TryLock acquires the mailbox without waiting. The returned func releases it.
func (g *MailboxGate) TryLock(mailboxID string) (func(), bool) {
	g.mu.Lock()
	lock, ok := g.locks[mailboxID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[mailboxID] = lock
	}
	g.mu.Unlock()

	if !lock.TryLock() {
		return nil, false
	}
	return lock.Unlock, true
}

// IsLocked reports a sync in flight for the mailbox
func (g *MailboxGate) IsLocked(mailboxID string) bool {
	unlock, ok := g.TryLock(mailboxID)
	if !ok {
		return true
	}
	unlock()
	return false
}

// AllowRefresh consumes the mailbox's manual refresh token
func (g *MailboxGate) AllowRefresh(mailboxID string) bool {
	if g.refreshInterval <= 0 {
		return true
	}

	g.mu.Lock()
	limiter, ok := g.limiters[mailboxID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(g.refreshInterval), 1)
		g.limiters[mailboxID] = limiter
	}
	g.mu.Unlock()

	return limiter.Allow()
}

// Forget drops the state of a removed mailbox
func (g *MailboxGate) Forget(mailboxID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.limiters, mailboxID)
}

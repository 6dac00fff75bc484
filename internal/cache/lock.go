package cache

import (
	"sync"

	"github.com/markview/markview/internal/errors"
)

// UpgradableLock is a reader/writer lock with an explicit, non-blocking
// read-to-write upgrade. The standard library lock cannot express the
// upgrade without risking the classic two-readers-both-upgrade deadlock,
// so this is a condition-variable state machine tracking the writer, the
// reader count, and pending writers.
//
// Fairness: new readers wait whenever a writer is pending, so writers are
// not starved by a continuous poll stream.
type UpgradableLock struct {
	mu             sync.Mutex
	cond           *sync.Cond
	readers        int
	writer         bool
	pendingWriters int
	upgrading      bool
}

// NewUpgradableLock creates an unlocked lock.
func NewUpgradableLock() *UpgradableLock {
	l := &UpgradableLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// RLock acquires a shared read lock. It blocks while a writer holds the
// lock or is waiting for it.
func (l *UpgradableLock) RLock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.writer || l.upgrading || l.pendingWriters > 0 {
		l.cond.Wait()
	}
	l.readers++
}

// RUnlock releases a shared read lock.
func (l *UpgradableLock) RUnlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readers--
	if l.readers < 0 {
		panic("cache: RUnlock without matching RLock")
	}
	l.cond.Broadcast()
}

// Lock acquires the exclusive write lock, excluding all readers.
func (l *UpgradableLock) Lock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pendingWriters++
	for l.writer || l.upgrading || l.readers > 0 {
		l.cond.Wait()
	}
	l.pendingWriters--
	l.writer = true
}

// Unlock releases the write lock.
func (l *UpgradableLock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.writer {
		panic("cache: Unlock without matching Lock")
	}
	l.writer = false
	l.cond.Broadcast()
}

// Upgrade converts a held read lock into the write lock. It fails with
// ErrUpgradeDeadlock instead of blocking when another reader is active or
// another writer is already waiting; the caller keeps its read lock and
// retries later.
func (l *UpgradableLock) Upgrade() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readers < 1 {
		panic("cache: Upgrade without held read lock")
	}
	if l.readers > 1 || l.pendingWriters > 0 || l.upgrading {
		return errors.ErrUpgradeDeadlock
	}
	l.readers--
	l.writer = true
	return nil
}

// Downgrade converts the held write lock back into a read lock without
// letting another writer in between.
func (l *UpgradableLock) Downgrade() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.writer {
		panic("cache: Downgrade without held write lock")
	}
	l.writer = false
	l.readers++
	l.cond.Broadcast()
}

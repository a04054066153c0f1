package fsutil

import (
	"time"

	flock "github.com/theckman/go-flock"
	"github.com/pkg/errors"
)

// DefaultLockTimeout is the 30s ceiling recommended by spec.md §5: the
// cache's write-back gives up after this long and degrades to
// in-memory-only behavior rather than blocking forever.
const DefaultLockTimeout = 30 * time.Second

const lockPollInterval = 25 * time.Millisecond

// Lock wraps an advisory file lock (github.com/theckman/go-flock) with
// a bounded retry loop: "try for up to timeout, then give up". Its only
// caller in this module is the cache's write-back (cache.persist);
// declare/undeclare and tag mutations take no lock.
type Lock struct {
	flock *flock.Flock
	path  string
}

// NewLock returns a Lock bound to an advisory lock file at path. The
// file is created on first successful acquisition if it doesn't exist.
func NewLock(path string) *Lock {
	return &Lock{flock: flock.NewFlock(path), path: path}
}

// Path returns the lock file path, for diagnostics.
func (l *Lock) Path() string { return l.path }

// TryAcquire polls for the exclusive lock until timeout elapses,
// returning a plain error (not an errs.LockTimeout kind) if it never
// succeeds. Callers that want to degrade gracefully instead of
// failing should treat any returned error as "could not lock" and fall
// back to their in-memory-only path.
func (l *Lock) TryAcquire(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.flock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "locking %s", l.path)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Errorf("timed out acquiring lock %s after %s", l.path, timeout)
		}
		time.Sleep(lockPollInterval)
	}
}

// Release unlocks the file. It is a no-op if the lock was never
// acquired.
func (l *Lock) Release() error {
	if !l.flock.Locked() {
		return nil
	}
	return errors.Wrapf(l.flock.Unlock(), "unlocking %s", l.path)
}

// WithLock acquires l for the duration of fn and always releases it
// afterward, including when fn panics.
func WithLock(l *Lock, timeout time.Duration, fn func() error) error {
	if err := l.TryAcquire(timeout); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

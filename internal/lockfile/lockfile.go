// Package lockfile implements the advisory cross-process lock that guards a
// whole sync operation, preventing a CLI invocation and an editor-driven
// auto-sync from writing destinations concurrently.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/confsync/confsync/internal/logging"
)

// ErrLockHeld is returned when acquisition times out because another sync
// holds the lock. The caller may retry later.
var ErrLockHeld = errors.New("another sync is running")

const (
	// DefaultStaleAfter is how old a lock file must be before it is
	// treated as abandoned (e.g. after a crash) and reclaimed.
	DefaultStaleAfter = 10 * time.Minute
	// DefaultPollInterval is how often acquisition retries.
	DefaultPollInterval = 100 * time.Millisecond
)

// Lock is an advisory file lock with staleness detection. It is not safe
// for concurrent use by multiple goroutines; its job is mutual exclusion
// across processes.
type Lock struct {
	path         string
	staleAfter   time.Duration
	pollInterval time.Duration
	held         bool
	// token is the exact content this process wrote into the lock file,
	// used to verify ownership before removing it.
	token string
}

// New creates a lock backed by the file at path. A zero staleAfter uses
// DefaultStaleAfter.
func New(path string, staleAfter time.Duration) *Lock {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Lock{
		path:         path,
		staleAfter:   staleAfter,
		pollInterval: DefaultPollInterval,
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire polls until the lock is obtained or timeout elapses, in which
// case it returns ErrLockHeld. A lock file older than the staleness
// threshold is reclaimed.
func (l *Lock) Acquire(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		ok, err := l.tryAcquire()
		if err != nil {
			return err
		}
		if ok {
			l.held = true
			return nil
		}

		if l.reclaimStale() {
			continue
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w (lock file %s)", ErrLockHeld, l.path)
		}
		time.Sleep(l.pollInterval)
	}
}

// Release removes the lock file after verifying it still carries this
// process's token; a lock file replaced by another process is left alone.
// It is a no-op when the lock is not held, so it is safe to call from a
// deferred block on every code path.
func (l *Lock) Release() {
	if !l.held {
		return
	}
	l.held = false

	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("failed to read lock file on release", logging.Path(l.path), logging.Err(err))
		}
		return
	}
	if string(data) != l.token {
		logging.Warn("lock file belongs to another process, leaving it", logging.Path(l.path))
		return
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove lock file", logging.Path(l.path), logging.Err(err))
	}
}

// IsLocked reports whether a live (non-stale) lock file exists.
func (l *Lock) IsLocked() bool {
	info, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < l.staleAfter
}

func (l *Lock) tryAcquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create lock file %q: %w", l.path, err)
	}
	defer func() { _ = f.Close() }()

	// pid + timestamp for post-mortem debugging of abandoned locks; the
	// nanosecond component makes the token unique per acquisition so
	// Release can tell this lock apart from a successor's.
	l.token = fmt.Sprintf("%s %s %d\n",
		strconv.Itoa(os.Getpid()), time.Now().Format(time.RFC3339), time.Now().UnixNano())
	if _, err := f.WriteString(l.token); err != nil {
		_ = os.Remove(l.path)
		return false, fmt.Errorf("failed to write lock file %q: %w", l.path, err)
	}
	return true, nil
}

// reclaimStale removes an abandoned lock file and reports whether one was
// removed. Ownership of the stale file is claimed by renaming it to a name
// unique to this acquisition, so two concurrent reclaimers can never both
// proceed: the rename succeeds for exactly one of them.
func (l *Lock) reclaimStale() bool {
	info, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) < l.staleAfter {
		return false
	}

	claim := fmt.Sprintf("%s.claim.%d.%d", l.path, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(l.path, claim); err != nil {
		return false
	}
	defer func() { _ = os.Remove(claim) }()

	// The lock may have been reclaimed and re-acquired by another process
	// between the stat and the rename, in which case the file just renamed
	// is a live lock, not the stale one. Put it back; Link refuses to
	// clobber, so a lock created in the meantime is never overwritten.
	ci, err := os.Stat(claim)
	if err != nil {
		return false
	}
	if time.Since(ci.ModTime()) < l.staleAfter {
		_ = os.Link(claim, l.path)
		return false
	}

	logging.Warn("reclaimed stale lock file",
		logging.Path(l.path),
		logging.Operation("lock"),
	)
	return true
}

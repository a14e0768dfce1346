package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "sync.lock")
	lock := New(path, 0)

	if err := lock.Acquire(time.Second); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("lock file should exist after Acquire: %v", err)
	}
	if !lock.IsLocked() {
		t.Error("IsLocked() = false, want true while held")
	}

	lock.Release()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed after Release, stat err = %v", err)
	}
	if lock.IsLocked() {
		t.Error("IsLocked() = true, want false after Release")
	}
}

func TestAcquireBlockedByHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")

	holder := New(path, 0)
	if err := holder.Acquire(time.Second); err != nil {
		t.Fatalf("holder Acquire() error = %v", err)
	}
	defer holder.Release()

	waiter := New(path, 0)
	err := waiter.Acquire(150 * time.Millisecond)
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("Acquire() error = %v, want ErrLockHeld", err)
	}
}

func TestAcquireAfterHolderReleases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")

	holder := New(path, 0)
	if err := holder.Acquire(time.Second); err != nil {
		t.Fatalf("holder Acquire() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		waiter := New(path, 0)
		done <- waiter.Acquire(2 * time.Second)
	}()

	time.Sleep(200 * time.Millisecond)
	holder.Release()

	if err := <-done; err != nil {
		t.Fatalf("waiter Acquire() error = %v", err)
	}
}

func TestAcquireReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")

	if err := os.WriteFile(path, []byte("12345 2026-01-01T00:00:00Z\n"), 0o640); err != nil { // #nosec G306
		t.Fatalf("failed to create stale lock: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("failed to age lock file: %v", err)
	}

	lock := New(path, 10*time.Minute)
	if err := lock.Acquire(time.Second); err != nil {
		t.Fatalf("Acquire() should reclaim stale lock, error = %v", err)
	}
	lock.Release()
}

func TestFreshLockNotReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")

	if err := os.WriteFile(path, []byte("12345\n"), 0o640); err != nil { // #nosec G306
		t.Fatalf("failed to create lock: %v", err)
	}

	lock := New(path, 10*time.Minute)
	err := lock.Acquire(150 * time.Millisecond)
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("Acquire() error = %v, want ErrLockHeld for fresh foreign lock", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")
	lock := New(path, 0)

	// Release before Acquire must be a no-op.
	lock.Release()

	if err := lock.Acquire(time.Second); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	lock.Release()
	lock.Release()
}

func TestReleaseLeavesReplacedLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")
	lock := New(path, 0)

	if err := lock.Acquire(time.Second); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// Simulate another process replacing the lock file out from under us.
	foreign := []byte("99999 2026-01-01T00:00:00Z 1\n")
	if err := os.WriteFile(path, foreign, 0o640); err != nil { // #nosec G306
		t.Fatalf("failed to replace lock: %v", err)
	}

	lock.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Release removed a lock it does not own: %v", err)
	}
	if string(data) != string(foreign) {
		t.Errorf("lock content = %q, want the foreign lock untouched", data)
	}
}

func TestStaleReclaimSingleWinner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")

	if err := os.WriteFile(path, []byte("12345 2026-01-01T00:00:00Z 1\n"), 0o640); err != nil { // #nosec G306
		t.Fatalf("failed to create stale lock: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("failed to age lock file: %v", err)
	}

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			lock := New(path, 10*time.Minute)
			results <- lock.Acquire(500 * time.Millisecond)
		}()
	}

	acquired := 0
	for i := 0; i < 2; i++ {
		if err := <-results; err == nil {
			acquired++
		} else if !errors.Is(err, ErrLockHeld) {
			t.Fatalf("Acquire() error = %v, want nil or ErrLockHeld", err)
		}
	}
	if acquired != 1 {
		t.Fatalf("acquired = %d, want exactly one winner over a stale lock", acquired)
	}
}

func TestReclaimLeavesNoClaimFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sync.lock")

	if err := os.WriteFile(path, []byte("12345 2026-01-01T00:00:00Z 1\n"), 0o640); err != nil { // #nosec G306
		t.Fatalf("failed to create stale lock: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("failed to age lock file: %v", err)
	}

	lock := New(path, 10*time.Minute)
	if err := lock.Acquire(time.Second); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lock.Release()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if e.Name() != "sync.lock" {
			t.Errorf("unexpected leftover file %q after reclaim", e.Name())
		}
	}
}

func TestReclaimRestoresFreshLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")

	holder := New(path, 0)
	if err := holder.Acquire(time.Second); err != nil {
		t.Fatalf("holder Acquire() error = %v", err)
	}
	defer holder.Release()

	// A reclaimer must never remove a live lock.
	other := New(path, 10*time.Minute)
	if other.reclaimStale() {
		t.Fatal("reclaimStale() = true for a fresh lock")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("fresh lock should survive a reclaim attempt: %v", err)
	}
}

func TestIsLockedTreatsStaleAsFree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")

	if err := os.WriteFile(path, []byte("12345\n"), 0o640); err != nil { // #nosec G306
		t.Fatalf("failed to create lock: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("failed to age lock file: %v", err)
	}

	lock := New(path, 10*time.Minute)
	if lock.IsLocked() {
		t.Error("IsLocked() = true, want false for stale lock")
	}
}

// Package state persists the record of last successful sync times per
// tool. The record is reporting-only: sync correctness never depends on it.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/confsync/confsync/internal/fsutil"
	"github.com/confsync/confsync/internal/lockfile"
	"github.com/confsync/confsync/internal/logging"
)

// State is the persisted document.
type State struct {
	// Tools maps tool identifier to the time of its last successful sync.
	Tools map[string]time.Time `json:"tools"`
	// LastGlobalSync is the time of the last fully successful sync.
	LastGlobalSync time.Time `json:"last_global_sync"`
}

// Store reads and writes the state file. Mutation is serialized by an
// advisory lock and always merges with the latest on-disk value, so
// concurrent processes never lose each other's updates.
type Store struct {
	path   string
	lock   *lockfile.Lock
	writer *fsutil.AtomicWriter
}

// lockTimeout bounds how long a state update waits for the advisory lock.
const lockTimeout = 5 * time.Second

// NewStore creates a store for the state file at path.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		lock:   lockfile.New(path+".lock", 0),
		writer: fsutil.NewAtomicWriter(),
	}
}

// Load reads the current state. A missing or corrupt file yields an empty
// state rather than an error.
func (s *Store) Load() *State {
	state := &State{Tools: make(map[string]time.Time)}

	// #nosec G304 - path is the trusted state location
	data, err := os.ReadFile(s.path)
	if err != nil {
		return state
	}
	if err := json.Unmarshal(data, state); err != nil {
		logging.Warn("state file is corrupt, starting fresh",
			logging.Path(s.path),
			logging.Err(err),
		)
		return &State{Tools: make(map[string]time.Time)}
	}
	if state.Tools == nil {
		state.Tools = make(map[string]time.Time)
	}
	return state
}

// Record merges new per-tool sync times into the on-disk state. The merge
// keeps the newest timestamp per tool. globalSync, when non-zero, updates
// LastGlobalSync the same way.
func (s *Store) Record(tools map[string]time.Time, globalSync time.Time) error {
	if err := s.lock.Acquire(lockTimeout); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer s.lock.Release()

	state := s.Load()
	for id, at := range tools {
		if at.After(state.Tools[id]) {
			state.Tools[id] = at
		}
	}
	if globalSync.After(state.LastGlobalSync) {
		state.LastGlobalSync = globalSync
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := s.writer.Write(s.path, data); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// LastSync returns the last successful sync time for a tool, or a zero
// time when the tool has never synced.
func (s *Store) LastSync(toolID string) time.Time {
	return s.Load().Tools[toolID]
}

package eval

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

const CheckpointVersion = 1

// Checkpoint records which evaluation samples have been processed so an
// interrupted run can resume. Samples are keyed by query string equality.
type Checkpoint struct {
	Version        int       `json:"version"`
	ProcessedCount int       `json:"processed_count"`
	Queries        []string  `json:"queries"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Contains reports whether the query was already processed.
func (c Checkpoint) Contains(query string) bool {
	for _, q := range c.Queries {
		if q == query {
			return true
		}
	}
	return false
}

// CheckpointManager handles checkpoint persistence with atomic writes and
// file locking.
type CheckpointManager struct {
	filePath string
	lockFile *os.File
}

// NewCheckpointManager creates a new CheckpointManager for the given file path.
func NewCheckpointManager(filePath string) *CheckpointManager {
	return &CheckpointManager{
		filePath: filePath,
	}
}

// Lock acquires an exclusive lock on the checkpoint file.
// Returns an error if the lock is already held by another process.
func (m *CheckpointManager) Lock() error {
	lockPath := m.filePath + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("checkpoint is locked by another process")
		}
		return fmt.Errorf("acquire lock: %w", err)
	}

	m.lockFile = f
	return nil
}

// Unlock releases the exclusive lock on the checkpoint file.
func (m *CheckpointManager) Unlock() error {
	if m.lockFile == nil {
		return nil
	}

	if err := syscall.Flock(int(m.lockFile.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}

	if err := m.lockFile.Close(); err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}

	m.lockFile = nil

	lockPath := m.filePath + ".lock"
	_ = os.Remove(lockPath)

	return nil
}

// Load reads the checkpoint from disk.
// Returns an empty checkpoint if the file doesn't exist or is empty.
func (m *CheckpointManager) Load() (Checkpoint, error) {
	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{Version: CheckpointVersion}, nil
		}
		return Checkpoint{}, fmt.Errorf("read checkpoint file: %w", err)
	}

	if len(data) == 0 {
		return Checkpoint{Version: CheckpointVersion}, nil
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("parse checkpoint file: %w", err)
	}

	if cp.Version == 0 {
		cp.Version = CheckpointVersion
	}

	return cp, nil
}

// Save writes the checkpoint to disk atomically.
// Uses write-to-temp-then-rename to prevent corruption.
func (m *CheckpointManager) Save(cp Checkpoint) error {
	cp.Version = CheckpointVersion
	cp.ProcessedCount = len(cp.Queries)
	cp.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := m.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, m.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint file: %w", err)
	}

	return nil
}

// Reset clears the checkpoint file.
func (m *CheckpointManager) Reset() error {
	if err := os.Remove(m.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint file: %w", err)
	}
	return nil
}

// FilePath returns the checkpoint file path.
func (m *CheckpointManager) FilePath() string {
	return m.filePath
}

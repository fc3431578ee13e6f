package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// CheckpointStore loads and durably saves the controller's checkpoint.
type CheckpointStore interface {
	// Load returns the saved checkpoint, or the zero checkpoint when none
	// has been saved yet.
	Load() (BatchCheckpoint, error)

	// Save replaces the saved checkpoint. It must be atomic: a crash leaves
	// either the old or the new checkpoint.
	Save(cp BatchCheckpoint) error

	// Lock takes an exclusive lock so that two runs never share a
	// checkpoint. The returned function releases it.
	Lock() (release func() error, err error)
}

// FileCheckpointStore keeps the checkpoint as a JSON file.
type FileCheckpointStore struct {
	path string
}

// NewFileCheckpointStore creates a store backed by the file at path.
func NewFileCheckpointStore(path string) *FileCheckpointStore {
	return &FileCheckpointStore{path: path}
}

// Path returns the checkpoint file path.
func (s *FileCheckpointStore) Path() string {
	return s.path
}

// Load implements CheckpointStore.
func (s *FileCheckpointStore) Load() (BatchCheckpoint, error) {
	var cp BatchCheckpoint
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cp, nil
	}
	if err != nil {
		return cp, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return cp, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}
	return cp, nil
}

// Save implements CheckpointStore. The file is written to a temporary
// sibling, synced, renamed over the old file, and the directory is synced.
func (s *FileCheckpointStore) Save(cp BatchCheckpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// Lock implements CheckpointStore using a lock file next to the checkpoint.
func (s *FileCheckpointStore) Lock() (func() error, error) {
	lock, err := AcquireRunLock(s.path + ".lock")
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	committed = true

	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open checkpoint directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync checkpoint directory: %w", err)
	}
	return nil
}

// RunLock is an exclusive lock file.
type RunLock struct {
	path string
}

// AcquireRunLock creates the lock file at path. It fails with ErrRunLocked
// when the file already exists.
func AcquireRunLock(path string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		owner, _ := os.ReadFile(path)
		return nil, fmt.Errorf("%w: %s (%s)", ErrRunLocked, path, strings.TrimSpace(string(owner)))
	}
	if err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	defer f.Close()

	owner := "pid " + strconv.Itoa(os.Getpid()) + " since " + time.Now().UTC().Format(time.RFC3339)
	if _, err := f.WriteString(owner + "\n"); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &RunLock{path: path}, nil
}

// Release removes the lock file. Releasing twice is a no-op.
func (l *RunLock) Release() error {
	if l == nil {
		return nil
	}
	err := os.Remove(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// BreakRunLock removes a stale lock left behind by a crashed run.
func BreakRunLock(checkpointPath string) error {
	return (&RunLock{path: checkpointPath + ".lock"}).Release()
}

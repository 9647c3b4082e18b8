package idmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// fileStore persists mappings as JSON. Writes go through a temp file and
// rename while holding an advisory lock so a CLI and the daemon can share
// the file.
type fileStore struct {
	path string
	lock *flock.Flock
}

func newFileStore(path string) *fileStore {
	return &fileStore{path: path, lock: flock.New(path + ".lock")}
}

func (s *fileStore) read() ([]Mapping, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock cache file: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []Mapping
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cache file: %w", err)
	}
	return entries, nil
}

func (s *fileStore) write(entries []Mapping) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock cache file: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

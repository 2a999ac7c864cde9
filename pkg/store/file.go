package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one JSON file per room next to a base snapshot path.
// Room R of base "dir/graph.json" lives at "dir/graph.R.json"; the empty
// room name maps to the base path itself.
type FileStore struct {
	base string
}

// NewFileStore creates a FileStore deriving room paths from base.
func NewFileStore(base string) *FileStore {
	return &FileStore{base: base}
}

// Path returns the file a room's snapshot is kept in.
func (s *FileStore) Path(room string) string {
	if room == "" {
		return s.base
	}
	ext := filepath.Ext(s.base)
	stem := strings.TrimSuffix(s.base, ext)
	return fmt.Sprintf("%s.%s%s", stem, url.PathEscape(room), ext)
}

// Load reads a room's snapshot.
func (s *FileStore) Load(ctx context.Context, room string) ([]byte, error) {
	path := s.Path(room)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return data, nil
}

// Save writes a room's snapshot atomically via temp file + rename.
func (s *FileStore) Save(ctx context.Context, room string, data []byte) error {
	fullPath := s.Path(room)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// The temp file must share a directory with the target for rename to
	// be atomic.
	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tempFile.Close()

	if _, err := tempFile.Write(data); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempFile.Name(), fullPath); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to rename temp file to %s: %w", fullPath, err)
	}
	return nil
}

// Close is a no-op; FileStore holds no open handles.
func (s *FileStore) Close() error {
	return nil
}

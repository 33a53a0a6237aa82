package alias

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
)

// DefaultFileName is the alias file name inside the data directory.
const DefaultFileName = "aliases.json"

// fileFormatVersion is written into every alias file.
const fileFormatVersion = 1

type fileDoc struct {
	Version int     `json:"version"`
	Aliases []Entry `json:"aliases"`
}

// FileStore persists aliases as a JSON document. Writes take a cross-process
// lock on <path>.lock and replace the file atomically.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore returns a store for the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the alias file path.
func (s *FileStore) Path() string {
	return s.path
}

// LoadAll reads the alias file. A missing file is an empty list. A file that
// cannot be parsed is moved aside to <path>.corrupt and reported as
// ErrCodeStateCorrupt so the caller can start empty.
func (s *FileStore) LoadAll(_ context.Context) ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, lerrors.New(lerrors.ErrCodeStorageFailed, "failed to read alias file", err).
			WithDetail("path", s.path)
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		_ = os.Rename(s.path, s.path+".corrupt")
		return nil, lerrors.New(lerrors.ErrCodeStateCorrupt, "alias file is malformed", err).
			WithDetail("path", s.path).
			WithSuggestion("The file was moved to " + s.path + ".corrupt; aliases start empty")
	}
	return doc.Aliases, nil
}

// OnChanged writes the full entry list.
func (s *FileStore) OnChanged(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create alias directory: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return lerrors.New(lerrors.ErrCodeLockUnavailable, "failed to lock alias file", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(fileDoc{Version: fileFormatVersion, Aliases: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal aliases: %w", err)
	}

	// Atomic write: temp file, then rename
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return lerrors.New(lerrors.ErrCodeStorageFailed, "failed to write alias file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return lerrors.New(lerrors.ErrCodeStorageFailed, "failed to save alias file", err)
	}
	return nil
}

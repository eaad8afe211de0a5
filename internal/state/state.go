// Package state persists the engine's runtime documents: whole JSON documents
// loaded wholesale at warm start and rewritten wholesale on every mutation.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Document names owned by the engine.
const (
	DocOffsets   = "offsets"
	DocTracking  = "tracking"
	DocSavepaths = "savepaths"
	DocChats     = "chats"
)

// Store persists named JSON documents durably and synchronously.
type Store interface {
	// Load decodes the named document into v. It returns false with a nil
	// error when the document has never been written.
	Load(ctx context.Context, name string, v any) (bool, error)
	// Save encodes v and durably replaces the named document.
	Save(ctx context.Context, name string, v any) error
}

// Compile-time interface compliance check.
var _ Store = (*FileStore)(nil)

// FileStore keeps each document as a JSON file in a runtime directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Load reads a document from disk.
func (s *FileStore) Load(_ context.Context, name string, v any) (bool, error) {
	return ReadJSONFile(s.path(name), v)
}

// Save atomically replaces a document on disk.
func (s *FileStore) Save(_ context.Context, name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create runtime dir: %w", err)
	}

	return WriteJSONFile(s.path(name), v)
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// ReadJSONFile decodes a JSON file into v, reporting false when the file does
// not exist.
func ReadJSONFile(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}

	return true, nil
}

// WriteJSONFile writes v as JSON to path via a temp file and rename, so a
// crash mid-write never leaves a truncated document behind.
func WriteJSONFile(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}

// Package blobstore provides sandboxed on-disk storage used by
// filetransfer, grounded on the teacher's
// internal/blob package: every blob is written under a UUID-named
// subdirectory so a caller-supplied filename can never escape the root via
// path traversal, while still preserving the file's basename on disk for
// friendlier downloads.
package blobstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultContentType = "application/octet-stream"

// Metadata describes one stored blob.
type Metadata struct {
	ID           string
	OriginalName string
	ContentType  string
	SizeBytes    int64
	CreatedAt    time.Time
}

// Store coordinates blob bytes under a root directory.
type Store struct {
	rootDir string
}

// New creates a blob store rooted at rootDir, creating it if necessary.
func New(rootDir string) (*Store, error) {
	rootDir = strings.TrimSpace(rootDir)
	if rootDir == "" {
		return nil, fmt.Errorf("blobstore: root directory is required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root directory: %w", err)
	}
	return &Store{rootDir: rootDir}, nil
}

// Put writes r to disk under a fresh id, using only the basename of name to
// defend against path traversal, and returns the stored metadata.
func (s *Store) Put(name, contentType string, r io.Reader) (Metadata, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Metadata{}, fmt.Errorf("blobstore: original name is required")
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	id := uuid.NewString()
	dir := filepath.Join(s.rootDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Metadata{}, fmt.Errorf("blobstore: create blob dir: %w", err)
	}

	dest := filepath.Join(dir, name)
	f, err := os.Create(dest)
	if err != nil {
		return Metadata{}, fmt.Errorf("blobstore: create blob file: %w", err)
	}
	size, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		os.RemoveAll(dir)
		return Metadata{}, fmt.Errorf("blobstore: write blob: %w", copyErr)
	}
	if closeErr != nil {
		os.RemoveAll(dir)
		return Metadata{}, fmt.Errorf("blobstore: close blob: %w", closeErr)
	}

	return Metadata{
		ID:           id,
		OriginalName: name,
		ContentType:  contentType,
		SizeBytes:    size,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Open reopens a previously stored blob for reading by id + its original
// basename (both required, since the on-disk path is rootDir/id/name).
func (s *Store) Open(id, name string) (*os.File, error) {
	name = filepath.Base(strings.TrimSpace(name))
	path := filepath.Join(s.rootDir, filepath.Base(id), name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open blob %s: %w", id, err)
	}
	return f, nil
}

// Remove deletes a stored blob's directory entirely.
func (s *Store) Remove(id string) error {
	return os.RemoveAll(filepath.Join(s.rootDir, filepath.Base(id)))
}

// Package artifact keeps copies of the test binary that is uploaded for a
// run, on local disk and optionally in S3-compatible object storage.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"yqhp/luau-runner/pkg/logger"
)

// Store persists one artifact.
type Store interface {
	Name() string
	// Save stores data under name and returns where it went.
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// Archiver saves the payload to every configured store.
type Archiver struct {
	name   string
	stores []Store
}

// NewArchiver creates an Archiver that saves payloads as name.
func NewArchiver(name string, stores ...Store) *Archiver {
	return &Archiver{name: name, stores: stores}
}

// Len returns the number of stores.
func (a *Archiver) Len() int {
	return len(a.stores)
}

// Archive saves payload to every store. All stores are attempted; the
// returned error joins every failure.
func (a *Archiver) Archive(ctx context.Context, payload []byte) error {
	var errs []error
	for _, s := range a.stores {
		location, err := s.Save(ctx, a.name, payload)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		logger.Info("Wrote %s (%d bytes)", location, len(payload))
	}
	return errors.Join(errs...)
}

// FileStore writes the artifact to a fixed path.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Name returns the store name.
func (s *FileStore) Name() string {
	return "file"
}

// Save writes data to the store's path, creating parent directories.
func (s *FileStore) Save(_ context.Context, _ string, data []byte) (string, error) {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return s.path, nil
}

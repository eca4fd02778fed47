package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore implements Store on the local filesystem
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a new local record store
func NewLocalStore(basePath string) (*LocalStore, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStore{
		basePath: basePath,
	}, nil
}

// Put writes a record to the local filesystem
func (s *LocalStore) Put(ctx context.Context, name string, data io.Reader) (string, error) {
	fullPath := filepath.Join(s.basePath, name)

	// O_EXCL enforces the append-only contract: an existing record is
	// never overwritten.
	file, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%w: %s", ErrRecordExists, name)
		}
		return "", fmt.Errorf("failed to create record: %w", err)
	}
	defer file.Close()

	_, err = io.Copy(file, data)
	if err != nil {
		os.Remove(fullPath) // Clean up partial write
		return "", fmt.Errorf("failed to write record: %w", err)
	}

	return fullPath, nil
}

// Get retrieves a record from local storage
func (s *LocalStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.basePath, name)

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("record not found: %s", name)
		}
		return nil, fmt.Errorf("failed to open record: %w", err)
	}

	return file, nil
}

// Package storage persists audit records. Records are append-only: a
// name is written at most once and never overwritten, so every record
// remains a faithful account of the request that produced it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrRecordExists is returned when a Put would overwrite an existing record.
var ErrRecordExists = errors.New("record already exists")

// Store interface for append-only record persistence
type Store interface {
	// Put writes a record under name and returns its durable location.
	// Writing an existing name fails with ErrRecordExists.
	Put(ctx context.Context, name string, data io.Reader) (string, error)

	// Get retrieves a record by name for audit review
	Get(ctx context.Context, name string) (io.ReadCloser, error)
}

// StoreType represents the storage backend type
type StoreType string

const (
	StoreTypeLocal StoreType = "local"
	StoreTypeS3    StoreType = "s3"
)

// StoreConfig holds configuration for the record store
type StoreConfig struct {
	Type         StoreType
	LocalPath    string // For local storage
	S3Bucket     string // For S3 storage
	S3Region     string // For S3 storage
	AWSAccessKey string
	AWSSecretKey string
}

// NewStore creates a new record store based on configuration
func NewStore(cfg StoreConfig) (Store, error) {
	switch cfg.Type {
	case StoreTypeLocal:
		return NewLocalStore(cfg.LocalPath)
	case StoreTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3 bucket is required for s3 storage")
		}
		return NewS3Store(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// Package storage publishes derived tables to a stable location, fully
// replacing the previous version.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jordanlanch/commercebi/config"
	"github.com/jordanlanch/commercebi/pkg/domain"
)

// Sink stores whole objects under stable keys
type Sink interface {
	// Put replaces the object at key. Readers never observe a partial write.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the object at key, or a missing-source error when it does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Location describes where key is published
	Location(key string) string
}

// New builds the sink selected by STORAGE_TYPE
func New(ctx context.Context, cfg *config.Config) (Sink, error) {
	switch cfg.StorageType {
	case "local", "":
		return NewLocalSink(cfg.StorageLocalPath)
	case "s3":
		return NewS3Sink(ctx, S3Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.StorageType)
	}
}

// LocalSink writes objects into a directory
type LocalSink struct {
	dir string
}

// NewLocalSink creates the directory if needed
func NewLocalSink(dir string) (*LocalSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalSink{dir: dir}, nil
}

func (s *LocalSink) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", domain.NewValidationError(fmt.Sprintf("invalid storage key %q", key))
	}
	return filepath.Join(s.dir, clean), nil
}

// Put writes to a temporary file in the same directory and renames it over the target
func (s *LocalSink) Put(_ context.Context, key string, data []byte, _ string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", key, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	return nil
}

// Get reads an object
func (s *LocalSink) Get(_ context.Context, key string) ([]byte, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.NewMissingSourceError(key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Location returns the file path of key
func (s *LocalSink) Location(key string) string {
	p, err := s.path(key)
	if err != nil {
		return ""
	}
	return p
}

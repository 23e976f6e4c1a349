// Package storage provides the durable local key-value store that the
// snapshot cache persists through. Two backends exist: a plain-file store
// (default) and a SQLite store.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// BlobStore is durable local storage for serialized text values. Get reports
// absence via the bool rather than an error.
type BlobStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// fileBlobStore stores each key as a file under a base directory.
type fileBlobStore struct {
	dir string
}

// NewFileBlobStore creates a BlobStore backed by one file per key under dir.
func NewFileBlobStore(dir string) (BlobStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("creating file blob store: dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob store directory: %w", err)
	}
	return &fileBlobStore{dir: dir}, nil
}

func (s *fileBlobStore) keyPath(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *fileBlobStore) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(s.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return string(data), true, nil
}

func (s *fileBlobStore) Set(key, value string) error {
	if err := os.WriteFile(s.keyPath(key), []byte(value), 0o600); err != nil {
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	return nil
}

func (s *fileBlobStore) Remove(key string) error {
	err := os.Remove(s.keyPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing blob %s: %w", key, err)
	}
	return nil
}

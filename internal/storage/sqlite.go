package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// blobRow is the single-table schema for the SQLite-backed blob store.
type blobRow struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

func (blobRow) TableName() string { return "blobs" }

type sqliteBlobStore struct {
	db *gorm.DB
}

// NewSQLiteBlobStore opens (creating if needed) a SQLite database at dsn and
// returns a BlobStore backed by a single key/value table.
func NewSQLiteBlobStore(dsn string) (BlobStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("creating sqlite blob store: dsn is empty")
	}
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite blob store: %w", err)
	}
	if err := db.AutoMigrate(&blobRow{}); err != nil {
		return nil, fmt.Errorf("migrating sqlite blob store: %w", err)
	}

	return &sqliteBlobStore{db: db}, nil
}

func (s *sqliteBlobStore) Get(key string) (string, bool, error) {
	var row blobRow
	err := s.db.First(&row, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return row.Value, true, nil
}

func (s *sqliteBlobStore) Set(key, value string) error {
	if err := s.db.Save(&blobRow{Key: key, Value: value}).Error; err != nil {
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	return nil
}

func (s *sqliteBlobStore) Remove(key string) error {
	if err := s.db.Delete(&blobRow{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("removing blob %s: %w", key, err)
	}
	return nil
}

// ensureDirForSQLite creates the parent directory for a SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating sqlite dir %q: %w", dir, err)
	}
	return nil
}

package sheets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"corpus/internal/logger"
)

// ErrPersistenceFailed is returned when neither the primary nor the backup
// location could be written.
var ErrPersistenceFailed = errors.New("failed to persist table")

// Store reads and writes tables at a location.
type Store interface {
	Read(ctx context.Context, location string) (*Table, error)
	Write(ctx context.Context, location string, table *Table) error
}

// RouterStore sends spreadsheet URLs to Google Sheets and every other
// location to the local filesystem. The Google client is created on first use.
type RouterStore struct {
	files *FileStore

	newGoogle func(ctx context.Context) (Store, error)
	once      sync.Once
	google    Store
	googleErr error
}

// NewRouterStore creates a RouterStore backed by FileStore and GoogleStore.
func NewRouterStore() *RouterStore {
	return NewRouterStoreWithGoogle(func(ctx context.Context) (Store, error) {
		return NewGoogleStore(ctx)
	})
}

// NewRouterStoreWithGoogle creates a RouterStore with a custom remote store factory (for testing).
func NewRouterStoreWithGoogle(newGoogle func(ctx context.Context) (Store, error)) *RouterStore {
	return &RouterStore{files: NewFileStore(), newGoogle: newGoogle}
}

func (r *RouterStore) route(ctx context.Context, location string) (Store, error) {
	if !IsSpreadsheetURL(location) {
		return r.files, nil
	}
	r.once.Do(func() {
		r.google, r.googleErr = r.newGoogle(ctx)
	})
	return r.google, r.googleErr
}

// Read implements Store.
func (r *RouterStore) Read(ctx context.Context, location string) (*Table, error) {
	s, err := r.route(ctx, location)
	if err != nil {
		return nil, err
	}
	return s.Read(ctx, location)
}

// Write implements Store.
func (r *RouterStore) Write(ctx context.Context, location string, table *Table) error {
	s, err := r.route(ctx, location)
	if err != nil {
		return err
	}
	return s.Write(ctx, location, table)
}

// DefaultBackupPath returns the local backup file for primary: the same name
// with a _backup suffix, or the table name when primary is a spreadsheet URL.
func DefaultBackupPath(primary, tableName string) string {
	if IsSpreadsheetURL(primary) {
		return sheetName(tableName) + "_backup.xlsx"
	}
	ext := filepath.Ext(primary)
	return strings.TrimSuffix(primary, ext) + "_backup.xlsx"
}

// SaveWithBackup writes table to primary and, if that fails, to backup on the
// local filesystem. It returns the location actually written.
func SaveWithBackup(ctx context.Context, store Store, primary, backup string, table *Table) (string, error) {
	const op = "SaveWithBackup"
	log := logger.WithComponent("sheets")

	primaryErr := store.Write(ctx, primary, table)
	if primaryErr == nil {
		return primary, nil
	}

	if backup == "" {
		backup = DefaultBackupPath(primary, table.Name)
	}
	log.Warn().
		Err(primaryErr).
		Str("primary", primary).
		Str("backup", backup).
		Msg("Primary write failed, saving backup")

	if err := NewFileStore().Write(ctx, backup, table); err != nil {
		return "", fmt.Errorf("%s: %w: primary: %v; backup: %v", op, ErrPersistenceFailed, primaryErr, err)
	}
	return backup, nil
}

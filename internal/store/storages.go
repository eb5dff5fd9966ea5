package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-content-sync/internal/config"
	"github.com/MKhiriev/go-content-sync/internal/logger"
)

// Storages groups the repositories of the on-device database into a single
// value that can be passed to the service layer.
type Storages struct {
	// Contents stores content metadata records.
	Contents ContentRepository
	// Bodies stores content bodies.
	Bodies BodyRepository
	// Queue is the durable sync queue.
	Queue SyncQueueRepository

	db *DB
}

// NewStorages initialises the storage layer:
//  1. Opens the SQLite database at cfg.DB.DSN, creating it if needed.
//  2. Runs pending schema migrations via [DB.Migrate].
//  3. Constructs the repositories on the shared connection.
func NewStorages(ctx context.Context, cfg config.Storage, logger *logger.Logger) (*Storages, error) {
	logger.Info().Msg("creating new storages...")

	db, err := NewConnectSQLite(ctx, cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err = db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return NewStoragesFromDB(db, logger), nil
}

// NewStoragesFromDB builds the repositories on an already migrated database.
func NewStoragesFromDB(db *DB, logger *logger.Logger) *Storages {
	return &Storages{
		Contents: NewContentRepository(db, logger),
		Bodies:   NewBodyRepository(db, logger),
		Queue:    NewSyncQueueRepository(db, logger),
		db:       db,
	}
}

// Close closes the underlying database connection.
func (s *Storages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

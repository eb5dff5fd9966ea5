package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-content-sync/internal/config"
	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/models"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testContext() context.Context {
	l := zerolog.Nop()
	return l.WithContext(context.Background())
}

// newTestStorages opens a private in-memory database with the schema applied.
func newTestStorages(t *testing.T) *Storages {
	t.Helper()
	s, err := NewStorages(context.Background(), config.Storage{DB: config.DB{DSN: "file::memory:"}}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newDBFromSQL(db), mock
}

func newDBFromSQL(db *sql.DB) *DB {
	return &DB{
		DB:                 db,
		errorClassificator: NewSQLiteErrorClassifier(),
		logger:             logger.Nop(),
	}
}

func strPtr(s string) *string { return &s }

func newRecord(id string, updatedAt time.Time) models.ContentRecord {
	return models.ContentRecord{
		ID:         id,
		Kind:       models.KindGuide,
		Title:      "title " + id,
		BodyRef:    id,
		Visibility: models.VisibilityPrivate,
		SyncStatus: models.SyncStatusSynced,
		CreatedAt:  updatedAt,
		UpdatedAt:  updatedAt,
		Version:    1,
	}
}

func newOp(id, contentID string, kind models.OperationKind, at time.Time) models.SyncOperation {
	return models.SyncOperation{
		ID:        id,
		ContentID: contentID,
		Kind:      kind,
		Payload:   []byte(`{"op":"` + id + `"}`),
		CreatedAt: at,
	}
}

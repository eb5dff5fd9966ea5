package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MKhiriev/go-content-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// ContentRepository persists content metadata records.
type ContentRepository interface {
	// Get returns the record with the given id or [ErrContentNotFound].
	Get(ctx context.Context, id string) (models.ContentRecord, error)
	// Upsert inserts or fully replaces a record in a single statement.
	Upsert(ctx context.Context, record models.ContentRecord) error
	// List returns records matching filter ordered by updated_at desc, id asc.
	List(ctx context.Context, filter models.ContentFilter) ([]models.ContentRecord, error)
	// Delete removes the record and its body. Deleting a missing record is
	// not an error.
	Delete(ctx context.Context, id string) error
}

// BodyRepository persists content bodies separately from their metadata.
type BodyRepository interface {
	GetBody(ctx context.Context, contentID string) (models.Body, error)
	SaveBody(ctx context.Context, contentID string, body models.Body) error
	DeleteBody(ctx context.Context, contentID string) error
}

// SyncQueueRepository is the durable FIFO of operations bound for the
// remote service.
//
// Every content id has at most one live (pending or in-flight) entry and at
// most one held entry. Enqueue merges a new intent into the existing
// non-dispatched entry instead of adding a second one.
type SyncQueueRepository interface {
	Enqueue(ctx context.Context, op models.SyncOperation) (models.OperationHandle, error)
	DequeueNextBatch(ctx context.Context, max int, now time.Time) ([]models.SyncOperation, error)

	MarkInFlight(ctx context.Context, id string, now time.Time) error
	MarkDone(ctx context.Context, id string, now time.Time) error
	MarkFailed(ctx context.Context, id string, reason string, now time.Time) error
	Retry(ctx context.Context, id string, attempt int, nextAttemptAt time.Time, reason string, now time.Time) error
	Release(ctx context.Context, id string, now time.Time) error
	Cancel(ctx context.Context, id string, now time.Time) (models.SyncOperation, error)

	Held(ctx context.Context, contentID string) (models.SyncOperation, error)
	Promote(ctx context.Context, id string, payload json.RawMessage, baseVersion int64, now time.Time) error

	Live(ctx context.Context, contentID string) (models.SyncOperation, error)
	Get(ctx context.Context, id string) (models.SyncOperation, error)
	ListByContent(ctx context.Context, contentID string) ([]models.SyncOperation, error)
	List(ctx context.Context, filter models.OperationFilter) ([]models.SyncOperation, error)
	Stats(ctx context.Context) (models.QueueStats, error)

	RecoverInFlight(ctx context.Context, now time.Time) (int64, error)
	PurgeTerminal(ctx context.Context, before time.Time) (int64, error)
}

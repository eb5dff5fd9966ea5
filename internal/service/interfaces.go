package service

import (
	"context"

	"github.com/MKhiriev/go-content-sync/models"
)

// ContentService is the authoring side of the engine: local create, read
// and edit of content. It never talks to the remote service directly.
type ContentService interface {
	Create(ctx context.Context, draft models.Draft) (models.Content, error)
	Get(ctx context.Context, id string) (models.Content, error)
	List(ctx context.Context, filter models.ContentFilter) ([]models.ContentRecord, error)
	Edit(ctx context.Context, id string, edit models.ContentEdit) (models.Content, error)
	// Delete removes the content, unpublishing it first when needed.
	Delete(ctx context.Context, id string) error
	// Operations lists the queue entries of one record, oldest first.
	Operations(ctx context.Context, id string) ([]models.SyncOperation, error)
}

// VisibilityController turns visibility requests into queued operations and
// keeps each record's sync status in step with its queue entries.
type VisibilityController interface {
	RequestPublish(ctx context.Context, id string) (models.OperationHandle, error)
	RequestUnpublish(ctx context.Context, id string) (models.OperationHandle, error)
	RequestUpdate(ctx context.Context, id string) (models.OperationHandle, error)

	// Delete removes the record locally. A public record is unpublished
	// first and Delete blocks until that unpublish resolves; a terminal
	// failure returns ErrDeleteAborted and keeps the record.
	Delete(ctx context.Context, id string) error

	// Cancel cancels the operation of id that has not been dispatched yet
	// and restores the record status.
	Cancel(ctx context.Context, id string) (models.SyncOperation, error)
}

// SyncProcessor drains the sync queue against the remote service.
type SyncProcessor interface {
	// Drain dispatches due operations until the queue has nothing due,
	// connectivity is lost or ctx ends.
	Drain(ctx context.Context) (DrainResult, error)
	// Wait blocks until the operation is terminal. It returns nil for done.
	Wait(ctx context.Context, operationID string) error

	// Recover returns entries left in flight by a previous run to pending.
	Recover(ctx context.Context) (int64, error)
	// Purge removes terminal entries older than the retention period.
	Purge(ctx context.Context) (int64, error)

	SetOnline(online bool)
	Online() bool

	Stats(ctx context.Context) (models.QueueStats, error)
	Operations(ctx context.Context, filter models.OperationFilter) ([]models.SyncOperation, error)
}

// SyncJob runs the processor in the background.
type SyncJob interface {
	Start(ctx context.Context)
	Stop()
	// Wake asks the job to drain now instead of waiting for the next tick.
	Wake()
}

// IDGenerator produces identifiers for records and queue entries.
type IDGenerator interface {
	Generate() string
}

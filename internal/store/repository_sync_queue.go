// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/models"
)

// syncQueueRepository is the SQLite-backed implementation of
// [SyncQueueRepository] working on the "sync_operations" table.
//
// The one-live-entry rule is enforced twice: Enqueue merges intents inside a
// transaction, and partial unique indexes reject any write that slips past.
type syncQueueRepository struct {
	*DB
	logger *logger.Logger
}

// NewSyncQueueRepository constructs a [SyncQueueRepository] backed by db.
func NewSyncQueueRepository(db *DB, logger *logger.Logger) SyncQueueRepository {
	return &syncQueueRepository{
		DB:     db,
		logger: logger,
	}
}

// Enqueue adds op to the queue, merging it with the entry already waiting
// for the same content:
//   - no live entry: op is inserted as pending;
//   - a pending entry: the two kinds are coalesced into the pending entry,
//     which keeps its queue position, or both are cancelled;
//   - an in-flight entry: op becomes (or is coalesced into) the held entry,
//     promoted once the in-flight one resolves.
//
// op.CreatedAt is used as the current time.
func (r *syncQueueRepository) Enqueue(ctx context.Context, op models.SyncOperation) (models.OperationHandle, error) {
	log := logger.FromContext(ctx)

	var handle models.OperationHandle
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		handle, err = enqueueTx(ctx, tx, op)
		return err
	})
	if err != nil {
		log.Err(err).
			Str("func", "syncQueueRepository.Enqueue").
			Str("content_id", op.ContentID).
			Str("kind", string(op.Kind)).
			Msg("failed to enqueue sync operation")
		if IsUniqueViolation(err) {
			return models.OperationHandle{}, fmt.Errorf("%w: %w", ErrLiveOperationExists, err)
		}
		return models.OperationHandle{}, err
	}

	log.Debug().
		Str("func", "syncQueueRepository.Enqueue").
		Str("content_id", op.ContentID).
		Str("operation_id", handle.OperationID).
		Str("kind", string(handle.Kind)).
		Str("status", string(handle.Status)).
		Bool("coalesced", handle.Coalesced).
		Bool("cancelled", handle.Cancelled).
		Msg("sync operation enqueued")

	return handle, nil
}

func enqueueTx(ctx context.Context, tx *sql.Tx, op models.SyncOperation) (models.OperationHandle, error) {
	now := op.CreatedAt

	live, err := scanOperation(tx.QueryRowContext(ctx, getLiveOperation, op.ContentID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		op.Status = models.OperationPending
		return insertTx(ctx, tx, op)
	case err != nil:
		return models.OperationHandle{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if live.Status == models.OperationPending {
		return coalesceTx(ctx, tx, live, op, now)
	}

	// the live entry is in flight: the intent waits as the held entry
	held, err := scanOperation(tx.QueryRowContext(ctx, getHeldOperation, op.ContentID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		op.Status = models.OperationHeld
		return insertTx(ctx, tx, op)
	case err != nil:
		return models.OperationHandle{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return coalesceTx(ctx, tx, held, op, now)
}

func insertTx(ctx context.Context, tx *sql.Tx, op models.SyncOperation) (models.OperationHandle, error) {
	op.UpdatedAt = op.CreatedAt

	_, err := tx.ExecContext(ctx, insertOperation,
		op.ID,
		op.ContentID,
		string(op.Kind),
		[]byte(op.Payload),
		string(op.Status),
		op.Attempt,
		op.LastError,
		op.DeleteAfter,
		op.BaseVersion,
		toNanos(op.CreatedAt),
		toNanos(op.UpdatedAt),
		toNanos(op.NextAttemptAt),
	)
	if err != nil {
		return models.OperationHandle{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return models.OperationHandle{
		OperationID: op.ID,
		ContentID:   op.ContentID,
		Kind:        op.Kind,
		Status:      op.Status,
	}, nil
}

func coalesceTx(ctx context.Context, tx *sql.Tx, existing, incoming models.SyncOperation, now time.Time) (models.OperationHandle, error) {
	kind, cancel := models.Coalesce(existing.Kind, incoming.Kind)

	handle := models.OperationHandle{
		OperationID: existing.ID,
		ContentID:   existing.ContentID,
		Coalesced:   true,
	}

	if cancel {
		reason := fmt.Sprintf("cancelled out by %s", incoming.Kind)
		res, err := tx.ExecContext(ctx, setOperationStatus,
			string(models.OperationCancelled), reason, toNanos(now), existing.ID, string(existing.Status))
		if err != nil {
			return models.OperationHandle{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		if err = expectOneRow(res); err != nil {
			return models.OperationHandle{}, err
		}

		handle.Kind = existing.Kind
		handle.Status = models.OperationCancelled
		handle.Cancelled = true
		return handle, nil
	}

	deleteAfter := false
	if kind == models.OperationUnpublish {
		deleteAfter = existing.DeleteAfter || incoming.DeleteAfter
	}

	_, err := tx.ExecContext(ctx, coalesceOperation,
		string(kind), []byte(incoming.Payload), deleteAfter, incoming.BaseVersion, toNanos(now), existing.ID)
	if err != nil {
		return models.OperationHandle{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	handle.Kind = kind
	handle.Status = existing.Status
	return handle, nil
}

func (r *syncQueueRepository) DequeueNextBatch(ctx context.Context, max int, now time.Time) ([]models.SyncOperation, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildDueOperationsQuery(max, now)
	if err != nil {
		log.Err(err).Str("func", "syncQueueRepository.DequeueNextBatch").Msg("failed to create query")
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	ops, err := r.queryOperations(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "syncQueueRepository.DequeueNextBatch").Msg("failed to select due operations")
		return nil, err
	}

	return ops, nil
}

func (r *syncQueueRepository) MarkInFlight(ctx context.Context, id string, now time.Time) error {
	return r.transition(ctx, "syncQueueRepository.MarkInFlight", id, models.OperationPending, models.OperationInFlight, "", now)
}

func (r *syncQueueRepository) MarkDone(ctx context.Context, id string, now time.Time) error {
	return r.transition(ctx, "syncQueueRepository.MarkDone", id, models.OperationInFlight, models.OperationDone, "", now)
}

func (r *syncQueueRepository) MarkFailed(ctx context.Context, id string, reason string, now time.Time) error {
	return r.transition(ctx, "syncQueueRepository.MarkFailed", id, models.OperationInFlight, models.OperationFailed, reason, now)
}

func (r *syncQueueRepository) Release(ctx context.Context, id string, now time.Time) error {
	return r.transition(ctx, "syncQueueRepository.Release", id, models.OperationInFlight, models.OperationPending, "", now)
}

func (r *syncQueueRepository) transition(ctx context.Context, fn, id string, from, to models.OperationStatus, reason string, now time.Time) error {
	log := logger.FromContext(ctx)

	res, err := r.DB.ExecContext(ctx, setOperationStatus, string(to), reason, toNanos(now), id, string(from))
	if err != nil {
		log.Err(err).
			Str("func", fn).
			Str("operation_id", id).
			Str("to", string(to)).
			Msg("failed to update sync operation status")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	if err = expectOneRow(res); err != nil {
		log.Warn().
			Str("func", fn).
			Str("operation_id", id).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("sync operation is not in the expected state")
		return err
	}

	return nil
}

func (r *syncQueueRepository) Retry(ctx context.Context, id string, attempt int, nextAttemptAt time.Time, reason string, now time.Time) error {
	log := logger.FromContext(ctx)

	res, err := r.DB.ExecContext(ctx, retryOperation, attempt, toNanos(nextAttemptAt), reason, toNanos(now), id)
	if err != nil {
		log.Err(err).
			Str("func", "syncQueueRepository.Retry").
			Str("operation_id", id).
			Msg("failed to schedule retry")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return expectOneRow(res)
}

// Cancel moves a pending or held entry to cancelled and returns it. Entries
// that were already dispatched or finished yield [ErrNotCancellable].
func (r *syncQueueRepository) Cancel(ctx context.Context, id string, now time.Time) (models.SyncOperation, error) {
	log := logger.FromContext(ctx)

	var op models.SyncOperation
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		op, err = scanOperation(tx.QueryRowContext(ctx, getOperation, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: id=%s", ErrOperationNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrScanningRow, err)
		}

		if op.Status != models.OperationPending && op.Status != models.OperationHeld {
			return fmt.Errorf("%w: status=%s", ErrNotCancellable, op.Status)
		}

		if _, err = tx.ExecContext(ctx, cancelOperation, "cancelled", toNanos(now), id); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}

		op.Status = models.OperationCancelled
		op.LastError = "cancelled"
		op.UpdatedAt = now
		return nil
	})
	if err != nil {
		log.Err(err).
			Str("func", "syncQueueRepository.Cancel").
			Str("operation_id", id).
			Msg("failed to cancel sync operation")
		return models.SyncOperation{}, err
	}

	return op, nil
}

func (r *syncQueueRepository) Held(ctx context.Context, contentID string) (models.SyncOperation, error) {
	return r.getOne(ctx, "syncQueueRepository.Held", getHeldOperation, contentID)
}

func (r *syncQueueRepository) Live(ctx context.Context, contentID string) (models.SyncOperation, error) {
	return r.getOne(ctx, "syncQueueRepository.Live", getLiveOperation, contentID)
}

func (r *syncQueueRepository) Get(ctx context.Context, id string) (models.SyncOperation, error) {
	return r.getOne(ctx, "syncQueueRepository.Get", getOperation, id)
}

func (r *syncQueueRepository) getOne(ctx context.Context, fn, query, arg string) (models.SyncOperation, error) {
	log := logger.FromContext(ctx)

	op, err := scanOperation(r.DB.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return models.SyncOperation{}, ErrOperationNotFound
	}
	if err != nil {
		log.Err(err).Str("func", fn).Str("key", arg).Msg("failed to scan sync operation row")
		return models.SyncOperation{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return op, nil
}

// Promote turns the held entry into a pending one carrying a fresh payload.
// It is due immediately.
func (r *syncQueueRepository) Promote(ctx context.Context, id string, payload json.RawMessage, baseVersion int64, now time.Time) error {
	log := logger.FromContext(ctx)

	res, err := r.DB.ExecContext(ctx, promoteOperation, []byte(payload), baseVersion, toNanos(now), 0, id)
	if err != nil {
		log.Err(err).
			Str("func", "syncQueueRepository.Promote").
			Str("operation_id", id).
			Msg("failed to promote held operation")
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %w", ErrLiveOperationExists, err)
		}
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return expectOneRow(res)
}

func (r *syncQueueRepository) ListByContent(ctx context.Context, contentID string) ([]models.SyncOperation, error) {
	return r.List(ctx, models.OperationFilter{ContentID: contentID})
}

func (r *syncQueueRepository) List(ctx context.Context, filter models.OperationFilter) ([]models.SyncOperation, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildListOperationsQuery(filter)
	if err != nil {
		log.Err(err).Str("func", "syncQueueRepository.List").Msg("failed to create query")
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	ops, err := r.queryOperations(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "syncQueueRepository.List").Msg("failed to list sync operations")
		return nil, err
	}

	return ops, nil
}

func (r *syncQueueRepository) Stats(ctx context.Context) (models.QueueStats, error) {
	log := logger.FromContext(ctx)

	rows, err := r.DB.QueryContext(ctx, operationStats)
	if err != nil {
		log.Err(err).Str("func", "syncQueueRepository.Stats").Msg("failed to query queue stats")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	stats := make(models.QueueStats)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err = rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		stats[models.OperationStatus(status)] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return stats, nil
}

// RecoverInFlight resets entries left in flight by a previous run to pending.
// It must be called before the processor starts.
func (r *syncQueueRepository) RecoverInFlight(ctx context.Context, now time.Time) (int64, error) {
	log := logger.FromContext(ctx)

	res, err := r.DB.ExecContext(ctx, recoverInFlight, toNanos(now))
	if err != nil {
		log.Err(err).Str("func", "syncQueueRepository.RecoverInFlight").Msg("failed to recover in-flight operations")
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		log.Info().Str("func", "syncQueueRepository.RecoverInFlight").Int64("count", n).Msg("recovered in-flight operations")
	}
	return n, nil
}

// PurgeTerminal deletes done, failed and cancelled entries last touched
// before the given time.
func (r *syncQueueRepository) PurgeTerminal(ctx context.Context, before time.Time) (int64, error) {
	log := logger.FromContext(ctx)

	res, err := r.DB.ExecContext(ctx, purgeTerminal, toNanos(before))
	if err != nil {
		log.Err(err).Str("func", "syncQueueRepository.PurgeTerminal").Msg("failed to purge terminal operations")
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

func (r *syncQueueRepository) queryOperations(ctx context.Context, query string, args ...any) ([]models.SyncOperation, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	ops := make([]models.SyncOperation, 0, 8)
	for rows.Next() {
		op, scanErr := scanOperation(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, scanErr)
		}
		ops = append(ops, op)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return ops, nil
}

func scanOperation(row rowScanner) (models.SyncOperation, error) {
	var (
		op            models.SyncOperation
		kind          string
		status        string
		payload       []byte
		createdAt     int64
		updatedAt     int64
		nextAttemptAt int64
	)

	err := row.Scan(
		&op.ID,
		&op.ContentID,
		&kind,
		&payload,
		&status,
		&op.Attempt,
		&op.LastError,
		&op.DeleteAfter,
		&op.BaseVersion,
		&createdAt,
		&updatedAt,
		&nextAttemptAt,
	)
	if err != nil {
		return models.SyncOperation{}, err
	}

	op.Kind = models.OperationKind(kind)
	op.Status = models.OperationStatus(status)
	op.Payload = json.RawMessage(payload)
	op.CreatedAt = fromNanos(createdAt)
	op.UpdatedAt = fromNanos(updatedAt)
	op.NextAttemptAt = fromNanos(nextAttemptAt)

	return op, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if n == 0 {
		return ErrOperationStateConflict
	}
	return nil
}

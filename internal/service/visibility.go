// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-content-sync/internal/cache"
	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/internal/store"
	"github.com/MKhiriev/go-content-sync/internal/validators"
	"github.com/MKhiriev/go-content-sync/models"
)

type visibilityController struct {
	contents store.ContentRepository
	queue    store.SyncQueueRepository
	bodies   *cache.BodyHydrator

	events    *EventBroker
	waiters   *operationWaiters
	locks     *keyedMutex
	validator validators.Validator
	ids       IDGenerator
	now       func() time.Time

	// notify wakes the sync job after a new operation was queued.
	notify func()
}

func (c *visibilityController) RequestPublish(ctx context.Context, id string) (models.OperationHandle, error) {
	return c.request(ctx, id, models.OperationPublish)
}

func (c *visibilityController) RequestUnpublish(ctx context.Context, id string) (models.OperationHandle, error) {
	return c.request(ctx, id, models.OperationUnpublish)
}

func (c *visibilityController) RequestUpdate(ctx context.Context, id string) (models.OperationHandle, error) {
	return c.request(ctx, id, models.OperationUpdate)
}

func (c *visibilityController) request(ctx context.Context, id string, kind models.OperationKind) (models.OperationHandle, error) {
	log := logger.FromContext(ctx)

	unlock := c.locks.Lock(id)
	defer unlock()

	r, err := c.contents.Get(ctx, id)
	if err != nil {
		return models.OperationHandle{}, mapStoreError(err)
	}

	live, held, err := c.queued(ctx, id)
	if err != nil {
		return models.OperationHandle{}, err
	}

	if err = checkRequest(r, kind, live, held); err != nil {
		log.Debug().Err(err).
			Str("func", "visibilityController.request").
			Str("content_id", id).
			Str("kind", string(kind)).
			Msg("visibility request rejected")
		return models.OperationHandle{}, err
	}

	h, err := c.enqueue(ctx, r, kind, false)
	if err != nil {
		log.Err(err).
			Str("func", "visibilityController.request").
			Str("content_id", id).
			Str("kind", string(kind)).
			Msg("failed to queue operation")
		return models.OperationHandle{}, err
	}

	log.Info().
		Str("func", "visibilityController.request").
		Str("content_id", id).
		Str("operation_id", h.OperationID).
		Str("kind", string(h.Kind)).
		Str("status", string(h.Status)).
		Bool("coalesced", h.Coalesced).
		Bool("cancelled", h.Cancelled).
		Msg("operation queued")

	return h, nil
}

// checkRequest validates a visibility request against the confirmed state
// of r and the intents already queued for it.
func checkRequest(r models.ContentRecord, kind models.OperationKind, live, held *models.SyncOperation) error {
	intended := intendedVisibility(r, live, held)

	switch kind {
	case models.OperationPublish:
		if r.Visibility == models.VisibilityPublic && intended == models.VisibilityPublic {
			return ErrAlreadyPublic
		}
	case models.OperationUnpublish:
		if r.Visibility == models.VisibilityPrivate && intended == models.VisibilityPrivate {
			return ErrAlreadyPrivate
		}
	case models.OperationUpdate:
		if intended != models.VisibilityPublic {
			return ErrNotPublic
		}
	default:
		return fmt.Errorf("%w: unknown operation kind %q", ErrInvalidState, kind)
	}
	return nil
}

// intendedVisibility is the visibility r ends up with once every queued
// operation succeeds.
func intendedVisibility(r models.ContentRecord, live, held *models.SyncOperation) models.Visibility {
	v := r.Visibility
	for _, op := range []*models.SyncOperation{live, held} {
		if op == nil {
			continue
		}
		switch op.Kind {
		case models.OperationPublish:
			v = models.VisibilityPublic
		case models.OperationUnpublish:
			v = models.VisibilityPrivate
		}
	}
	return v
}

// enqueue snapshots r, queues an operation of kind and refreshes the record
// status. The caller holds the record lock.
func (c *visibilityController) enqueue(ctx context.Context, r models.ContentRecord, kind models.OperationKind, deleteAfter bool) (models.OperationHandle, error) {
	payload, err := c.snapshot(ctx, r, kind != models.OperationUnpublish)
	if err != nil {
		return models.OperationHandle{}, err
	}

	h, err := c.queue.Enqueue(ctx, models.SyncOperation{
		ID:          c.ids.Generate(),
		ContentID:   r.ID,
		Kind:        kind,
		Payload:     payload,
		DeleteAfter: deleteAfter,
		BaseVersion: r.Version,
		CreatedAt:   c.now(),
	})
	if err != nil {
		return models.OperationHandle{}, mapStoreError(err)
	}

	if h.Cancelled {
		c.waiters.resolve(h.OperationID, ErrOperationCancelled)
	}

	if err = c.refreshStatus(ctx, r, ""); err != nil {
		return h, err
	}

	if !h.Cancelled && c.notify != nil {
		c.notify()
	}

	return h, nil
}

// snapshot builds the serialized payload of r. validate runs the publish
// rules on the content first.
func (c *visibilityController) snapshot(ctx context.Context, r models.ContentRecord, validate bool) ([]byte, error) {
	body, err := c.bodies.Load(ctx, r.ID)
	if err != nil && !errors.Is(err, store.ErrBodyNotFound) {
		return nil, mapStoreError(err)
	}

	if validate {
		if err = c.validator.Validate(ctx, models.Content{Record: r, Body: body}); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidContent, err)
		}
	}

	payload, err := buildPayload(r, body).Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return payload, nil
}

// queued returns the live and held operations of id, nil when absent.
func (c *visibilityController) queued(ctx context.Context, id string) (live, held *models.SyncOperation, err error) {
	l, err := c.queue.Live(ctx, id)
	switch {
	case err == nil:
		live = &l
	case !errors.Is(err, store.ErrOperationNotFound):
		return nil, nil, mapStoreError(err)
	}

	h, err := c.queue.Held(ctx, id)
	switch {
	case err == nil:
		held = &h
	case !errors.Is(err, store.ErrOperationNotFound):
		return nil, nil, mapStoreError(err)
	}

	return live, held, nil
}

// queuedStatus derives the record status from the queue, ignoring the
// operation excludeID which is about to leave it.
func (c *visibilityController) queuedStatus(ctx context.Context, id, excludeID string) (models.SyncStatus, error) {
	live, held, err := c.queued(ctx, id)
	if err != nil {
		return "", err
	}

	switch {
	case held != nil && held.ID != excludeID:
		return statusFor(held.Kind), nil
	case live != nil && live.ID != excludeID:
		return statusFor(live.Kind), nil
	}
	return models.SyncStatusSynced, nil
}

// refreshStatus recomputes and stores the status of r. The caller holds the
// record lock.
func (c *visibilityController) refreshStatus(ctx context.Context, r models.ContentRecord, excludeID string) error {
	status, err := c.queuedStatus(ctx, r.ID, excludeID)
	if err != nil {
		return err
	}

	r = r.WithStatus(status)
	if status.IsPending() {
		r.LastError = ""
	}

	if err = c.contents.Upsert(ctx, r); err != nil {
		return mapStoreError(err)
	}

	c.emit(r)
	return nil
}

func (c *visibilityController) emit(r models.ContentRecord) {
	c.events.Publish(models.EventFromRecord(r, c.now()))
}

func (c *visibilityController) Delete(ctx context.Context, id string) error {
	log := logger.FromContext(ctx)

	opID, deleted, err := c.startDelete(ctx, id)
	if err != nil {
		return err
	}
	if deleted {
		log.Info().
			Str("func", "visibilityController.Delete").
			Str("content_id", id).
			Msg("content deleted locally")
		return nil
	}

	log.Info().
		Str("func", "visibilityController.Delete").
		Str("content_id", id).
		Str("operation_id", opID).
		Msg("delete deferred until unpublish completes")

	if err = c.waiters.wait(ctx, c.queue, opID); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		log.Err(err).
			Str("func", "visibilityController.Delete").
			Str("content_id", id).
			Str("operation_id", opID).
			Msg("delete aborted")
		return fmt.Errorf("%w: %w", ErrDeleteAborted, err)
	}

	return nil
}

// startDelete either deletes a private record at once or queues the
// unpublish that has to precede the deletion.
func (c *visibilityController) startDelete(ctx context.Context, id string) (string, bool, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	r, err := c.contents.Get(ctx, id)
	if err != nil {
		return "", false, mapStoreError(err)
	}

	live, _, err := c.queued(ctx, id)
	if err != nil {
		return "", false, err
	}

	inFlight := live != nil && live.Status == models.OperationInFlight
	if r.Visibility == models.VisibilityPrivate && !inFlight {
		if live != nil {
			if _, err = c.queue.Cancel(ctx, live.ID, c.now()); err != nil {
				return "", false, mapStoreError(err)
			}
			c.waiters.resolve(live.ID, ErrOperationCancelled)
		}
		return "", true, c.deleteLocalLocked(ctx, id)
	}

	// A queued publish cancels out against the first unpublish, the second
	// one then lands on an empty queue.
	for range 2 {
		h, err := c.enqueue(ctx, r, models.OperationUnpublish, true)
		if err != nil {
			return "", false, err
		}
		if !h.Cancelled {
			return h.OperationID, false, nil
		}
	}

	return "", false, fmt.Errorf("%w: could not queue unpublish", ErrDeleteAborted)
}

// deleteLocal removes id from the store and the cache.
func (c *visibilityController) deleteLocal(ctx context.Context, id string) error {
	unlock := c.locks.Lock(id)
	defer unlock()
	return c.deleteLocalLocked(ctx, id)
}

func (c *visibilityController) deleteLocalLocked(ctx context.Context, id string) error {
	if err := c.contents.Delete(ctx, id); err != nil {
		return mapStoreError(err)
	}
	c.bodies.Invalidate(id)

	c.events.Publish(models.Event{ContentID: id, Deleted: true, At: c.now()})
	return nil
}

func (c *visibilityController) Cancel(ctx context.Context, id string) (models.SyncOperation, error) {
	log := logger.FromContext(ctx)

	unlock := c.locks.Lock(id)
	defer unlock()

	r, err := c.contents.Get(ctx, id)
	if err != nil {
		return models.SyncOperation{}, mapStoreError(err)
	}

	live, held, err := c.queued(ctx, id)
	if err != nil {
		return models.SyncOperation{}, err
	}

	var target *models.SyncOperation
	switch {
	case held != nil:
		target = held
	case live != nil && live.Status == models.OperationPending:
		target = live
	case live != nil:
		return models.SyncOperation{}, ErrNotCancellable
	default:
		return models.SyncOperation{}, ErrNothingToCancel
	}

	op, err := c.queue.Cancel(ctx, target.ID, c.now())
	if err != nil {
		return models.SyncOperation{}, mapStoreError(err)
	}
	c.waiters.resolve(op.ID, ErrOperationCancelled)

	if err = c.refreshStatus(ctx, r, op.ID); err != nil {
		return op, err
	}

	log.Info().
		Str("func", "visibilityController.Cancel").
		Str("content_id", id).
		Str("operation_id", op.ID).
		Str("kind", string(op.Kind)).
		Msg("operation cancelled")

	return op, nil
}

// applyConfirmed rebuilds the record from the remote's confirmed state in a
// single upsert. A delete-after unpublish removes the record instead.
func (c *visibilityController) applyConfirmed(ctx context.Context, op models.SyncOperation, state models.ConfirmedState) error {
	unlock := c.locks.Lock(op.ContentID)
	defer unlock()

	r, err := c.contents.Get(ctx, op.ContentID)
	if errors.Is(err, store.ErrContentNotFound) {
		return nil
	}
	if err != nil {
		return mapStoreError(err)
	}

	if op.DeleteAfter && op.Kind == models.OperationUnpublish {
		return c.deleteLocalLocked(ctx, op.ContentID)
	}

	r.Visibility = state.Visibility
	r.ConfirmedPublicID = state.PublicID
	if state.PublishedAt != nil && (r.PublishedAt == nil || state.PublishedAt.After(*r.PublishedAt)) {
		publishedAt := state.PublishedAt.UTC()
		r.PublishedAt = &publishedAt
	}
	r.Conflict = state.Conflict
	r.LastError = ""

	status, err := c.queuedStatus(ctx, op.ContentID, op.ID)
	if err != nil {
		return err
	}
	r = r.WithStatus(status)

	if err = c.contents.Upsert(ctx, r); err != nil {
		return mapStoreError(err)
	}
	c.bodies.Invalidate(op.ContentID)

	c.emit(r)
	return nil
}

// rollback restores the record after op failed terminally. Confirmed values
// are left untouched, so a failed publish leaves the record private and a
// failed unpublish leaves it public with its public id.
func (c *visibilityController) rollback(ctx context.Context, op models.SyncOperation, cause error) error {
	unlock := c.locks.Lock(op.ContentID)
	defer unlock()

	r, err := c.contents.Get(ctx, op.ContentID)
	if errors.Is(err, store.ErrContentNotFound) {
		return nil
	}
	if err != nil {
		return mapStoreError(err)
	}

	status, err := c.queuedStatus(ctx, op.ContentID, op.ID)
	if err != nil {
		return err
	}
	if status == models.SyncStatusSynced && op.Kind == models.OperationUpdate {
		status = models.SyncStatusFailed
	}

	r = r.WithStatus(status)
	r.LastError = cause.Error()

	if err = c.contents.Upsert(ctx, r); err != nil {
		return mapStoreError(err)
	}

	c.emit(r)
	return nil
}

// promoteHeld turns the held operation of contentID, if any, into the next
// pending one carrying a fresh snapshot. A held intent the resolved
// operation made pointless is cancelled instead.
func (c *visibilityController) promoteHeld(ctx context.Context, contentID string) error {
	log := logger.FromContext(ctx)

	unlock := c.locks.Lock(contentID)
	defer unlock()

	held, err := c.queue.Held(ctx, contentID)
	if errors.Is(err, store.ErrOperationNotFound) {
		return nil
	}
	if err != nil {
		return mapStoreError(err)
	}

	r, err := c.contents.Get(ctx, contentID)
	if err != nil && !errors.Is(err, store.ErrContentNotFound) {
		return mapStoreError(err)
	}
	missing := errors.Is(err, store.ErrContentNotFound)

	redundant := missing ||
		(held.Kind == models.OperationPublish && r.Visibility == models.VisibilityPublic) ||
		(held.Kind == models.OperationUpdate && r.Visibility == models.VisibilityPrivate)

	if redundant {
		if _, err = c.queue.Cancel(ctx, held.ID, c.now()); err != nil {
			return mapStoreError(err)
		}
		c.waiters.resolve(held.ID, ErrOperationCancelled)

		log.Info().
			Str("func", "visibilityController.promoteHeld").
			Str("content_id", contentID).
			Str("operation_id", held.ID).
			Str("kind", string(held.Kind)).
			Msg("held operation no longer needed, cancelled")

		if missing {
			return nil
		}
		return c.refreshStatus(ctx, r, held.ID)
	}

	payload, err := c.snapshot(ctx, r, false)
	if err != nil {
		return err
	}

	if err = c.queue.Promote(ctx, held.ID, payload, r.Version, c.now()); err != nil {
		return mapStoreError(err)
	}

	if err = c.refreshStatus(ctx, r, ""); err != nil {
		return err
	}

	log.Info().
		Str("func", "visibilityController.promoteHeld").
		Str("content_id", contentID).
		Str("operation_id", held.ID).
		Str("kind", string(held.Kind)).
		Msg("held operation promoted")

	if c.notify != nil {
		c.notify()
	}
	return nil
}

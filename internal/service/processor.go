// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/MKhiriev/go-content-sync/internal/adapter"
	"github.com/MKhiriev/go-content-sync/internal/config"
	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/internal/store"
	"github.com/MKhiriev/go-content-sync/models"
)

// DrainResult counts what a drain did with the operations it took.
// StorageFailures counts operations whose next queue state could not be
// written.
type DrainResult struct {
	Dispatched      int `json:"dispatched"`
	Succeeded       int `json:"succeeded"`
	Retried         int `json:"retried"`
	Failed          int `json:"failed"`
	Released        int `json:"released"`
	StorageFailures int `json:"storage_failures"`
}

func (r *DrainResult) add(o DrainResult) {
	r.Dispatched += o.Dispatched
	r.Succeeded += o.Succeeded
	r.Retried += o.Retried
	r.Failed += o.Failed
	r.Released += o.Released
	r.StorageFailures += o.StorageFailures
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSucceeded
	outcomeRetried
	outcomeFailed
	outcomeReleased
	outcomeStorageFailed
)

// defaultMaxStoreRetries applies when the engine config leaves
// MaxStoreRetries unset.
const defaultMaxStoreRetries = 20

func (r *DrainResult) record(o outcome) {
	if o == outcomeSkipped {
		return
	}
	r.Dispatched++
	switch o {
	case outcomeSucceeded:
		r.Succeeded++
	case outcomeRetried:
		r.Retried++
	case outcomeFailed:
		r.Failed++
	case outcomeReleased:
		r.Released++
	case outcomeStorageFailed:
		r.StorageFailures++
	}
}

type syncProcessor struct {
	queue      store.SyncQueueRepository
	contents   store.ContentRepository
	transport  adapter.Transport
	controller *visibilityController
	waiters    *operationWaiters

	cfg             config.Engine
	dispatchTimeout time.Duration
	now             func() time.Time

	online  atomic.Bool
	drainMu sync.Mutex

	// wake asks the sync job for a drain, used when connectivity returns.
	wake func()
}

func (p *syncProcessor) Drain(ctx context.Context) (DrainResult, error) {
	log := logger.FromContext(ctx)

	if !p.Online() {
		return DrainResult{}, ErrOffline
	}

	p.drainMu.Lock()
	defer p.drainMu.Unlock()

	var total DrainResult
	for p.Online() {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		batch, err := p.queue.DequeueNextBatch(ctx, p.cfg.BatchSize, p.now())
		if err != nil {
			log.Err(err).Str("func", "syncProcessor.Drain").Msg("failed to dequeue batch")
			return total, mapStoreError(err)
		}
		if len(batch) == 0 {
			break
		}

		res, err := p.dispatchBatch(ctx, batch)
		total.add(res)
		if err != nil {
			log.Err(err).Str("func", "syncProcessor.Drain").Msg("drain stopped, queue state could not be written")
			return total, err
		}

		if res.Released > 0 {
			break
		}
	}

	if total.Dispatched > 0 {
		log.Info().
			Str("func", "syncProcessor.Drain").
			Int("dispatched", total.Dispatched).
			Int("succeeded", total.Succeeded).
			Int("retried", total.Retried).
			Int("failed", total.Failed).
			Int("released", total.Released).
			Msg("queue drained")
	}

	return total, ctx.Err()
}

// dispatchBatch processes batch with at most MaxInFlight dispatches at once.
// Entries of one batch belong to distinct records because every record has
// at most one live operation. The whole batch is processed even when an
// entry hits a storage failure; the first such failure is returned.
func (p *syncProcessor) dispatchBatch(ctx context.Context, batch []models.SyncOperation) (DrainResult, error) {
	var (
		g   errgroup.Group
		mu  sync.Mutex
		res DrainResult
	)
	g.SetLimit(p.cfg.MaxInFlight)

	for _, op := range batch {
		g.Go(func() error {
			o, err := p.process(ctx, op)

			mu.Lock()
			res.record(o)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()

	return res, err
}

// process runs one operation to its next state. The error is non-nil only
// when the queue could not be written.
func (p *syncProcessor) process(ctx context.Context, op models.SyncOperation) (outcome, error) {
	log := logger.FromContext(ctx)

	if ctx.Err() != nil {
		return outcomeSkipped, nil
	}

	if err := p.queue.MarkInFlight(ctx, op.ID, p.now()); err != nil {
		if errors.Is(err, store.ErrOperationStateConflict) {
			// taken or cancelled since it was dequeued
			return outcomeSkipped, nil
		}
		log.Err(err).
			Str("func", "syncProcessor.process").
			Str("operation_id", op.ID).
			Msg("failed to mark operation in flight")
		return outcomeSkipped, mapStoreError(err)
	}
	op.Status = models.OperationInFlight

	// bookkeeping after the dispatch must survive a shutdown
	bg := context.WithoutCancel(ctx)

	r, err := p.contents.Get(ctx, op.ContentID)
	if errors.Is(err, store.ErrContentNotFound) {
		return p.fail(bg, op, fmt.Errorf("%w: content %s no longer exists", ErrPermanentRemoteFailure, op.ContentID))
	}
	if err != nil {
		if ctx.Err() != nil {
			return p.release(bg, op)
		}
		return p.retry(bg, op, mapStoreError(err), p.cfg.MaxRetries)
	}

	state, err := p.dispatch(ctx, op, r)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return p.release(bg, op)
		case errors.Is(err, ErrTransientRemoteFailure):
			return p.retry(bg, op, err, p.cfg.MaxRetries)
		default:
			return p.fail(bg, op, err)
		}
	}

	return p.succeed(bg, op, state)
}

// dispatch sends op to the remote service and checks the confirmation.
func (p *syncProcessor) dispatch(ctx context.Context, op models.SyncOperation, r models.ContentRecord) (models.ConfirmedState, error) {
	if op.Kind == models.OperationUnpublish && r.Visibility == models.VisibilityPrivate {
		// nothing is live remotely
		return models.ConfirmedState{ContentID: r.ID, Visibility: models.VisibilityPrivate}, nil
	}

	req := models.RemoteRequest{
		OperationID: op.ID,
		Kind:        op.Kind,
		ContentID:   op.ContentID,
		PublicID:    r.ConfirmedPublicID,
		Payload:     op.Payload,
	}

	dctx, cancel := ctx, context.CancelFunc(func() {})
	if p.dispatchTimeout > 0 {
		dctx, cancel = context.WithTimeout(ctx, p.dispatchTimeout)
	}
	defer cancel()

	state, err := p.transport.Send(dctx, req)
	if err != nil {
		return models.ConfirmedState{}, mapAdapterError(err)
	}

	return confirm(op, r, state)
}

// confirm fills what the remote may omit and rejects answers that would
// break the public id invariant.
func confirm(op models.SyncOperation, r models.ContentRecord, state models.ConfirmedState) (models.ConfirmedState, error) {
	switch op.Kind {
	case models.OperationPublish, models.OperationUpdate:
		if state.Visibility == "" {
			state.Visibility = models.VisibilityPublic
		}
		if state.PublicID == "" {
			state.PublicID = r.ConfirmedPublicID
		}
		if state.Visibility == models.VisibilityPublic && state.PublicID == "" {
			return models.ConfirmedState{}, fmt.Errorf("%w: remote confirmed %s without a public id", ErrPermanentRemoteFailure, op.Kind)
		}
	case models.OperationUnpublish:
		if state.Visibility == "" {
			state.Visibility = models.VisibilityPrivate
		}
	}
	return state, nil
}

// retry sends op back to the queue with backoff, or fails it once this was
// attempt number limit.
func (p *syncProcessor) retry(ctx context.Context, op models.SyncOperation, cause error, limit int) (outcome, error) {
	log := logger.FromContext(ctx)

	attempt := op.Attempt + 1
	if attempt >= limit {
		return p.fail(ctx, op, fmt.Errorf("retries exhausted after %d attempts: %w", attempt, cause))
	}

	delay := backoff(p.cfg.RetryBaseDelay, p.cfg.RetryMaxDelay, op.Attempt)
	now := p.now()
	if err := p.queue.Retry(ctx, op.ID, attempt, now.Add(delay), cause.Error(), now); err != nil {
		log.Err(err).
			Str("func", "syncProcessor.retry").
			Str("operation_id", op.ID).
			Msg("failed to requeue operation")
		return p.abandon(ctx, op, err)
	}

	log.Warn().Err(cause).
		Str("func", "syncProcessor.retry").
		Str("content_id", op.ContentID).
		Str("operation_id", op.ID).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("operation will be retried")

	return outcomeRetried, nil
}

// fail marks op failed, rolls the record back and promotes a held op.
func (p *syncProcessor) fail(ctx context.Context, op models.SyncOperation, cause error) (outcome, error) {
	log := logger.FromContext(ctx)

	if err := p.queue.MarkFailed(ctx, op.ID, cause.Error(), p.now()); err != nil {
		log.Err(err).
			Str("func", "syncProcessor.fail").
			Str("operation_id", op.ID).
			Msg("failed to mark operation failed")
		return p.abandon(ctx, op, err)
	}

	if err := p.controller.rollback(ctx, op, cause); err != nil {
		log.Err(err).
			Str("func", "syncProcessor.fail").
			Str("content_id", op.ContentID).
			Msg("failed to roll back record")
	}

	log.Error().Err(cause).
		Str("func", "syncProcessor.fail").
		Str("content_id", op.ContentID).
		Str("operation_id", op.ID).
		Str("kind", string(op.Kind)).
		Msg("operation failed")

	p.waiters.resolve(op.ID, fmt.Errorf("%w: %w", ErrOperationFailed, cause))
	p.promote(ctx, op.ContentID)

	return outcomeFailed, nil
}

// succeed stores the confirmed state. A remote success whose result cannot
// be stored is retried under its own budget; the operation id keeps the
// resend idempotent.
func (p *syncProcessor) succeed(ctx context.Context, op models.SyncOperation, state models.ConfirmedState) (outcome, error) {
	log := logger.FromContext(ctx)

	if err := p.controller.applyConfirmed(ctx, op, state); err != nil {
		log.Err(err).
			Str("func", "syncProcessor.succeed").
			Str("content_id", op.ContentID).
			Str("operation_id", op.ID).
			Msg("remote succeeded but the result could not be stored")
		return p.retry(ctx, op, err, p.storeRetryLimit())
	}

	if err := p.queue.MarkDone(ctx, op.ID, p.now()); err != nil {
		log.Err(err).
			Str("func", "syncProcessor.succeed").
			Str("operation_id", op.ID).
			Msg("failed to mark operation done")
		return p.abandon(ctx, op, err)
	}

	log.Info().
		Str("func", "syncProcessor.succeed").
		Str("content_id", op.ContentID).
		Str("operation_id", op.ID).
		Str("kind", string(op.Kind)).
		Bool("conflict", state.Conflict).
		Msg("operation confirmed")

	p.waiters.resolve(op.ID, nil)
	p.promote(ctx, op.ContentID)

	return outcomeSucceeded, nil
}

func (p *syncProcessor) storeRetryLimit() int {
	if p.cfg.MaxStoreRetries > 0 {
		return p.cfg.MaxStoreRetries
	}
	return defaultMaxStoreRetries
}

// abandon is used when the queue refused to record op's next state. The op
// goes back to pending so a later drain picks it up again. If even that
// write fails, waiters are answered with the storage failure; the op stays
// in flight until RecoverInFlight runs on the next start.
func (p *syncProcessor) abandon(ctx context.Context, op models.SyncOperation, cause error) (outcome, error) {
	err := mapStoreError(cause)

	if relErr := p.queue.Release(ctx, op.ID, p.now()); relErr != nil {
		logger.FromContext(ctx).Err(relErr).
			Str("func", "syncProcessor.abandon").
			Str("content_id", op.ContentID).
			Str("operation_id", op.ID).
			Msg("failed to release operation, it stays in flight until restart")
		p.waiters.resolve(op.ID, err)
	}

	return outcomeStorageFailed, err
}

func (p *syncProcessor) release(ctx context.Context, op models.SyncOperation) (outcome, error) {
	if err := p.queue.Release(ctx, op.ID, p.now()); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "syncProcessor.release").
			Str("operation_id", op.ID).
			Msg("failed to release operation")
	}
	return outcomeReleased, nil
}

func (p *syncProcessor) promote(ctx context.Context, contentID string) {
	if err := p.controller.promoteHeld(ctx, contentID); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "syncProcessor.promote").
			Str("content_id", contentID).
			Msg("failed to promote held operation")
	}
}

// backoff returns min(base * 2^attempt, limit).
func backoff(base, limit time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}

	b := retry.NewExponential(base)
	if limit > 0 {
		b = retry.WithCappedDuration(limit, b)
	}

	var d time.Duration
	for range min(attempt, 63) + 1 {
		d, _ = b.Next()
	}
	return d
}

func (p *syncProcessor) Wait(ctx context.Context, operationID string) error {
	return p.waiters.wait(ctx, p.queue, operationID)
}

func (p *syncProcessor) Recover(ctx context.Context) (int64, error) {
	n, err := p.queue.RecoverInFlight(ctx, p.now())
	if err != nil {
		return 0, mapStoreError(err)
	}
	if n > 0 {
		logger.FromContext(ctx).Info().
			Str("func", "syncProcessor.Recover").
			Int64("recovered", n).
			Msg("in-flight operations returned to pending")
	}
	return n, nil
}

func (p *syncProcessor) Purge(ctx context.Context) (int64, error) {
	n, err := p.queue.PurgeTerminal(ctx, p.now().Add(-p.cfg.Retention))
	if err != nil {
		return 0, mapStoreError(err)
	}
	return n, nil
}

func (p *syncProcessor) SetOnline(online bool) {
	was := p.online.Swap(online)
	if online && !was && p.wake != nil {
		p.wake()
	}
}

func (p *syncProcessor) Online() bool {
	return p.online.Load()
}

func (p *syncProcessor) Stats(ctx context.Context) (models.QueueStats, error) {
	stats, err := p.queue.Stats(ctx)
	return stats, mapStoreError(err)
}

func (p *syncProcessor) Operations(ctx context.Context, filter models.OperationFilter) ([]models.SyncOperation, error) {
	ops, err := p.queue.List(ctx, filter)
	return ops, mapStoreError(err)
}

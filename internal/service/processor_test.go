// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/go-content-sync/internal/adapter"
	"github.com/MKhiriev/go-content-sync/internal/cache"
	"github.com/MKhiriev/go-content-sync/internal/config"
	"github.com/MKhiriev/go-content-sync/internal/mock"
	"github.com/MKhiriev/go-content-sync/internal/store"
	"github.com/MKhiriev/go-content-sync/internal/validators"
	"github.com/MKhiriev/go-content-sync/models"
)

func permanentErr(status int, err error) error {
	return &adapter.RemoteError{Class: adapter.ClassPermanent, StatusCode: status, Err: err}
}

func transientErr(status int, err error) error {
	return &adapter.RemoteError{Class: adapter.ClassTransient, StatusCode: status, Err: err}
}

func TestProcessor_PublishConfirmed(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "trail guide")

	h, err := e.Visibility.RequestPublish(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationPending, h.Status)

	pending := e.record(t, r.ID)
	assert.Equal(t, models.SyncStatusPendingPublish, pending.SyncStatus)
	assert.Empty(t, pending.PublicID)

	e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req models.RemoteRequest) (models.ConfirmedState, error) {
			assert.Equal(t, h.OperationID, req.OperationID)
			assert.Equal(t, models.OperationPublish, req.Kind)
			assert.Empty(t, req.PublicID)

			p, err := models.DecodePayload(req.Payload)
			assert.NoError(t, err)
			assert.Equal(t, "trail guide", p.Title)
			assert.Nil(t, p.PublicID)
			assert.NotEmpty(t, p.Body.Checksum)
			return confirmed(r.ID, "pub-1"), nil
		})

	res := e.drain(t)
	assert.Equal(t, DrainResult{Dispatched: 1, Succeeded: 1}, res)

	got := e.record(t, r.ID)
	assert.Equal(t, models.VisibilityPublic, got.Visibility)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	assert.Equal(t, "pub-1", got.PublicID)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(t0))

	require.NoError(t, e.Processor.Wait(ctx, h.OperationID))

	op, err := e.storages.Queue.Get(ctx, h.OperationID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationDone, op.Status)
}

func TestProcessor_PermanentFailureRollsBackPublish(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "deck")

	h, err := e.Visibility.RequestPublish(ctx, r.ID)
	require.NoError(t, err)

	e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(models.ConfirmedState{}, permanentErr(422, adapter.ErrUnprocessable))

	res := e.drain(t)
	assert.Equal(t, 1, res.Failed)

	got := e.record(t, r.ID)
	assert.Equal(t, models.VisibilityPrivate, got.Visibility)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	assert.Empty(t, got.PublicID)
	assert.Contains(t, got.LastError, "permanent")

	err = e.Processor.Wait(ctx, h.OperationID)
	assert.ErrorIs(t, err, ErrOperationFailed)

	op, err := e.storages.Queue.Get(ctx, h.OperationID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationFailed, op.Status)
}

func TestProcessor_TransientFailureIsRetriedWithBackoff(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "note")

	h, err := e.Visibility.RequestPublish(ctx, r.ID)
	require.NoError(t, err)

	gomock.InOrder(
		e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).
			Return(models.ConfirmedState{}, transientErr(503, adapter.ErrServiceUnavailable)),
		e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).
			Return(confirmed(r.ID, "pub-7"), nil),
	)

	res := e.drain(t)
	assert.Equal(t, 1, res.Retried)

	op, err := e.storages.Queue.Get(ctx, h.OperationID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationPending, op.Status)
	assert.Equal(t, 1, op.Attempt)
	assert.True(t, op.NextAttemptAt.Equal(t0.Add(time.Second)))
	assert.Equal(t, models.SyncStatusPendingPublish, e.record(t, r.ID).SyncStatus)

	// not due yet
	assert.Equal(t, DrainResult{}, e.drain(t))

	e.clock.Advance(time.Second)
	res = e.drain(t)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, "pub-7", e.record(t, r.ID).PublicID)
}

func TestProcessor_RetriesExhaustedBecomeTerminal(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "checklist")

	h, err := e.Visibility.RequestPublish(ctx, r.ID)
	require.NoError(t, err)

	e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(models.ConfirmedState{}, transientErr(0, adapter.ErrTimeout)).
		Times(2)

	assert.Equal(t, 1, e.drain(t).Retried)
	e.clock.Advance(time.Second)
	assert.Equal(t, 1, e.drain(t).Failed)

	// terminal: later drains send nothing
	e.clock.Advance(time.Hour)
	assert.Equal(t, DrainResult{}, e.drain(t))

	op, err := e.storages.Queue.Get(ctx, h.OperationID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationFailed, op.Status)
	assert.Equal(t, 1, op.Attempt)
	assert.Contains(t, op.LastError, "retries exhausted after 2 attempts")

	got := e.record(t, r.ID)
	assert.Equal(t, models.VisibilityPrivate, got.Visibility)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	assert.NotEmpty(t, got.LastError)
}

func TestProcessor_UnpublishFailureKeepsPublicID(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")
	e.publish(t, r.ID, "pub-1")

	_, err := e.Visibility.RequestUnpublish(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, e.record(t, r.ID).PublicID)

	e.transport.EXPECT().Send(gomock.Any(), kindIs(models.OperationUnpublish)).
		DoAndReturn(func(_ context.Context, req models.RemoteRequest) (models.ConfirmedState, error) {
			assert.Equal(t, "pub-1", req.PublicID)
			return models.ConfirmedState{}, permanentErr(403, adapter.ErrForbidden)
		})
	e.drain(t)

	got := e.record(t, r.ID)
	assert.Equal(t, models.VisibilityPublic, got.Visibility)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	assert.Equal(t, "pub-1", got.PublicID)
}

func TestProcessor_FailedUpdateMarksRecordFailed(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")
	e.publish(t, r.ID, "pub-1")

	_, err := e.Visibility.RequestUpdate(ctx, r.ID)
	require.NoError(t, err)

	e.transport.EXPECT().Send(gomock.Any(), kindIs(models.OperationUpdate)).
		Return(models.ConfirmedState{}, permanentErr(400, adapter.ErrBadRequest))
	e.drain(t)

	got := e.record(t, r.ID)
	assert.Equal(t, models.SyncStatusFailed, got.SyncStatus)
	assert.Equal(t, models.VisibilityPublic, got.Visibility)
	assert.Empty(t, got.PublicID)
	assert.Equal(t, "pub-1", got.ConfirmedPublicID)

	// a new update is accepted and resolves the failure
	_, err = e.Visibility.RequestUpdate(ctx, r.ID)
	require.NoError(t, err)
	e.transport.EXPECT().Send(gomock.Any(), kindIs(models.OperationUpdate)).
		Return(models.ConfirmedState{ContentID: r.ID, Visibility: models.VisibilityPublic}, nil)
	e.drain(t)

	got = e.record(t, r.ID)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	assert.Equal(t, "pub-1", got.PublicID)
	assert.Empty(t, got.LastError)
}

func TestProcessor_CoalescedIntentsSendOnce(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "draft title")

	h1, err := e.Visibility.RequestPublish(ctx, r.ID)
	require.NoError(t, err)

	title := "final title"
	_, err = e.Content.Edit(ctx, r.ID, models.ContentEdit{Title: &title})
	require.NoError(t, err)

	h2, err := e.Visibility.RequestUpdate(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, h2.Coalesced)
	assert.Equal(t, h1.OperationID, h2.OperationID)
	assert.Equal(t, models.OperationPublish, h2.Kind)

	e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req models.RemoteRequest) (models.ConfirmedState, error) {
			assert.Equal(t, models.OperationPublish, req.Kind)
			p, err := models.DecodePayload(req.Payload)
			assert.NoError(t, err)
			assert.Equal(t, "final title", p.Title)
			assert.Equal(t, int64(2), p.Version)
			return confirmed(r.ID, "pub-1"), nil
		})

	assert.Equal(t, 1, e.drain(t).Dispatched)
}

func TestProcessor_CancelledOutIntentsSendNothing(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "deck")

	h1, err := e.Visibility.RequestPublish(ctx, r.ID)
	require.NoError(t, err)

	h2, err := e.Visibility.RequestUnpublish(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, h2.Cancelled)

	assert.Equal(t, DrainResult{}, e.drain(t))

	got := e.record(t, r.ID)
	assert.Equal(t, models.VisibilityPrivate, got.Visibility)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)

	assert.ErrorIs(t, e.Processor.Wait(ctx, h1.OperationID), ErrOperationCancelled)
}

func TestProcessor_UpdateDuringInFlightPublishIsHeldThenPromoted(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")

	_, err := e.Visibility.RequestPublish(ctx, r.ID)
	require.NoError(t, err)

	gomock.InOrder(
		e.transport.EXPECT().Send(gomock.Any(), kindIs(models.OperationPublish)).
			DoAndReturn(func(_ context.Context, req models.RemoteRequest) (models.ConfirmedState, error) {
				title := "edited while publishing"
				_, err := e.Content.Edit(testContext(), r.ID, models.ContentEdit{Title: &title})
				assert.NoError(t, err)

				h, err := e.Visibility.RequestUpdate(testContext(), r.ID)
				assert.NoError(t, err)
				assert.Equal(t, models.OperationHeld, h.Status)
				return confirmed(r.ID, "pub-1"), nil
			}),
		e.transport.EXPECT().Send(gomock.Any(), kindIs(models.OperationUpdate)).
			DoAndReturn(func(_ context.Context, req models.RemoteRequest) (models.ConfirmedState, error) {
				assert.Equal(t, "pub-1", req.PublicID)

				p, err := models.DecodePayload(req.Payload)
				assert.NoError(t, err)
				assert.Equal(t, "edited while publishing", p.Title)
				if assert.NotNil(t, p.PublicID) {
					assert.Equal(t, "pub-1", *p.PublicID)
				}
				return confirmed(r.ID, "pub-1"), nil
			}),
	)

	res := e.drain(t)
	assert.Equal(t, 2, res.Succeeded)

	got := e.record(t, r.ID)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	assert.Equal(t, "pub-1", got.PublicID)
}

func TestProcessor_ConflictFlagFromConfirmedState(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")
	e.publish(t, r.ID, "pub-1")

	_, err := e.Visibility.RequestUpdate(ctx, r.ID)
	require.NoError(t, err)

	state := confirmed(r.ID, "pub-1")
	state.Conflict = true
	e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).Return(state, nil)
	e.drain(t)

	assert.True(t, e.record(t, r.ID).Conflict)
}

func TestProcessor_PublishedAtNeverMovesBackwards(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")
	e.publish(t, r.ID, "pub-1")

	_, err := e.Visibility.RequestUpdate(ctx, r.ID)
	require.NoError(t, err)

	state := confirmed(r.ID, "pub-1")
	earlier := t0.Add(-time.Hour)
	state.PublishedAt = &earlier
	e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).Return(state, nil)
	e.drain(t)

	got := e.record(t, r.ID)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(t0))
}

func TestProcessor_PublishWithoutPublicIDIsRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")

	_, err := e.Visibility.RequestPublish(ctx, r.ID)
	require.NoError(t, err)

	e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(models.ConfirmedState{ContentID: r.ID, Visibility: models.VisibilityPublic}, nil)
	assert.Equal(t, 1, e.drain(t).Failed)

	got := e.record(t, r.ID)
	assert.Equal(t, models.VisibilityPrivate, got.Visibility)
	assert.Empty(t, got.PublicID)
}

func TestProcessor_ShutdownReleasesInFlightOperation(t *testing.T) {
	e := newTestEngine(t)
	r := e.create(t, "guide")

	h, err := e.Visibility.RequestPublish(testContext(), r.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(testContext())
	defer cancel()

	e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ models.RemoteRequest) (models.ConfirmedState, error) {
			cancel()
			return models.ConfirmedState{}, transientErr(0, context.Canceled)
		})

	res, err := e.Processor.Drain(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Released)

	op, err := e.storages.Queue.Get(testContext(), h.OperationID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationPending, op.Status)
	assert.Equal(t, 0, op.Attempt)
	assert.Equal(t, models.SyncStatusPendingPublish, e.record(t, r.ID).SyncStatus)
}

func TestProcessor_OfflineGate(t *testing.T) {
	e := newTestEngine(t)
	r := e.create(t, "guide")

	_, err := e.Visibility.RequestPublish(testContext(), r.ID)
	require.NoError(t, err)

	e.Processor.SetOnline(false)
	assert.False(t, e.Processor.Online())

	_, err = e.Processor.Drain(testContext())
	assert.ErrorIs(t, err, ErrOffline)

	e.Processor.SetOnline(true)
	e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).Return(confirmed(r.ID, "pub-1"), nil)
	assert.Equal(t, 1, e.drain(t).Succeeded)
}

func TestProcessor_BoundedParallelism(t *testing.T) {
	e := newTestEngine(t, func(cfg *config.StructuredConfig) {
		cfg.Engine.MaxInFlight = 2
	})
	ctx := testContext()

	for i := 0; i < 6; i++ {
		r := e.create(t, "item")
		_, err := e.Visibility.RequestPublish(ctx, r.ID)
		require.NoError(t, err)
	}

	var current, peak atomic.Int64
	e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req models.RemoteRequest) (models.ConfirmedState, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			return confirmed(req.ContentID, "pub-"+req.ContentID), nil
		}).
		Times(6)

	res := e.drain(t)
	assert.Equal(t, 6, res.Succeeded)
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestProcessor_Recover(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")

	h, err := e.Visibility.RequestPublish(ctx, r.ID)
	require.NoError(t, err)
	require.NoError(t, e.storages.Queue.MarkInFlight(ctx, h.OperationID, t0))

	n, err := e.Processor.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	op, err := e.storages.Queue.Get(ctx, h.OperationID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationPending, op.Status)
}

func TestProcessor_PurgeAndStats(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")
	e.publish(t, r.ID, "pub-1")

	stats, err := e.Processor.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[models.OperationDone])

	n, err := e.Processor.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.clock.Advance(2 * time.Hour)
	n, err = e.Processor.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ops, err := e.Processor.Operations(ctx, models.OperationFilter{ContentID: r.ID})
	require.NoError(t, err)
	assert.Empty(t, ops)
}

// newMockedProcessor builds a processor whose storage is fully mocked.
func newMockedProcessor(t *testing.T) (*syncProcessor, *mock.MockContentRepository, *mock.MockSyncQueueRepository, *mock.MockTransport) {
	t.Helper()
	ctrl := gomock.NewController(t)
	contents := mock.NewMockContentRepository(ctrl)
	bodies := mock.NewMockBodyRepository(ctrl)
	queue := mock.NewMockSyncQueueRepository(ctrl)
	transport := mock.NewMockTransport(ctrl)
	clock := newFakeClock()

	waiters := newOperationWaiters()
	controller := &visibilityController{
		contents:  contents,
		queue:     queue,
		bodies:    cache.NewBodyHydrator(cache.NewLRU[string, models.Body](4, clock.Now), bodies),
		events:    NewEventBroker(),
		waiters:   waiters,
		locks:     newKeyedMutex(),
		validator: validators.NewContentValidator(),
		ids:       &seqIDs{},
		now:       clock.Now,
	}

	p := &syncProcessor{
		queue:           queue,
		contents:        contents,
		transport:       transport,
		controller:      controller,
		waiters:         waiters,
		cfg:             testConfig().Engine,
		dispatchTimeout: time.Second,
		now:             clock.Now,
	}
	p.online.Store(true)

	return p, contents, queue, transport
}

// A remote success whose result cannot be stored must not leave the
// operation stuck in flight, even once the retry budget is spent.
func TestProcessor_StorageFailureAfterRemoteSuccessIsRetried(t *testing.T) {
	p, contents, queue, transport := newMockedProcessor(t)

	op := models.SyncOperation{
		ID:        "op-1",
		ContentID: "c1",
		Kind:      models.OperationPublish,
		Status:    models.OperationPending,
		Attempt:   2,
		Payload:   []byte(`{}`),
	}
	inFlight := op
	inFlight.Status = models.OperationInFlight

	rec := models.ContentRecord{
		ID:         "c1",
		Kind:       models.KindGuide,
		Title:      "guide",
		Visibility: models.VisibilityPrivate,
		SyncStatus: models.SyncStatusPendingPublish,
		Version:    1,
	}

	gomock.InOrder(
		queue.EXPECT().DequeueNextBatch(gomock.Any(), 16, t0).Return([]models.SyncOperation{op}, nil),
		queue.EXPECT().MarkInFlight(gomock.Any(), "op-1", t0).Return(nil),
	)
	contents.EXPECT().Get(gomock.Any(), "c1").Return(rec, nil).AnyTimes()
	transport.EXPECT().Send(gomock.Any(), gomock.Any()).Return(confirmed("c1", "pub-1"), nil)
	queue.EXPECT().Live(gomock.Any(), "c1").Return(inFlight, nil)
	queue.EXPECT().Held(gomock.Any(), "c1").Return(models.SyncOperation{}, store.ErrOperationNotFound)
	contents.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("disk I/O error"))
	queue.EXPECT().Retry(gomock.Any(), "op-1", 3, t0.Add(4*time.Second), gomock.Any(), t0).Return(nil)
	queue.EXPECT().DequeueNextBatch(gomock.Any(), 16, t0).Return(nil, nil)

	res, err := p.Drain(testContext())
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Dispatched: 1, Retried: 1}, res)
}

func TestProcessor_StorageFailureAfterRemoteSuccessHasItsOwnBound(t *testing.T) {
	p, contents, queue, transport := newMockedProcessor(t)
	p.cfg.MaxStoreRetries = 3

	op := models.SyncOperation{
		ID:        "op-1",
		ContentID: "c1",
		Kind:      models.OperationPublish,
		Status:    models.OperationPending,
		Attempt:   2,
		Payload:   []byte(`{}`),
	}
	inFlight := op
	inFlight.Status = models.OperationInFlight

	rec := models.ContentRecord{ID: "c1", Kind: models.KindGuide, Title: "guide", Visibility: models.VisibilityPrivate, SyncStatus: models.SyncStatusPendingPublish, Version: 1}

	gomock.InOrder(
		queue.EXPECT().DequeueNextBatch(gomock.Any(), 16, t0).Return([]models.SyncOperation{op}, nil),
		queue.EXPECT().MarkInFlight(gomock.Any(), "op-1", t0).Return(nil),
	)
	contents.EXPECT().Get(gomock.Any(), "c1").Return(rec, nil).AnyTimes()
	transport.EXPECT().Send(gomock.Any(), gomock.Any()).Return(confirmed("c1", "pub-1"), nil)
	queue.EXPECT().Live(gomock.Any(), "c1").Return(inFlight, nil).AnyTimes()
	queue.EXPECT().Held(gomock.Any(), "c1").Return(models.SyncOperation{}, store.ErrOperationNotFound).AnyTimes()
	contents.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("disk I/O error")).AnyTimes()
	queue.EXPECT().MarkFailed(gomock.Any(), "op-1", gomock.Any(), t0).
		DoAndReturn(func(_ context.Context, _, reason string, _ time.Time) error {
			assert.Contains(t, reason, "retries exhausted after 3 attempts")
			return nil
		})
	queue.EXPECT().DequeueNextBatch(gomock.Any(), 16, t0).Return(nil, nil)

	res, err := p.Drain(testContext())
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Dispatched: 1, Failed: 1}, res)
}

func TestProcessor_StorageFailureBeforeDispatchUsesRetryBudget(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		want    DrainResult
		expect  func(queue *mock.MockSyncQueueRepository)
	}{
		{
			name:    "first attempt is requeued",
			attempt: 0,
			want:    DrainResult{Dispatched: 1, Retried: 1},
			expect: func(queue *mock.MockSyncQueueRepository) {
				queue.EXPECT().Retry(gomock.Any(), "op-1", 1, t0.Add(time.Second), gomock.Any(), t0).Return(nil)
			},
		},
		{
			name:    "last attempt is terminal",
			attempt: 1,
			want:    DrainResult{Dispatched: 1, Failed: 1},
			expect: func(queue *mock.MockSyncQueueRepository) {
				queue.EXPECT().MarkFailed(gomock.Any(), "op-1", gomock.Any(), t0).Return(nil)
				queue.EXPECT().Held(gomock.Any(), "c1").Return(models.SyncOperation{}, store.ErrOperationNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, contents, queue, _ := newMockedProcessor(t)

			op := models.SyncOperation{ID: "op-1", ContentID: "c1", Kind: models.OperationPublish, Status: models.OperationPending, Attempt: tt.attempt}

			gomock.InOrder(
				queue.EXPECT().DequeueNextBatch(gomock.Any(), 16, t0).Return([]models.SyncOperation{op}, nil),
				queue.EXPECT().MarkInFlight(gomock.Any(), "op-1", t0).Return(nil),
			)
			contents.EXPECT().Get(gomock.Any(), "c1").Return(models.ContentRecord{}, errors.New("disk I/O error")).AnyTimes()
			tt.expect(queue)
			queue.EXPECT().DequeueNextBatch(gomock.Any(), 16, t0).Return(nil, nil)

			res, err := p.Drain(testContext())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestProcessor_MarkInFlightFailureStopsDrain(t *testing.T) {
	p, _, queue, _ := newMockedProcessor(t)

	op := models.SyncOperation{ID: "op-1", ContentID: "c1", Kind: models.OperationPublish, Status: models.OperationPending}

	gomock.InOrder(
		queue.EXPECT().DequeueNextBatch(gomock.Any(), 16, t0).Return([]models.SyncOperation{op}, nil),
		queue.EXPECT().MarkInFlight(gomock.Any(), "op-1", t0).Return(errors.New("database or disk is full")),
	)

	ctx, cancel := context.WithTimeout(testContext(), time.Second)
	defer cancel()

	res, err := p.Drain(ctx)
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, DrainResult{}, res)
}

func TestProcessor_LostMarkDoneReleasesOperation(t *testing.T) {
	tests := []struct {
		name       string
		releaseErr error
		wantWaiter error
	}{
		{name: "released back to pending", releaseErr: nil},
		{name: "release fails too", releaseErr: errors.New("database or disk is full"), wantWaiter: ErrStorageFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, contents, queue, transport := newMockedProcessor(t)

			op := models.SyncOperation{ID: "op-1", ContentID: "c1", Kind: models.OperationPublish, Status: models.OperationPending, Payload: []byte(`{}`)}
			inFlight := op
			inFlight.Status = models.OperationInFlight
			rec := models.ContentRecord{ID: "c1", Kind: models.KindGuide, Title: "guide", Visibility: models.VisibilityPrivate, SyncStatus: models.SyncStatusPendingPublish, Version: 1}

			gomock.InOrder(
				queue.EXPECT().DequeueNextBatch(gomock.Any(), 16, t0).Return([]models.SyncOperation{op}, nil),
				queue.EXPECT().MarkInFlight(gomock.Any(), "op-1", t0).Return(nil),
			)
			contents.EXPECT().Get(gomock.Any(), "c1").Return(rec, nil).AnyTimes()
			transport.EXPECT().Send(gomock.Any(), gomock.Any()).Return(confirmed("c1", "pub-1"), nil)
			queue.EXPECT().Live(gomock.Any(), "c1").Return(inFlight, nil).AnyTimes()
			queue.EXPECT().Held(gomock.Any(), "c1").Return(models.SyncOperation{}, store.ErrOperationNotFound).AnyTimes()
			contents.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)
			queue.EXPECT().MarkDone(gomock.Any(), "op-1", t0).Return(errors.New("database or disk is full"))
			queue.EXPECT().Release(gomock.Any(), "op-1", t0).Return(tt.releaseErr)
			queue.EXPECT().Get(gomock.Any(), "op-1").Return(inFlight, nil)

			waited := make(chan error, 1)
			go func() { waited <- p.Wait(testContext(), "op-1") }()
			require.Eventually(t, func() bool {
				p.waiters.mu.Lock()
				defer p.waiters.mu.Unlock()
				return len(p.waiters.waiting["op-1"]) == 1
			}, time.Second, time.Millisecond)

			res, err := p.Drain(testContext())
			assert.ErrorIs(t, err, ErrStorageFailure)
			assert.Equal(t, DrainResult{Dispatched: 1, StorageFailures: 1}, res)

			if tt.wantWaiter == nil {
				// the operation is pending again, so its waiter keeps waiting
				select {
				case err := <-waited:
					t.Fatalf("waiter answered early: %v", err)
				case <-time.After(20 * time.Millisecond):
				}
				p.waiters.resolve("op-1", nil)
				assert.NoError(t, <-waited)
				return
			}
			assert.ErrorIs(t, <-waited, tt.wantWaiter)
		})
	}
}

func TestProcessor_StateConflictSkipsOperation(t *testing.T) {
	p, _, queue, _ := newMockedProcessor(t)

	op := models.SyncOperation{ID: "op-1", ContentID: "c1", Kind: models.OperationPublish, Status: models.OperationPending}

	gomock.InOrder(
		queue.EXPECT().DequeueNextBatch(gomock.Any(), 16, t0).Return([]models.SyncOperation{op}, nil),
		queue.EXPECT().MarkInFlight(gomock.Any(), "op-1", t0).Return(store.ErrOperationStateConflict),
		queue.EXPECT().DequeueNextBatch(gomock.Any(), 16, t0).Return(nil, nil),
	)

	res, err := p.Drain(testContext())
	require.NoError(t, err)
	assert.Equal(t, DrainResult{}, res)
}

func TestProcessor_DequeueFailure(t *testing.T) {
	p, _, queue, _ := newMockedProcessor(t)

	queue.EXPECT().DequeueNextBatch(gomock.Any(), 16, t0).Return(nil, errors.New("database is locked"))

	_, err := p.Drain(testContext())
	assert.ErrorIs(t, err, ErrStorageFailure)
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: 2 * time.Second},
		{attempt: 2, want: 4 * time.Second},
		{attempt: 3, want: 8 * time.Second},
		{attempt: 4, want: 8 * time.Second},
		{attempt: 80, want: 8 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(time.Second, 8*time.Second, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestMapAdapterError(t *testing.T) {
	assert.NoError(t, mapAdapterError(nil))
	assert.ErrorIs(t, mapAdapterError(permanentErr(404, adapter.ErrNotFound)), ErrPermanentRemoteFailure)
	assert.ErrorIs(t, mapAdapterError(transientErr(502, adapter.ErrBadGateway)), ErrTransientRemoteFailure)
	assert.ErrorIs(t, mapAdapterError(context.DeadlineExceeded), ErrTransientRemoteFailure)
	assert.ErrorIs(t, mapAdapterError(errors.New("boom")), ErrTransientRemoteFailure)

	// the original error stays reachable
	assert.ErrorIs(t, mapAdapterError(permanentErr(404, adapter.ErrNotFound)), adapter.ErrNotFound)
}

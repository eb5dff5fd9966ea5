package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/go-content-sync/internal/cache"
	"github.com/MKhiriev/go-content-sync/internal/config"
	"github.com/MKhiriev/go-content-sync/internal/mock"
	"github.com/MKhiriev/go-content-sync/internal/store"
	"github.com/MKhiriev/go-content-sync/internal/utils"
	"github.com/MKhiriev/go-content-sync/internal/validators"
	"github.com/MKhiriev/go-content-sync/models"
)

func TestContent_Create(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()

	desc := "what to bring"
	c, err := e.Content.Create(ctx, models.Draft{
		Kind:        models.KindChecklist,
		Title:       "packing list",
		Description: &desc,
		Body:        models.Body{Format: models.BodyFormatMarkdown, Content: "- tent"},
	})
	require.NoError(t, err)

	r := c.Record
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, r.ID, r.BodyRef)
	assert.Equal(t, models.VisibilityPrivate, r.Visibility)
	assert.Equal(t, models.SyncStatusSynced, r.SyncStatus)
	assert.Equal(t, int64(1), r.Version)
	assert.Empty(t, r.PublicID)
	assert.Equal(t, utils.Checksum("- tent"), c.Body.Checksum)

	stored, err := e.storages.Bodies.GetBody(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "- tent", stored.Content)

	got, err := e.Content.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "packing list", got.Record.Title)
	require.NotNil(t, got.Record.Description)
	assert.Equal(t, desc, *got.Record.Description)
	assert.Equal(t, "- tent", got.Body.Content)
}

func TestContent_CreateRejectsInvalidDraft(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Content.Create(testContext(), models.Draft{
		Kind: models.KindNote,
		Body: models.Body{Format: models.BodyFormatPlain, Content: "x"},
	})
	assert.ErrorIs(t, err, ErrInvalidContent)
	assert.ErrorIs(t, err, validators.ErrEmptyTitle)

	records, err := e.Content.List(testContext(), models.ContentFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestContent_EditBumpsVersionAndWritesThrough(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")

	e.clock.Advance(time.Minute)

	title := "better guide"
	body := models.Body{Format: models.BodyFormatPlain, Content: "new body"}
	c, err := e.Content.Edit(ctx, r.ID, models.ContentEdit{Title: &title, Body: &body})
	require.NoError(t, err)

	assert.Equal(t, int64(2), c.Record.Version)
	assert.True(t, c.Record.UpdatedAt.Equal(t0.Add(time.Minute)))
	assert.Equal(t, "better guide", c.Record.Title)
	assert.Equal(t, utils.Checksum("new body"), c.Body.Checksum)

	got, err := e.Content.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "new body", got.Body.Content)
	assert.Equal(t, int64(2), got.Record.Version)
}

func TestContent_EditDescription(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")

	desc := "short"
	c, err := e.Content.Edit(ctx, r.ID, models.ContentEdit{Description: &desc})
	require.NoError(t, err)
	require.NotNil(t, c.Record.Description)

	c, err = e.Content.Edit(ctx, r.ID, models.ContentEdit{ClearDescription: true})
	require.NoError(t, err)
	assert.Nil(t, c.Record.Description)
	assert.Equal(t, int64(3), c.Record.Version)
}

func TestContent_EditValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")

	_, err := e.Content.Edit(ctx, r.ID, models.ContentEdit{})
	assert.ErrorIs(t, err, validators.ErrNoFieldsToUpdate)

	title := "t"
	_, err = e.Content.Edit(ctx, "missing", models.ContentEdit{Title: &title})
	assert.ErrorIs(t, err, ErrContentNotFound)
}

func TestContent_EditWithoutAutoPropagateQueuesNothing(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")
	e.publish(t, r.ID, "pub-1")

	title := "local only"
	c, err := e.Content.Edit(ctx, r.ID, models.ContentEdit{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, c.Record.SyncStatus)

	assert.Equal(t, DrainResult{}, e.drain(t))
}

func TestContent_AutoPropagateEditOfPublicRecord(t *testing.T) {
	e := newTestEngine(t, func(cfg *config.StructuredConfig) {
		cfg.Engine.AutoPropagate = true
	})
	ctx := testContext()

	priv := e.create(t, "private")
	pub := e.create(t, "public")
	e.publish(t, pub.ID, "pub-1")

	title := "edited"
	c, err := e.Content.Edit(ctx, priv.ID, models.ContentEdit{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, c.Record.SyncStatus)

	c, err = e.Content.Edit(ctx, pub.ID, models.ContentEdit{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusPendingUpdate, c.Record.SyncStatus)

	e.transport.EXPECT().Send(gomock.Any(), kindIs(models.OperationUpdate)).
		Return(confirmed(pub.ID, "pub-1"), nil)
	assert.Equal(t, 1, e.drain(t).Succeeded)
}

func TestContent_EditedPublicRecordIsUpdatedUnderItsPublicID(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "trail guide")
	e.publish(t, r.ID, "pub-1")

	e.clock.Advance(time.Hour)

	title := "trail guide, second edition"
	_, err := e.Content.Edit(ctx, r.ID, models.ContentEdit{Title: &title})
	require.NoError(t, err)

	h, err := e.Visibility.RequestUpdate(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationUpdate, h.Kind)

	e.transport.EXPECT().Send(gomock.Any(), kindIs(models.OperationUpdate)).
		DoAndReturn(func(_ context.Context, req models.RemoteRequest) (models.ConfirmedState, error) {
			assert.Equal(t, "pub-1", req.PublicID)

			p, err := models.DecodePayload(req.Payload)
			assert.NoError(t, err)
			assert.Equal(t, title, p.Title)
			assert.Equal(t, int64(2), p.Version)
			if assert.NotNil(t, p.PublicID) {
				assert.Equal(t, "pub-1", *p.PublicID)
			}
			if assert.NotNil(t, p.PublishedAt) {
				assert.True(t, p.PublishedAt.Equal(t0))
			}

			publishedAt, updatedAt := t0, e.clock.Now()
			return models.ConfirmedState{
				ContentID:   r.ID,
				Visibility:  models.VisibilityPublic,
				PublicID:    "pub-1",
				PublishedAt: &publishedAt,
				UpdatedAt:   &updatedAt,
				Title:       title,
			}, nil
		})
	assert.Equal(t, DrainResult{Dispatched: 1, Succeeded: 1}, e.drain(t))

	got, err := e.Content.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, title, got.Record.Title)
	assert.Equal(t, models.VisibilityPublic, got.Record.Visibility)
	assert.Equal(t, models.SyncStatusSynced, got.Record.SyncStatus)
	assert.Equal(t, "pub-1", got.Record.PublicID)
	require.NotNil(t, got.Record.PublishedAt)
	assert.True(t, got.Record.PublishedAt.Equal(t0))
	assert.Empty(t, got.Record.LastError)
}

func TestContent_ListFilters(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()

	a := e.create(t, "a")
	e.clock.Advance(time.Second)
	b := e.create(t, "b")
	e.publish(t, b.ID, "pub-b")

	all, err := e.Content.List(ctx, models.ContentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)
	assert.Equal(t, a.ID, all[1].ID)

	public, err := e.Content.List(ctx, models.ContentFilter{Visibility: models.VisibilityPublic})
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "pub-b", public[0].PublicID)

	_, err = e.Content.List(ctx, models.ContentFilter{Limit: validators.MaxPageSize + 1})
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestContent_Operations(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	r := e.create(t, "guide")
	e.publish(t, r.ID, "pub-1")

	ops, err := e.Content.Operations(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OperationDone, ops[0].Status)

	_, err = e.Content.Operations(ctx, "missing")
	assert.ErrorIs(t, err, ErrContentNotFound)
}

// newMockedContentService builds a content service on mocked repositories.
func newMockedContentService(t *testing.T, autoPropagate bool) (*contentService, *mock.MockContentRepository, *mock.MockBodyRepository, *mock.MockSyncQueueRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	contents := mock.NewMockContentRepository(ctrl)
	bodies := mock.NewMockBodyRepository(ctrl)
	queue := mock.NewMockSyncQueueRepository(ctrl)
	clock := newFakeClock()

	hydrator := cache.NewBodyHydrator(cache.NewLRU[string, models.Body](4, clock.Now), bodies)
	locks := newKeyedMutex()
	validator := validators.NewContentValidator()

	controller := &visibilityController{
		contents:  contents,
		queue:     queue,
		bodies:    hydrator,
		events:    NewEventBroker(),
		waiters:   newOperationWaiters(),
		locks:     locks,
		validator: validator,
		ids:       &seqIDs{},
		now:       clock.Now,
	}

	return &contentService{
		contents:      contents,
		bodies:        bodies,
		queue:         queue,
		hydrator:      hydrator,
		controller:    controller,
		events:        controller.events,
		locks:         locks,
		validator:     validator,
		ids:           &seqIDs{},
		now:           clock.Now,
		autoPropagate: autoPropagate,
	}, contents, bodies, queue
}

func TestContent_EditRestoresBodyWhenRecordWriteFails(t *testing.T) {
	s, contents, bodies, _ := newMockedContentService(t, false)
	ctx := testContext()

	old := models.Body{Format: models.BodyFormatPlain, Content: "old", Checksum: utils.Checksum("old"), UpdatedAt: t0}
	rec := models.ContentRecord{ID: "c1", Kind: models.KindNote, Title: "note", Visibility: models.VisibilityPrivate, SyncStatus: models.SyncStatusSynced, Version: 1}

	contents.EXPECT().Get(gomock.Any(), "c1").Return(rec, nil)
	bodies.EXPECT().GetBody(gomock.Any(), "c1").Return(old, nil)
	gomock.InOrder(
		bodies.EXPECT().SaveBody(gomock.Any(), "c1", gomock.Cond(func(b models.Body) bool { return b.Content == "new" })).Return(nil),
		contents.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("disk I/O error")),
		bodies.EXPECT().SaveBody(gomock.Any(), "c1", old).Return(nil),
	)

	_, err := s.Edit(ctx, "c1", models.ContentEdit{Body: &models.Body{Format: models.BodyFormatPlain, Content: "new"}})
	assert.ErrorIs(t, err, ErrStorageFailure)

	// the rejected body is not served from the cache
	bodies.EXPECT().GetBody(gomock.Any(), "c1").Return(old, nil)
	got, err := s.hydrator.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "old", got.Content)
}

func TestContent_EditDropsNewBodyWhenNoneExisted(t *testing.T) {
	s, contents, bodies, _ := newMockedContentService(t, false)

	rec := models.ContentRecord{ID: "c1", Kind: models.KindNote, Title: "note", Visibility: models.VisibilityPrivate, SyncStatus: models.SyncStatusSynced, Version: 1}

	contents.EXPECT().Get(gomock.Any(), "c1").Return(rec, nil)
	bodies.EXPECT().GetBody(gomock.Any(), "c1").Return(models.Body{}, store.ErrBodyNotFound)
	gomock.InOrder(
		bodies.EXPECT().SaveBody(gomock.Any(), "c1", gomock.Any()).Return(nil),
		contents.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("disk I/O error")),
		bodies.EXPECT().DeleteBody(gomock.Any(), "c1").Return(nil),
	)

	_, err := s.Edit(testContext(), "c1", models.ContentEdit{Body: &models.Body{Format: models.BodyFormatPlain, Content: "new"}})
	assert.ErrorIs(t, err, ErrStorageFailure)
}

func TestContent_EditReportsUnqueuedUpdate(t *testing.T) {
	s, contents, bodies, queue := newMockedContentService(t, true)

	rec := models.ContentRecord{
		ID:                "c1",
		Kind:              models.KindGuide,
		Title:             "guide",
		Visibility:        models.VisibilityPublic,
		ConfirmedPublicID: "pub-1",
		SyncStatus:        models.SyncStatusSynced,
		Version:           1,
	}.Normalize()

	contents.EXPECT().Get(gomock.Any(), "c1").Return(rec, nil).AnyTimes()
	bodies.EXPECT().GetBody(gomock.Any(), "c1").Return(models.Body{Format: models.BodyFormatPlain, Content: "x"}, nil)
	contents.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)
	queue.EXPECT().Live(gomock.Any(), "c1").Return(models.SyncOperation{}, errors.New("database or disk is full"))

	title := "edited"
	c, err := s.Edit(testContext(), "c1", models.ContentEdit{Title: &title})
	assert.ErrorIs(t, err, ErrUpdateNotQueued)
	assert.ErrorIs(t, err, ErrStorageFailure)
	// the local edit itself was stored
	assert.Equal(t, "edited", c.Record.Title)
	assert.Equal(t, int64(2), c.Record.Version)
}

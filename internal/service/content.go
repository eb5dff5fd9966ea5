package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-content-sync/internal/cache"
	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/internal/store"
	"github.com/MKhiriev/go-content-sync/internal/utils"
	"github.com/MKhiriev/go-content-sync/internal/validators"
	"github.com/MKhiriev/go-content-sync/models"
)

type contentService struct {
	contents store.ContentRepository
	bodies   store.BodyRepository
	queue    store.SyncQueueRepository
	hydrator *cache.BodyHydrator

	controller *visibilityController
	events     *EventBroker
	locks      *keyedMutex
	validator  validators.Validator
	ids        IDGenerator
	now        func() time.Time

	// autoPropagate queues an update after each edit of a public record.
	autoPropagate bool
}

func (s *contentService) Create(ctx context.Context, draft models.Draft) (models.Content, error) {
	log := logger.FromContext(ctx)

	if err := s.validator.Validate(ctx, draft); err != nil {
		return models.Content{}, fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}

	now := s.now().UTC()
	id := s.ids.Generate()

	body := draft.Body
	body.Checksum = utils.Checksum(body.Content)
	body.UpdatedAt = now

	if err := s.bodies.SaveBody(ctx, id, body); err != nil {
		log.Err(err).Str("func", "contentService.Create").Str("content_id", id).Msg("failed to save body")
		return models.Content{}, mapStoreError(err)
	}

	r := models.ContentRecord{
		ID:          id,
		Kind:        draft.Kind,
		Title:       draft.Title,
		Description: draft.Description,
		BodyRef:     id,
		Visibility:  models.VisibilityPrivate,
		SyncStatus:  models.SyncStatusSynced,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}.Normalize()

	if err := s.contents.Upsert(ctx, r); err != nil {
		log.Err(err).Str("func", "contentService.Create").Str("content_id", id).Msg("failed to save record")
		_ = s.bodies.DeleteBody(ctx, id)
		return models.Content{}, mapStoreError(err)
	}
	s.hydrator.Store(id, body)

	s.events.Publish(models.EventFromRecord(r, now))

	log.Info().
		Str("func", "contentService.Create").
		Str("content_id", id).
		Str("kind", string(r.Kind)).
		Msg("content created")

	return models.Content{Record: r, Body: body}, nil
}

func (s *contentService) Get(ctx context.Context, id string) (models.Content, error) {
	r, err := s.contents.Get(ctx, id)
	if err != nil {
		return models.Content{}, mapStoreError(err)
	}

	body, err := s.hydrator.Load(ctx, id)
	if err != nil && !errors.Is(err, store.ErrBodyNotFound) {
		logger.FromContext(ctx).Err(err).
			Str("func", "contentService.Get").
			Str("content_id", id).
			Msg("failed to hydrate body")
		return models.Content{}, mapStoreError(err)
	}

	return models.Content{Record: r, Body: body}, nil
}

func (s *contentService) List(ctx context.Context, filter models.ContentFilter) ([]models.ContentRecord, error) {
	if err := s.validator.Validate(ctx, filter); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}

	records, err := s.contents.List(ctx, filter)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return records, nil
}

func (s *contentService) Edit(ctx context.Context, id string, edit models.ContentEdit) (models.Content, error) {
	log := logger.FromContext(ctx)

	if err := s.validator.Validate(ctx, edit); err != nil {
		return models.Content{}, fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}

	content, err := s.applyEdit(ctx, id, edit)
	if err != nil {
		log.Err(err).Str("func", "contentService.Edit").Str("content_id", id).Msg("failed to edit content")
		return models.Content{}, err
	}

	if !s.autoPropagate {
		return content, nil
	}

	if _, err = s.controller.RequestUpdate(ctx, id); err != nil {
		if errors.Is(err, ErrInvalidState) {
			// private records have nothing to propagate
			return content, nil
		}
		log.Err(err).
			Str("func", "contentService.Edit").
			Str("content_id", id).
			Msg("edit saved but the update could not be queued")
		return content, fmt.Errorf("%w: %w", ErrUpdateNotQueued, err)
	}

	r, err := s.contents.Get(ctx, id)
	if err != nil {
		return content, nil
	}
	content.Record = r
	return content, nil
}

func (s *contentService) applyEdit(ctx context.Context, id string, edit models.ContentEdit) (models.Content, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	r, err := s.contents.Get(ctx, id)
	if err != nil {
		return models.Content{}, mapStoreError(err)
	}

	body, err := s.hydrator.Load(ctx, id)
	if err != nil && !errors.Is(err, store.ErrBodyNotFound) {
		return models.Content{}, mapStoreError(err)
	}
	prev, hadBody := body, err == nil

	now := s.now().UTC()

	if edit.Title != nil {
		r.Title = *edit.Title
	}
	switch {
	case edit.ClearDescription:
		r.Description = nil
	case edit.Description != nil:
		description := *edit.Description
		r.Description = &description
	}

	if edit.Body != nil {
		body = *edit.Body
		body.Checksum = utils.Checksum(body.Content)
		body.UpdatedAt = now

		if err = s.bodies.SaveBody(ctx, id, body); err != nil {
			return models.Content{}, mapStoreError(err)
		}
		s.hydrator.Store(id, body)
	}

	r = r.Touch(now).Normalize()
	if err = s.contents.Upsert(ctx, r); err != nil {
		if edit.Body != nil {
			s.restoreBody(ctx, id, prev, hadBody)
		}
		return models.Content{}, mapStoreError(err)
	}

	return models.Content{Record: r, Body: body}, nil
}

// restoreBody puts back the body an edit replaced before its record could
// be written, so body and record versions stay paired.
func (s *contentService) restoreBody(ctx context.Context, id string, prev models.Body, hadBody bool) {
	s.hydrator.Invalidate(id)

	var err error
	if hadBody {
		err = s.bodies.SaveBody(ctx, id, prev)
	} else {
		err = s.bodies.DeleteBody(ctx, id)
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "contentService.restoreBody").
			Str("content_id", id).
			Msg("failed to restore body after the record write failed")
	}
}

func (s *contentService) Delete(ctx context.Context, id string) error {
	return s.controller.Delete(ctx, id)
}

func (s *contentService) Operations(ctx context.Context, id string) ([]models.SyncOperation, error) {
	if _, err := s.contents.Get(ctx, id); err != nil {
		return nil, mapStoreError(err)
	}

	ops, err := s.queue.ListByContent(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return ops, nil
}

package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/internal/utils"
	"github.com/MKhiriev/go-content-sync/models"
)

func (h *Handler) listContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	filter, err := contentFilterFromQuery(r.URL.Query())
	if err != nil {
		log.Err(err).Str("func", "*Handler.listContent").Msg("invalid content filter")
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.services.Content.List(ctx, filter)
	if err != nil {
		log.Err(err).Str("func", "*Handler.listContent").Msg("error listing content")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}
	if records == nil {
		records = []models.ContentRecord{}
	}

	utils.WriteJSON(w, contentListResponse{Content: records, Length: len(records)}, http.StatusOK)
}

func (h *Handler) createContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	var draft models.Draft
	if err := decodeJSON(r, &draft); err != nil {
		log.Err(err).Str("func", "*Handler.createContent").Msg("Invalid JSON was passed")
		utils.WriteError(w, ErrInvalidJSON.Error(), http.StatusBadRequest)
		return
	}

	content, err := h.services.Content.Create(ctx, draft)
	if err != nil {
		log.Err(err).Str("func", "*Handler.createContent").Msg("error creating content")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	utils.WriteJSON(w, content, http.StatusCreated)
}

func (h *Handler) getContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)
	id := chi.URLParam(r, "id")

	content, err := h.services.Content.Get(ctx, id)
	if err != nil {
		log.Err(err).Str("func", "*Handler.getContent").Str("content_id", id).Msg("error getting content")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	utils.WriteJSON(w, content, http.StatusOK)
}

func (h *Handler) editContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)
	id := chi.URLParam(r, "id")

	var edit models.ContentEdit
	if err := decodeJSON(r, &edit); err != nil {
		log.Err(err).Str("func", "*Handler.editContent").Msg("Invalid JSON was passed")
		utils.WriteError(w, ErrInvalidJSON.Error(), http.StatusBadRequest)
		return
	}

	content, err := h.services.Content.Edit(ctx, id, edit)
	if err != nil {
		log.Err(err).Str("func", "*Handler.editContent").Str("content_id", id).Msg("error editing content")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	utils.WriteJSON(w, content, http.StatusOK)
}

// deleteContent blocks until the record is gone. A public record is
// unpublished first; when the caller stops waiting (timeout query parameter
// or a dropped connection) the deletion carries on and 202 is returned.
func (h *Handler) deleteContent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)
	id := chi.URLParam(r, "id")

	timeout, err := durationParam(r.URL.Query(), "timeout")
	if err != nil {
		log.Err(err).Str("func", "*Handler.deleteContent").Msg("invalid timeout")
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err = h.services.Content.Delete(ctx, id)
	switch {
	case err == nil:
		utils.WriteJSON(w, deleteResponse{ID: id, Deleted: true}, http.StatusOK)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.Info().Str("func", "*Handler.deleteContent").Str("content_id", id).Msg("delete continues in background")
		utils.WriteJSON(w, deleteResponse{ID: id}, http.StatusAccepted)
	default:
		log.Err(err).Str("func", "*Handler.deleteContent").Str("content_id", id).Msg("error deleting content")
		utils.WriteError(w, err.Error(), statusFromError(err))
	}
}

func (h *Handler) contentOperations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)
	id := chi.URLParam(r, "id")

	ops, err := h.services.Content.Operations(ctx, id)
	if err != nil {
		log.Err(err).Str("func", "*Handler.contentOperations").Str("content_id", id).Msg("error listing operations")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}
	if ops == nil {
		ops = []models.SyncOperation{}
	}

	utils.WriteJSON(w, operationsResponse{Operations: ops, Length: len(ops)}, http.StatusOK)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/internal/utils"
	"github.com/MKhiriev/go-content-sync/models"
)

type visibilityRequest func(ctx context.Context, id string) (models.OperationHandle, error)

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	h.requestVisibility(w, r, "*Handler.publish", h.services.Visibility.RequestPublish)
}

func (h *Handler) unpublish(w http.ResponseWriter, r *http.Request) {
	h.requestVisibility(w, r, "*Handler.unpublish", h.services.Visibility.RequestUnpublish)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	h.requestVisibility(w, r, "*Handler.update", h.services.Visibility.RequestUpdate)
}

// requestVisibility queues the request and answers 202 with the operation
// handle. With wait=true it blocks until the operation is terminal and
// answers 200, or with the mapped status of the failure.
func (h *Handler) requestVisibility(w http.ResponseWriter, r *http.Request, fn string, request visibilityRequest) {
	ctx := r.Context()
	log := logger.FromRequest(r)
	id := chi.URLParam(r, "id")

	q := r.URL.Query()
	wait, err := boolParam(q, "wait")
	if err != nil {
		log.Err(err).Str("func", fn).Msg("invalid wait parameter")
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}
	timeout, err := durationParam(q, "timeout")
	if err != nil {
		log.Err(err).Str("func", fn).Msg("invalid timeout")
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	handle, err := request(ctx, id)
	if err != nil {
		log.Err(err).Str("func", fn).Str("content_id", id).Msg("visibility request rejected")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	if !wait || handle.Cancelled {
		utils.WriteJSON(w, handle, http.StatusAccepted)
		return
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err = h.services.Processor.Wait(ctx, handle.OperationID); err != nil {
		log.Err(err).Str("func", fn).
			Str("content_id", id).
			Str("operation_id", handle.OperationID).
			Msg("operation did not complete")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	handle.Status = models.OperationDone
	utils.WriteJSON(w, handle, http.StatusOK)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)
	id := chi.URLParam(r, "id")

	op, err := h.services.Visibility.Cancel(ctx, id)
	if err != nil {
		log.Err(err).Str("func", "*Handler.cancel").Str("content_id", id).Msg("error cancelling operation")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	utils.WriteJSON(w, op, http.StatusOK)
}

package http

import (
	"net/http"

	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/internal/utils"
	"github.com/MKhiriev/go-content-sync/models"
)

func (h *Handler) getQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	filter, err := operationFilterFromQuery(r.URL.Query())
	if err != nil {
		log.Err(err).Str("func", "*Handler.getQueue").Msg("invalid operation filter")
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := h.services.Processor.Stats(ctx)
	if err != nil {
		log.Err(err).Str("func", "*Handler.getQueue").Msg("error reading queue stats")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	ops, err := h.services.Processor.Operations(ctx, filter)
	if err != nil {
		log.Err(err).Str("func", "*Handler.getQueue").Msg("error listing operations")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}
	if ops == nil {
		ops = []models.SyncOperation{}
	}

	utils.WriteJSON(w, queueResponse{
		Online:     h.services.Processor.Online(),
		Stats:      stats,
		Operations: ops,
	}, http.StatusOK)
}

// sync wakes the background job. With wait=true the queue is drained on the
// request instead and the drain counters are returned.
func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	wait, err := boolParam(r.URL.Query(), "wait")
	if err != nil {
		log.Err(err).Str("func", "*Handler.sync").Msg("invalid wait parameter")
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !wait {
		h.services.SyncJob.Wake()
		utils.WriteJSON(w, syncResponse{Woken: true}, http.StatusAccepted)
		return
	}

	result, err := h.services.Processor.Drain(ctx)
	if err != nil {
		log.Err(err).Str("func", "*Handler.sync").Msg("drain stopped")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	utils.WriteJSON(w, syncResponse{Result: &result}, http.StatusOK)
}

func (h *Handler) getConnectivity(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, connectivityResponse{Online: h.services.Processor.Online()}, http.StatusOK)
}

// setConnectivity switches the online gate. Going online wakes the sync job.
func (h *Handler) setConnectivity(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	var req connectivityRequest
	if err := decodeJSON(r, &req); err != nil || req.Online == nil {
		log.Err(err).Str("func", "*Handler.setConnectivity").Msg("Invalid JSON was passed")
		utils.WriteError(w, ErrInvalidJSON.Error(), http.StatusBadRequest)
		return
	}

	h.services.Processor.SetOnline(*req.Online)
	log.Info().Str("func", "*Handler.setConnectivity").Bool("online", *req.Online).Msg("connectivity changed")

	utils.WriteJSON(w, connectivityResponse{Online: h.services.Processor.Online()}, http.StatusOK)
}

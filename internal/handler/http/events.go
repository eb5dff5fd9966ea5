package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MKhiriev/go-content-sync/internal/logger"
)

const sseHeartbeat = 15 * time.Second

// events streams sync state changes as server-sent events until the client
// disconnects. A slow client receives the latest state of each record
// rather than every intermediate change.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	rc := http.NewResponseController(w)

	sub := h.services.Events.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.Err(fmt.Errorf("%w: %w", ErrStreamingUnsupported, err)).Str("func", "*Handler.events").Send()
		return
	}

	log.Debug().Str("func", "*Handler.events").Msg("event stream opened")
	defer log.Debug().Str("func", "*Handler.events").Msg("event stream closed")

	for {
		next, cancel := context.WithTimeout(ctx, sseHeartbeat)
		ev, err := sub.Next(next)
		cancel()

		switch {
		case err == nil:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Err(err).Str("func", "*Handler.events").Str("content_id", ev.ContentID).Msg("error encoding event")
				continue
			}
			_, err = fmt.Fprintf(w, "event: content\ndata: %s\n\n", data)
			if err != nil {
				return
			}
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			if _, err = fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		default:
			return
		}

		if err = rc.Flush(); err != nil {
			return
		}
	}
}

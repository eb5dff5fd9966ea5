package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/internal/utils"
	"github.com/MKhiriev/go-content-sync/models"
)

const bodyChecksumHeader = "X-Body-Checksum"

// withBodyChecksum verifies the body content of a create or edit request
// against the blake2b checksum sent in the X-Body-Checksum header. Requests
// without the header pass unchecked.
func (h *Handler) withBodyChecksum(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checksum := r.Header.Get(bodyChecksumHeader)
		if checksum == "" {
			next.ServeHTTP(w, r)
			return
		}

		log := logger.FromRequest(r)

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			log.Err(err).Str("func", "*Handler.withBodyChecksum").Msg("failed to read request body")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		// restore request body
		r.Body = io.NopCloser(bytes.NewReader(raw))

		var req struct {
			Body *models.Body `json:"body"`
		}
		if err = json.Unmarshal(raw, &req); err != nil {
			log.Err(err).Str("func", "*Handler.withBodyChecksum").Msg("failed to decode JSON")
			utils.WriteError(w, ErrInvalidJSON.Error(), http.StatusBadRequest)
			return
		}

		if req.Body == nil || !utils.VerifyChecksum(req.Body.Content, checksum) {
			log.Error().Str("func", "*Handler.withBodyChecksum").
				Str("checksum", checksum).
				Msg("body checksum mismatch")
			utils.WriteError(w, ErrChecksumMismatch.Error(), http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r)
	})
}

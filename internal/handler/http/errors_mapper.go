package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/MKhiriev/go-content-sync/internal/service"
	"github.com/MKhiriev/go-content-sync/internal/validators"
)

// errorStatuses is checked in order: specific errors come before the
// errors they wrap.
var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrContentNotFound, http.StatusNotFound},
	{service.ErrOperationNotFound, http.StatusNotFound},
	{service.ErrAlreadyPublic, http.StatusConflict},
	{service.ErrAlreadyPrivate, http.StatusConflict},
	{service.ErrNotPublic, http.StatusConflict},
	{service.ErrNothingToCancel, http.StatusConflict},
	{service.ErrInvalidState, http.StatusConflict},
	{service.ErrNotCancellable, http.StatusConflict},

	{service.ErrInvalidContent, http.StatusBadRequest},
	{validators.ErrNoFieldsToUpdate, http.StatusBadRequest},
	{validators.ErrConflictingEdit, http.StatusBadRequest},
	{validators.ErrInvalidContentID, http.StatusBadRequest},
	{ErrInvalidJSON, http.StatusBadRequest},
	{ErrInvalidQueryParam, http.StatusBadRequest},
	{ErrChecksumMismatch, http.StatusBadRequest},

	{service.ErrDeleteAborted, http.StatusBadGateway},
	{service.ErrOperationFailed, http.StatusBadGateway},
	{service.ErrPermanentRemoteFailure, http.StatusBadGateway},
	{service.ErrTransientRemoteFailure, http.StatusServiceUnavailable},
	{service.ErrOffline, http.StatusServiceUnavailable},
	{service.ErrOperationCancelled, http.StatusConflict},

	{context.DeadlineExceeded, http.StatusGatewayTimeout},
	{service.ErrStorageFailure, http.StatusInternalServerError},
}

func statusFromError(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

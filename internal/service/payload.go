package service

import (
	"github.com/MKhiriev/go-content-sync/internal/utils"
	"github.com/MKhiriev/go-content-sync/models"
)

// buildPayload snapshots r and its body into the typed remote payload. The
// same shape serves publish, update and unpublish.
func buildPayload(r models.ContentRecord, body models.Body) models.Payload {
	p := models.Payload{
		ContentID:   r.ID,
		Kind:        r.Kind,
		Title:       r.Title,
		Description: r.Description,
		Body: models.PayloadBody{
			Format:   body.Format,
			Content:  body.Content,
			Checksum: utils.Checksum(body.Content),
		},
		Version:     r.Version,
		UpdatedAt:   r.UpdatedAt,
		PublishedAt: r.PublishedAt,
	}

	if r.ConfirmedPublicID != "" {
		publicID := r.ConfirmedPublicID
		p.PublicID = &publicID
	}

	return p
}

// statusFor is the record status shown while an operation of kind is queued.
func statusFor(kind models.OperationKind) models.SyncStatus {
	switch kind {
	case models.OperationPublish:
		return models.SyncStatusPendingPublish
	case models.OperationUnpublish:
		return models.SyncStatusPendingUnpublish
	default:
		return models.SyncStatusPendingUpdate
	}
}

package http

import (
	"github.com/MKhiriev/go-content-sync/internal/service"
	"github.com/MKhiriev/go-content-sync/models"
)

type contentListResponse struct {
	Content []models.ContentRecord `json:"content"`
	Length  int                    `json:"length"`
}

type operationsResponse struct {
	Operations []models.SyncOperation `json:"operations"`
	Length     int                    `json:"length"`
}

type queueResponse struct {
	Online     bool                   `json:"online"`
	Stats      models.QueueStats      `json:"stats"`
	Operations []models.SyncOperation `json:"operations"`
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

type connectivityResponse struct {
	Online bool `json:"online"`
}

type syncResponse struct {
	Woken  bool                 `json:"woken,omitempty"`
	Result *service.DrainResult `json:"result,omitempty"`
}

type deleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

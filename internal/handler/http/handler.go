package http

import (
	"github.com/MKhiriev/go-content-sync/internal/config"
	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/internal/service"
)

type Handler struct {
	services *service.Services

	version string
	token   string

	logger *logger.Logger
}

func NewHandler(services *service.Services, cfg config.Server, version string, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		services: services,
		version:  version,
		token:    cfg.Token,
		logger:   logger,
	}
}

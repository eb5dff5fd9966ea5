package client

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/MKhiriev/go-content-sync/internal/adapter"
	"github.com/MKhiriev/go-content-sync/internal/config"
	"github.com/MKhiriev/go-content-sync/internal/handler"
	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/internal/server"
	"github.com/MKhiriev/go-content-sync/internal/service"
	"github.com/MKhiriev/go-content-sync/internal/store"
	"github.com/MKhiriev/go-content-sync/internal/workers"
)

type App struct {
	storages *store.Storages
	services *service.Services
	workers  *workers.Workers
	server   server.Server

	logger *logger.Logger
}

var _ Client = (*App)(nil)

// NewApp opens storage, applies migrations and binds the control API.
// Nothing runs until [App.Run].
func NewApp(ctx context.Context, cfg *config.StructuredConfig, logger *logger.Logger) (*App, error) {
	storages, err := store.NewStorages(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("create storages: %w", err)
	}

	transport, err := adapter.NewHTTPTransport(cfg.Adapter, logger)
	if err != nil {
		_ = storages.Close()
		return nil, fmt.Errorf("create transport: %w", err)
	}

	services := service.NewServices(storages, transport, cfg)

	handlers, err := handler.NewHandlers(services, cfg.Server, cfg.App.Version, logger)
	if err != nil {
		_ = storages.Close()
		return nil, fmt.Errorf("create handlers: %w", err)
	}

	srv, err := server.NewServer(handlers, cfg.Server, logger)
	if err != nil {
		_ = storages.Close()
		return nil, fmt.Errorf("create server: %w", err)
	}

	return &App{
		storages: storages,
		services: services,
		workers:  workers.NewWorkers(services),
		server:   srv,
		logger:   logger,
	}, nil
}

// Addr is the address of the control API.
func (a *App) Addr() net.Addr {
	return a.server.Addr()
}

// Run returns operations left in flight by a previous run to the queue,
// starts the workers and serves the control API until ctx ends. Storage is
// closed once everything has stopped.
func (a *App) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(a.logger.WithContext(ctx))
	defer cancel()

	defer func() {
		if closeErr := a.storages.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close storages: %w", closeErr))
		}
	}()

	recovered, err := a.services.Processor.Recover(ctx)
	if err != nil {
		_ = a.server.Shutdown(ctx)
		return fmt.Errorf("recover sync queue: %w", err)
	}
	a.logger.Info().Int64("recovered", recovered).Msg("sync queue recovered")

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		a.workers.Run(ctx)
	}()

	err = a.server.RunServer(ctx)

	cancel()
	<-workersDone

	if err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	a.logger.Info().Msg("app stopped")
	return nil
}

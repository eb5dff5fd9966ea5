package service

import (
	"time"

	"github.com/MKhiriev/go-content-sync/internal/adapter"
	"github.com/MKhiriev/go-content-sync/internal/cache"
	"github.com/MKhiriev/go-content-sync/internal/config"
	"github.com/MKhiriev/go-content-sync/internal/store"
	"github.com/MKhiriev/go-content-sync/internal/utils"
	"github.com/MKhiriev/go-content-sync/internal/validators"
	"github.com/MKhiriev/go-content-sync/models"
)

// Services groups the engine services built on one set of storages.
type Services struct {
	Content    ContentService
	Visibility VisibilityController
	Processor  SyncProcessor
	SyncJob    SyncJob
	Events     *EventBroker
}

// NewServices wires the engine: one body cache, one event broker and one
// set of record locks shared by every service. The processor starts online.
func NewServices(storages *store.Storages, transport adapter.Transport, cfg *config.StructuredConfig) *Services {
	return newServices(storages, transport, cfg, time.Now, utils.NewUUIDGenerator())
}

func newServices(storages *store.Storages, transport adapter.Transport, cfg *config.StructuredConfig, now func() time.Time, ids IDGenerator) *Services {
	lru := cache.NewLRU[string, models.Body](cfg.Engine.CacheCapacity, now)
	hydrator := cache.NewBodyHydrator(lru, storages.Bodies)

	events := NewEventBroker()
	waiters := newOperationWaiters()
	locks := newKeyedMutex()
	validator := validators.NewContentValidator()

	controller := &visibilityController{
		contents:  storages.Contents,
		queue:     storages.Queue,
		bodies:    hydrator,
		events:    events,
		waiters:   waiters,
		locks:     locks,
		validator: validator,
		ids:       ids,
		now:       now,
	}

	processor := &syncProcessor{
		queue:           storages.Queue,
		contents:        storages.Contents,
		transport:       transport,
		controller:      controller,
		waiters:         waiters,
		cfg:             cfg.Engine,
		dispatchTimeout: cfg.Adapter.RequestTimeout,
		now:             now,
	}
	processor.online.Store(true)

	job := NewSyncJob(processor, cfg.Workers)
	controller.notify = job.Wake
	processor.wake = job.Wake

	content := &contentService{
		contents:      storages.Contents,
		bodies:        storages.Bodies,
		queue:         storages.Queue,
		hydrator:      hydrator,
		controller:    controller,
		events:        events,
		locks:         locks,
		validator:     validator,
		ids:           ids,
		now:           now,
		autoPropagate: cfg.Engine.AutoPropagate,
	}

	return &Services{
		Content:    content,
		Visibility: controller,
		Processor:  processor,
		SyncJob:    job,
		Events:     events,
	}
}

package workers

import (
	"context"
	"sync"

	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/internal/service"
)

type Workers struct {
	workers []Worker
}

// NewWorkers builds the daemon's workers: the sync job that drains the
// queue and purges old entries.
func NewWorkers(services *service.Services) *Workers {
	return &Workers{workers: []Worker{
		&syncWorker{job: services.SyncJob},
	}}
}

// Run starts every worker and blocks until all of them have returned.
func (w *Workers) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, worker := range w.workers {
		wg.Go(func() {
			worker.Run(ctx)
		})
	}
	wg.Wait()
}

// syncWorker ties the sync job's lifetime to ctx.
type syncWorker struct {
	job service.SyncJob
}

func (s *syncWorker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)

	s.job.Start(ctx)
	log.Info().Str("func", "syncWorker.Run").Msg("sync job started")

	<-ctx.Done()

	s.job.Stop()
	log.Info().Str("func", "syncWorker.Run").Msg("sync job stopped")
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MKhiriev/go-content-sync/internal/config"
	"github.com/MKhiriev/go-content-sync/internal/logger"
)

const (
	defaultSyncInterval  = 10 * time.Second
	defaultPurgeInterval = time.Hour
)

type syncJob struct {
	processor SyncProcessor

	interval      time.Duration
	purgeInterval time.Duration
	wake          chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncJob creates a syncJob that drains the queue on a ticker and on
// every Wake, and purges old terminal entries on a slower ticker. The job
// is idle until Start is called.
func NewSyncJob(processor SyncProcessor, cfg config.Workers) SyncJob {
	j := &syncJob{
		processor:     processor,
		interval:      cfg.SyncInterval,
		purgeInterval: cfg.PurgeInterval,
		wake:          make(chan struct{}, 1),
	}
	if j.interval <= 0 {
		j.interval = defaultSyncInterval
	}
	if j.purgeInterval <= 0 {
		j.purgeInterval = defaultPurgeInterval
	}
	return j
}

// Start stops any previously running job, then launches a background
// goroutine that drains once immediately and then on every tick or wake. The
// goroutine exits when ctx is cancelled or Stop is called.
func (j *syncJob) Start(ctx context.Context) {
	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()

		t := time.NewTicker(j.interval)
		defer t.Stop()
		purge := time.NewTicker(j.purgeInterval)
		defer purge.Stop()

		j.drain(jobCtx)

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				j.drain(jobCtx)
			case <-j.wake:
				j.drain(jobCtx)
			case <-purge.C:
				j.purge(jobCtx)
			}
		}
	}()
}

// Stop cancels the background goroutine and blocks until it has exited. An
// in-flight dispatch is released back to pending. Safe to call when the job
// is not running.
func (j *syncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

func (j *syncJob) Wake() {
	select {
	case j.wake <- struct{}{}:
	default:
	}
}

func (j *syncJob) drain(ctx context.Context) {
	if !j.processor.Online() {
		return
	}

	if _, err := j.processor.Drain(ctx); err != nil &&
		!errors.Is(err, ErrOffline) && !errors.Is(err, context.Canceled) {
		logger.FromContext(ctx).Err(err).Str("func", "syncJob.drain").Msg("drain failed")
	}
}

func (j *syncJob) purge(ctx context.Context) {
	n, err := j.processor.Purge(ctx)
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "syncJob.purge").Msg("purge failed")
		return
	}
	if n > 0 {
		logger.FromContext(ctx).Info().
			Str("func", "syncJob.purge").
			Int64("purged", n).
			Msg("terminal operations purged")
	}
}

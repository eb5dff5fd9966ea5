package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MKhiriev/go-content-sync/internal/store"
	"github.com/MKhiriev/go-content-sync/models"
)

// operationWaiters lets callers block until an operation reaches a terminal
// state. The processor resolves an operation after its outcome is durable.
type operationWaiters struct {
	mu      sync.Mutex
	waiting map[string][]chan error
}

func newOperationWaiters() *operationWaiters {
	return &operationWaiters{waiting: make(map[string][]chan error)}
}

func (w *operationWaiters) register(opID string) chan error {
	ch := make(chan error, 1)

	w.mu.Lock()
	w.waiting[opID] = append(w.waiting[opID], ch)
	w.mu.Unlock()

	return ch
}

func (w *operationWaiters) unregister(opID string, ch chan error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	chans := w.waiting[opID]
	for i, c := range chans {
		if c == ch {
			chans = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(chans) == 0 {
		delete(w.waiting, opID)
		return
	}
	w.waiting[opID] = chans
}

// resolve delivers outcome to every waiter of opID. A nil outcome means done.
func (w *operationWaiters) resolve(opID string, outcome error) {
	w.mu.Lock()
	chans := w.waiting[opID]
	delete(w.waiting, opID)
	w.mu.Unlock()

	for _, ch := range chans {
		ch <- outcome
	}
}

// wait blocks until opID is terminal or ctx ends. Registration happens
// before the durable state is read, so an outcome resolved in between is
// not lost.
func (w *operationWaiters) wait(ctx context.Context, queue store.SyncQueueRepository, opID string) error {
	ch := w.register(opID)
	defer w.unregister(opID, ch)

	op, err := queue.Get(ctx, opID)
	if err != nil {
		return mapStoreError(err)
	}
	if op.Status.IsTerminal() {
		return outcomeOf(op)
	}

	select {
	case outcome := <-ch:
		return outcome
	case <-ctx.Done():
		return ctx.Err()
	}
}

// outcomeOf converts a terminal operation into the error its waiters get.
func outcomeOf(op models.SyncOperation) error {
	switch op.Status {
	case models.OperationDone:
		return nil
	case models.OperationCancelled:
		return ErrOperationCancelled
	case models.OperationFailed:
		if op.LastError == "" {
			return ErrOperationFailed
		}
		return fmt.Errorf("%w: %w", ErrOperationFailed, errors.New(op.LastError))
	}
	return fmt.Errorf("%w: operation %s is %s", ErrInvalidState, op.ID, op.Status)
}

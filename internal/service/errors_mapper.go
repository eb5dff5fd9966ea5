// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-content-sync/internal/adapter"
	"github.com/MKhiriev/go-content-sync/internal/store"
)

// mapAdapterError translates the transport's error into a sync outcome error.
// Anything the adapter did not classify is treated as transient.
func mapAdapterError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case adapter.IsPermanent(err):
		return fmt.Errorf("%w: %w", ErrPermanentRemoteFailure, err)
	case adapter.IsTransient(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTransientRemoteFailure, err)
	}

	return fmt.Errorf("%w: %w", ErrTransientRemoteFailure, err)
}

// mapStoreError translates a repository error into a service error.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrContentNotFound):
		return ErrContentNotFound
	case errors.Is(err, store.ErrOperationNotFound):
		return ErrOperationNotFound
	case errors.Is(err, store.ErrNotCancellable):
		return ErrNotCancellable
	}

	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}

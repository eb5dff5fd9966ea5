package service

import (
	"errors"
	"fmt"
)

// Domain errors returned by the engine services. Callers match them with
// [errors.Is]; the HTTP layer maps them to status codes.
var (
	// ErrInvalidState is returned when a request does not make sense for
	// the current state of the record.
	ErrInvalidState = errors.New("invalid state")

	ErrContentNotFound = fmt.Errorf("%w: content not found", ErrInvalidState)
	ErrAlreadyPublic   = fmt.Errorf("%w: content is already public", ErrInvalidState)
	ErrAlreadyPrivate  = fmt.Errorf("%w: content is already private", ErrInvalidState)
	ErrNotPublic       = fmt.Errorf("%w: content is neither public nor being published", ErrInvalidState)
	ErrNothingToCancel = fmt.Errorf("%w: no pending operation to cancel", ErrInvalidState)

	// ErrNotCancellable is returned when the only operation of a record was
	// already handed to the transport.
	ErrNotCancellable = errors.New("operation is in flight and cannot be cancelled")

	ErrInvalidContent    = errors.New("invalid content")
	ErrOperationNotFound = errors.New("operation not found")

	// ErrUpdateNotQueued is returned by Edit when the edit was stored but
	// the update of the public copy could not be queued.
	ErrUpdateNotQueued = errors.New("edit saved but the update was not queued")
)

// Sync outcome errors.
var (
	ErrTransientRemoteFailure = errors.New("transient remote failure")
	ErrPermanentRemoteFailure = errors.New("permanent remote failure")
	ErrStorageFailure         = errors.New("storage failure")

	// ErrDeleteAborted is returned by Delete when the unpublish that had to
	// precede the deletion failed terminally. The record is kept.
	ErrDeleteAborted = errors.New("delete aborted")

	ErrOperationFailed    = errors.New("operation failed")
	ErrOperationCancelled = errors.New("operation cancelled")

	// ErrOffline is returned by Drain while connectivity is switched off.
	ErrOffline = errors.New("engine is offline")

	ErrSubscriptionClosed = errors.New("subscription closed")
)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"time"
)

// OperationKind is the intent carried by a queued [SyncOperation].
type OperationKind string

const (
	OperationPublish   OperationKind = "publish"
	OperationUnpublish OperationKind = "unpublish"
	OperationUpdate    OperationKind = "update"
)

// OperationStatus is the lifecycle state of a [SyncOperation].
//
// pending and in_flight are the live states. held marks a superseding intent
// waiting for the in-flight operation of the same content to resolve; it is
// promoted to pending afterwards. failed, done and cancelled are terminal.
type OperationStatus string

const (
	OperationPending   OperationStatus = "pending"
	OperationInFlight  OperationStatus = "in_flight"
	OperationHeld      OperationStatus = "held"
	OperationFailed    OperationStatus = "failed"
	OperationDone      OperationStatus = "done"
	OperationCancelled OperationStatus = "cancelled"
)

// IsLive reports whether the status counts towards the one-live-operation
// per content limit.
func (s OperationStatus) IsLive() bool {
	return s == OperationPending || s == OperationInFlight
}

// IsTerminal reports whether the operation can no longer change.
func (s OperationStatus) IsTerminal() bool {
	return s == OperationFailed || s == OperationDone || s == OperationCancelled
}

// SyncOperation is one queued intent against the remote service.
type SyncOperation struct {
	ID        string          `json:"id"`
	ContentID string          `json:"content_id"`
	Kind      OperationKind   `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Status    OperationStatus `json:"status"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`

	// DeleteAfter asks the processor to remove the content locally once an
	// unpublish reaches done.
	DeleteAfter bool `json:"delete_after"`
	// BaseVersion is the record version the payload snapshot was built from.
	BaseVersion int64 `json:"base_version"`

	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
}

// OperationHandle is returned by enqueue and tells the caller what happened
// to the intent.
type OperationHandle struct {
	OperationID string          `json:"operation_id"`
	ContentID   string          `json:"content_id"`
	Kind        OperationKind   `json:"kind"`
	Status      OperationStatus `json:"status"`
	// Coalesced is true when the intent replaced an existing entry.
	Coalesced bool `json:"coalesced"`
	// Cancelled is true when the intent cancelled out the existing entry,
	// leaving nothing to send.
	Cancelled bool `json:"cancelled"`
}

// QueueStats summarizes the queue by status.
type QueueStats map[OperationStatus]int

// Coalesce merges an incoming intent into an existing non-dispatched one for
// the same content. It returns the resulting kind and whether the two intents
// cancel each other out.
func Coalesce(existing, incoming OperationKind) (OperationKind, bool) {
	switch existing {
	case OperationPublish:
		switch incoming {
		case OperationUnpublish:
			return "", true
		case OperationUpdate, OperationPublish:
			return OperationPublish, false
		}
	case OperationUnpublish:
		switch incoming {
		case OperationPublish:
			return "", true
		case OperationUpdate, OperationUnpublish:
			return OperationUnpublish, false
		}
	case OperationUpdate:
		switch incoming {
		case OperationUnpublish:
			return OperationUnpublish, false
		case OperationUpdate, OperationPublish:
			return OperationUpdate, false
		}
	}
	return incoming, false
}

// OperationFilter narrows queue listings. Zero values mean "any".
type OperationFilter struct {
	ContentID string
	Statuses  []OperationStatus
	Limit     uint64
}

package models

import (
	"encoding/json"
	"time"
)

// RemoteRequest is what the transport sends for one operation.
type RemoteRequest struct {
	// OperationID doubles as the idempotency key of the request.
	OperationID string          `json:"operation_id"`
	Kind        OperationKind   `json:"kind"`
	ContentID   string          `json:"content_id"`
	PublicID    string          `json:"public_id,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// ConfirmedState is the remote service's authoritative answer to a request.
type ConfirmedState struct {
	ContentID   string     `json:"content_id"`
	Visibility  Visibility `json:"visibility"`
	PublicID    string     `json:"public_id"`
	PublishedAt *time.Time `json:"published_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	Title       string     `json:"title"`
	// Conflict is set when the remote resolved a concurrent edit with
	// last-write-wins.
	Conflict bool `json:"conflict"`
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"time"
)

// Payload is the snapshot sent to the remote service for publish, update and
// unpublish alike. Every field is always serialized: optional values are
// pointers without omitempty so that an absent value is an explicit null, and
// the key set never changes between the first publish and later updates.
type Payload struct {
	ContentID   string      `json:"content_id"`
	Kind        Kind        `json:"kind"`
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	Body        PayloadBody `json:"body"`
	Version     int64       `json:"version"`
	UpdatedAt   time.Time   `json:"updated_at"`
	// PublicID is null until the remote has confirmed a publish.
	PublicID    *string    `json:"public_id"`
	PublishedAt *time.Time `json:"published_at"`
}

// PayloadBody is the body part of a [Payload].
type PayloadBody struct {
	Format   BodyFormat `json:"format"`
	Content  string     `json:"content"`
	Checksum string     `json:"checksum"`
}

// Marshal encodes p for storage in the sync queue.
func (p Payload) Marshal() (json.RawMessage, error) {
	return json.Marshal(p)
}

// DecodePayload decodes a queued payload.
func DecodePayload(raw json.RawMessage) (Payload, error) {
	var p Payload
	err := json.Unmarshal(raw, &p)
	return p, err
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"fmt"
	"time"
)

// Kind is the closed set of content types the engine knows how to sync.
type Kind string

const (
	KindChecklist Kind = "checklist"
	KindGuide     Kind = "guide"
	KindDeck      Kind = "deck"
	KindNote      Kind = "note"
)

// Valid reports whether k is one of the known content kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindChecklist, KindGuide, KindDeck, KindNote:
		return true
	}
	return false
}

// ParseKind converts s into a [Kind], returning an error for unknown values.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown content kind %q", s)
	}
	return k, nil
}

// Visibility tells whether a content item is local-only or discoverable remotely.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// SyncStatus is the reconciliation state of a record relative to the remote service.
type SyncStatus string

const (
	SyncStatusSynced           SyncStatus = "synced"
	SyncStatusPendingPublish   SyncStatus = "pending_publish"
	SyncStatusPendingUnpublish SyncStatus = "pending_unpublish"
	SyncStatusPendingUpdate    SyncStatus = "pending_update"
	SyncStatusFailed           SyncStatus = "failed"
)

// IsPending reports whether s is one of the pending states.
func (s SyncStatus) IsPending() bool {
	switch s {
	case SyncStatusPendingPublish, SyncStatusPendingUnpublish, SyncStatusPendingUpdate:
		return true
	}
	return false
}

// ContentRecord is the metadata row of one piece of user content.
//
// Visibility, ConfirmedPublicID and PublishedAt always hold the last values
// confirmed by the remote service. PublicID is derived from them by
// [ContentRecord.Normalize] and is non-empty only while the record is public
// and synced.
type ContentRecord struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"kind"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	BodyRef     string  `json:"body_ref"`

	Visibility        Visibility `json:"visibility"`
	PublicID          string     `json:"public_id,omitempty"`
	ConfirmedPublicID string     `json:"-"`
	SyncStatus        SyncStatus `json:"sync_status"`

	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Version is bumped on every local content mutation. It is used for
	// conflict detection only; ordering uses UpdatedAt.
	Version int64 `json:"version"`

	// Conflict is raised when the remote reported that it resolved a
	// concurrent edit with last-write-wins.
	Conflict  bool   `json:"conflict"`
	LastError string `json:"last_error,omitempty"`
}

// Normalize recomputes the derived PublicID so that it is present iff the
// record is public and synced. Every write of a record goes through it.
func (r ContentRecord) Normalize() ContentRecord {
	if r.Visibility == VisibilityPublic && r.SyncStatus == SyncStatusSynced && r.ConfirmedPublicID != "" {
		r.PublicID = r.ConfirmedPublicID
	} else {
		r.PublicID = ""
	}
	if r.Visibility == VisibilityPrivate {
		r.ConfirmedPublicID = ""
	}
	return r
}

// WithStatus returns a normalized copy of r carrying status s.
func (r ContentRecord) WithStatus(s SyncStatus) ContentRecord {
	r.SyncStatus = s
	return r.Normalize()
}

// Touch bumps the version and moves UpdatedAt forward, never backwards.
func (r ContentRecord) Touch(now time.Time) ContentRecord {
	r.Version++
	if now.After(r.UpdatedAt) {
		r.UpdatedAt = now
	}
	return r
}

// ContentFilter narrows [ContentRecord] listings. Zero values mean "any".
type ContentFilter struct {
	Kinds        []Kind
	Visibility   Visibility
	Statuses     []SyncStatus
	UpdatedSince *time.Time
	Limit        uint64
	Offset       uint64
}

// Draft is the authoring input for a new content item.
type Draft struct {
	Kind        Kind    `json:"kind"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Body        Body    `json:"body"`
}

// ContentEdit carries a partial local edit. Nil fields are left unchanged.
type ContentEdit struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	// ClearDescription removes the description; it wins over Description.
	ClearDescription bool  `json:"clear_description,omitempty"`
	Body             *Body `json:"body,omitempty"`
}

// Content is a record together with its hydrated body.
type Content struct {
	Record ContentRecord `json:"record"`
	Body   Body          `json:"body"`
}

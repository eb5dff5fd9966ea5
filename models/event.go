package models

import "time"

// Event is published whenever the sync status or visibility of a record
// changes. Delivery is at-least-once, consumers must tolerate duplicates.
type Event struct {
	ContentID  string     `json:"content_id"`
	SyncStatus SyncStatus `json:"sync_status"`
	Visibility Visibility `json:"visibility"`
	PublicID   string     `json:"public_id,omitempty"`
	// Deleted is set once the record has been removed locally.
	Deleted bool      `json:"deleted,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// EventFromRecord builds the event describing r's current state.
func EventFromRecord(r ContentRecord, at time.Time) Event {
	return Event{
		ContentID:  r.ID,
		SyncStatus: r.SyncStatus,
		Visibility: r.Visibility,
		PublicID:   r.PublicID,
		Error:      r.LastError,
		At:         at,
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/go-content-sync/models"
)

var contentColumns = []string{
	"id", "kind", "title", "description", "body_ref",
	"visibility", "public_id", "confirmed_public_id", "sync_status",
	"published_at", "created_at", "updated_at", "version", "conflict", "last_error",
}

var operationColumns = []string{
	"id", "content_id", "kind", "payload", "status", "attempt", "last_error",
	"delete_after", "base_version", "created_at", "updated_at", "next_attempt_at",
}

const (
	upsertContent = `
		INSERT INTO contents (
			id, kind, title, description, body_ref,
			visibility, public_id, confirmed_public_id, sync_status,
			published_at, created_at, updated_at, version, conflict, last_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind                = excluded.kind,
			title               = excluded.title,
			description         = excluded.description,
			body_ref            = excluded.body_ref,
			visibility          = excluded.visibility,
			public_id           = excluded.public_id,
			confirmed_public_id = excluded.confirmed_public_id,
			sync_status         = excluded.sync_status,
			published_at        = excluded.published_at,
			updated_at          = excluded.updated_at,
			version             = excluded.version,
			conflict            = excluded.conflict,
			last_error          = excluded.last_error;`

	getContent = `
		SELECT
			id, kind, title, description, body_ref,
			visibility, public_id, confirmed_public_id, sync_status,
			published_at, created_at, updated_at, version, conflict, last_error
		FROM contents
		WHERE id = ?;`

	deleteContent = `DELETE FROM contents WHERE id = ?;`

	upsertBody = `
		INSERT INTO bodies (content_id, format, content, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_id) DO UPDATE SET
			format     = excluded.format,
			content    = excluded.content,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at;`

	getBody = `SELECT format, content, checksum, updated_at FROM bodies WHERE content_id = ?;`

	deleteBody = `DELETE FROM bodies WHERE content_id = ?;`

	selectOperation = `
		SELECT
			id, content_id, kind, payload, status, attempt, last_error,
			delete_after, base_version, created_at, updated_at, next_attempt_at
		FROM sync_operations`

	getOperation = selectOperation + ` WHERE id = ?;`

	getLiveOperation = selectOperation + ` WHERE content_id = ? AND status IN ('pending', 'in_flight');`

	getHeldOperation = selectOperation + ` WHERE content_id = ? AND status = 'held';`

	insertOperation = `
		INSERT INTO sync_operations (
			id, content_id, kind, payload, status, attempt, last_error,
			delete_after, base_version, created_at, updated_at, next_attempt_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	// the merged entry keeps created_at, and with it its place in the FIFO
	coalesceOperation = `
		UPDATE sync_operations
		SET kind = ?, payload = ?, delete_after = ?, base_version = ?, updated_at = ?
		WHERE id = ?;`

	setOperationStatus = `
		UPDATE sync_operations
		SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ?;`

	retryOperation = `
		UPDATE sync_operations
		SET status = 'pending', attempt = ?, next_attempt_at = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status = 'in_flight';`

	cancelOperation = `
		UPDATE sync_operations
		SET status = 'cancelled', last_error = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'held');`

	promoteOperation = `
		UPDATE sync_operations
		SET status = 'pending', payload = ?, base_version = ?, updated_at = ?, next_attempt_at = ?
		WHERE id = ? AND status = 'held';`

	recoverInFlight = `
		UPDATE sync_operations
		SET status = 'pending', updated_at = ?
		WHERE status = 'in_flight';`

	purgeTerminal = `
		DELETE FROM sync_operations
		WHERE status IN ('done', 'failed', 'cancelled') AND updated_at < ?;`

	operationStats = `SELECT status, COUNT(*) FROM sync_operations GROUP BY status;`
)

func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// buildListContentQuery renders the filtered content listing.
func buildListContentQuery(filter models.ContentFilter) (string, []any, error) {
	q := builder().
		Select(contentColumns...).
		From("contents").
		OrderBy("updated_at DESC", "id ASC")

	if len(filter.Kinds) > 0 {
		kinds := make([]string, 0, len(filter.Kinds))
		for _, k := range filter.Kinds {
			kinds = append(kinds, string(k))
		}
		q = q.Where(sq.Eq{"kind": kinds})
	}
	if filter.Visibility != "" {
		q = q.Where(sq.Eq{"visibility": string(filter.Visibility)})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where(sq.Eq{"sync_status": statuses})
	}
	if filter.UpdatedSince != nil {
		q = q.Where(sq.GtOrEq{"updated_at": toNanos(*filter.UpdatedSince)})
	}

	q = withPaging(q, filter.Limit, filter.Offset)

	return q.ToSql()
}

// buildDueOperationsQuery selects pending entries whose retry time has come,
// oldest first.
func buildDueOperationsQuery(max int, now time.Time) (string, []any, error) {
	q := builder().
		Select(operationColumns...).
		From("sync_operations").
		Where(sq.Eq{"status": string(models.OperationPending)}).
		Where(sq.LtOrEq{"next_attempt_at": toNanos(now)}).
		OrderBy("created_at ASC", "id ASC")

	if max > 0 {
		q = q.Limit(uint64(max))
	}

	return q.ToSql()
}

// buildListOperationsQuery renders the filtered queue listing in FIFO order.
func buildListOperationsQuery(filter models.OperationFilter) (string, []any, error) {
	q := builder().
		Select(operationColumns...).
		From("sync_operations").
		OrderBy("created_at ASC", "id ASC")

	if filter.ContentID != "" {
		q = q.Where(sq.Eq{"content_id": filter.ContentID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where(sq.Eq{"status": statuses})
	}

	q = withPaging(q, filter.Limit, 0)

	return q.ToSql()
}

// SQLite rejects OFFSET without LIMIT.
func withPaging(q sq.SelectBuilder, limit, offset uint64) sq.SelectBuilder {
	if offset > 0 && limit == 0 {
		limit = math.MaxInt64
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

// Timestamps are stored as UTC unix nanoseconds so that ordering is exact.
// The zero time maps to 0.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

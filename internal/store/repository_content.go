package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/models"
)

// contentRepository is the SQLite-backed implementation of
// [ContentRepository] working on the "contents" table.
type contentRepository struct {
	*DB
	logger *logger.Logger
}

// NewContentRepository constructs a [ContentRepository] backed by db.
func NewContentRepository(db *DB, logger *logger.Logger) ContentRepository {
	return &contentRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *contentRepository) Get(ctx context.Context, id string) (models.ContentRecord, error) {
	log := logger.FromContext(ctx)

	record, err := scanContent(r.DB.QueryRowContext(ctx, getContent, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ContentRecord{}, fmt.Errorf("%w: id=%s", ErrContentNotFound, id)
	}
	if err != nil {
		log.Err(err).
			Str("func", "contentRepository.Get").
			Str("content_id", id).
			Msg("failed to scan content row")
		return models.ContentRecord{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return record, nil
}

// Upsert writes the normalized record. PublicID is always recomputed from
// visibility, status and the confirmed public id before it hits the table.
func (r *contentRepository) Upsert(ctx context.Context, record models.ContentRecord) error {
	log := logger.FromContext(ctx)

	record = record.Normalize()

	var description sql.NullString
	if record.Description != nil {
		description = sql.NullString{String: *record.Description, Valid: true}
	}
	var publishedAt sql.NullInt64
	if record.PublishedAt != nil {
		publishedAt = sql.NullInt64{Int64: toNanos(*record.PublishedAt), Valid: true}
	}

	_, err := r.DB.ExecContext(ctx, upsertContent,
		record.ID,
		string(record.Kind),
		record.Title,
		description,
		record.BodyRef,
		string(record.Visibility),
		record.PublicID,
		record.ConfirmedPublicID,
		string(record.SyncStatus),
		publishedAt,
		toNanos(record.CreatedAt),
		toNanos(record.UpdatedAt),
		record.Version,
		record.Conflict,
		record.LastError,
	)
	if err != nil {
		log.Err(err).
			Str("func", "contentRepository.Upsert").
			Str("content_id", record.ID).
			Msg("failed to execute upsert for content")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *contentRepository) List(ctx context.Context, filter models.ContentFilter) ([]models.ContentRecord, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildListContentQuery(filter)
	if err != nil {
		log.Err(err).Str("func", "contentRepository.List").Msg("failed to create query")
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "contentRepository.List").Msg("failed to execute query for listing content")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	results := make([]models.ContentRecord, 0, 16)
	for rows.Next() {
		record, scanErr := scanContent(rows)
		if scanErr != nil {
			log.Err(scanErr).Str("func", "contentRepository.List").Msg("failed to scan content row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, scanErr)
		}
		results = append(results, record)
	}

	if err = rows.Err(); err != nil {
		log.Err(err).Str("func", "contentRepository.List").Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return results, nil
}

func (r *contentRepository) Delete(ctx context.Context, id string) error {
	log := logger.FromContext(ctx)

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteBody, id); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		if _, err := tx.ExecContext(ctx, deleteContent, id); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		return nil
	})
	if err != nil {
		log.Err(err).
			Str("func", "contentRepository.Delete").
			Str("content_id", id).
			Msg("failed to delete content")
		return err
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (models.ContentRecord, error) {
	var (
		record      models.ContentRecord
		kind        string
		visibility  string
		status      string
		description sql.NullString
		publishedAt sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)

	err := row.Scan(
		&record.ID,
		&kind,
		&record.Title,
		&description,
		&record.BodyRef,
		&visibility,
		&record.PublicID,
		&record.ConfirmedPublicID,
		&status,
		&publishedAt,
		&createdAt,
		&updatedAt,
		&record.Version,
		&record.Conflict,
		&record.LastError,
	)
	if err != nil {
		return models.ContentRecord{}, err
	}

	record.Kind = models.Kind(kind)
	record.Visibility = models.Visibility(visibility)
	record.SyncStatus = models.SyncStatus(status)
	if description.Valid {
		d := description.String
		record.Description = &d
	}
	if publishedAt.Valid {
		t := fromNanos(publishedAt.Int64)
		record.PublishedAt = &t
	}
	record.CreatedAt = fromNanos(createdAt)
	record.UpdatedAt = fromNanos(updatedAt)

	return record, nil
}

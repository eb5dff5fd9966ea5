package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/models"
)

type bodyRepository struct {
	*DB
	logger *logger.Logger
}

// NewBodyRepository constructs a [BodyRepository] backed by the "bodies"
// table.
func NewBodyRepository(db *DB, logger *logger.Logger) BodyRepository {
	return &bodyRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *bodyRepository) GetBody(ctx context.Context, contentID string) (models.Body, error) {
	log := logger.FromContext(ctx)

	var (
		body      models.Body
		format    string
		updatedAt int64
	)
	err := r.DB.QueryRowContext(ctx, getBody, contentID).Scan(&format, &body.Content, &body.Checksum, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Body{}, fmt.Errorf("%w: content_id=%s", ErrBodyNotFound, contentID)
	}
	if err != nil {
		log.Err(err).
			Str("func", "bodyRepository.GetBody").
			Str("content_id", contentID).
			Msg("failed to scan body row")
		return models.Body{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	body.Format = models.BodyFormat(format)
	body.UpdatedAt = fromNanos(updatedAt)

	return body, nil
}

func (r *bodyRepository) SaveBody(ctx context.Context, contentID string, body models.Body) error {
	log := logger.FromContext(ctx)

	_, err := r.DB.ExecContext(ctx, upsertBody,
		contentID,
		string(body.Format),
		body.Content,
		body.Checksum,
		toNanos(body.UpdatedAt),
	)
	if err != nil {
		log.Err(err).
			Str("func", "bodyRepository.SaveBody").
			Str("content_id", contentID).
			Msg("failed to save body")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *bodyRepository) DeleteBody(ctx context.Context, contentID string) error {
	log := logger.FromContext(ctx)

	if _, err := r.DB.ExecContext(ctx, deleteBody, contentID); err != nil {
		log.Err(err).
			Str("func", "bodyRepository.DeleteBody").
			Str("content_id", contentID).
			Msg("failed to delete body")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

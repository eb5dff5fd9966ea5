package cache

import (
	"context"

	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/models"
)

// BodySource loads a body from durable storage.
type BodySource interface {
	GetBody(ctx context.Context, contentID string) (models.Body, error)
}

// BodyHydrator serves content bodies from an [LRU], falling through to the
// body store on a miss.
type BodyHydrator struct {
	cache  *LRU[string, models.Body]
	source BodySource
}

func NewBodyHydrator(cache *LRU[string, models.Body], source BodySource) *BodyHydrator {
	return &BodyHydrator{cache: cache, source: source}
}

// Load returns the body of contentID. Errors come from the body store only.
func (h *BodyHydrator) Load(ctx context.Context, contentID string) (models.Body, error) {
	if body, ok := h.cache.Get(contentID); ok {
		return body, nil
	}

	body, err := h.source.GetBody(ctx, contentID)
	if err != nil {
		return models.Body{}, err
	}

	logger.FromContext(ctx).Debug().
		Str("func", "BodyHydrator.Load").
		Str("content_id", contentID).
		Msg("body cache miss, hydrated from store")

	h.cache.Set(contentID, body)
	return body, nil
}

// Store puts a freshly written body into the cache.
func (h *BodyHydrator) Store(contentID string, body models.Body) {
	h.cache.Set(contentID, body)
}

// Invalidate drops the cached body of contentID.
func (h *BodyHydrator) Invalidate(contentID string) {
	h.cache.Invalidate(contentID)
}

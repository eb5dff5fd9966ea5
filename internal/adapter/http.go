package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/go-content-sync/internal/config"
	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/internal/utils"
	"github.com/MKhiriev/go-content-sync/models"
	"github.com/go-resty/resty/v2"
)

const (
	contentPath        = "/api/v1/content"
	contentByPublicID  = "/api/v1/content/{publicID}"
	idempotencyKeyName = "Idempotency-Key"
)

type httpTransport struct {
	client *utils.HTTPClient

	mu    sync.RWMutex
	token string

	now    func() time.Time
	logger *logger.Logger
}

// NewHTTPTransport constructs an HTTP/REST implementation of [Transport].
// It normalises and validates the base URL from adapterCfg.HTTPAddress and
// configures the underlying HTTP client with the resolved base URL and
// request timeout.
//
// Returns an error if adapterCfg.HTTPAddress is empty or cannot be parsed as a
// valid URL.
func NewHTTPTransport(adapterCfg config.Adapter, logger *logger.Logger) (Transport, error) {
	baseURL, err := normalizeBaseURL(adapterCfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	return &httpTransport{
		client: utils.NewHTTPClient(baseURL, adapterCfg.RequestTimeout),
		token:  strings.TrimSpace(adapterCfg.Token),
		now:    time.Now,
		logger: logger,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken implements [Transport]. It stores token (whitespace-trimmed) for
// use in the Authorization header of all subsequent requests.
func (h *httpTransport) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

func (h *httpTransport) currentToken() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Send implements [Transport].
//
//   - publish:   POST   /api/v1/content
//   - update:    PUT    /api/v1/content/{publicID}
//   - unpublish: DELETE /api/v1/content/{publicID}
//
// The operation id travels in the Idempotency-Key header. An expired bearer
// token fails permanently without a request being made.
func (h *httpTransport) Send(ctx context.Context, req models.RemoteRequest) (models.ConfirmedState, error) {
	log := logger.FromContext(ctx)

	token := h.currentToken()
	if utils.IsTokenExpired(token, h.now()) {
		log.Warn().
			Str("func", "httpTransport.Send").
			Str("operation_id", req.OperationID).
			Msg("bearer token expired, request not sent")
		return models.ConfirmedState{}, permanent(0, fmt.Errorf("%w: %w", ErrUnauthorized, ErrTokenExpired))
	}

	r := h.client.R().
		SetContext(ctx).
		SetHeader(idempotencyKeyName, req.OperationID)
	if token != "" {
		r.SetAuthToken(token)
	}

	var (
		resp *resty.Response
		err  error
	)
	switch req.Kind {
	case models.OperationPublish:
		resp, err = r.
			SetHeader("Content-Type", "application/json").
			SetBody([]byte(req.Payload)).
			Post(contentPath)
	case models.OperationUpdate:
		if req.PublicID == "" {
			return models.ConfirmedState{}, permanent(0, ErrMissingPublicID)
		}
		resp, err = r.
			SetHeader("Content-Type", "application/json").
			SetBody([]byte(req.Payload)).
			SetPathParam("publicID", req.PublicID).
			Put(contentByPublicID)
	case models.OperationUnpublish:
		if req.PublicID == "" {
			return models.ConfirmedState{}, permanent(0, ErrMissingPublicID)
		}
		resp, err = r.
			SetPathParam("publicID", req.PublicID).
			Delete(contentByPublicID)
	default:
		return models.ConfirmedState{}, permanent(0, fmt.Errorf("%w: %q", ErrUnsupportedKind, req.Kind))
	}
	if err != nil {
		log.Err(err).
			Str("func", "httpTransport.Send").
			Str("operation_id", req.OperationID).
			Str("kind", string(req.Kind)).
			Msg("request to remote content service failed")
		return models.ConfirmedState{}, mapRequestError(err)
	}
	if err = mapHTTPError(resp); err != nil {
		log.Err(err).
			Str("func", "httpTransport.Send").
			Str("operation_id", req.OperationID).
			Str("kind", string(req.Kind)).
			Int("status", resp.StatusCode()).
			Msg("remote content service rejected request")
		return models.ConfirmedState{}, err
	}

	return decodeConfirmedState(req, resp.Body())
}

// decodeConfirmedState parses the service's answer. An empty body is only
// accepted for unpublish, where it means the content is private again.
func decodeConfirmedState(req models.RemoteRequest, body []byte) (models.ConfirmedState, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		if req.Kind == models.OperationUnpublish {
			return models.ConfirmedState{ContentID: req.ContentID, Visibility: models.VisibilityPrivate}, nil
		}
		// the remote applied the request; a retry returns the stored answer
		return models.ConfirmedState{}, transient(0, fmt.Errorf("%w: empty body", ErrDecodingResponse))
	}

	var state models.ConfirmedState
	if err := json.Unmarshal(body, &state); err != nil {
		return models.ConfirmedState{}, transient(0, fmt.Errorf("%w: %w", ErrDecodingResponse, err))
	}
	if state.ContentID == "" {
		state.ContentID = req.ContentID
	}
	if state.Visibility == "" {
		if req.Kind == models.OperationUnpublish {
			state.Visibility = models.VisibilityPrivate
		} else {
			state.Visibility = models.VisibilityPublic
		}
	}

	return state, nil
}

package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// mapHTTPError converts a non-2xx response into a classified [*RemoteError].
// Rate limiting, timeouts and 5xx answers are transient; every other 4xx is
// permanent.
func mapHTTPError(resp *resty.Response) error {
	status := resp.StatusCode()
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(status)
	}

	switch status {
	case http.StatusBadRequest:
		return permanent(status, fmt.Errorf("%w: %s", ErrBadRequest, body))
	case http.StatusUnauthorized:
		return permanent(status, fmt.Errorf("%w: %s", ErrUnauthorized, body))
	case http.StatusForbidden:
		return permanent(status, fmt.Errorf("%w: %s", ErrForbidden, body))
	case http.StatusNotFound:
		return permanent(status, fmt.Errorf("%w: %s", ErrNotFound, body))
	case http.StatusConflict:
		return permanent(status, fmt.Errorf("%w: %s", ErrConflict, body))
	case http.StatusUnprocessableEntity:
		return permanent(status, fmt.Errorf("%w: %s", ErrUnprocessable, body))
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return transient(status, fmt.Errorf("%w: %s", ErrTimeout, body))
	case http.StatusTooManyRequests:
		return transient(status, fmt.Errorf("%w: %s", ErrTooManyRequests, body))
	case http.StatusInternalServerError:
		return transient(status, fmt.Errorf("%w: %s", ErrInternalServerError, body))
	case http.StatusBadGateway:
		return transient(status, fmt.Errorf("%w: %s", ErrBadGateway, body))
	case http.StatusServiceUnavailable:
		return transient(status, fmt.Errorf("%w: %s", ErrServiceUnavailable, body))
	}

	if status >= http.StatusInternalServerError {
		return transient(status, fmt.Errorf("http %d: %s", status, body))
	}
	return permanent(status, fmt.Errorf("http %d: %s", status, body))
}

// mapRequestError classifies a failure that happened before any response was
// received. Everything here is transient: the request may not have reached
// the remote at all. Context cancellation stays visible through errors.Is.
func mapRequestError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return transient(0, fmt.Errorf("%w: %w", ErrTimeout, err))
	case errors.Is(err, context.Canceled):
		return transient(0, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return transient(0, fmt.Errorf("%w: %w", ErrTimeout, err))
	}

	return transient(0, fmt.Errorf("%w: %w", ErrNetwork, err))
}

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MKhiriev/go-content-sync/models"
)

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return nil
}

// listParam returns every value of key, accepting both repeated keys and
// comma-separated lists.
func listParam(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func uintParam(q url.Values, key string) (uint64, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidQueryParam, key, err)
	}
	return n, nil
}

func boolParam(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrInvalidQueryParam, key, err)
	}
	return b, nil
}

func durationParam(q url.Values, key string) (time.Duration, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s: %q", ErrInvalidQueryParam, key, v)
	}
	return d, nil
}

// contentFilterFromQuery reads kind, visibility, status, updated_since,
// limit and offset. Value checks beyond parsing are left to the service.
func contentFilterFromQuery(q url.Values) (models.ContentFilter, error) {
	var (
		filter models.ContentFilter
		err    error
	)

	for _, k := range listParam(q, "kind") {
		kind, err := models.ParseKind(k)
		if err != nil {
			return models.ContentFilter{}, fmt.Errorf("%w: %w", ErrInvalidQueryParam, err)
		}
		filter.Kinds = append(filter.Kinds, kind)
	}

	filter.Visibility = models.Visibility(q.Get("visibility"))
	for _, s := range listParam(q, "status") {
		filter.Statuses = append(filter.Statuses, models.SyncStatus(s))
	}

	if v := q.Get("updated_since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return models.ContentFilter{}, fmt.Errorf("%w: updated_since: %w", ErrInvalidQueryParam, err)
		}
		filter.UpdatedSince = &since
	}

	if filter.Limit, err = uintParam(q, "limit"); err != nil {
		return models.ContentFilter{}, err
	}
	if filter.Offset, err = uintParam(q, "offset"); err != nil {
		return models.ContentFilter{}, err
	}

	return filter, nil
}

func operationFilterFromQuery(q url.Values) (models.OperationFilter, error) {
	filter := models.OperationFilter{ContentID: q.Get("content_id")}
	for _, s := range listParam(q, "status") {
		filter.Statuses = append(filter.Statuses, models.OperationStatus(s))
	}

	limit, err := uintParam(q, "limit")
	if err != nil {
		return models.OperationFilter{}, err
	}
	filter.Limit = limit

	return filter, nil
}

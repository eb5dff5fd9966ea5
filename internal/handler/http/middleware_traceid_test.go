package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-content-sync/internal/logger"
)

// bareHandler is a Handler without services, enough for middleware tests.
func bareHandler() *Handler {
	return &Handler{logger: logger.Nop()}
}

func TestWithTraceID(t *testing.T) {
	tests := []struct {
		name           string
		requestTraceID string
		wantGenerated  bool
	}{
		{name: "trace ID from request header is reused", requestTraceID: "sync-trace-1"},
		{name: "uuid from request header is reused", requestTraceID: "550e8400-e29b-41d4-a716-446655440000"},
		{name: "missing trace ID is generated", wantGenerated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusTeapot)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
			if tt.requestTraceID != "" {
				req.Header.Set(traceIDHeader, tt.requestTraceID)
			}
			rec := serve(bareHandler().withTraceID(next), req)

			assert.True(t, nextCalled)
			assert.Equal(t, http.StatusTeapot, rec.Code)

			got := rec.Header().Get(traceIDHeader)
			if tt.wantGenerated {
				_, err := uuid.Parse(got)
				assert.NoError(t, err, "generated trace ID should be a UUID, got %q", got)
				return
			}
			assert.Equal(t, tt.requestTraceID, got)
		})
	}
}

func TestWithTraceID_GeneratesUniqueIDs(t *testing.T) {
	mw := bareHandler().withTraceID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	seen := make(map[string]struct{})
	for range 50 {
		rec := serve(mw, httptest.NewRequest(http.MethodGet, "/api/queue", nil))
		id := rec.Header().Get(traceIDHeader)
		require.NotEmpty(t, id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 50)
}

func TestWithTraceID_LoggerCarriesTraceID(t *testing.T) {
	var buf bytes.Buffer
	h := &Handler{logger: &logger.Logger{Logger: zerolog.New(&buf)}}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromRequest(r).Info().Msg("inside")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	req.Header.Set(traceIDHeader, "trace-in-log")
	serve(h.withTraceID(next), req)

	assert.Contains(t, buf.String(), `"trace_id":"trace-in-log"`)
}

func TestWithTraceID_OriginalRequestNotMutated(t *testing.T) {
	mw := bareHandler().withTraceID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	originalCtx := req.Context()
	serve(mw, req)

	assert.Equal(t, originalCtx, req.Context())
}

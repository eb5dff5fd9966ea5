// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/go-content-sync/internal/config"
	"github.com/MKhiriev/go-content-sync/internal/logger"
	"github.com/MKhiriev/go-content-sync/internal/mock"
	"github.com/MKhiriev/go-content-sync/internal/store"
	"github.com/MKhiriev/go-content-sync/models"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func testContext() context.Context {
	l := zerolog.Nop()
	return l.WithContext(context.Background())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: t0}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// seqIDs hands out ordered, readable identifiers.
type seqIDs struct {
	n atomic.Int64
}

func (s *seqIDs) Generate() string {
	return fmt.Sprintf("id-%04d", s.n.Add(1))
}

func testConfig() *config.StructuredConfig {
	return &config.StructuredConfig{
		Adapter: config.Adapter{RequestTimeout: time.Second},
		Engine: config.Engine{
			CacheCapacity:  16,
			MaxInFlight:    4,
			MaxRetries:     2,
			RetryBaseDelay: time.Second,
			RetryMaxDelay:  8 * time.Second,
			BatchSize:      16,
			Retention:      time.Hour,
		},
		Workers: config.Workers{
			SyncInterval:  time.Hour,
			PurgeInterval: time.Hour,
		},
	}
}

// testEngine is the full engine on a private in-memory database with a
// mocked transport and a manual clock.
type testEngine struct {
	*Services
	storages  *store.Storages
	transport *mock.MockTransport
	clock     *fakeClock
}

func newTestEngine(t *testing.T, mutate ...func(cfg *config.StructuredConfig)) *testEngine {
	t.Helper()

	storages, err := store.NewStorages(context.Background(), config.Storage{DB: config.DB{DSN: "file::memory:"}}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storages.Close() })

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	ctrl := gomock.NewController(t)
	transport := mock.NewMockTransport(ctrl)
	clock := newFakeClock()

	return &testEngine{
		Services:  newServices(storages, transport, cfg, clock.Now, &seqIDs{}),
		storages:  storages,
		transport: transport,
		clock:     clock,
	}
}

func (e *testEngine) create(t *testing.T, title string) models.ContentRecord {
	t.Helper()
	c, err := e.Content.Create(testContext(), models.Draft{
		Kind:  models.KindGuide,
		Title: title,
		Body:  models.Body{Format: models.BodyFormatMarkdown, Content: "# " + title},
	})
	require.NoError(t, err)
	return c.Record
}

func (e *testEngine) record(t *testing.T, id string) models.ContentRecord {
	t.Helper()
	r, err := e.storages.Contents.Get(testContext(), id)
	require.NoError(t, err)
	return r
}

func (e *testEngine) drain(t *testing.T) DrainResult {
	t.Helper()
	res, err := e.Processor.Drain(testContext())
	require.NoError(t, err)
	return res
}

// publish makes id public through a successful remote publish.
func (e *testEngine) publish(t *testing.T, id, publicID string) {
	t.Helper()
	_, err := e.Visibility.RequestPublish(testContext(), id)
	require.NoError(t, err)

	e.transport.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(confirmed(id, publicID), nil)
	e.drain(t)
}

func confirmed(contentID, publicID string) models.ConfirmedState {
	at := t0
	return models.ConfirmedState{
		ContentID:   contentID,
		Visibility:  models.VisibilityPublic,
		PublicID:    publicID,
		PublishedAt: &at,
	}
}

func private(contentID string) models.ConfirmedState {
	return models.ConfirmedState{ContentID: contentID, Visibility: models.VisibilityPrivate}
}

func kindIs(kind models.OperationKind) gomock.Matcher {
	return gomock.Cond(func(req models.RemoteRequest) bool { return req.Kind == kind })
}

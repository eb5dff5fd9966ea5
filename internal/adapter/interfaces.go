// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides the transport layer between the sync engine and
// the remote content service.
//
// The primary abstraction is [Transport], which decouples the sync processor
// from the underlying protocol. The package ships an HTTP/REST implementation
// ([NewHTTPTransport]).
//
// Every failure returned by a Transport is a [*RemoteError] carrying a
// transient or permanent class, so the processor can decide between a retry
// and a rollback without knowing anything about HTTP.
package adapter

import (
	"context"

	"github.com/MKhiriev/go-content-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/transport_mock.go -package=mock

// Transport sends one sync operation to the remote content service and
// returns the state the service confirmed.
type Transport interface {
	// Send dispatches req. req.OperationID is used as the idempotency key,
	// so re-sending the same request after a lost response is safe.
	//
	// On failure the returned error is a [*RemoteError]; use [IsTransient]
	// to decide whether the operation may be retried.
	Send(ctx context.Context, req models.RemoteRequest) (models.ConfirmedState, error)

	// SetToken replaces the bearer token attached to subsequent requests.
	SetToken(token string)
}

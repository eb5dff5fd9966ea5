package server

import (
	"context"
	"net"
)

// Server defines the lifecycle of the control API server.
type Server interface {
	// RunServer serves requests until ctx ends, then shuts down gracefully.
	// It returns early with an error when serving fails.
	RunServer(ctx context.Context) error

	// Shutdown stops accepting connections and waits for active requests
	// until ctx ends. Open event streams are cancelled.
	Shutdown(ctx context.Context) error

	// Addr is the address the listener is bound to.
	Addr() net.Addr
}

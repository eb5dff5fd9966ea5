// Package workers runs the background workers of the sync daemon.
// It defines the Worker interface and a Workers aggregate that runs every
// worker until the daemon's context ends.
package workers

import "context"

// Worker is a background task. Run blocks until ctx ends and the worker
// has released what it started.
//
// Example implementation:
//
//	type ticker struct{}
//
//	func (t *ticker) Run(ctx context.Context) {
//	    <-ctx.Done()
//	}
type Worker interface {
	Run(ctx context.Context)
}

// Package server runs the local control API of the sync daemon.
//
// It binds the listener up front, serves until the caller's context ends
// and then shuts down gracefully, ending open event streams.
package server

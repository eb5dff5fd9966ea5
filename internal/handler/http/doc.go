// Package http implements the local control API of the sync engine.
//
// It exposes content authoring, visibility requests, queue inspection,
// connectivity control and a server-sent event stream of sync state
// changes. Tracing, access logging, bearer-token checks, compression and
// body checksum verification are handled here before requests reach the
// service layer.
package http

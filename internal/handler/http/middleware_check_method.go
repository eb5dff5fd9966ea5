// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CheckHTTPMethod returns a handler to register with
// [chi.Mux.MethodNotAllowed]. A request whose path exists but whose method
// is not registered gets 404 instead of chi's 405, so callers cannot discover
// which methods a route has.
//
// Matching goes through [chi.Mux.Match], which follows mounted subrouters
// and URL parameters, so /api/content/{id}/publish is covered as well as
// flat routes. A request that does match is served by the router as usual.
//
// Usage:
//
//	router := chi.NewRouter()
//	// ... register routes ...
//	router.MethodNotAllowed(CheckHTTPMethod(router))
func CheckHTTPMethod(router *chi.Mux) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if !router.Match(chi.NewRouteContext(), r.Method, r.URL.Path) {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		router.ServeHTTP(w, r)
	}
}

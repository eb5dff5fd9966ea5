package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID, h.withLogging)

	// routes without authorization
	router.Get("/api/version", h.getVersion)

	router.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Route("/api/content", func(r chi.Router) {
			r.Use(withGZip)

			r.Get("/", h.listContent)
			r.With(h.withBodyChecksum).Post("/", h.createContent)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getContent)
				r.With(h.withBodyChecksum).Patch("/", h.editContent)
				r.Delete("/", h.deleteContent)
				r.Get("/operations", h.contentOperations)

				r.Post("/publish", h.publish)
				r.Post("/unpublish", h.unpublish)
				r.Post("/update", h.update)
				r.Post("/cancel", h.cancel)
			})
		})

		r.Get("/api/queue", h.getQueue)
		r.Post("/api/sync", h.sync)
		r.Get("/api/connectivity", h.getConnectivity)
		r.Put("/api/connectivity", h.setConnectivity)

		r.Get("/api/events", h.events)
	})

	router.MethodNotAllowed(CheckHTTPMethod(router))

	return router
}

package recon

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the reconciliation endpoints.
func Routes(r chi.Router, h *Handler) {
	r.Route("/reconciliation", func(r chi.Router) {
		r.Post("/transactions", h.RecordTransaction)
		r.Get("/transactions", h.ListUnreconciled)
		r.Post("/preview", h.Preview)
		r.Post("/commit", h.Commit)
		r.Get("/sessions", h.ListSessions)
	})
}

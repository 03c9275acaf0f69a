package reports

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the report endpoints.
func Routes(r chi.Router, h *Handler) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/profit-and-loss", h.ProfitAndLoss)
	})
}

package ledger

import "github.com/go-chi/chi/v5"

// Routes mounts the ledger endpoints.
func Routes(r chi.Router, h *Handler) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.ListAccounts)
		r.Post("/", h.CreateAccount)
	})
	r.Route("/journal-entries", func(r chi.Router) {
		r.Post("/", h.CreateEntry)
		r.Get("/{id}", h.GetEntry)
		r.Post("/{id}/post", h.PostEntry)
		r.Post("/{id}/reverse", h.ReverseEntry)
	})
}

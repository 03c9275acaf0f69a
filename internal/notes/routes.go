package notes

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the note endpoints.
func Routes(r chi.Router, h *Handler) {
	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/issue", h.Issue)
		r.Post("/{id}/cancel", h.Cancel)
		r.Post("/{id}/apply", h.Apply)
		r.Get("/{id}/applications", h.ListApplications)
	})
	r.Post("/note-applications/{applicationID}/reverse", h.ReverseApplication)
}

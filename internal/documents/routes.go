package documents

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Routes mounts the trade document endpoints.
func Routes(r chi.Router, h *Handler) {
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/convert", h.Convert)
		r.Post("/{id}/payments", h.RecordPayment)

		r.Post("/{id}/send", h.transition("send", func(req *http.Request, companyID int64, id uuid.UUID) (*Document, error) {
			return h.service.Send(req.Context(), companyID, id)
		}))
		r.Post("/{id}/accept", h.transition("accept", func(req *http.Request, companyID int64, id uuid.UUID) (*Document, error) {
			return h.service.MarkAccepted(req.Context(), companyID, id)
		}))
		r.Post("/{id}/decline", h.transition("decline", func(req *http.Request, companyID int64, id uuid.UUID) (*Document, error) {
			return h.service.MarkDeclined(req.Context(), companyID, id)
		}))
		r.Post("/{id}/confirm", h.transition("confirm", func(req *http.Request, companyID int64, id uuid.UUID) (*Document, error) {
			return h.service.Confirm(req.Context(), companyID, id)
		}))
		r.Post("/{id}/issue", h.transition("issue", func(req *http.Request, companyID int64, id uuid.UUID) (*Document, error) {
			return h.service.Issue(req.Context(), companyID, id)
		}))
		r.Post("/{id}/open", h.transition("open", func(req *http.Request, companyID int64, id uuid.UUID) (*Document, error) {
			return h.service.Open(req.Context(), companyID, id)
		}))
		r.Post("/{id}/close", h.transition("close", func(req *http.Request, companyID int64, id uuid.UUID) (*Document, error) {
			return h.service.Close(req.Context(), companyID, id)
		}))
		r.Post("/{id}/cancel", h.transition("cancel", func(req *http.Request, companyID int64, id uuid.UUID) (*Document, error) {
			return h.service.Cancel(req.Context(), companyID, id)
		}))
	})
}

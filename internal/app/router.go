package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/artha-erp/artha/internal/documents"
	"github.com/artha-erp/artha/internal/ledger"
	"github.com/artha-erp/artha/internal/notes"
	"github.com/artha-erp/artha/internal/recon"
	"github.com/artha-erp/artha/internal/reports"
	"github.com/artha-erp/artha/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	LedgerHandler    *ledger.Handler
	DocumentsHandler *documents.Handler
	NotesHandler     *notes.Handler
	ReconHandler     *recon.Handler
	ReportsHandler   *reports.Handler
	JobsHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with Artha defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		ledger.Routes(r, params.LedgerHandler)
		documents.Routes(r, params.DocumentsHandler)
		notes.Routes(r, params.NotesHandler)
		recon.Routes(r, params.ReconHandler)
		reports.Routes(r, params.ReportsHandler)
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}

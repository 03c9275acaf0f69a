package notes

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/platform/httpx"
	"github.com/artha-erp/artha/internal/shared"
)

// Handler exposes credit and debit notes over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateNoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	note, err := h.service.Create(r.Context(), companyID, input)
	if err != nil {
		h.logger.Error("create note failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.companyAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	note, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var kind *Kind
	if v := r.URL.Query().Get("kind"); v != "" {
		k := Kind(v)
		kind = &k
	}
	notes, err := h.service.List(r.Context(), companyID, kind)
	if err != nil {
		h.logger.Error("list notes failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, notes)
}

func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.companyAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	note, err := h.service.Issue(r.Context(), companyID, id)
	if err != nil {
		h.logger.Error("issue note failed", slog.Any("error", err), slog.String("note_id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.companyAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	note, err := h.service.Cancel(r.Context(), companyID, id)
	if err != nil {
		h.logger.Error("cancel note failed", slog.Any("error", err), slog.String("note_id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.companyAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req ApplyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid target id", shared.ErrValidation))
		return
	}
	note, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	amount, err := money.Parse(req.Amount, note.Currency)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	app, err := h.service.Apply(r.Context(), companyID, id, targetID, amount)
	if err != nil {
		h.logger.Error("apply note failed", slog.Any("error", err), slog.String("note_id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, app)
}

func (h *Handler) ReverseApplication(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	appID, err := uuid.Parse(chi.URLParam(r, "applicationID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid application id", shared.ErrValidation))
		return
	}
	reversal, err := h.service.ReverseApplication(r.Context(), companyID, appID)
	if err != nil {
		h.logger.Error("reverse application failed", slog.Any("error", err), slog.String("application_id", appID.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reversal)
}

func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.companyAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	apps, err := h.service.ListApplications(r.Context(), companyID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, apps)
}

func (h *Handler) companyAndID(r *http.Request) (int64, uuid.UUID, error) {
	companyID, err := shared.CompanyID(r)
	if err != nil {
		return 0, uuid.Nil, err
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return 0, uuid.Nil, fmt.Errorf("%w: invalid note id", shared.ErrValidation)
	}
	return companyID, id, nil
}

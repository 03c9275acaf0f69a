package documents

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/platform/httpx"
	"github.com/artha-erp/artha/internal/shared"
)

// Handler exposes trade documents over JSON.
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
	var req CreateDocumentRequest
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
	doc, err := h.service.Create(r.Context(), companyID, input)
	if err != nil {
		h.logger.Error("create document failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.companyAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var filter ListFilter
	if v := r.URL.Query().Get("type"); v != "" {
		t := DocType(v)
		filter.Type = &t
	}
	if v := r.URL.Query().Get("status"); v != "" {
		s := DocStatus(v)
		filter.Status = &s
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.From = &t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.To = &t
		}
	}
	docs, err := h.service.List(r.Context(), companyID, filter)
	if err != nil {
		h.logger.Error("list documents failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, docs)
}

// transition builds a handler for one named lifecycle action.
func (h *Handler) transition(action string, fn func(r *http.Request, companyID int64, id uuid.UUID) (*Document, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, id, err := h.companyAndID(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		doc, err := fn(r, companyID, id)
		if err != nil {
			h.logger.Error(action+" failed", slog.Any("error", err), slog.String("document_id", id.String()))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, doc)
	}
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.companyAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req ConvertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	doc, err := h.service.Convert(r.Context(), companyID, id, DocType(req.Target), req.CustomerPORef)
	if err != nil {
		h.logger.Error("convert document failed", slog.Any("error", err), slog.String("document_id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.companyAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req PaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	doc, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	amount, err := money.Parse(req.Amount, doc.Currency)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.RecordPayment(r.Context(), companyID, id, amount, req.Method, req.Reference)
	if err != nil {
		h.logger.Error("record payment failed", slog.Any("error", err), slog.String("document_id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) companyAndID(r *http.Request) (int64, uuid.UUID, error) {
	companyID, err := shared.CompanyID(r)
	if err != nil {
		return 0, uuid.Nil, err
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return 0, uuid.Nil, fmt.Errorf("%w: invalid document id", shared.ErrValidation)
	}
	return companyID, id, nil
}

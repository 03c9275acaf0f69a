package recon

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/artha-erp/artha/internal/platform/httpx"
	"github.com/artha-erp/artha/internal/shared"
)

// Handler exposes reconciliation over JSON.
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

func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req TransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	txn, err := req.toTransaction()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stored, err := h.service.RecordTransaction(r.Context(), companyID, txn)
	if err != nil {
		h.logger.Error("record bank transaction failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, stored)
}

func (h *Handler) ListUnreconciled(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := strconv.ParseInt(r.URL.Query().Get("account_id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid account id", shared.ErrValidation))
		return
	}
	asOf := time.Now()
	if v := r.URL.Query().Get("as_of"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			asOf = t
		}
	}
	txns, err := h.service.ListUnreconciled(r.Context(), companyID, accountID, asOf)
	if err != nil {
		h.logger.Error("list unreconciled failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txns)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	companyID, input, ok := h.decodeSession(w, r)
	if !ok {
		return
	}
	preview, err := h.service.Preview(r.Context(), companyID, input)
	if err != nil {
		h.logger.Error("reconciliation preview failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	companyID, input, ok := h.decodeSession(w, r)
	if !ok {
		return
	}
	session, err := h.service.Commit(r.Context(), companyID, input)
	if err != nil {
		h.logger.Error("reconciliation commit failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, session)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := strconv.ParseInt(r.URL.Query().Get("account_id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid account id", shared.ErrValidation))
		return
	}
	sessions, err := h.service.ListSessions(r.Context(), companyID, accountID)
	if err != nil {
		h.logger.Error("list sessions failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessions)
}

func (h *Handler) decodeSession(w http.ResponseWriter, r *http.Request) (int64, Input, bool) {
	companyID, err := shared.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return 0, Input{}, false
	}
	var req SessionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return 0, Input{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return 0, Input{}, false
	}
	input, err := req.toInput()
	if err != nil {
		httpx.RespondError(w, err)
		return 0, Input{}, false
	}
	return companyID, input, true
}

package reports

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/artha-erp/artha/internal/platform/httpx"
	"github.com/artha-erp/artha/internal/shared"
)

// Handler exposes reports over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := parseInput(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.ProfitAndLoss(r.Context(), companyID, input)
	if err != nil {
		h.logger.Error("profit and loss failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func parseInput(r *http.Request) (Input, error) {
	q := r.URL.Query()
	from, err := time.Parse("2006-01-02", q.Get("from"))
	if err != nil {
		return Input{}, fmt.Errorf("%w: invalid from date", shared.ErrValidation)
	}
	to, err := time.Parse("2006-01-02", q.Get("to"))
	if err != nil {
		return Input{}, fmt.Errorf("%w: invalid to date", shared.ErrValidation)
	}
	input := Input{From: from, To: to, Currency: q.Get("currency")}
	if input.Currency == "" {
		input.Currency = "INR"
	}
	if v := q.Get("compare_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return Input{}, fmt.Errorf("%w: invalid compare_from date", shared.ErrValidation)
		}
		input.CompareFrom = &t
	}
	if v := q.Get("compare_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return Input{}, fmt.Errorf("%w: invalid compare_to date", shared.ErrValidation)
		}
		input.CompareTo = &t
	}
	return input, nil
}

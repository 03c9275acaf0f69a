package notes

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/artha-erp/artha/internal/documents"
	"github.com/artha-erp/artha/internal/shared"
)

// CreateNoteRequest is the JSON body for POST /notes.
type CreateNoteRequest struct {
	Kind             string                  `json:"kind" validate:"required,oneof=CREDIT DEBIT"`
	Date             string                  `json:"date" validate:"required"`
	FiscalYear       string                  `json:"fiscal_year" validate:"required"`
	CounterpartyID   int64                   `json:"counterparty_id" validate:"required"`
	OriginDocumentID *string                 `json:"origin_document_id,omitempty"`
	Currency         string                  `json:"currency" validate:"required,len=3"`
	IntraState       bool                    `json:"intra_state"`
	Lines            []documents.LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ApplyRequest is the JSON body for POST /notes/{id}/apply.
type ApplyRequest struct {
	TargetID string `json:"target_id" validate:"required,uuid"`
	Amount   string `json:"amount" validate:"required"`
}

func (req CreateNoteRequest) toInput() (CreateInput, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return CreateInput{}, fmt.Errorf("%w: invalid date", shared.ErrValidation)
	}
	input := CreateInput{
		Kind:           Kind(req.Kind),
		Date:           date,
		FiscalYear:     req.FiscalYear,
		CounterpartyID: req.CounterpartyID,
		Currency:       req.Currency,
		IntraState:     req.IntraState,
	}
	if req.OriginDocumentID != nil {
		id, err := uuid.Parse(*req.OriginDocumentID)
		if err != nil {
			return CreateInput{}, fmt.Errorf("%w: invalid origin document id", shared.ErrValidation)
		}
		input.OriginDocumentID = &id
	}
	for _, l := range req.Lines {
		qty, err := decimal.NewFromString(l.Quantity)
		if err != nil {
			return CreateInput{}, fmt.Errorf("%w: invalid quantity %q", shared.ErrValidation, l.Quantity)
		}
		rate, err := decimal.NewFromString(l.Rate)
		if err != nil {
			return CreateInput{}, fmt.Errorf("%w: invalid rate %q", shared.ErrValidation, l.Rate)
		}
		taxRate := decimal.Zero
		if l.TaxRate != "" {
			if taxRate, err = decimal.NewFromString(l.TaxRate); err != nil {
				return CreateInput{}, fmt.Errorf("%w: invalid tax rate %q", shared.ErrValidation, l.TaxRate)
			}
		}
		input.Lines = append(input.Lines, documents.LineInput{
			Description: l.Description,
			Quantity:    qty,
			Rate:        rate,
			TaxRate:     taxRate,
		})
	}
	return input, nil
}

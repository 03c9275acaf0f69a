package documents

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/artha-erp/artha/internal/shared"
)

// LineRequest is one requested document line. Quantity, rate and tax rate
// are decimal strings so no precision is lost in transport.
type LineRequest struct {
	Description string `json:"description" validate:"required"`
	Quantity    string `json:"quantity" validate:"required"`
	Rate        string `json:"rate" validate:"required"`
	TaxRate     string `json:"tax_rate"`
}

// CreateDocumentRequest is the JSON body for POST /documents.
type CreateDocumentRequest struct {
	Type           string        `json:"type" validate:"required,oneof=QUOTE SALES_ORDER PURCHASE_ORDER INVOICE BILL"`
	Date           string        `json:"date" validate:"required"`
	FiscalYear     string        `json:"fiscal_year" validate:"required"`
	CounterpartyID int64         `json:"counterparty_id" validate:"required"`
	Currency       string        `json:"currency" validate:"required,len=3"`
	IntraState     bool          `json:"intra_state"`
	Lines          []LineRequest `json:"lines" validate:"required,min=1,dive"`
	CustomerPORef  string        `json:"customer_po_ref"`
	ExpiryDate     *string       `json:"expiry_date,omitempty"`
	DueDate        *string       `json:"due_date,omitempty"`
}

// ConvertRequest names the downstream type for POST /documents/{id}/convert.
type ConvertRequest struct {
	Target        string `json:"target" validate:"required,oneof=SALES_ORDER INVOICE BILL"`
	CustomerPORef string `json:"customer_po_ref"`
}

// PaymentRequest is the JSON body for POST /documents/{id}/payments.
type PaymentRequest struct {
	Amount    string `json:"amount" validate:"required"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

func (req CreateDocumentRequest) toInput() (CreateInput, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return CreateInput{}, fmt.Errorf("%w: invalid date", shared.ErrValidation)
	}
	input := CreateInput{
		Type:           DocType(req.Type),
		Date:           date,
		FiscalYear:     req.FiscalYear,
		CounterpartyID: req.CounterpartyID,
		Currency:       req.Currency,
		IntraState:     req.IntraState,
		CustomerPORef:  req.CustomerPORef,
	}
	if req.ExpiryDate != nil {
		t, err := time.Parse("2006-01-02", *req.ExpiryDate)
		if err != nil {
			return CreateInput{}, fmt.Errorf("%w: invalid expiry date", shared.ErrValidation)
		}
		input.ExpiryDate = &t
	}
	if req.DueDate != nil {
		t, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			return CreateInput{}, fmt.Errorf("%w: invalid due date", shared.ErrValidation)
		}
		input.DueDate = &t
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
		input.Lines = append(input.Lines, LineInput{
			Description: l.Description,
			Quantity:    qty,
			Rate:        rate,
			TaxRate:     taxRate,
		})
	}
	return input, nil
}

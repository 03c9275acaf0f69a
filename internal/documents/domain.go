package documents

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
	"github.com/artha-erp/artha/internal/tracker"
)

// DocType enumerates trade document types.
type DocType string

const (
	TypeQuote         DocType = "QUOTE"
	TypeSalesOrder    DocType = "SALES_ORDER"
	TypePurchaseOrder DocType = "PURCHASE_ORDER"
	TypeInvoice       DocType = "INVOICE"
	TypeBill          DocType = "BILL"
)

// DocStatus enumerates document lifecycle values across all types; each
// type only ever holds the statuses its state machine names.
type DocStatus string

const (
	StatusDraft     DocStatus = "DRAFT"
	StatusSent      DocStatus = "SENT"
	StatusAccepted  DocStatus = "ACCEPTED"
	StatusDeclined  DocStatus = "DECLINED"
	StatusExpired   DocStatus = "EXPIRED"
	StatusOpen      DocStatus = "OPEN"
	StatusConfirmed DocStatus = "CONFIRMED"
	StatusClosed    DocStatus = "CLOSED"
	StatusIssued    DocStatus = "ISSUED"
	StatusPaid      DocStatus = "PAID"
	StatusOverdue   DocStatus = "OVERDUE"
	StatusCancelled DocStatus = "CANCELLED"
)

// LineItem is one priced line of a trade document. Amount and Tax are
// computed once at construction; list views and detail views read the same
// stored values.
type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	DocumentID  uuid.UUID       `json:"document_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Amount      money.Money     `json:"amount"`
	Tax         money.Money     `json:"tax"`
	LineOrder   int             `json:"line_order"`
}

// Document is the common shape of quotes, sales orders, purchase orders,
// invoices and bills.
type Document struct {
	ID              uuid.UUID       `json:"id"`
	CompanyID       int64           `json:"company_id"`
	Type            DocType         `json:"type"`
	Number          string          `json:"number"`
	Date            time.Time       `json:"date"`
	FiscalYear      string          `json:"fiscal_year"`
	CounterpartyID  int64           `json:"counterparty_id"`
	Currency        string          `json:"currency"`
	Status          DocStatus       `json:"status"`
	IntraState      bool            `json:"intra_state"`
	Lines           []LineItem      `json:"lines"`
	Subtotal        money.Money     `json:"subtotal"`
	Tax             money.TaxBreakup `json:"tax"`
	Total           money.Money     `json:"total"`
	Applied         money.Money     `json:"applied"`
	ConvertedToID   *uuid.UUID      `json:"converted_to_id,omitempty"`
	ConvertedFromID *uuid.UUID      `json:"converted_from_id,omitempty"`
	CustomerPORef   string          `json:"customer_po_ref,omitempty"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Outstanding returns the document's total/applied/balance view. Only
// invoices and bills carry applications; for other types Applied is zero.
func (d *Document) Outstanding() tracker.Outstanding {
	balance := money.New(d.Total.Amount-d.Applied.Amount, d.Currency)
	return tracker.Outstanding{Total: d.Total, Applied: d.Applied, Balance: balance}
}

// Payable reports whether applications/payments may target this document.
func (d *Document) Payable() bool {
	if d.Type != TypeInvoice && d.Type != TypeBill {
		return false
	}
	switch d.Status {
	case StatusSent, StatusOpen, StatusOverdue:
		return true
	}
	return false
}

// initialStatus is the state a freshly created document of each type enters.
var initialStatus = map[DocType]DocStatus{
	TypeQuote:         StatusDraft,
	TypeSalesOrder:    StatusOpen,
	TypePurchaseOrder: StatusDraft,
	TypeInvoice:       StatusDraft,
	TypeBill:          StatusDraft,
}

// transitions is the full status graph. Changing status any other way is a
// bug; handlers and jobs all go through Transition.
var transitions = map[DocType]map[DocStatus][]DocStatus{
	TypeQuote: {
		StatusDraft: {StatusSent},
		StatusSent:  {StatusAccepted, StatusDeclined, StatusExpired},
	},
	TypeSalesOrder: {
		StatusOpen:      {StatusConfirmed},
		StatusConfirmed: {StatusClosed},
	},
	TypePurchaseOrder: {
		StatusDraft:  {StatusIssued},
		StatusIssued: {StatusClosed},
	},
	TypeInvoice: {
		StatusDraft:   {StatusSent},
		StatusSent:    {StatusPaid, StatusOverdue, StatusCancelled},
		StatusOverdue: {StatusPaid, StatusCancelled},
	},
	TypeBill: {
		StatusDraft:   {StatusOpen},
		StatusOpen:    {StatusPaid, StatusOverdue, StatusCancelled},
		StatusOverdue: {StatusPaid, StatusCancelled},
	},
}

// StateTransitionError reports an illegal status change.
type StateTransitionError struct {
	Type DocType
	From DocStatus
	To   DocStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Type, e.From, e.To)
}

func (e *StateTransitionError) Unwrap() error { return shared.ErrStateTransition }

// CanTransition reports whether the move is in the status graph.
func CanTransition(t DocType, from, to DocStatus) bool {
	for _, next := range transitions[t][from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the document to the target status or fails without
// touching it.
func (d *Document) Transition(to DocStatus) error {
	if !CanTransition(d.Type, d.Status, to) {
		return &StateTransitionError{Type: d.Type, From: d.Status, To: to}
	}
	d.Status = to
	return nil
}

var (
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	ErrInvalidRate     = fmt.Errorf("%w: rate must not be negative", shared.ErrValidation)
	ErrInvalidTaxRate  = fmt.Errorf("%w: tax rate must be between 0 and 100", shared.ErrValidation)
	ErrNoLines         = fmt.Errorf("%w: document needs at least one line", shared.ErrValidation)
)

// ComputeLine prices a line: amount = quantity×rate snapped to the
// currency's minor unit, tax = amount×taxRate/100.
func ComputeLine(description string, quantity, rate, taxRate decimal.Decimal, currency string) (LineItem, error) {
	if quantity.Sign() <= 0 {
		return LineItem{}, ErrInvalidQuantity
	}
	if rate.Sign() < 0 {
		return LineItem{}, ErrInvalidRate
	}
	if taxRate.Sign() < 0 || taxRate.GreaterThan(decimal.NewFromInt(100)) {
		return LineItem{}, ErrInvalidTaxRate
	}
	amount := money.FromDecimal(quantity.Mul(rate), currency)
	return LineItem{
		Description: description,
		Quantity:    quantity,
		Rate:        rate,
		TaxRate:     taxRate,
		Amount:      amount,
		Tax:         amount.ApplyPercent(taxRate),
	}, nil
}

// ComputeTotals derives subtotal, jurisdictional tax breakup and total from
// priced lines. This is the single source of truth for document totals.
func ComputeTotals(lines []LineItem, intraState bool, currency string) (money.Money, money.TaxBreakup, money.Money, error) {
	if len(lines) == 0 {
		return money.Money{}, money.TaxBreakup{}, money.Money{}, ErrNoLines
	}
	subtotal := money.Zero(currency)
	taxTotal := money.Zero(currency)
	for _, l := range lines {
		var err error
		if subtotal, err = subtotal.Add(l.Amount); err != nil {
			return money.Money{}, money.TaxBreakup{}, money.Money{}, err
		}
		if taxTotal, err = taxTotal.Add(l.Tax); err != nil {
			return money.Money{}, money.TaxBreakup{}, money.Money{}, err
		}
	}
	breakup, err := money.SplitTax(taxTotal, intraState)
	if err != nil {
		return money.Money{}, money.TaxBreakup{}, money.Money{}, err
	}
	total, err := subtotal.Add(taxTotal)
	if err != nil {
		return money.Money{}, money.TaxBreakup{}, money.Money{}, err
	}
	return subtotal, breakup, total, nil
}

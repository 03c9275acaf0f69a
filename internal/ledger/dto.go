package ledger

import (
	"time"

	"github.com/artha-erp/artha/internal/money"
)

// CreateAccountRequest is the JSON body for POST /accounts.
type CreateAccountRequest struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=INCOME EXPENSE ASSET LIABILITY EQUITY"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// EntryLineRequest is one leg of a journal entry. Amounts are decimal
// strings in major units ("1500.00"); exactly one of debit/credit may be
// nonzero.
type EntryLineRequest struct {
	AccountID int64  `json:"account_id" validate:"required"`
	Debit     string `json:"debit,omitempty"`
	Credit    string `json:"credit,omitempty"`
}

// CreateEntryRequest is the JSON body for POST /journal-entries.
type CreateEntryRequest struct {
	Date       string             `json:"date" validate:"required"`
	FiscalYear string             `json:"fiscal_year" validate:"required"`
	Narration  string             `json:"narration"`
	Currency   string             `json:"currency" validate:"required,len=3"`
	Lines      []EntryLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// EntryResponse is the JSON shape of a journal entry.
type EntryResponse struct {
	ID         string         `json:"id"`
	Date       string         `json:"date"`
	FiscalYear string         `json:"fiscal_year"`
	Narration  string         `json:"narration"`
	Currency   string         `json:"currency"`
	Status     string         `json:"status"`
	ReversesID *string        `json:"reverses_id,omitempty"`
	Lines      []LineResponse `json:"lines"`
}

// LineResponse is the JSON shape of a journal line.
type LineResponse struct {
	AccountID int64  `json:"account_id"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
}

func toEntryResponse(e *JournalEntry) EntryResponse {
	resp := EntryResponse{
		ID:         e.ID.String(),
		Date:       e.Date.Format("2006-01-02"),
		FiscalYear: e.FiscalYear,
		Narration:  e.Narration,
		Currency:   e.Currency,
		Status:     string(e.Status),
	}
	if e.ReversesID != nil {
		s := e.ReversesID.String()
		resp.ReversesID = &s
	}
	for _, l := range e.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			AccountID: l.AccountID,
			Debit:     l.Debit.Decimal().String(),
			Credit:    l.Credit.Decimal().String(),
		})
	}
	return resp
}

func (req CreateEntryRequest) toInput() (NewEntryInput, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return NewEntryInput{}, err
	}
	input := NewEntryInput{
		Date:       date,
		FiscalYear: req.FiscalYear,
		Narration:  req.Narration,
		Currency:   req.Currency,
	}
	for _, l := range req.Lines {
		debit := money.Zero(req.Currency)
		credit := money.Zero(req.Currency)
		if l.Debit != "" {
			if debit, err = money.Parse(l.Debit, req.Currency); err != nil {
				return NewEntryInput{}, err
			}
		}
		if l.Credit != "" {
			if credit, err = money.Parse(l.Credit, req.Currency); err != nil {
				return NewEntryInput{}, err
			}
		}
		input.Lines = append(input.Lines, NewLineInput{AccountID: l.AccountID, Debit: debit, Credit: credit})
	}
	return input, nil
}

package recon

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
)

// TransactionRequest is the JSON body for POST /reconciliation/transactions.
type TransactionRequest struct {
	AccountID int64  `json:"account_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=CREDIT DEBIT"`
	Amount    string `json:"amount" validate:"required"`
	Currency  string `json:"currency" validate:"required,len=3"`
	Reference string `json:"reference"`
}

// SessionRequest is the JSON body for preview and commit calls.
type SessionRequest struct {
	AccountID        int64    `json:"account_id" validate:"required"`
	StatementDate    string   `json:"statement_date" validate:"required"`
	StatementBalance string   `json:"statement_balance" validate:"required"`
	Currency         string   `json:"currency" validate:"required,len=3"`
	SelectedIDs      []string `json:"selected_ids"`
}

func (req TransactionRequest) toTransaction() (BankTransaction, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return BankTransaction{}, fmt.Errorf("%w: invalid date", shared.ErrValidation)
	}
	amount, err := money.Parse(req.Amount, req.Currency)
	if err != nil {
		return BankTransaction{}, err
	}
	return BankTransaction{
		AccountID: req.AccountID,
		Date:      date,
		Type:      TxnType(req.Type),
		Amount:    amount,
		Reference: req.Reference,
	}, nil
}

func (req SessionRequest) toInput() (Input, error) {
	date, err := time.Parse("2006-01-02", req.StatementDate)
	if err != nil {
		return Input{}, fmt.Errorf("%w: invalid statement date", shared.ErrValidation)
	}
	balance, err := money.Parse(req.StatementBalance, req.Currency)
	if err != nil {
		return Input{}, err
	}
	input := Input{
		AccountID:        req.AccountID,
		StatementDate:    date,
		StatementBalance: balance,
	}
	for _, raw := range req.SelectedIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Input{}, fmt.Errorf("%w: invalid selected id %q", shared.ErrValidation, raw)
		}
		input.SelectedIDs = append(input.SelectedIDs, id)
	}
	return input, nil
}

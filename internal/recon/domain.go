package recon

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
)

// TxnType marks a transaction's direction in ledger terms: a debit
// increases the bank book (a deposit), a credit decreases it (a payment).
type TxnType string

const (
	TxnCredit TxnType = "CREDIT"
	TxnDebit  TxnType = "DEBIT"
)

// BankTransaction is one row of the externally sourced bank feed.
type BankTransaction struct {
	ID           uuid.UUID   `json:"id"`
	CompanyID    int64       `json:"company_id"`
	AccountID    int64       `json:"account_id"`
	Date         time.Time   `json:"date"`
	Type         TxnType     `json:"type"`
	Amount       money.Money `json:"amount"`
	Reference    string      `json:"reference"`
	Reconciled   bool        `json:"reconciled"`
	ReconciledAt *time.Time  `json:"reconciled_at,omitempty"`
}

// Session is the persisted summary of one committed reconciliation.
// Previews are computed on the fly and never stored.
type Session struct {
	ID               uuid.UUID   `json:"id"`
	CompanyID        int64       `json:"company_id"`
	AccountID        int64       `json:"account_id"`
	StatementDate    time.Time   `json:"statement_date"`
	StatementBalance money.Money `json:"statement_balance"`
	BookBalance      money.Money `json:"book_balance"`
	SelectedCount    int         `json:"selected_count"`
	CommittedAt      time.Time   `json:"committed_at"`
}

// Preview is the computed state of an in-progress reconciliation.
type Preview struct {
	BookBalance         money.Money       `json:"book_balance"`
	StatementBalance    money.Money       `json:"statement_balance"`
	AdjustedBookBalance money.Money       `json:"adjusted_book_balance"`
	Difference          money.Money       `json:"difference"`
	Unreconciled        []BankTransaction `json:"unreconciled"`
}

// UnreconciledDifferenceError rejects committing while the statement and
// the adjusted book balance still disagree, carrying the residual.
type UnreconciledDifferenceError struct {
	Difference money.Money
}

func (e *UnreconciledDifferenceError) Error() string {
	return fmt.Sprintf("statement and book differ by %s", e.Difference)
}

func (e *UnreconciledDifferenceError) Unwrap() error { return shared.ErrInvariant }

// ErrUnknownSelection rejects selected ids that are not in the
// unreconciled set for the account and date.
var ErrUnknownSelection = fmt.Errorf("%w: selected transaction not in unreconciled set", shared.ErrValidation)

// compute derives the adjusted book balance and residual difference.
// Unselected transactions have not yet reached the bank's side, so their
// effect is backed out of the book balance: an unpresented credit
// (payment) is added back, an uncleared debit (deposit) is removed.
func compute(book, statement money.Money, txns []BankTransaction, selected map[uuid.UUID]bool) (adjusted, difference money.Money, err error) {
	adjusted = book
	for _, txn := range txns {
		if selected[txn.ID] {
			continue
		}
		switch txn.Type {
		case TxnCredit:
			adjusted, err = adjusted.Add(txn.Amount)
		case TxnDebit:
			adjusted, err = adjusted.Sub(txn.Amount)
		default:
			err = fmt.Errorf("%w: unknown transaction type %q", shared.ErrValidation, txn.Type)
		}
		if err != nil {
			return money.Money{}, money.Money{}, err
		}
	}
	difference, err = statement.Sub(adjusted)
	if err != nil {
		return money.Money{}, money.Money{}, err
	}
	return adjusted, difference, nil
}

// checkSelection verifies every selected id refers to an unreconciled
// transaction in scope.
func checkSelection(txns []BankTransaction, selected map[uuid.UUID]bool) error {
	inScope := make(map[uuid.UUID]bool, len(txns))
	for _, txn := range txns {
		inScope[txn.ID] = true
	}
	for id := range selected {
		if !inScope[id] {
			return ErrUnknownSelection
		}
	}
	return nil
}

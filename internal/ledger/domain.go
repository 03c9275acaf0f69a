package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
)

// ValidAccountType reports whether t is a known category.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountTypeIncome, AccountTypeExpense, AccountTypeAsset, AccountTypeLiability, AccountTypeEquity:
		return true
	}
	return false
}

// Account models a chart of accounts node. Accounts form a tree via
// ParentID; accounts with postings are never deleted.
type Account struct {
	ID        int64
	CompanyID int64
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryStatus enumerates journal entry lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft    EntryStatus = "DRAFT"
	EntryStatusPosted   EntryStatus = "POSTED"
	EntryStatusReversed EntryStatus = "REVERSED"
)

// AggregateStatuses lists the statuses whose lines count toward account
// balances and report rollups. REVERSED stays in: the status marks that a
// compensating mirror exists, it does not unpost the original's lines.
// Dropping it would make a reversed pair net to minus the original instead
// of zero.
func AggregateStatuses() []string {
	return []string{string(EntryStatusPosted), string(EntryStatusReversed)}
}

// JournalLine stores a debit or credit amount for an account. Exactly one
// of Debit/Credit is nonzero on a postable line.
type JournalLine struct {
	ID        uuid.UUID
	EntryID   uuid.UUID
	AccountID int64
	Debit     money.Money
	Credit    money.Money
}

// JournalEntry is a single financial event composed of balanced lines.
// Posted entries are append-only: corrections go through ReverseEntry.
type JournalEntry struct {
	ID         uuid.UUID
	CompanyID  int64
	Date       time.Time
	FiscalYear string
	Narration  string
	Currency   string
	Status     EntryStatus
	ReversesID *uuid.UUID
	Lines      []JournalLine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var (
	// ErrInsufficientLines rejects entries with fewer than two nonzero lines.
	ErrInsufficientLines = fmt.Errorf("%w: journal entry needs at least two nonzero lines", shared.ErrInvariant)
	// ErrMixedLine rejects lines carrying both a debit and a credit, or neither.
	ErrMixedLine = fmt.Errorf("%w: journal line must carry exactly one of debit or credit", shared.ErrValidation)
	// ErrImmutableEntry rejects any mutation of a posted entry's lines.
	ErrImmutableEntry = fmt.Errorf("%w: posted journal entries are immutable", shared.ErrInvariant)
	// ErrNegativeLineAmount rejects negative debit or credit amounts.
	ErrNegativeLineAmount = fmt.Errorf("%w: journal line amounts must not be negative", shared.ErrValidation)
	// ErrAccountInUse rejects deactivating an account that has postings.
	ErrAccountInUse = fmt.Errorf("%w: account has postings", shared.ErrInvariant)
)

// UnbalancedEntryError reports the signed difference Σdebit−Σcredit of an
// entry that failed the double-entry check.
type UnbalancedEntryError struct {
	Difference money.Money
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("journal entry unbalanced by %s", e.Difference)
}

func (e *UnbalancedEntryError) Unwrap() error { return shared.ErrInvariant }

// BalanceDifference computes Σdebit−Σcredit across the entry's lines.
func (e *JournalEntry) BalanceDifference() (money.Money, error) {
	diff := money.Zero(e.Currency)
	for _, l := range e.Lines {
		var err error
		if diff, err = diff.Add(l.Debit); err != nil {
			return money.Money{}, err
		}
		if diff, err = diff.Sub(l.Credit); err != nil {
			return money.Money{}, err
		}
	}
	return diff, nil
}

// ValidateForPosting checks the double-entry invariants of a candidate
// entry. Money is integer minor units, so the balance tolerance is exactly
// zero. The function is pure; posting itself happens in the service.
func ValidateForPosting(e *JournalEntry) error {
	nonzero := 0
	for _, l := range e.Lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return ErrNegativeLineAmount
		}
		switch {
		case l.Debit.IsZero() && l.Credit.IsZero():
			return ErrMixedLine
		case !l.Debit.IsZero() && !l.Credit.IsZero():
			return ErrMixedLine
		}
		nonzero++
	}
	if nonzero < 2 {
		return ErrInsufficientLines
	}
	diff, err := e.BalanceDifference()
	if err != nil {
		return err
	}
	if !diff.IsZero() {
		return &UnbalancedEntryError{Difference: diff}
	}
	return nil
}

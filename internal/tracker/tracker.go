// Package tracker implements the total/applied/balance arithmetic shared by
// invoices, bills, credit notes and debit notes. Every mutation returns a
// new value and preserves applied+balance==total by construction, so the
// invariant is enforced in exactly one place.
package tracker

import (
	"fmt"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
)

// Outstanding tracks how much of a document's total has been consumed.
type Outstanding struct {
	Total   money.Money `json:"total"`
	Applied money.Money `json:"applied"`
	Balance money.Money `json:"balance"`
}

// New returns an untouched Outstanding for the given total.
func New(total money.Money) (Outstanding, error) {
	if total.IsNegative() {
		return Outstanding{}, fmt.Errorf("%w: total must not be negative", shared.ErrValidation)
	}
	zero := money.Zero(total.Currency)
	return Outstanding{Total: total, Applied: zero, Balance: total}, nil
}

// OverApplicationError reports an application exceeding the available
// balance, carrying the over-applied-by amount for the caller to surface.
type OverApplicationError struct {
	Requested money.Money
	Available money.Money
}

func (e *OverApplicationError) Error() string {
	return fmt.Sprintf("application of %s exceeds available balance %s", e.Requested, e.Available)
}

func (e *OverApplicationError) Unwrap() error { return shared.ErrInvariant }

// Apply consumes amount from the balance. The receiver is unchanged; on any
// error the returned Outstanding is the zero value and nothing moved.
func (o Outstanding) Apply(amount money.Money) (Outstanding, error) {
	if !amount.IsPositive() {
		return Outstanding{}, fmt.Errorf("%w: application amount must be positive", shared.ErrValidation)
	}
	cmp, err := amount.Cmp(o.Balance)
	if err != nil {
		return Outstanding{}, err
	}
	if cmp > 0 {
		return Outstanding{}, &OverApplicationError{Requested: amount, Available: o.Balance}
	}
	applied, err := o.Applied.Add(amount)
	if err != nil {
		return Outstanding{}, err
	}
	balance, err := o.Balance.Sub(amount)
	if err != nil {
		return Outstanding{}, err
	}
	return Outstanding{Total: o.Total, Applied: applied, Balance: balance}, nil
}

// Release gives amount back to the balance (reversal of an application).
func (o Outstanding) Release(amount money.Money) (Outstanding, error) {
	if !amount.IsPositive() {
		return Outstanding{}, fmt.Errorf("%w: release amount must be positive", shared.ErrValidation)
	}
	cmp, err := amount.Cmp(o.Applied)
	if err != nil {
		return Outstanding{}, err
	}
	if cmp > 0 {
		return Outstanding{}, &OverApplicationError{Requested: amount, Available: o.Applied}
	}
	applied, err := o.Applied.Sub(amount)
	if err != nil {
		return Outstanding{}, err
	}
	balance, err := o.Balance.Add(amount)
	if err != nil {
		return Outstanding{}, err
	}
	return Outstanding{Total: o.Total, Applied: applied, Balance: balance}, nil
}

// IsSettled reports whether the balance has reached zero.
func (o Outstanding) IsSettled() bool { return o.Balance.IsZero() }

// Check verifies applied+balance==total and balance>=0. Used when
// rehydrating persisted rows, where a broken row means corrupted data.
func (o Outstanding) Check() error {
	if o.Balance.IsNegative() {
		return fmt.Errorf("%w: negative balance %s", shared.ErrInvariant, o.Balance)
	}
	sum, err := o.Applied.Add(o.Balance)
	if err != nil {
		return err
	}
	if !sum.Equal(o.Total) {
		return fmt.Errorf("%w: applied %s + balance %s != total %s", shared.ErrInvariant, o.Applied, o.Balance, o.Total)
	}
	return nil
}

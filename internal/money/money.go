// Package money implements the fixed-point monetary value type used by the
// ledger engine. Amounts are integer minor units (paise, cents); arithmetic
// never touches floating point. Decimal input (quantities, rates, user
// entered amounts) is handled with shopspring/decimal and snapped to minor
// units at the boundary.
package money

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/artha-erp/artha/internal/shared"
)

var (
	ErrCurrencyMismatch = fmt.Errorf("%w: currency mismatch", shared.ErrValidation)
	ErrInvalidCurrency  = fmt.Errorf("%w: invalid currency code", shared.ErrValidation)
	ErrInvalidAmount    = fmt.Errorf("%w: invalid amount", shared.ErrValidation)
)

// Money is an amount in integer minor units plus an ISO-4217 currency code.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New returns a Money of the given minor units.
func New(minor int64, code string) Money {
	return Money{Amount: minor, Currency: code}
}

// Zero returns the zero amount in the given currency.
func Zero(code string) Money {
	return Money{Amount: 0, Currency: code}
}

// Exponent reports the number of decimal digits in the currency's minor
// unit. Unknown codes default to 2.
func Exponent(code string) int32 {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// ValidateCurrency reports whether code is a known ISO-4217 code.
func ValidateCurrency(code string) error {
	if _, err := currency.ParseISO(code); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return nil
}

// FromDecimal converts a decimal major-unit amount to Money, rounding half
// away from zero at the currency's minor unit.
func FromDecimal(d decimal.Decimal, code string) Money {
	minor := d.Shift(Exponent(code)).Round(0).IntPart()
	return Money{Amount: minor, Currency: code}
}

// Parse converts a decimal string ("1234.50") to Money.
func Parse(s, code string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d, code), nil
}

// Decimal returns the major-unit decimal representation.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -Exponent(m.Currency))
}

func (m Money) String() string {
	return m.Decimal().StringFixed(Exponent(m.Currency)) + " " + m.Currency
}

func (m Money) sameCurrency(o Money) error {
	if m.Currency != o.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, o.Currency)
	}
	return nil
}

// Add returns m+o. The currencies must match.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}, nil
}

// Sub returns m−o. The currencies must match.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - o.Amount, Currency: m.Currency}, nil
}

// Neg returns −m.
func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Cmp compares amounts: −1 if m<o, 0 if equal, 1 if m>o.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	switch {
	case m.Amount < o.Amount:
		return -1, nil
	case m.Amount > o.Amount:
		return 1, nil
	}
	return 0, nil
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal reports whether both amount and currency match.
func (m Money) Equal(o Money) bool {
	return m.Amount == o.Amount && m.Currency == o.Currency
}

// ApplyPercent returns m×rate/100 rounded half away from zero at the minor
// unit. Used for tax computation (rate is a percentage like 18 or 0.25).
func (m Money) ApplyPercent(rate decimal.Decimal) Money {
	minor := decimal.NewFromInt(m.Amount).Mul(rate).Div(decimal.NewFromInt(100)).Round(0).IntPart()
	return Money{Amount: minor, Currency: m.Currency}
}

// Allocate distributes m across the given weights using the largest
// remainder method. The parts always re-sum exactly to m; no minor unit is
// created or lost. Weights must be positive.
func (m Money) Allocate(weights ...int64) ([]Money, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: no allocation weights", ErrInvalidAmount)
	}
	var sum int64
	for _, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("%w: allocation weight must be positive", ErrInvalidAmount)
		}
		if sum > math.MaxInt64-w {
			return nil, fmt.Errorf("%w: allocation weights overflow", ErrInvalidAmount)
		}
		sum += w
	}

	// Negative totals allocate on the absolute value and flip at the end,
	// so remainders always distribute in the same direction.
	abs := m.Amount
	neg := abs < 0
	if neg {
		abs = -abs
	}

	parts := make([]Money, len(weights))
	remainders := make([]int64, len(weights))
	var allocated int64
	for i, w := range weights {
		// abs*w can exceed 64 bits for large amounts, so the product is
		// computed in 128 bits. The quotient always fits: w <= sum, so
		// share <= abs.
		hi, lo := bits.Mul64(uint64(abs), uint64(w))
		share, rem := bits.Div64(hi, lo, uint64(sum))
		remainders[i] = int64(rem)
		parts[i] = Money{Amount: int64(share), Currency: m.Currency}
		allocated += int64(share)
	}
	// Hand out the leftover minor units to the largest remainders, ties
	// going to the earlier line.
	for leftover := abs - allocated; leftover > 0; leftover-- {
		best := 0
		for i := 1; i < len(remainders); i++ {
			if remainders[i] > remainders[best] {
				best = i
			}
		}
		parts[best].Amount++
		remainders[best] = -1
	}
	if neg {
		for i := range parts {
			parts[i].Amount = -parts[i].Amount
		}
	}
	return parts, nil
}

// Split divides m into n equal-weight parts (largest remainder).
func (m Money) Split(n int) ([]Money, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: split count must be positive", ErrInvalidAmount)
	}
	weights := make([]int64, n)
	for i := range weights {
		weights[i] = 1
	}
	return m.Allocate(weights...)
}

package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	m, err := Parse("1234.50", "INR")
	require.NoError(t, err)
	assert.Equal(t, int64(123450), m.Amount)
	assert.Equal(t, "INR", m.Currency)
	assert.Equal(t, "1234.50 INR", m.String())

	_, err = Parse("not-a-number", "INR")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFromDecimalRounding(t *testing.T) {
	// Half away from zero at the minor unit.
	m := FromDecimal(decimal.RequireFromString("0.005"), "INR")
	assert.Equal(t, int64(1), m.Amount)

	m = FromDecimal(decimal.RequireFromString("-0.005"), "INR")
	assert.Equal(t, int64(-1), m.Amount)
}

func TestAddSubCurrencyMismatch(t *testing.T) {
	a := New(100, "INR")
	b := New(50, "USD")

	_, err := a.Add(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	_, err = a.Sub(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	sum, err := a.Add(New(50, "INR"))
	require.NoError(t, err)
	assert.Equal(t, int64(150), sum.Amount)
}

func TestApplyPercent(t *testing.T) {
	// 1000.00 at 18% -> 180.00
	base := New(100000, "INR")
	tax := base.ApplyPercent(decimal.NewFromInt(18))
	assert.Equal(t, int64(18000), tax.Amount)

	// 33.33 at 18% -> 6.00 (5.9994 rounds to 6.00)
	tax = New(3333, "INR").ApplyPercent(decimal.NewFromInt(18))
	assert.Equal(t, int64(600), tax.Amount)
}

func TestAllocateExact(t *testing.T) {
	cases := []struct {
		name    string
		amount  int64
		weights []int64
	}{
		{"even split", 100, []int64{1, 1}},
		{"odd split", 101, []int64{1, 1}},
		{"three ways", 100, []int64{1, 1, 1}},
		{"weighted", 1000, []int64{3, 2, 1}},
		{"prime total", 9973, []int64{7, 11, 13}},
		{"negative", -101, []int64{1, 1, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parts, err := New(tc.amount, "INR").Allocate(tc.weights...)
			require.NoError(t, err)
			require.Len(t, parts, len(tc.weights))
			var sum int64
			for _, p := range parts {
				sum += p.Amount
			}
			assert.Equal(t, tc.amount, sum, "parts must re-sum to the whole")
		})
	}
}

func TestAllocateRemainderGoesToLargest(t *testing.T) {
	parts, err := New(100, "INR").Allocate(1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(33), parts[0].Amount)
	assert.Equal(t, int64(67), parts[1].Amount)
}

func TestAllocateLargeAmountsExact(t *testing.T) {
	// amount*weight exceeds 64 bits here; the shares must still be exact.
	const amount = int64(9_000_000_000_000_000_000)
	parts, err := New(amount, "INR").Allocate(1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3_000_000_000_000_000_000), parts[0].Amount)
	assert.Equal(t, int64(6_000_000_000_000_000_000), parts[1].Amount)

	parts, err = New(math.MaxInt64, "INR").Allocate(3, 2, 1)
	require.NoError(t, err)
	var sum int64
	for _, p := range parts {
		sum += p.Amount
	}
	assert.Equal(t, int64(math.MaxInt64), sum)
}

func TestAllocateRejectsBadWeights(t *testing.T) {
	_, err := New(100, "INR").Allocate()
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = New(100, "INR").Allocate(1, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = New(100, "INR").Allocate(1, -2)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSplitTaxIntraState(t *testing.T) {
	// 1000.00 line at 18% -> tax 180.00 -> cgst 90.00, sgst 90.00, igst 0.
	tax := New(100000, "INR").ApplyPercent(decimal.NewFromInt(18))
	breakup, err := SplitTax(tax, true)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), breakup.CGST.Amount)
	assert.Equal(t, int64(9000), breakup.SGST.Amount)
	assert.True(t, breakup.IGST.IsZero())

	total, err := breakup.Total()
	require.NoError(t, err)
	assert.Equal(t, int64(18000), total.Amount)
}

func TestSplitTaxOddMinorUnit(t *testing.T) {
	breakup, err := SplitTax(New(101, "INR"), true)
	require.NoError(t, err)
	assert.Equal(t, int64(51), breakup.CGST.Amount)
	assert.Equal(t, int64(50), breakup.SGST.Amount)

	total, err := breakup.Total()
	require.NoError(t, err)
	assert.Equal(t, int64(101), total.Amount)
}

func TestSplitTaxInterState(t *testing.T) {
	breakup, err := SplitTax(New(18000, "INR"), false)
	require.NoError(t, err)
	assert.True(t, breakup.CGST.IsZero())
	assert.True(t, breakup.SGST.IsZero())
	assert.Equal(t, int64(18000), breakup.IGST.Amount)
}

func TestExponent(t *testing.T) {
	assert.Equal(t, int32(2), Exponent("INR"))
	assert.Equal(t, int32(0), Exponent("JPY"))
	assert.Equal(t, int32(3), Exponent("KWD"))
	assert.Equal(t, int32(2), Exponent("ZZZ"))
}

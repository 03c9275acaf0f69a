package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
)

func inr(minor int64) money.Money { return money.New(minor, "INR") }

func TestApplySequenceKeepsInvariant(t *testing.T) {
	o, err := New(inr(100000))
	require.NoError(t, err)

	// applied + balance == total after every single call.
	for _, amount := range []int64{12345, 1, 50000, 37654} {
		o, err = o.Apply(inr(amount))
		require.NoError(t, err)
		require.NoError(t, o.Check())
	}
	assert.True(t, o.IsSettled())
	assert.Equal(t, int64(100000), o.Applied.Amount)
}

func TestApplyOverBalanceFailsCleanly(t *testing.T) {
	o, err := New(inr(500))
	require.NoError(t, err)
	o, err = o.Apply(inr(300))
	require.NoError(t, err)

	_, err = o.Apply(inr(201))
	require.Error(t, err)
	var over *OverApplicationError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, int64(201), over.Requested.Amount)
	assert.Equal(t, int64(200), over.Available.Amount)
	assert.ErrorIs(t, err, shared.ErrInvariant)

	// The receiver is a value; the failed call moved nothing.
	assert.Equal(t, int64(300), o.Applied.Amount)
	assert.Equal(t, int64(200), o.Balance.Amount)
}

func TestApplyRejectsNonPositive(t *testing.T) {
	o, err := New(inr(500))
	require.NoError(t, err)

	_, err = o.Apply(inr(0))
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = o.Apply(inr(-10))
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestReleaseRestoresBalance(t *testing.T) {
	o, err := New(inr(1000))
	require.NoError(t, err)
	o, err = o.Apply(inr(600))
	require.NoError(t, err)

	o, err = o.Release(inr(600))
	require.NoError(t, err)
	require.NoError(t, o.Check())
	assert.Equal(t, int64(0), o.Applied.Amount)
	assert.Equal(t, int64(1000), o.Balance.Amount)
}

func TestReleaseMoreThanAppliedFails(t *testing.T) {
	o, err := New(inr(1000))
	require.NoError(t, err)
	o, err = o.Apply(inr(100))
	require.NoError(t, err)

	_, err = o.Release(inr(101))
	var over *OverApplicationError
	assert.ErrorAs(t, err, &over)
}

func TestCheckDetectsCorruption(t *testing.T) {
	broken := Outstanding{Total: inr(100), Applied: inr(30), Balance: inr(60)}
	assert.ErrorIs(t, broken.Check(), shared.ErrInvariant)

	negative := Outstanding{Total: inr(100), Applied: inr(150), Balance: inr(-50)}
	assert.ErrorIs(t, negative.Check(), shared.ErrInvariant)
}

func TestNewRejectsNegativeTotal(t *testing.T) {
	_, err := New(inr(-1))
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCurrencyMismatch(t *testing.T) {
	o, err := New(inr(100))
	require.NoError(t, err)
	_, err = o.Apply(money.New(50, "USD"))
	assert.ErrorIs(t, err, money.ErrCurrencyMismatch)
}

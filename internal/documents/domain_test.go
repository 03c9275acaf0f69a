package documents

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artha-erp/artha/internal/shared"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeLine(t *testing.T) {
	line, err := ComputeLine("consulting", d("10"), d("100.00"), d("18"), "INR")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), line.Amount.Amount) // 1000.00
	assert.Equal(t, int64(18000), line.Tax.Amount)     // 180.00
}

func TestComputeLineFractionalQuantity(t *testing.T) {
	// 2.5 × 33.33 = 83.325 -> 83.33 after snapping to paise.
	line, err := ComputeLine("material", d("2.5"), d("33.33"), d("0"), "INR")
	require.NoError(t, err)
	assert.Equal(t, int64(8333), line.Amount.Amount)
	assert.True(t, line.Tax.IsZero())
}

func TestComputeLineRejectsBadInput(t *testing.T) {
	_, err := ComputeLine("x", d("-1"), d("10"), d("0"), "INR")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = ComputeLine("x", d("0"), d("10"), d("0"), "INR")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = ComputeLine("x", d("1"), d("-10"), d("0"), "INR")
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = ComputeLine("x", d("1"), d("10"), d("101"), "INR")
	assert.ErrorIs(t, err, ErrInvalidTaxRate)
}

func TestComputeTotalsIntraState(t *testing.T) {
	// Amount 1000.00 at 18% intra-state splits into equal CGST/SGST halves.
	line, err := ComputeLine("goods", d("1"), d("1000.00"), d("18"), "INR")
	require.NoError(t, err)

	subtotal, breakup, total, err := ComputeTotals([]LineItem{line}, true, "INR")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), subtotal.Amount)
	assert.Equal(t, int64(9000), breakup.CGST.Amount)
	assert.Equal(t, int64(9000), breakup.SGST.Amount)
	assert.True(t, breakup.IGST.IsZero())
	assert.Equal(t, int64(118000), total.Amount)

	taxTotal, err := breakup.Total()
	require.NoError(t, err)
	assert.Equal(t, int64(18000), taxTotal.Amount)
}

func TestComputeTotalsInterState(t *testing.T) {
	line, err := ComputeLine("goods", d("1"), d("1000.00"), d("18"), "INR")
	require.NoError(t, err)

	_, breakup, total, err := ComputeTotals([]LineItem{line}, false, "INR")
	require.NoError(t, err)
	assert.True(t, breakup.CGST.IsZero())
	assert.True(t, breakup.SGST.IsZero())
	assert.Equal(t, int64(18000), breakup.IGST.Amount)
	assert.Equal(t, int64(118000), total.Amount)
}

func TestComputeTotalsNoLines(t *testing.T) {
	_, _, _, err := ComputeTotals(nil, true, "INR")
	assert.ErrorIs(t, err, ErrNoLines)
}

func TestTransitionTable(t *testing.T) {
	legal := []struct {
		docType  DocType
		from, to DocStatus
	}{
		{TypeQuote, StatusDraft, StatusSent},
		{TypeQuote, StatusSent, StatusAccepted},
		{TypeQuote, StatusSent, StatusDeclined},
		{TypeQuote, StatusSent, StatusExpired},
		{TypeSalesOrder, StatusOpen, StatusConfirmed},
		{TypeSalesOrder, StatusConfirmed, StatusClosed},
		{TypePurchaseOrder, StatusDraft, StatusIssued},
		{TypePurchaseOrder, StatusIssued, StatusClosed},
		{TypeInvoice, StatusDraft, StatusSent},
		{TypeInvoice, StatusSent, StatusPaid},
		{TypeInvoice, StatusSent, StatusOverdue},
		{TypeInvoice, StatusOverdue, StatusPaid},
		{TypeBill, StatusDraft, StatusOpen},
		{TypeBill, StatusOpen, StatusPaid},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.docType, tc.from, tc.to), "%s %s->%s should be legal", tc.docType, tc.from, tc.to)
	}

	illegal := []struct {
		docType  DocType
		from, to DocStatus
	}{
		{TypeQuote, StatusDraft, StatusAccepted},
		{TypeQuote, StatusAccepted, StatusSent},
		{TypeQuote, StatusExpired, StatusSent},
		{TypeSalesOrder, StatusOpen, StatusClosed},
		{TypeInvoice, StatusPaid, StatusSent},
		{TypeInvoice, StatusCancelled, StatusSent},
		{TypeInvoice, StatusDraft, StatusPaid},
		{TypeBill, StatusPaid, StatusOpen},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.docType, tc.from, tc.to), "%s %s->%s should be illegal", tc.docType, tc.from, tc.to)
	}
}

func TestTransitionErrorType(t *testing.T) {
	doc := &Document{Type: TypeQuote, Status: StatusDraft}
	err := doc.Transition(StatusAccepted)
	require.Error(t, err)

	var ste *StateTransitionError
	require.ErrorAs(t, err, &ste)
	assert.Equal(t, StatusDraft, ste.From)
	assert.Equal(t, StatusAccepted, ste.To)
	assert.ErrorIs(t, err, shared.ErrStateTransition)
	// Failed transition leaves the document untouched.
	assert.Equal(t, StatusDraft, doc.Status)
}

func TestConversionGuard(t *testing.T) {
	quote := &Document{Type: TypeQuote, Status: StatusSent}
	assert.NoError(t, conversionGuard(quote, TypeSalesOrder))
	assert.NoError(t, conversionGuard(quote, TypeInvoice))

	quote.Status = StatusDraft
	assert.ErrorIs(t, conversionGuard(quote, TypeSalesOrder), shared.ErrStateTransition)

	order := &Document{Type: TypeSalesOrder, Status: StatusConfirmed}
	assert.NoError(t, conversionGuard(order, TypeInvoice))
	assert.ErrorIs(t, conversionGuard(order, TypeBill), shared.ErrStateTransition)

	po := &Document{Type: TypePurchaseOrder, Status: StatusIssued}
	assert.NoError(t, conversionGuard(po, TypeBill))

	converted := uuidMust()
	po.ConvertedToID = &converted
	assert.ErrorIs(t, conversionGuard(po, TypeBill), ErrAlreadyConverted)
}

package documents

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
)

// ErrAlreadyConverted rejects a second forward conversion of the same
// source. The engine owns the back-reference, so double-booking a quote or
// order is impossible rather than a caller convention.
var ErrAlreadyConverted = fmt.Errorf("%w: document already converted", shared.ErrStateTransition)

// conversion describes one legal cross-type edge.
type conversion struct {
	target     DocType
	fromStates []DocStatus
}

var conversionEdges = map[DocType][]conversion{
	TypeQuote: {
		{target: TypeSalesOrder, fromStates: []DocStatus{StatusSent, StatusAccepted}},
		{target: TypeInvoice, fromStates: []DocStatus{StatusSent, StatusAccepted}},
	},
	TypeSalesOrder: {
		{target: TypeInvoice, fromStates: []DocStatus{StatusConfirmed}},
	},
	TypePurchaseOrder: {
		{target: TypeBill, fromStates: []DocStatus{StatusIssued}},
	},
}

// conversionGuard validates the edge and the source state.
func conversionGuard(source *Document, target DocType) error {
	if source.ConvertedToID != nil {
		return ErrAlreadyConverted
	}
	for _, edge := range conversionEdges[source.Type] {
		if edge.target != target {
			continue
		}
		for _, st := range edge.fromStates {
			if source.Status == st {
				return nil
			}
		}
		return &StateTransitionError{Type: source.Type, From: source.Status, To: DocStatus("convert:" + string(target))}
	}
	return fmt.Errorf("%w: no conversion from %s to %s", shared.ErrStateTransition, source.Type, target)
}

// buildConverted creates the downstream document. Lines are copied and
// totals recomputed from them; the source is not touched here beyond what
// the caller records as the back-reference.
func buildConverted(source *Document, target DocType, customerPORef string, now time.Time) (*Document, error) {
	if err := conversionGuard(source, target); err != nil {
		return nil, err
	}

	doc := &Document{
		ID:              uuid.New(),
		CompanyID:       source.CompanyID,
		Type:            target,
		Date:            now,
		FiscalYear:      source.FiscalYear,
		CounterpartyID:  source.CounterpartyID,
		Currency:        source.Currency,
		Status:          initialConvertedStatus(target),
		IntraState:      source.IntraState,
		Applied:         money.Zero(source.Currency),
		ConvertedFromID: &source.ID,
		CustomerPORef:   customerPORef,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, l := range source.Lines {
		line := l
		line.ID = uuid.New()
		line.DocumentID = doc.ID
		doc.Lines = append(doc.Lines, line)
	}

	subtotal, breakup, total, err := ComputeTotals(doc.Lines, doc.IntraState, doc.Currency)
	if err != nil {
		return nil, err
	}
	doc.Subtotal, doc.Tax, doc.Total = subtotal, breakup, total
	return doc, nil
}

// initialConvertedStatus is where a converted document lands: orders open,
// invoices draft, bills open (a converted bill skips the draft stage, the
// vendor document already exists).
func initialConvertedStatus(target DocType) DocStatus {
	if target == TypeBill {
		return StatusOpen
	}
	return initialStatus[target]
}

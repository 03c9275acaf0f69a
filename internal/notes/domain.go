package notes

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
	"github.com/artha-erp/artha/internal/tracker"
)

// Kind distinguishes credit notes (applied against invoices) from debit
// notes (applied against bills).
type Kind string

const (
	KindCredit Kind = "CREDIT"
	KindDebit  Kind = "DEBIT"
)

// NoteStatus enumerates note lifecycle values.
type NoteStatus string

const (
	StatusDraft     NoteStatus = "DRAFT"
	StatusIssued    NoteStatus = "ISSUED"
	StatusApplied   NoteStatus = "APPLIED"
	StatusCancelled NoteStatus = "CANCELLED"
)

// Note is a credit or debit note carrying value that can be consumed
// against outstanding documents of the same counterparty.
type Note struct {
	ID               uuid.UUID           `json:"id"`
	CompanyID        int64               `json:"company_id"`
	Kind             Kind                `json:"kind"`
	Number           string              `json:"number"`
	Date             time.Time           `json:"date"`
	FiscalYear       string              `json:"fiscal_year"`
	CounterpartyID   int64               `json:"counterparty_id"`
	OriginDocumentID *uuid.UUID          `json:"origin_document_id,omitempty"`
	Currency         string              `json:"currency"`
	Subtotal         money.Money         `json:"subtotal"`
	Tax              money.TaxBreakup    `json:"tax"`
	Outstanding      tracker.Outstanding `json:"outstanding"`
	Status           NoteStatus          `json:"status"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Application is an append-only record of part of a note's value being
// consumed against one invoice or bill. A reversal is a second record
// pointing at the first via Reverses; rows are never edited.
type Application struct {
	ID        uuid.UUID   `json:"id"`
	CompanyID int64       `json:"company_id"`
	NoteID    uuid.UUID   `json:"note_id"`
	TargetID  uuid.UUID   `json:"target_id"`
	Amount    money.Money `json:"amount"`
	Reverses  *uuid.UUID  `json:"reverses,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// StatusError reports an operation attempted against a note or target in
// the wrong state.
type StatusError struct {
	Subject string
	Status  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s is %s", e.Subject, e.Status)
}

func (e *StatusError) Unwrap() error { return shared.ErrStateTransition }

// CounterpartyMismatchError reports a note applied against a document of a
// different counterparty.
type CounterpartyMismatchError struct {
	NoteParty   int64
	TargetParty int64
}

func (e *CounterpartyMismatchError) Error() string {
	return fmt.Sprintf("note counterparty %d does not match target counterparty %d", e.NoteParty, e.TargetParty)
}

func (e *CounterpartyMismatchError) Unwrap() error { return shared.ErrValidation }

// CannotCancelAppliedNoteError rejects cancelling a note with any applied
// amount, however small. Its applications must be reversed first.
type CannotCancelAppliedNoteError struct {
	Applied money.Money
}

func (e *CannotCancelAppliedNoteError) Error() string {
	return fmt.Sprintf("note has %s applied; reverse the applications first", e.Applied)
}

func (e *CannotCancelAppliedNoteError) Unwrap() error { return shared.ErrInvariant }

var (
	// ErrKindTargetMismatch rejects credit notes applied to bills and
	// debit notes applied to invoices.
	ErrKindTargetMismatch = fmt.Errorf("%w: credit notes apply to invoices, debit notes to bills", shared.ErrValidation)
	// ErrAlreadyReversed rejects reversing the same application twice.
	ErrAlreadyReversed = fmt.Errorf("%w: application already reversed", shared.ErrInvariant)
	// ErrReversalOfReversal rejects reversing a compensating record.
	ErrReversalOfReversal = fmt.Errorf("%w: cannot reverse a reversal", shared.ErrValidation)
)

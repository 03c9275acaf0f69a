package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/artha-erp/artha/internal/documents"
	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
	"github.com/artha-erp/artha/internal/tracker"
)

// Repository defines data access for notes and applications.
type Repository interface {
	WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Get(ctx context.Context, id uuid.UUID) (*Note, error)
	List(ctx context.Context, companyID int64, kind *Kind) ([]Note, error)
	ListApplications(ctx context.Context, noteID uuid.UUID) ([]Application, error)
}

// TxRepository exposes the operations of one serializable transaction.
// Target documents live in the trade document tables; the application leg
// touches both sides, so both are written under the same transaction.
type TxRepository interface {
	// GenerateNumber runs on the transaction so a rolled-back insert never
	// burns a sequence number.
	GenerateNumber(ctx context.Context, companyID int64, kind Kind, fiscalYear string) (string, error)
	InsertNote(ctx context.Context, note Note) error
	GetNoteForUpdate(ctx context.Context, id uuid.UUID) (*Note, error)
	SetNoteBalances(ctx context.Context, id uuid.UUID, o tracker.Outstanding, status NoteStatus) error
	GetApplication(ctx context.Context, id uuid.UUID) (*Application, error)
	HasReversal(ctx context.Context, applicationID uuid.UUID) (bool, error)
	InsertApplication(ctx context.Context, app Application) error
	GetTargetForUpdate(ctx context.Context, id uuid.UUID) (*documents.Document, error)
	SetTargetApplied(ctx context.Context, id uuid.UUID, applied money.Money, status documents.DocStatus) error
}

// Service maintains note balances and performs cross-entity application.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput carries the fields for a new note. Lines are priced with the
// same computation as trade documents.
type CreateInput struct {
	Kind             Kind
	Date             time.Time
	FiscalYear       string
	CounterpartyID   int64
	OriginDocumentID *uuid.UUID
	Currency         string
	IntraState       bool
	Lines            []documents.LineInput
}

// Create stores a draft note with computed totals.
func (s *Service) Create(ctx context.Context, companyID int64, input CreateInput) (*Note, error) {
	if companyID <= 0 {
		return nil, fmt.Errorf("%w: company id required", shared.ErrValidation)
	}
	if input.Kind != KindCredit && input.Kind != KindDebit {
		return nil, fmt.Errorf("%w: unknown note kind %q", shared.ErrValidation, input.Kind)
	}
	if input.CounterpartyID <= 0 {
		return nil, fmt.Errorf("%w: counterparty required", shared.ErrValidation)
	}
	if err := money.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}

	var lines []documents.LineItem
	for _, l := range input.Lines {
		line, err := documents.ComputeLine(l.Description, l.Quantity, l.Rate, l.TaxRate, input.Currency)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	subtotal, breakup, total, err := documents.ComputeTotals(lines, input.IntraState, input.Currency)
	if err != nil {
		return nil, err
	}
	outstanding, err := tracker.New(total)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	note := Note{
		ID:               uuid.New(),
		CompanyID:        companyID,
		Kind:             input.Kind,
		Date:             input.Date,
		FiscalYear:       input.FiscalYear,
		CounterpartyID:   input.CounterpartyID,
		OriginDocumentID: input.OriginDocumentID,
		Currency:         input.Currency,
		Subtotal:         subtotal,
		Tax:              breakup,
		Outstanding:      outstanding,
		Status:           StatusDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.GenerateNumber(ctx, companyID, input.Kind, input.FiscalYear)
		if err != nil {
			return fmt.Errorf("generate note number: %w", err)
		}
		note.Number = number
		return tx.InsertNote(ctx, note)
	})
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	return &note, nil
}

// Issue moves a draft note to issued, making it applicable.
func (s *Service) Issue(ctx context.Context, companyID int64, id uuid.UUID) (*Note, error) {
	var result *Note
	err := s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		note, err := tx.GetNoteForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := shared.CheckTenant(companyID, note.CompanyID); err != nil {
			return err
		}
		if note.Status != StatusDraft {
			return &StatusError{Subject: "note", Status: string(note.Status)}
		}
		if err := tx.SetNoteBalances(ctx, id, note.Outstanding, StatusIssued); err != nil {
			return err
		}
		note.Status = StatusIssued
		result = note
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Apply consumes amount of the note against an outstanding invoice or
// bill. Both sides move under one serializable transaction; any failure
// leaves both balances exactly as before the call.
func (s *Service) Apply(ctx context.Context, companyID int64, noteID, targetID uuid.UUID, amount money.Money) (*Application, error) {
	var result *Application
	err := s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		note, err := tx.GetNoteForUpdate(ctx, noteID)
		if err != nil {
			return err
		}
		if err := shared.CheckTenant(companyID, note.CompanyID); err != nil {
			return err
		}
		if note.Status != StatusIssued {
			return &StatusError{Subject: "note", Status: string(note.Status)}
		}

		target, err := tx.GetTargetForUpdate(ctx, targetID)
		if err != nil {
			return err
		}
		if err := shared.CheckTenant(companyID, target.CompanyID); err != nil {
			return err
		}
		if err := target.Outstanding().Check(); err != nil {
			return fmt.Errorf("target document %s: %w", target.Number, err)
		}
		if err := checkKindTarget(note.Kind, target.Type); err != nil {
			return err
		}
		if !target.Payable() {
			return &StatusError{Subject: "target document", Status: string(target.Status)}
		}
		if note.CounterpartyID != target.CounterpartyID {
			return &CounterpartyMismatchError{NoteParty: note.CounterpartyID, TargetParty: target.CounterpartyID}
		}

		// The note side is checked first so the error names the note's
		// balance when both sides would overflow.
		noteOut, err := note.Outstanding.Apply(amount)
		if err != nil {
			return err
		}
		targetOut, err := target.Outstanding().Apply(amount)
		if err != nil {
			return err
		}

		noteStatus := StatusIssued
		if noteOut.IsSettled() {
			noteStatus = StatusApplied
		}
		if err := tx.SetNoteBalances(ctx, noteID, noteOut, noteStatus); err != nil {
			return err
		}

		targetStatus := target.Status
		if targetOut.IsSettled() {
			if err := target.Transition(documents.StatusPaid); err != nil {
				return err
			}
			targetStatus = documents.StatusPaid
		}
		if err := tx.SetTargetApplied(ctx, targetID, targetOut.Applied, targetStatus); err != nil {
			return err
		}

		app := Application{
			ID:        uuid.New(),
			CompanyID: companyID,
			NoteID:    noteID,
			TargetID:  targetID,
			Amount:    amount,
			CreatedAt: time.Now(),
		}
		if err := tx.InsertApplication(ctx, app); err != nil {
			return err
		}
		result = &app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel voids a note that has nothing applied. The balance freezes where
// it stands; a partially applied note must have its applications reversed
// before it can be cancelled.
func (s *Service) Cancel(ctx context.Context, companyID int64, id uuid.UUID) (*Note, error) {
	var result *Note
	err := s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		note, err := tx.GetNoteForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := shared.CheckTenant(companyID, note.CompanyID); err != nil {
			return err
		}
		if note.Status == StatusCancelled || note.Status == StatusApplied {
			return &StatusError{Subject: "note", Status: string(note.Status)}
		}
		if !note.Outstanding.Applied.IsZero() {
			return &CannotCancelAppliedNoteError{Applied: note.Outstanding.Applied}
		}
		if err := tx.SetNoteBalances(ctx, id, note.Outstanding, StatusCancelled); err != nil {
			return err
		}
		note.Status = StatusCancelled
		result = note
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReverseApplication appends a compensating record restoring both sides of
// an earlier application. A target settled by the original application
// reopens; an exhausted note becomes applicable again. Reversals cannot
// themselves be reversed.
func (s *Service) ReverseApplication(ctx context.Context, companyID int64, applicationID uuid.UUID) (*Application, error) {
	var result *Application
	err := s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if err := shared.CheckTenant(companyID, original.CompanyID); err != nil {
			return err
		}
		if original.Reverses != nil {
			return ErrReversalOfReversal
		}
		reversed, err := tx.HasReversal(ctx, applicationID)
		if err != nil {
			return err
		}
		if reversed {
			return ErrAlreadyReversed
		}

		note, err := tx.GetNoteForUpdate(ctx, original.NoteID)
		if err != nil {
			return err
		}
		if note.Status == StatusCancelled {
			return &StatusError{Subject: "note", Status: string(note.Status)}
		}
		target, err := tx.GetTargetForUpdate(ctx, original.TargetID)
		if err != nil {
			return err
		}
		if err := target.Outstanding().Check(); err != nil {
			return fmt.Errorf("target document %s: %w", target.Number, err)
		}

		noteOut, err := note.Outstanding.Release(original.Amount)
		if err != nil {
			return err
		}
		targetOut, err := target.Outstanding().Release(original.Amount)
		if err != nil {
			return err
		}

		noteStatus := note.Status
		if noteStatus == StatusApplied {
			noteStatus = StatusIssued
		}
		if err := tx.SetNoteBalances(ctx, note.ID, noteOut, noteStatus); err != nil {
			return err
		}

		// A paid target reopens to its payable state. This is the one
		// deliberate backwards edge; it exists only on the compensating
		// path and never through Document.Transition.
		targetStatus := target.Status
		if target.Status == documents.StatusPaid {
			targetStatus = documents.StatusSent
			if target.Type == documents.TypeBill {
				targetStatus = documents.StatusOpen
			}
		}
		if err := tx.SetTargetApplied(ctx, target.ID, targetOut.Applied, targetStatus); err != nil {
			return err
		}

		reversal := Application{
			ID:        uuid.New(),
			CompanyID: companyID,
			NoteID:    original.NoteID,
			TargetID:  original.TargetID,
			Amount:    original.Amount.Neg(),
			Reverses:  &original.ID,
			CreatedAt: time.Now(),
		}
		if err := tx.InsertApplication(ctx, reversal); err != nil {
			return err
		}
		result = &reversal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get loads one note.
func (s *Service) Get(ctx context.Context, companyID int64, id uuid.UUID) (*Note, error) {
	note, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := shared.CheckTenant(companyID, note.CompanyID); err != nil {
		return nil, err
	}
	return note, nil
}

// List returns the company's notes, optionally narrowed by kind.
func (s *Service) List(ctx context.Context, companyID int64, kind *Kind) ([]Note, error) {
	return s.repo.List(ctx, companyID, kind)
}

// ListApplications returns a note's application trail, reversals included.
func (s *Service) ListApplications(ctx context.Context, companyID int64, noteID uuid.UUID) ([]Application, error) {
	if _, err := s.Get(ctx, companyID, noteID); err != nil {
		return nil, err
	}
	return s.repo.ListApplications(ctx, noteID)
}

func checkKindTarget(kind Kind, docType documents.DocType) error {
	if kind == KindCredit && docType != documents.TypeInvoice {
		return ErrKindTargetMismatch
	}
	if kind == KindDebit && docType != documents.TypeBill {
		return ErrKindTargetMismatch
	}
	return nil
}

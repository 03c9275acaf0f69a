package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
)

// Payment is a settlement recorded against an invoice or bill. Rows are
// append-only, like note applications.
type Payment struct {
	ID         uuid.UUID   `json:"id"`
	DocumentID uuid.UUID   `json:"document_id"`
	Amount     money.Money `json:"amount"`
	Method     string      `json:"method"`
	Reference  string      `json:"reference"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ErrNotPayable rejects payments against documents outside a payable state.
var ErrNotPayable = fmt.Errorf("%w: document does not accept payments in its current state", shared.ErrStateTransition)

// ErrCancelWithApplications rejects cancelling an invoice/bill that already
// has money applied against it.
var ErrCancelWithApplications = fmt.Errorf("%w: document has applications; reverse them first", shared.ErrInvariant)

// Repository defines data access for trade documents.
type Repository interface {
	WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Get(ctx context.Context, id uuid.UUID) (*Document, error)
	List(ctx context.Context, companyID int64, filter ListFilter) ([]Document, error)
	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]Document, error)
	ListExpiryCandidates(ctx context.Context, asOf time.Time) ([]Document, error)
}

// TxRepository exposes operations bound to one serializable transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Document, error)
	// GenerateNumber runs on the transaction so a rolled-back insert or a
	// serialization retry never burns a sequence number.
	GenerateNumber(ctx context.Context, companyID int64, docType DocType, fiscalYear string) (string, error)
	Insert(ctx context.Context, doc Document) error
	SetStatus(ctx context.Context, id uuid.UUID, status DocStatus) error
	SetApplied(ctx context.Context, id uuid.UUID, applied money.Money, status DocStatus) error
	SetConvertedTo(ctx context.Context, sourceID, targetID uuid.UUID) error
	InsertPayment(ctx context.Context, p Payment) error
}

// ListFilter narrows document listings.
type ListFilter struct {
	Type   *DocType
	Status *DocStatus
	From   *time.Time
	To     *time.Time
}

// Service handles trade document business logic.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// LineInput is one requested line before pricing.
type LineInput struct {
	Description string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	TaxRate     decimal.Decimal
}

// CreateInput carries the fields for a new trade document.
type CreateInput struct {
	Type           DocType
	Date           time.Time
	FiscalYear     string
	CounterpartyID int64
	Currency       string
	IntraState     bool
	Lines          []LineInput
	CustomerPORef  string
	ExpiryDate     *time.Time
	DueDate        *time.Time
}

// Create prices the lines, derives totals and stores the document in its
// type's initial state.
func (s *Service) Create(ctx context.Context, companyID int64, input CreateInput) (*Document, error) {
	if companyID <= 0 {
		return nil, fmt.Errorf("%w: company id required", shared.ErrValidation)
	}
	if _, ok := initialStatus[input.Type]; !ok {
		return nil, fmt.Errorf("%w: unknown document type %q", shared.ErrValidation, input.Type)
	}
	if input.CounterpartyID <= 0 {
		return nil, fmt.Errorf("%w: counterparty required", shared.ErrValidation)
	}
	if err := money.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}
	if input.Date.IsZero() {
		return nil, fmt.Errorf("%w: document date required", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return nil, ErrNoLines
	}

	now := time.Now()
	doc := Document{
		ID:             uuid.New(),
		CompanyID:      companyID,
		Type:           input.Type,
		Date:           input.Date,
		FiscalYear:     input.FiscalYear,
		CounterpartyID: input.CounterpartyID,
		Currency:       input.Currency,
		Status:         initialStatus[input.Type],
		IntraState:     input.IntraState,
		Applied:        money.Zero(input.Currency),
		CustomerPORef:  input.CustomerPORef,
		ExpiryDate:     input.ExpiryDate,
		DueDate:        input.DueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i, l := range input.Lines {
		line, err := ComputeLine(l.Description, l.Quantity, l.Rate, l.TaxRate, input.Currency)
		if err != nil {
			return nil, err
		}
		line.ID = uuid.New()
		line.DocumentID = doc.ID
		line.LineOrder = i + 1
		doc.Lines = append(doc.Lines, line)
	}

	subtotal, breakup, total, err := ComputeTotals(doc.Lines, doc.IntraState, doc.Currency)
	if err != nil {
		return nil, err
	}
	doc.Subtotal, doc.Tax, doc.Total = subtotal, breakup, total

	err = s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.GenerateNumber(ctx, companyID, doc.Type, doc.FiscalYear)
		if err != nil {
			return fmt.Errorf("generate document number: %w", err)
		}
		doc.Number = number
		return tx.Insert(ctx, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return &doc, nil
}

// Get loads one document.
func (s *Service) Get(ctx context.Context, companyID int64, id uuid.UUID) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := shared.CheckTenant(companyID, doc.CompanyID); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns the company's documents matching the filter.
func (s *Service) List(ctx context.Context, companyID int64, filter ListFilter) ([]Document, error) {
	return s.repo.List(ctx, companyID, filter)
}

// transitionTo moves a document through its state machine inside one
// serializable transaction. guard, when non-nil, runs after the tenant
// check against the locked row.
func (s *Service) transitionTo(ctx context.Context, companyID int64, id uuid.UUID, to DocStatus, guard func(*Document) error) (*Document, error) {
	var result *Document
	err := s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := shared.CheckTenant(companyID, doc.CompanyID); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(doc); err != nil {
				return err
			}
		}
		if err := doc.Transition(to); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, id, to); err != nil {
			return err
		}
		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Send moves a draft quote or invoice out to the counterparty.
func (s *Service) Send(ctx context.Context, companyID int64, id uuid.UUID) (*Document, error) {
	return s.transitionTo(ctx, companyID, id, StatusSent, nil)
}

// MarkAccepted records the counterparty accepting a sent quote.
func (s *Service) MarkAccepted(ctx context.Context, companyID int64, id uuid.UUID) (*Document, error) {
	return s.transitionTo(ctx, companyID, id, StatusAccepted, nil)
}

// MarkDeclined records the counterparty declining a sent quote.
func (s *Service) MarkDeclined(ctx context.Context, companyID int64, id uuid.UUID) (*Document, error) {
	return s.transitionTo(ctx, companyID, id, StatusDeclined, nil)
}

// Confirm confirms an open sales order.
func (s *Service) Confirm(ctx context.Context, companyID int64, id uuid.UUID) (*Document, error) {
	return s.transitionTo(ctx, companyID, id, StatusConfirmed, nil)
}

// Issue issues a draft purchase order to the vendor.
func (s *Service) Issue(ctx context.Context, companyID int64, id uuid.UUID) (*Document, error) {
	return s.transitionTo(ctx, companyID, id, StatusIssued, nil)
}

// Open opens a draft bill for payment.
func (s *Service) Open(ctx context.Context, companyID int64, id uuid.UUID) (*Document, error) {
	return s.transitionTo(ctx, companyID, id, StatusOpen, nil)
}

// Close closes a confirmed sales order or issued purchase order.
func (s *Service) Close(ctx context.Context, companyID int64, id uuid.UUID) (*Document, error) {
	return s.transitionTo(ctx, companyID, id, StatusClosed, nil)
}

// Cancel cancels an invoice or bill that has nothing applied against it.
func (s *Service) Cancel(ctx context.Context, companyID int64, id uuid.UUID) (*Document, error) {
	return s.transitionTo(ctx, companyID, id, StatusCancelled, func(doc *Document) error {
		if !doc.Applied.IsZero() {
			return ErrCancelWithApplications
		}
		return nil
	})
}

// Convert creates the downstream document for a legal conversion edge and
// records the back-reference on the source. The source's lines, totals and
// status are untouched. A source converts at most once.
func (s *Service) Convert(ctx context.Context, companyID int64, sourceID uuid.UUID, target DocType, customerPORef string) (*Document, error) {
	var created *Document
	err := s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		source, err := tx.GetForUpdate(ctx, sourceID)
		if err != nil {
			return err
		}
		if err := shared.CheckTenant(companyID, source.CompanyID); err != nil {
			return err
		}
		doc, err := buildConverted(source, target, customerPORef, time.Now())
		if err != nil {
			return err
		}
		number, err := tx.GenerateNumber(ctx, companyID, doc.Type, doc.FiscalYear)
		if err != nil {
			return fmt.Errorf("generate document number: %w", err)
		}
		doc.Number = number
		if err := tx.Insert(ctx, *doc); err != nil {
			return err
		}
		if err := tx.SetConvertedTo(ctx, source.ID, doc.ID); err != nil {
			return err
		}
		created = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RecordPayment settles part of an invoice or bill. When the outstanding
// balance reaches zero the document flips to paid through its state
// machine. All-or-nothing under one serializable transaction.
func (s *Service) RecordPayment(ctx context.Context, companyID int64, id uuid.UUID, amount money.Money, method, reference string) (*Document, error) {
	var result *Document
	err := s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := shared.CheckTenant(companyID, doc.CompanyID); err != nil {
			return err
		}
		if !doc.Payable() {
			return ErrNotPayable
		}
		outstanding, err := doc.Outstanding().Apply(amount)
		if err != nil {
			return err
		}

		status := doc.Status
		if outstanding.IsSettled() {
			if err := doc.Transition(StatusPaid); err != nil {
				return err
			}
			status = StatusPaid
		}
		if err := tx.SetApplied(ctx, id, outstanding.Applied, status); err != nil {
			return err
		}
		if err := tx.InsertPayment(ctx, Payment{
			ID:         uuid.New(),
			DocumentID: id,
			Amount:     amount,
			Method:     method,
			Reference:  reference,
			CreatedAt:  time.Now(),
		}); err != nil {
			return err
		}
		doc.Applied = outstanding.Applied
		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkOverdue sweeps payable documents past their due date into overdue.
// Called from the background worker; each document moves through the state
// machine individually so one bad row never blocks the sweep.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	candidates, err := s.repo.ListOverdueCandidates(ctx, asOf)
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, doc := range candidates {
		if _, err := s.transitionTo(ctx, doc.CompanyID, doc.ID, StatusOverdue, nil); err != nil {
			continue
		}
		moved++
	}
	return moved, nil
}

// ExpireQuotes sweeps sent quotes past their expiry date.
func (s *Service) ExpireQuotes(ctx context.Context, asOf time.Time) (int, error) {
	candidates, err := s.repo.ListExpiryCandidates(ctx, asOf)
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, doc := range candidates {
		if _, err := s.transitionTo(ctx, doc.CompanyID, doc.ID, StatusExpired, nil); err != nil {
			continue
		}
		moved++
	}
	return moved, nil
}

package recon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
)

// Repository defines data access for bank transactions and sessions.
type Repository interface {
	WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	BookBalance(ctx context.Context, companyID int64, accountID int64, asOf time.Time, currency string) (money.Money, error)
	ListUnreconciled(ctx context.Context, companyID int64, accountID int64, asOf time.Time) ([]BankTransaction, error)
	InsertTransaction(ctx context.Context, txn BankTransaction) error
	ListSessions(ctx context.Context, companyID int64, accountID int64) ([]Session, error)
}

// TxRepository exposes the operations of one serializable transaction.
type TxRepository interface {
	BookBalance(ctx context.Context, companyID int64, accountID int64, asOf time.Time, currency string) (money.Money, error)
	ListUnreconciledForUpdate(ctx context.Context, companyID int64, accountID int64, asOf time.Time) ([]BankTransaction, error)
	MarkReconciled(ctx context.Context, ids []uuid.UUID, at time.Time) error
	InsertSession(ctx context.Context, s Session) error
}

// Service computes reconciliation previews and commits sessions.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Input names the statement being reconciled against.
type Input struct {
	AccountID        int64
	StatementDate    time.Time
	StatementBalance money.Money
	SelectedIDs      []uuid.UUID
}

// RecordTransaction stores one row of the externally sourced bank feed.
func (s *Service) RecordTransaction(ctx context.Context, companyID int64, txn BankTransaction) (*BankTransaction, error) {
	if txn.Type != TxnCredit && txn.Type != TxnDebit {
		return nil, fmt.Errorf("%w: unknown transaction type %q", shared.ErrValidation, txn.Type)
	}
	if !txn.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: transaction amount must be positive", shared.ErrValidation)
	}
	txn.ID = uuid.New()
	txn.CompanyID = companyID
	txn.Reconciled = false
	txn.ReconciledAt = nil
	if err := s.repo.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

// Preview computes the adjusted book balance and residual difference for
// the selection without locking or persisting anything.
func (s *Service) Preview(ctx context.Context, companyID int64, input Input) (*Preview, error) {
	book, err := s.repo.BookBalance(ctx, companyID, input.AccountID, input.StatementDate, input.StatementBalance.Currency)
	if err != nil {
		return nil, err
	}
	txns, err := s.repo.ListUnreconciled(ctx, companyID, input.AccountID, input.StatementDate)
	if err != nil {
		return nil, err
	}
	selected := selectionSet(input.SelectedIDs)
	if err := checkSelection(txns, selected); err != nil {
		return nil, err
	}
	adjusted, difference, err := compute(book, input.StatementBalance, txns, selected)
	if err != nil {
		return nil, err
	}
	return &Preview{
		BookBalance:         book,
		StatementBalance:    input.StatementBalance,
		AdjustedBookBalance: adjusted,
		Difference:          difference,
		Unreconciled:        txns,
	}, nil
}

// Commit recomputes the difference under lock and, only when it is zero,
// stamps the selected transactions reconciled and persists the session
// summary. A nonzero residual fails with UnreconciledDifferenceError and
// changes nothing.
func (s *Service) Commit(ctx context.Context, companyID int64, input Input) (*Session, error) {
	var result *Session
	err := s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		book, err := tx.BookBalance(ctx, companyID, input.AccountID, input.StatementDate, input.StatementBalance.Currency)
		if err != nil {
			return err
		}
		txns, err := tx.ListUnreconciledForUpdate(ctx, companyID, input.AccountID, input.StatementDate)
		if err != nil {
			return err
		}
		for _, txn := range txns {
			if err := shared.CheckTenant(companyID, txn.CompanyID); err != nil {
				return err
			}
		}
		selected := selectionSet(input.SelectedIDs)
		if err := checkSelection(txns, selected); err != nil {
			return err
		}
		_, difference, err := compute(book, input.StatementBalance, txns, selected)
		if err != nil {
			return err
		}
		if !difference.IsZero() {
			return &UnreconciledDifferenceError{Difference: difference}
		}

		now := time.Now()
		if len(input.SelectedIDs) > 0 {
			if err := tx.MarkReconciled(ctx, input.SelectedIDs, now); err != nil {
				return err
			}
		}
		session := Session{
			ID:               uuid.New(),
			CompanyID:        companyID,
			AccountID:        input.AccountID,
			StatementDate:    input.StatementDate,
			StatementBalance: input.StatementBalance,
			BookBalance:      book,
			SelectedCount:    len(input.SelectedIDs),
			CommittedAt:      now,
		}
		if err := tx.InsertSession(ctx, session); err != nil {
			return err
		}
		result = &session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListSessions returns committed session summaries for one account.
func (s *Service) ListSessions(ctx context.Context, companyID int64, accountID int64) ([]Session, error) {
	return s.repo.ListSessions(ctx, companyID, accountID)
}

// ListUnreconciled returns the open items for one account as of a date.
func (s *Service) ListUnreconciled(ctx context.Context, companyID int64, accountID int64, asOf time.Time) ([]BankTransaction, error) {
	return s.repo.ListUnreconciled(ctx, companyID, accountID, asOf)
}

func selectionSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

package recon

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
)

const companyID int64 = 7

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	book     money.Money
	txns     map[uuid.UUID]*BankTransaction
	sessions []Session
}

func newMockRepository(bookMinor int64) *mockRepository {
	return &mockRepository{
		book: money.New(bookMinor, "INR"),
		txns: make(map[uuid.UUID]*BankTransaction),
	}
}

func (m *mockRepository) WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &mockTxRepo{mock: m})
}

func (m *mockRepository) BookBalance(ctx context.Context, company int64, accountID int64, asOf time.Time, currency string) (money.Money, error) {
	return m.book, nil
}

func (m *mockRepository) ListUnreconciled(ctx context.Context, company int64, accountID int64, asOf time.Time) ([]BankTransaction, error) {
	var out []BankTransaction
	for _, t := range m.txns {
		if !t.Reconciled && !t.Date.After(asOf) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockRepository) InsertTransaction(ctx context.Context, txn BankTransaction) error {
	cp := txn
	m.txns[txn.ID] = &cp
	return nil
}

func (m *mockRepository) ListSessions(ctx context.Context, company int64, accountID int64) ([]Session, error) {
	return m.sessions, nil
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) BookBalance(ctx context.Context, company int64, accountID int64, asOf time.Time, currency string) (money.Money, error) {
	return t.mock.book, nil
}

func (t *mockTxRepo) ListUnreconciledForUpdate(ctx context.Context, company int64, accountID int64, asOf time.Time) ([]BankTransaction, error) {
	return t.mock.ListUnreconciled(ctx, company, accountID, asOf)
}

func (t *mockTxRepo) MarkReconciled(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	for _, id := range ids {
		txn, ok := t.mock.txns[id]
		if !ok {
			return shared.ErrNotFound
		}
		txn.Reconciled = true
		txn.ReconciledAt = &at
	}
	return nil
}

func (t *mockTxRepo) InsertSession(ctx context.Context, s Session) error {
	t.mock.sessions = append(t.mock.sessions, s)
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

const accountID int64 = 3

var statementDate = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

func addTxn(repo *mockRepository, txnType TxnType, minor int64, daysBefore int) *BankTransaction {
	txn := &BankTransaction{
		ID:        uuid.New(),
		CompanyID: companyID,
		AccountID: accountID,
		Date:      statementDate.AddDate(0, 0, -daysBefore),
		Type:      txnType,
		Amount:    money.New(minor, "INR"),
	}
	repo.txns[txn.ID] = txn
	return txn
}

func sessionInput(statementMinor int64, selected ...uuid.UUID) Input {
	return Input{
		AccountID:        accountID,
		StatementDate:    statementDate,
		StatementBalance: money.New(statementMinor, "INR"),
		SelectedIDs:      selected,
	}
}

// ============================================================================
// TESTS
// ============================================================================

func TestPreviewConvergence(t *testing.T) {
	// Book 10000, statement 10500, one unreconciled credit of 500 left
	// unselected: the bank never presented the payment, so adding it back
	// makes the two sides agree.
	repo := newMockRepository(1000000)
	addTxn(repo, TxnCredit, 50000, 1)
	svc := NewService(repo)

	preview, err := svc.Preview(context.Background(), companyID, sessionInput(1050000))
	require.NoError(t, err)
	assert.Equal(t, int64(1050000), preview.AdjustedBookBalance.Amount)
	assert.True(t, preview.Difference.IsZero())
}

func TestPreviewSelectedCreditStaysInBook(t *testing.T) {
	// Selecting the credit means the bank did process it, so nothing is
	// backed out and the 500 gap surfaces as the residual.
	repo := newMockRepository(1000000)
	credit := addTxn(repo, TxnCredit, 50000, 1)
	svc := NewService(repo)

	preview, err := svc.Preview(context.Background(), companyID, sessionInput(1050000, credit.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), preview.AdjustedBookBalance.Amount)
	assert.Equal(t, int64(50000), preview.Difference.Amount)
}

func TestPreviewBacksOutUnclearedDeposit(t *testing.T) {
	// A deposit recorded in the book but not yet cleared by the bank is
	// removed from the adjusted balance.
	repo := newMockRepository(1000000)
	addTxn(repo, TxnDebit, 100000, 2)
	svc := NewService(repo)

	preview, err := svc.Preview(context.Background(), companyID, sessionInput(900000))
	require.NoError(t, err)
	assert.Equal(t, int64(900000), preview.AdjustedBookBalance.Amount)
	assert.True(t, preview.Difference.IsZero())
}

func TestPreviewIgnoresTransactionsAfterStatementDate(t *testing.T) {
	repo := newMockRepository(1000000)
	future := addTxn(repo, TxnCredit, 50000, -5) // five days after the statement
	svc := NewService(repo)

	preview, err := svc.Preview(context.Background(), companyID, sessionInput(1000000))
	require.NoError(t, err)
	assert.True(t, preview.Difference.IsZero())
	assert.Empty(t, preview.Unreconciled)

	_, err = svc.Preview(context.Background(), companyID, sessionInput(1000000, future.ID))
	assert.ErrorIs(t, err, ErrUnknownSelection)
}

func TestCommitStampsSelectedTransactions(t *testing.T) {
	repo := newMockRepository(1050000)
	credit := addTxn(repo, TxnCredit, 50000, 1)
	svc := NewService(repo)

	session, err := svc.Commit(context.Background(), companyID, sessionInput(1050000, credit.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, session.SelectedCount)
	assert.Equal(t, int64(1050000), session.BookBalance.Amount)

	assert.True(t, repo.txns[credit.ID].Reconciled)
	require.NotNil(t, repo.txns[credit.ID].ReconciledAt)
	require.Len(t, repo.sessions, 1)

	// A stamped transaction drops out of the next cycle's scope.
	open, err := svc.ListUnreconciled(context.Background(), companyID, accountID, statementDate)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestCommitRefusesNonzeroDifference(t *testing.T) {
	repo := newMockRepository(1050000)
	credit := addTxn(repo, TxnCredit, 50000, 1)
	svc := NewService(repo)

	// Statement disagrees by 25.00 even with the credit selected.
	_, err := svc.Commit(context.Background(), companyID, sessionInput(1052500, credit.ID))
	var ude *UnreconciledDifferenceError
	require.ErrorAs(t, err, &ude)
	assert.Equal(t, int64(2500), ude.Difference.Amount)
	assert.ErrorIs(t, err, shared.ErrInvariant)

	// Nothing moved.
	assert.False(t, repo.txns[credit.ID].Reconciled)
	assert.Empty(t, repo.sessions)
}

func TestRecordTransactionValidation(t *testing.T) {
	repo := newMockRepository(0)
	svc := NewService(repo)

	_, err := svc.RecordTransaction(context.Background(), companyID, BankTransaction{
		AccountID: accountID, Date: statementDate, Type: "TRANSFER", Amount: money.New(100, "INR"),
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordTransaction(context.Background(), companyID, BankTransaction{
		AccountID: accountID, Date: statementDate, Type: TxnCredit, Amount: money.Zero("INR"),
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	stored, err := svc.RecordTransaction(context.Background(), companyID, BankTransaction{
		AccountID: accountID, Date: statementDate, Type: TxnCredit, Amount: money.New(100, "INR"), Reference: "NEFT-1",
	})
	require.NoError(t, err)
	assert.Equal(t, companyID, stored.CompanyID)
	assert.False(t, stored.Reconciled)
}

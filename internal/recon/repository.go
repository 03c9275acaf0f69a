package recon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artha-erp/artha/internal/ledger"
	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/platform/db"
)

// PgRepository provides PostgreSQL backed persistence for the bank feed
// and committed reconciliation sessions.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

var _ Repository = (*PgRepository)(nil)

// WithSerializableTx wraps fn in a serializable transaction with bounded
// retry on serialization failure.
func (r *PgRepository) WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// BookBalance derives the ledger balance for a bank account as of the
// statement date: posted debits minus posted credits.
func (r *PgRepository) BookBalance(ctx context.Context, companyID int64, accountID int64, asOf time.Time, currency string) (money.Money, error) {
	return bookBalance(ctx, r.pool, companyID, accountID, asOf, currency)
}

// ListUnreconciled returns open bank transactions dated on or before asOf.
func (r *PgRepository) ListUnreconciled(ctx context.Context, companyID int64, accountID int64, asOf time.Time) ([]BankTransaction, error) {
	return listUnreconciled(ctx, r.pool, companyID, accountID, asOf, false)
}

// InsertTransaction stores one bank feed row.
func (r *PgRepository) InsertTransaction(ctx context.Context, txn BankTransaction) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO bank_transactions (id, company_id, account_id, txn_date, txn_type, amount, currency, reference, reconciled, reconciled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		txn.ID, txn.CompanyID, txn.AccountID, txn.Date, txn.Type, txn.Amount.Amount, txn.Amount.Currency, txn.Reference, txn.Reconciled, txn.ReconciledAt)
	return err
}

// ListSessions returns committed sessions for one account, newest first.
func (r *PgRepository) ListSessions(ctx context.Context, companyID int64, accountID int64) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, account_id, statement_date, statement_balance, book_balance, currency, selected_count, committed_at
FROM reconciliation_sessions WHERE company_id = $1 AND account_id = $2 ORDER BY committed_at DESC`, companyID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []Session
	for rows.Next() {
		var s Session
		var statement, book int64
		var currency string
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.AccountID, &s.StatementDate, &statement, &book, &currency, &s.SelectedCount, &s.CommittedAt); err != nil {
			return nil, err
		}
		s.StatementBalance = money.New(statement, currency)
		s.BookBalance = money.New(book, currency)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// bookBalance nets posted debits against credits as of the statement date.
// Reversed entries count too, so a reversal pair cancels instead of
// doubling up.
func bookBalance(ctx context.Context, q queryer, companyID int64, accountID int64, asOf time.Time, currency string) (money.Money, error) {
	var debits, credits int64
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.company_id = $1 AND l.account_id = $2 AND e.status = ANY($3) AND e.entry_date <= $4`,
		companyID, accountID, ledger.AggregateStatuses(), asOf).Scan(&debits, &credits)
	if err != nil {
		return money.Money{}, err
	}
	return money.New(debits-credits, currency), nil
}

func listUnreconciled(ctx context.Context, q queryer, companyID int64, accountID int64, asOf time.Time, forUpdate bool) ([]BankTransaction, error) {
	query := `SELECT id, company_id, account_id, txn_date, txn_type, amount, currency, reference, reconciled, reconciled_at
FROM bank_transactions
WHERE company_id = $1 AND account_id = $2 AND reconciled = false AND txn_date <= $3
ORDER BY txn_date, id`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, query, companyID, accountID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txns []BankTransaction
	for rows.Next() {
		var t BankTransaction
		var amount int64
		var currency string
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.AccountID, &t.Date, &t.Type, &amount, &currency, &t.Reference, &t.Reconciled, &t.ReconciledAt); err != nil {
			return nil, err
		}
		t.Amount = money.New(amount, currency)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) BookBalance(ctx context.Context, companyID int64, accountID int64, asOf time.Time, currency string) (money.Money, error) {
	return bookBalance(ctx, t.tx, companyID, accountID, asOf, currency)
}

func (t *txRepo) ListUnreconciledForUpdate(ctx context.Context, companyID int64, accountID int64, asOf time.Time) ([]BankTransaction, error) {
	return listUnreconciled(ctx, t.tx, companyID, accountID, asOf, true)
}

func (t *txRepo) MarkReconciled(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE bank_transactions SET reconciled = true, reconciled_at = $2 WHERE id = ANY($1)`, ids, at)
	return err
}

func (t *txRepo) InsertSession(ctx context.Context, s Session) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO reconciliation_sessions (id, company_id, account_id, statement_date, statement_balance, book_balance, currency, selected_count, committed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.CompanyID, s.AccountID, s.StatementDate, s.StatementBalance.Amount, s.BookBalance.Amount, s.StatementBalance.Currency, s.SelectedCount, s.CommittedAt)
	return err
}

package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/platform/db"
	"github.com/artha-erp/artha/internal/shared"
)

// PgRepository provides PostgreSQL backed persistence for the ledger.
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

// CreateAccount inserts a chart node.
func (r *PgRepository) CreateAccount(ctx context.Context, a Account) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, type, parent_id, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		a.CompanyID, a.Code, a.Name, a.Type, a.ParentID, a.IsActive, a.CreatedAt, a.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetAccount loads one chart node.
func (r *PgRepository) GetAccount(ctx context.Context, id int64) (*Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `SELECT id, company_id, code, name, type, parent_id, is_active, created_at, updated_at
FROM accounts WHERE id = $1`, id).Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListAccounts returns all chart nodes for a company ordered by code.
func (r *PgRepository) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, code, name, type, parent_id, is_active, created_at, updated_at
FROM accounts WHERE company_id = $1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AccountHasPostings reports whether any journal line references the account.
func (r *PgRepository) AccountHasPostings(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_id = $1)`, accountID).Scan(&exists)
	return exists, err
}

// DeactivateAccount retires a chart node.
func (r *PgRepository) DeactivateAccount(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET is_active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateEntry inserts a draft entry with its lines.
func (r *PgRepository) CreateEntry(ctx context.Context, entry JournalEntry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return insertEntry(ctx, tx, entry)
	})
}

// ReplaceDraftLines rewrites a draft's header and lines.
func (r *PgRepository) ReplaceDraftLines(ctx context.Context, entry JournalEntry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE journal_entries SET entry_date = $2, narration = $3, currency = $4, updated_at = now()
WHERE id = $1 AND status = 'DRAFT'`, entry.ID, entry.Date, entry.Narration, entry.Currency)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id = $1`, entry.ID); err != nil {
			return err
		}
		return insertLines(ctx, tx, entry)
	})
}

// GetEntry loads one entry with its lines.
func (r *PgRepository) GetEntry(ctx context.Context, id uuid.UUID) (*JournalEntry, error) {
	return scanEntry(ctx, r.pool, id, false)
}

// ListEntries returns entries within a date range, lines included.
func (r *PgRepository) ListEntries(ctx context.Context, companyID int64, from, to time.Time) ([]JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, entry_date, fiscal_year, narration, currency, status, reverses_id, created_at, updated_at
FROM journal_entries WHERE company_id = $1 AND entry_date >= $2 AND entry_date <= $3 ORDER BY entry_date, created_at`, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Date, &e.FiscalYear, &e.Narration, &e.Currency, &e.Status, &e.ReversesID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range entries {
		lines, err := loadLines(ctx, r.pool, entries[i].ID, entries[i].Currency)
		if err != nil {
			return nil, err
		}
		entries[i].Lines = lines
	}
	return entries, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanEntry(ctx context.Context, q queryer, id uuid.UUID, forUpdate bool) (*JournalEntry, error) {
	query := `SELECT id, company_id, entry_date, fiscal_year, narration, currency, status, reverses_id, created_at, updated_at
FROM journal_entries WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var e JournalEntry
	err := q.QueryRow(ctx, query, id).Scan(&e.ID, &e.CompanyID, &e.Date, &e.FiscalYear, &e.Narration, &e.Currency, &e.Status, &e.ReversesID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	lines, err := loadLines(ctx, q, e.ID, e.Currency)
	if err != nil {
		return nil, err
	}
	e.Lines = lines
	return &e, nil
}

func loadLines(ctx context.Context, q queryer, entryID uuid.UUID, currency string) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_id, debit, credit FROM journal_lines WHERE entry_id = $1 ORDER BY id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var l JournalLine
		var debit, credit int64
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &debit, &credit); err != nil {
			return nil, err
		}
		l.Debit = money.New(debit, currency)
		l.Credit = money.New(credit, currency)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func insertEntry(ctx context.Context, tx pgx.Tx, entry JournalEntry) error {
	_, err := tx.Exec(ctx, `INSERT INTO journal_entries (id, company_id, entry_date, fiscal_year, narration, currency, status, reverses_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.CompanyID, entry.Date, entry.FiscalYear, entry.Narration, entry.Currency, entry.Status, entry.ReversesID, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return err
	}
	return insertLines(ctx, tx, entry)
}

func insertLines(ctx context.Context, tx pgx.Tx, entry JournalEntry) error {
	for _, l := range entry.Lines {
		if _, err := tx.Exec(ctx, `INSERT INTO journal_lines (id, entry_id, account_id, debit, credit)
VALUES ($1, $2, $3, $4, $5)`, l.ID, entry.ID, l.AccountID, l.Debit.Amount, l.Credit.Amount); err != nil {
			return err
		}
	}
	return nil
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) GetEntryForUpdate(ctx context.Context, id uuid.UUID) (*JournalEntry, error) {
	return scanEntry(ctx, t.tx, id, true)
}

func (t *txRepo) SetEntryStatus(ctx context.Context, id uuid.UUID, status EntryStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE journal_entries SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertEntry(ctx context.Context, entry JournalEntry) error {
	return insertEntry(ctx, t.tx, entry)
}

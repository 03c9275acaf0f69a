package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artha-erp/artha/internal/ledger"
)

// PgRepository reads accounts and posted totals from PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

var _ Repository = (*PgRepository)(nil)

// ListAccounts returns the company's full chart of accounts.
func (r *PgRepository) ListAccounts(ctx context.Context, companyID int64) ([]ledger.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, code, name, type, parent_id, is_active, created_at, updated_at
FROM accounts WHERE company_id = $1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []ledger.Account
	for rows.Next() {
		var a ledger.Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// PostedTotals sums posted debits and credits per account for the period.
// Reversed entries stay in the sum; their mirrors net them to zero.
func (r *PgRepository) PostedTotals(ctx context.Context, companyID int64, from, to time.Time) (map[int64]LineTotals, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.company_id = $1 AND e.status = ANY($2) AND e.entry_date >= $3 AND e.entry_date <= $4
GROUP BY l.account_id`, companyID, ledger.AggregateStatuses(), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := make(map[int64]LineTotals)
	for rows.Next() {
		var accountID int64
		var t LineTotals
		if err := rows.Scan(&accountID, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		totals[accountID] = t
	}
	return totals, rows.Err()
}

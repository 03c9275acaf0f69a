package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artha-erp/artha/internal/documents"
	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/platform/db"
	"github.com/artha-erp/artha/internal/shared"
	"github.com/artha-erp/artha/internal/tracker"
)

var numberPrefix = map[Kind]string{
	KindCredit: "CN",
	KindDebit:  "DN",
}

// PgRepository provides PostgreSQL backed persistence for notes.
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

// Get loads one note.
func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Note, error) {
	return scanNote(ctx, r.pool, id, false)
}

// List returns the company's notes, optionally narrowed by kind.
func (r *PgRepository) List(ctx context.Context, companyID int64, kind *Kind) ([]Note, error) {
	query := `SELECT id FROM notes WHERE company_id = $1`
	args := []any{companyID}
	if kind != nil {
		args = append(args, *kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	query += " ORDER BY note_date, created_at"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	notes := make([]Note, 0, len(ids))
	for _, id := range ids {
		n, err := scanNote(ctx, r.pool, id, false)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, nil
}

// ListApplications returns a note's application rows oldest first.
func (r *PgRepository) ListApplications(ctx context.Context, noteID uuid.UUID) ([]Application, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.company_id, a.note_id, a.target_id, a.amount, n.currency, a.reverses_id, a.created_at
FROM note_applications a JOIN notes n ON n.id = a.note_id
WHERE a.note_id = $1 ORDER BY a.created_at`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var apps []Application
	for rows.Next() {
		app, err := scanApplicationRow(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanNote(ctx context.Context, q queryer, id uuid.UUID, forUpdate bool) (*Note, error) {
	query := `SELECT id, company_id, kind, note_number, note_date, fiscal_year, counterparty_id, origin_document_id, currency,
subtotal, tax_cgst, tax_sgst, tax_igst, total, applied, status, created_at, updated_at
FROM notes WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var n Note
	var subtotal, cgst, sgst, igst, total, applied int64
	err := q.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.CompanyID, &n.Kind, &n.Number, &n.Date, &n.FiscalYear, &n.CounterpartyID, &n.OriginDocumentID, &n.Currency,
		&subtotal, &cgst, &sgst, &igst, &total, &applied, &n.Status, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	n.Subtotal = money.New(subtotal, n.Currency)
	n.Tax = money.TaxBreakup{
		CGST: money.New(cgst, n.Currency),
		SGST: money.New(sgst, n.Currency),
		IGST: money.New(igst, n.Currency),
	}
	totalM := money.New(total, n.Currency)
	appliedM := money.New(applied, n.Currency)
	balance, err := totalM.Sub(appliedM)
	if err != nil {
		return nil, err
	}
	n.Outstanding = tracker.Outstanding{Total: totalM, Applied: appliedM, Balance: balance}
	if err := n.Outstanding.Check(); err != nil {
		return nil, fmt.Errorf("note %s: %w", n.ID, err)
	}
	return &n, nil
}

func scanApplicationRow(row pgx.Row) (*Application, error) {
	var a Application
	var amount int64
	var currency string
	if err := row.Scan(&a.ID, &a.CompanyID, &a.NoteID, &a.TargetID, &amount, &currency, &a.Reverses, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	a.Amount = money.New(amount, currency)
	return &a, nil
}

type txRepo struct {
	tx pgx.Tx
}

// GenerateNumber allocates the next note number for
// company+kind+fiscal-year. It runs on the transaction so a rolled-back
// insert returns the number instead of burning it.
func (t *txRepo) GenerateNumber(ctx context.Context, companyID int64, kind Kind, fiscalYear string) (string, error) {
	var seq int64
	err := t.tx.QueryRow(ctx, `INSERT INTO note_numbers (company_id, kind, fiscal_year, last_seq)
VALUES ($1, $2, $3, 1)
ON CONFLICT (company_id, kind, fiscal_year)
DO UPDATE SET last_seq = note_numbers.last_seq + 1
RETURNING last_seq`, companyID, kind, fiscalYear).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%05d", numberPrefix[kind], fiscalYear, seq), nil
}

func (t *txRepo) InsertNote(ctx context.Context, n Note) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO notes (id, company_id, kind, note_number, note_date, fiscal_year, counterparty_id, origin_document_id, currency,
subtotal, tax_cgst, tax_sgst, tax_igst, total, applied, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		n.ID, n.CompanyID, n.Kind, n.Number, n.Date, n.FiscalYear, n.CounterpartyID, n.OriginDocumentID, n.Currency,
		n.Subtotal.Amount, n.Tax.CGST.Amount, n.Tax.SGST.Amount, n.Tax.IGST.Amount,
		n.Outstanding.Total.Amount, n.Outstanding.Applied.Amount, n.Status, n.CreatedAt, n.UpdatedAt)
	return err
}

func (t *txRepo) GetNoteForUpdate(ctx context.Context, id uuid.UUID) (*Note, error) {
	return scanNote(ctx, t.tx, id, true)
}

func (t *txRepo) SetNoteBalances(ctx context.Context, id uuid.UUID, o tracker.Outstanding, status NoteStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE notes SET applied = $2, status = $3, updated_at = now() WHERE id = $1`, id, o.Applied.Amount, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) GetApplication(ctx context.Context, id uuid.UUID) (*Application, error) {
	return scanApplicationRow(t.tx.QueryRow(ctx, `SELECT a.id, a.company_id, a.note_id, a.target_id, a.amount, n.currency, a.reverses_id, a.created_at
FROM note_applications a JOIN notes n ON n.id = a.note_id
WHERE a.id = $1`, id))
}

func (t *txRepo) HasReversal(ctx context.Context, applicationID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM note_applications WHERE reverses_id = $1)`, applicationID).Scan(&exists)
	return exists, err
}

func (t *txRepo) InsertApplication(ctx context.Context, app Application) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO note_applications (id, company_id, note_id, target_id, amount, reverses_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		app.ID, app.CompanyID, app.NoteID, app.TargetID, app.Amount.Amount, app.Reverses, app.CreatedAt)
	return err
}

// GetTargetForUpdate locks and loads the head of the target document.
// Lines are not needed for application arithmetic, so they are not loaded.
func (t *txRepo) GetTargetForUpdate(ctx context.Context, id uuid.UUID) (*documents.Document, error) {
	var d documents.Document
	var total, applied int64
	err := t.tx.QueryRow(ctx, `SELECT id, company_id, doc_type, doc_number, counterparty_id, currency, status, total, applied
FROM trade_documents WHERE id = $1 FOR UPDATE`, id).Scan(
		&d.ID, &d.CompanyID, &d.Type, &d.Number, &d.CounterpartyID, &d.Currency, &d.Status, &total, &applied)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	d.Total = money.New(total, d.Currency)
	d.Applied = money.New(applied, d.Currency)
	// Same rehydration guard as scanNote: a row with applied beyond total
	// is corrupted and must not feed application arithmetic.
	if err := d.Outstanding().Check(); err != nil {
		return nil, fmt.Errorf("trade document %s: %w", d.Number, err)
	}
	return &d, nil
}

func (t *txRepo) SetTargetApplied(ctx context.Context, id uuid.UUID, applied money.Money, status documents.DocStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE trade_documents SET applied = $2, status = $3, updated_at = now() WHERE id = $1`, id, applied.Amount, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/platform/db"
	"github.com/artha-erp/artha/internal/shared"
)

// ErrDuplicateNumber surfaces a unique violation on the document number.
var ErrDuplicateNumber = fmt.Errorf("%w: document number already exists", shared.ErrValidation)

const uniqueViolation = "23505"

var numberPrefix = map[DocType]string{
	TypeQuote:         "Q",
	TypeSalesOrder:    "SO",
	TypePurchaseOrder: "PO",
	TypeInvoice:       "INV",
	TypeBill:          "BILL",
}

// PgRepository provides PostgreSQL backed persistence for trade documents.
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

// generateNumber allocates the next document number for
// company+type+fiscal-year. The counter row is upserted so concurrent
// allocations serialize on it; running it on the enclosing transaction
// keeps the sequence from burning numbers when the insert rolls back.
func generateNumber(ctx context.Context, q queryer, companyID int64, docType DocType, fiscalYear string) (string, error) {
	var seq int64
	err := q.QueryRow(ctx, `INSERT INTO document_numbers (company_id, doc_type, fiscal_year, last_seq)
VALUES ($1, $2, $3, 1)
ON CONFLICT (company_id, doc_type, fiscal_year)
DO UPDATE SET last_seq = document_numbers.last_seq + 1
RETURNING last_seq`, companyID, docType, fiscalYear).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%05d", numberPrefix[docType], fiscalYear, seq), nil
}

// Get loads one document with its lines.
func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	return scanDocument(ctx, r.pool, id, false)
}

// List returns the company's documents matching the filter, lines included.
func (r *PgRepository) List(ctx context.Context, companyID int64, filter ListFilter) ([]Document, error) {
	query := `SELECT id FROM trade_documents WHERE company_id = $1`
	args := []any{companyID}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(" AND doc_type = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND doc_date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND doc_date <= $%d", len(args))
	}
	query += " ORDER BY doc_date, created_at"

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

	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		doc, err := scanDocument(ctx, r.pool, id, false)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// ListOverdueCandidates returns payable documents past their due date.
func (r *PgRepository) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]Document, error) {
	return r.listByCondition(ctx, `doc_type IN ('INVOICE','BILL') AND status IN ('SENT','OPEN') AND due_date IS NOT NULL AND due_date < $1`, asOf)
}

// ListExpiryCandidates returns sent quotes past their expiry date.
func (r *PgRepository) ListExpiryCandidates(ctx context.Context, asOf time.Time) ([]Document, error) {
	return r.listByCondition(ctx, `doc_type = 'QUOTE' AND status = 'SENT' AND expiry_date IS NOT NULL AND expiry_date < $1`, asOf)
}

func (r *PgRepository) listByCondition(ctx context.Context, cond string, args ...any) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM trade_documents WHERE `+cond, args...)
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
	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		doc, err := scanDocument(ctx, r.pool, id, false)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanDocument(ctx context.Context, q queryer, id uuid.UUID, forUpdate bool) (*Document, error) {
	query := `SELECT id, company_id, doc_type, doc_number, doc_date, fiscal_year, counterparty_id, currency, status, intra_state,
subtotal, tax_cgst, tax_sgst, tax_igst, total, applied, converted_to_id, converted_from_id, customer_po_ref, expiry_date, due_date, created_at, updated_at
FROM trade_documents WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var d Document
	var subtotal, cgst, sgst, igst, total, applied int64
	err := q.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.CompanyID, &d.Type, &d.Number, &d.Date, &d.FiscalYear, &d.CounterpartyID, &d.Currency, &d.Status, &d.IntraState,
		&subtotal, &cgst, &sgst, &igst, &total, &applied, &d.ConvertedToID, &d.ConvertedFromID, &d.CustomerPORef, &d.ExpiryDate, &d.DueDate, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	d.Subtotal = money.New(subtotal, d.Currency)
	d.Tax = money.TaxBreakup{
		CGST: money.New(cgst, d.Currency),
		SGST: money.New(sgst, d.Currency),
		IGST: money.New(igst, d.Currency),
	}
	d.Total = money.New(total, d.Currency)
	d.Applied = money.New(applied, d.Currency)

	lines, err := loadLines(ctx, q, d.ID, d.Currency)
	if err != nil {
		return nil, err
	}
	d.Lines = lines
	return &d, nil
}

func loadLines(ctx context.Context, q queryer, docID uuid.UUID, currency string) ([]LineItem, error) {
	rows, err := q.Query(ctx, `SELECT id, document_id, description, quantity::text, rate::text, tax_rate::text, amount, tax, line_order
FROM document_lines WHERE document_id = $1 ORDER BY line_order`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []LineItem
	for rows.Next() {
		var l LineItem
		var qty, rate, taxRate string
		var amount, tax int64
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.Description, &qty, &rate, &taxRate, &amount, &tax, &l.LineOrder); err != nil {
			return nil, err
		}
		if l.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if l.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, err
		}
		if l.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
			return nil, err
		}
		l.Amount = money.New(amount, currency)
		l.Tax = money.New(tax, currency)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func insertDocument(ctx context.Context, tx pgx.Tx, doc Document) error {
	_, err := tx.Exec(ctx, `INSERT INTO trade_documents (id, company_id, doc_type, doc_number, doc_date, fiscal_year, counterparty_id, currency, status, intra_state,
subtotal, tax_cgst, tax_sgst, tax_igst, total, applied, converted_to_id, converted_from_id, customer_po_ref, expiry_date, due_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		doc.ID, doc.CompanyID, doc.Type, doc.Number, doc.Date, doc.FiscalYear, doc.CounterpartyID, doc.Currency, doc.Status, doc.IntraState,
		doc.Subtotal.Amount, doc.Tax.CGST.Amount, doc.Tax.SGST.Amount, doc.Tax.IGST.Amount, doc.Total.Amount, doc.Applied.Amount,
		doc.ConvertedToID, doc.ConvertedFromID, doc.CustomerPORef, doc.ExpiryDate, doc.DueDate, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return err
	}
	for _, l := range doc.Lines {
		if _, err := tx.Exec(ctx, `INSERT INTO document_lines (id, document_id, description, quantity, rate, tax_rate, amount, tax, line_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			l.ID, doc.ID, l.Description, l.Quantity.String(), l.Rate.String(), l.TaxRate.String(), l.Amount.Amount, l.Tax.Amount, l.LineOrder); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Document, error) {
	return scanDocument(ctx, t.tx, id, true)
}

func (t *txRepo) GenerateNumber(ctx context.Context, companyID int64, docType DocType, fiscalYear string) (string, error) {
	return generateNumber(ctx, t.tx, companyID, docType, fiscalYear)
}

func (t *txRepo) Insert(ctx context.Context, doc Document) error {
	err := insertDocument(ctx, t.tx, doc)
	if isUniqueViolation(err) {
		return ErrDuplicateNumber
	}
	return err
}

func (t *txRepo) SetStatus(ctx context.Context, id uuid.UUID, status DocStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE trade_documents SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) SetApplied(ctx context.Context, id uuid.UUID, applied money.Money, status DocStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE trade_documents SET applied = $2, status = $3, updated_at = now() WHERE id = $1`, id, applied.Amount, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) SetConvertedTo(ctx context.Context, sourceID, targetID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `UPDATE trade_documents SET converted_to_id = $2, updated_at = now() WHERE id = $1 AND converted_to_id IS NULL`, sourceID, targetID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyConverted
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO document_payments (id, document_id, amount, method, reference, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`, p.ID, p.DocumentID, p.Amount.Amount, p.Method, p.Reference, p.CreatedAt)
	return err
}

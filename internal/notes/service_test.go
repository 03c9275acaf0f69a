package notes

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artha-erp/artha/internal/documents"
	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
	"github.com/artha-erp/artha/internal/tracker"
)

const companyID int64 = 7

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	notes    map[uuid.UUID]*Note
	apps     map[uuid.UUID]*Application
	docs     map[uuid.UUID]*documents.Document
	counters map[string]int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		notes:    make(map[uuid.UUID]*Note),
		apps:     make(map[uuid.UUID]*Application),
		docs:     make(map[uuid.UUID]*documents.Document),
		counters: make(map[string]int64),
	}
}

// WithSerializableTx rolls the number counters back on error, mirroring
// the real transaction semantics number allocation depends on.
func (m *mockRepository) WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		snapshot[k] = v
	}
	if err := fn(ctx, &mockTxRepo{mock: m}); err != nil {
		m.counters = snapshot
		return err
	}
	return nil
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (*Note, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *mockRepository) List(ctx context.Context, company int64, kind *Kind) ([]Note, error) {
	var out []Note
	for _, n := range m.notes {
		if n.CompanyID != company {
			continue
		}
		if kind != nil && n.Kind != *kind {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (m *mockRepository) ListApplications(ctx context.Context, noteID uuid.UUID) ([]Application, error) {
	var out []Application
	for _, a := range m.apps {
		if a.NoteID == noteID {
			out = append(out, *a)
		}
	}
	return out, nil
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) GenerateNumber(ctx context.Context, company int64, kind Kind, fiscalYear string) (string, error) {
	key := fmt.Sprintf("%d/%s/%s", company, kind, fiscalYear)
	t.mock.counters[key]++
	return fmt.Sprintf("%s-%s-%05d", numberPrefix[kind], fiscalYear, t.mock.counters[key]), nil
}

func (t *mockTxRepo) InsertNote(ctx context.Context, n Note) error {
	cp := n
	t.mock.notes[n.ID] = &cp
	return nil
}

func (t *mockTxRepo) GetNoteForUpdate(ctx context.Context, id uuid.UUID) (*Note, error) {
	return t.mock.Get(ctx, id)
}

func (t *mockTxRepo) SetNoteBalances(ctx context.Context, id uuid.UUID, o tracker.Outstanding, status NoteStatus) error {
	n, ok := t.mock.notes[id]
	if !ok {
		return shared.ErrNotFound
	}
	n.Outstanding = o
	n.Status = status
	return nil
}

func (t *mockTxRepo) GetApplication(ctx context.Context, id uuid.UUID) (*Application, error) {
	a, ok := t.mock.apps[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (t *mockTxRepo) HasReversal(ctx context.Context, applicationID uuid.UUID) (bool, error) {
	for _, a := range t.mock.apps {
		if a.Reverses != nil && *a.Reverses == applicationID {
			return true, nil
		}
	}
	return false, nil
}

func (t *mockTxRepo) InsertApplication(ctx context.Context, app Application) error {
	cp := app
	t.mock.apps[app.ID] = &cp
	return nil
}

func (t *mockTxRepo) GetTargetForUpdate(ctx context.Context, id uuid.UUID) (*documents.Document, error) {
	doc, ok := t.mock.docs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (t *mockTxRepo) SetTargetApplied(ctx context.Context, id uuid.UUID, applied money.Money, status documents.DocStatus) error {
	doc, ok := t.mock.docs[id]
	if !ok {
		return shared.ErrNotFound
	}
	doc.Applied = applied
	doc.Status = status
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func newService() (*Service, *mockRepository) {
	repo := newMockRepository()
	return NewService(repo), repo
}

func createInput(kind Kind, amount string) CreateInput {
	return CreateInput{
		Kind:           kind,
		Date:           time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		FiscalYear:     "2025-26",
		CounterpartyID: 42,
		Currency:       "INR",
		IntraState:     true,
		Lines: []documents.LineInput{
			{Description: "adjustment", Quantity: d("1"), Rate: d(amount), TaxRate: d("0")},
		},
	}
}

func issuedNote(t *testing.T, svc *Service, kind Kind, amount string) *Note {
	t.Helper()
	note, err := svc.Create(context.Background(), companyID, createInput(kind, amount))
	require.NoError(t, err)
	note, err = svc.Issue(context.Background(), companyID, note.ID)
	require.NoError(t, err)
	return note
}

// addTarget seeds a payable document directly into the mock store.
func addTarget(repo *mockRepository, docType documents.DocType, status documents.DocStatus, totalMinor int64) *documents.Document {
	doc := &documents.Document{
		ID:             uuid.New(),
		CompanyID:      companyID,
		Type:           docType,
		Number:         "TGT-00001",
		CounterpartyID: 42,
		Currency:       "INR",
		Status:         status,
		Total:          money.New(totalMinor, "INR"),
		Applied:        money.Zero("INR"),
	}
	repo.docs[doc.ID] = doc
	return doc
}

func inr(minor int64) money.Money { return money.New(minor, "INR") }

// ============================================================================
// TESTS
// ============================================================================

func TestCreateNoteComputesTotals(t *testing.T) {
	svc, _ := newService()
	note, err := svc.Create(context.Background(), companyID, createInput(KindCredit, "1000.00"))
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, note.Status)
	assert.Equal(t, "CN-2025-26-00001", note.Number)
	assert.Equal(t, int64(100000), note.Outstanding.Total.Amount)
	assert.True(t, note.Outstanding.Applied.IsZero())
	require.NoError(t, note.Outstanding.Check())
}

func TestIssueNote(t *testing.T) {
	svc, _ := newService()
	note, err := svc.Create(context.Background(), companyID, createInput(KindCredit, "100.00"))
	require.NoError(t, err)

	note, err = svc.Issue(context.Background(), companyID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, note.Status)

	_, err = svc.Issue(context.Background(), companyID, note.ID)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, shared.ErrStateTransition)
}

func TestApplyMovesBothSides(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindCredit, "300.00")
	invoice := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 500000) // 5000.00

	app, err := svc.Apply(context.Background(), companyID, note.ID, invoice.ID, inr(20000))
	require.NoError(t, err)
	assert.Equal(t, int64(20000), app.Amount.Amount)

	stored, err := svc.Get(context.Background(), companyID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), stored.Outstanding.Applied.Amount)
	assert.Equal(t, int64(10000), stored.Outstanding.Balance.Amount)
	assert.Equal(t, StatusIssued, stored.Status)
	require.NoError(t, stored.Outstanding.Check())

	assert.Equal(t, int64(20000), repo.docs[invoice.ID].Applied.Amount)
	assert.Equal(t, documents.StatusSent, repo.docs[invoice.ID].Status)
}

func TestApplyExhaustingNoteMarksApplied(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindCredit, "100.00")
	invoice := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 500000)

	_, err := svc.Apply(context.Background(), companyID, note.ID, invoice.ID, inr(10000))
	require.NoError(t, err)

	stored, err := svc.Get(context.Background(), companyID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, stored.Status)
	assert.True(t, stored.Outstanding.IsSettled())
}

func TestApplySettlingTargetMarksPaid(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindCredit, "500.00")
	invoice := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 30000) // 300.00

	_, err := svc.Apply(context.Background(), companyID, note.ID, invoice.ID, inr(30000))
	require.NoError(t, err)

	assert.Equal(t, documents.StatusPaid, repo.docs[invoice.ID].Status)
	stored, err := svc.Get(context.Background(), companyID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, stored.Status)
	assert.Equal(t, int64(20000), stored.Outstanding.Balance.Amount)
}

func TestOverApplicationLeavesBothSidesUntouched(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindCredit, "100.00")
	invoice := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 500000)

	_, err := svc.Apply(context.Background(), companyID, note.ID, invoice.ID, inr(10001))
	var oae *tracker.OverApplicationError
	require.ErrorAs(t, err, &oae)
	assert.Equal(t, int64(10000), oae.Available.Amount)

	stored, err := svc.Get(context.Background(), companyID, note.ID)
	require.NoError(t, err)
	assert.True(t, stored.Outstanding.Applied.IsZero())
	assert.True(t, repo.docs[invoice.ID].Applied.IsZero())
	assert.Empty(t, repo.apps)
}

func TestOverApplicationOnTargetSide(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindCredit, "500.00")
	invoice := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 10000) // 100.00

	_, err := svc.Apply(context.Background(), companyID, note.ID, invoice.ID, inr(20000))
	var oae *tracker.OverApplicationError
	require.ErrorAs(t, err, &oae)

	stored, err := svc.Get(context.Background(), companyID, note.ID)
	require.NoError(t, err)
	assert.True(t, stored.Outstanding.Applied.IsZero())
	assert.True(t, repo.docs[invoice.ID].Applied.IsZero())
}

func TestApplyKindTargetMismatch(t *testing.T) {
	svc, repo := newService()
	creditNote := issuedNote(t, svc, KindCredit, "100.00")
	bill := addTarget(repo, documents.TypeBill, documents.StatusOpen, 50000)

	_, err := svc.Apply(context.Background(), companyID, creditNote.ID, bill.ID, inr(1000))
	assert.ErrorIs(t, err, ErrKindTargetMismatch)

	debitNote := issuedNote(t, svc, KindDebit, "100.00")
	invoice := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 50000)
	_, err = svc.Apply(context.Background(), companyID, debitNote.ID, invoice.ID, inr(1000))
	assert.ErrorIs(t, err, ErrKindTargetMismatch)

	_, err = svc.Apply(context.Background(), companyID, debitNote.ID, bill.ID, inr(1000))
	assert.NoError(t, err)
}

func TestApplyCounterpartyMismatch(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindCredit, "100.00")
	invoice := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 50000)
	invoice.CounterpartyID = 99

	_, err := svc.Apply(context.Background(), companyID, note.ID, invoice.ID, inr(1000))
	var cme *CounterpartyMismatchError
	require.ErrorAs(t, err, &cme)
	assert.Equal(t, int64(42), cme.NoteParty)
	assert.Equal(t, int64(99), cme.TargetParty)
}

func TestApplyRequiresIssuedNoteAndPayableTarget(t *testing.T) {
	svc, repo := newService()
	draft, err := svc.Create(context.Background(), companyID, createInput(KindCredit, "100.00"))
	require.NoError(t, err)
	invoice := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 50000)

	_, err = svc.Apply(context.Background(), companyID, draft.ID, invoice.ID, inr(1000))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "note", se.Subject)

	note := issuedNote(t, svc, KindCredit, "100.00")
	draftInvoice := addTarget(repo, documents.TypeInvoice, documents.StatusDraft, 50000)
	_, err = svc.Apply(context.Background(), companyID, note.ID, draftInvoice.ID, inr(1000))
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "target document", se.Subject)
}

func TestCancelRefusesAnyAppliedAmount(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindCredit, "100.00")
	invoice := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 50000)

	// One paisa applied is enough to block cancellation.
	_, err := svc.Apply(context.Background(), companyID, note.ID, invoice.ID, inr(1))
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), companyID, note.ID)
	var cce *CannotCancelAppliedNoteError
	require.ErrorAs(t, err, &cce)
	assert.Equal(t, int64(1), cce.Applied.Amount)
	assert.ErrorIs(t, err, shared.ErrInvariant)
}

func TestCancelUnappliedNote(t *testing.T) {
	svc, _ := newService()
	note := issuedNote(t, svc, KindCredit, "100.00")

	cancelled, err := svc.Cancel(context.Background(), companyID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Cancel(context.Background(), companyID, note.ID)
	var se *StatusError
	assert.ErrorAs(t, err, &se)
}

func TestReverseApplicationRestoresBothSides(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindCredit, "300.00")
	invoice := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 30000) // settles exactly

	app, err := svc.Apply(context.Background(), companyID, note.ID, invoice.ID, inr(30000))
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, repo.notes[note.ID].Status)
	assert.Equal(t, documents.StatusPaid, repo.docs[invoice.ID].Status)

	reversal, err := svc.ReverseApplication(context.Background(), companyID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-30000), reversal.Amount.Amount)
	require.NotNil(t, reversal.Reverses)
	assert.Equal(t, app.ID, *reversal.Reverses)

	stored, err := svc.Get(context.Background(), companyID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, stored.Status)
	assert.True(t, stored.Outstanding.Applied.IsZero())
	require.NoError(t, stored.Outstanding.Check())

	// Paid invoice reopens to its payable state.
	assert.Equal(t, documents.StatusSent, repo.docs[invoice.ID].Status)
	assert.True(t, repo.docs[invoice.ID].Applied.IsZero())
}

func TestReverseApplicationOnBillReopensToOpen(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindDebit, "100.00")
	bill := addTarget(repo, documents.TypeBill, documents.StatusOpen, 10000)

	app, err := svc.Apply(context.Background(), companyID, note.ID, bill.ID, inr(10000))
	require.NoError(t, err)
	assert.Equal(t, documents.StatusPaid, repo.docs[bill.ID].Status)

	_, err = svc.ReverseApplication(context.Background(), companyID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusOpen, repo.docs[bill.ID].Status)
}

func TestReverseApplicationTwiceFails(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindCredit, "100.00")
	invoice := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 50000)

	app, err := svc.Apply(context.Background(), companyID, note.ID, invoice.ID, inr(5000))
	require.NoError(t, err)

	reversal, err := svc.ReverseApplication(context.Background(), companyID, app.ID)
	require.NoError(t, err)

	_, err = svc.ReverseApplication(context.Background(), companyID, app.ID)
	assert.ErrorIs(t, err, ErrAlreadyReversed)

	_, err = svc.ReverseApplication(context.Background(), companyID, reversal.ID)
	assert.ErrorIs(t, err, ErrReversalOfReversal)
}

func TestNoteTenantIsolation(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindCredit, "100.00")
	invoice := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 50000)

	_, err := svc.Get(context.Background(), companyID+1, note.ID)
	assert.ErrorIs(t, err, shared.ErrTenantMismatch)

	_, err = svc.Apply(context.Background(), companyID+1, note.ID, invoice.ID, inr(1000))
	assert.ErrorIs(t, err, shared.ErrTenantMismatch)
}

func TestApplyRefusesCorruptedTarget(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindCredit, "100.00")
	target := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 50000)
	target.Applied = inr(60000) // beyond total: a broken row, not a state this engine can produce

	_, err := svc.Apply(context.Background(), companyID, note.ID, target.ID, inr(1000))
	assert.ErrorIs(t, err, shared.ErrInvariant)

	// The corrupted row must not move the note side either.
	got, err := svc.Get(context.Background(), companyID, note.ID)
	require.NoError(t, err)
	assert.True(t, got.Outstanding.Applied.IsZero())
}

func TestReverseRefusesCorruptedTarget(t *testing.T) {
	svc, repo := newService()
	note := issuedNote(t, svc, KindCredit, "100.00")
	target := addTarget(repo, documents.TypeInvoice, documents.StatusSent, 50000)

	app, err := svc.Apply(context.Background(), companyID, note.ID, target.ID, inr(10000))
	require.NoError(t, err)

	repo.docs[target.ID].Applied = inr(60000)
	_, err = svc.ReverseApplication(context.Background(), companyID, app.ID)
	assert.ErrorIs(t, err, shared.ErrInvariant)
}

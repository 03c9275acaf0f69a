package reports

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artha-erp/artha/internal/ledger"
	"github.com/artha-erp/artha/internal/shared"
)

const companyID int64 = 7

var (
	periodFrom = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	periodTo   = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	accounts []ledger.Account
	totals   map[int64]LineTotals
	compare  map[int64]LineTotals
	calls    int
}

func (m *mockRepository) ListAccounts(ctx context.Context, company int64) ([]ledger.Account, error) {
	m.calls++
	return m.accounts, nil
}

func (m *mockRepository) PostedTotals(ctx context.Context, company int64, from, to time.Time) (map[int64]LineTotals, error) {
	if from.Equal(periodFrom) {
		return m.totals, nil
	}
	return m.compare, nil
}

func (m *mockRepository) addAccount(id int64, code string, accountType ledger.AccountType, parentID *int64) {
	m.accounts = append(m.accounts, ledger.Account{
		ID: id, CompanyID: companyID, Code: code, Name: code, Type: accountType, ParentID: parentID, IsActive: true,
	})
}

func newMockRepository() *mockRepository {
	return &mockRepository{totals: make(map[int64]LineTotals), compare: make(map[int64]LineTotals)}
}

func newService(repo *mockRepository, cache Cache) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, cache)
}

func pnlInput() Input {
	return Input{From: periodFrom, To: periodTo, Currency: "INR"}
}

func ptr(id int64) *int64 { return &id }

// ============================================================================
// TESTS
// ============================================================================

func TestRollupSumsChildrenIntoParent(t *testing.T) {
	repo := newMockRepository()
	repo.addAccount(1, "4000", ledger.AccountTypeIncome, nil)
	repo.addAccount(2, "4100", ledger.AccountTypeIncome, ptr(1))
	repo.addAccount(3, "4200", ledger.AccountTypeIncome, ptr(1))
	repo.totals[1] = LineTotals{Credit: 10000}
	repo.totals[2] = LineTotals{Credit: 25000}
	repo.totals[3] = LineTotals{Credit: 40000, Debit: 5000}

	report, err := newService(repo, nil).ProfitAndLoss(context.Background(), companyID, pnlInput())
	require.NoError(t, err)

	require.Len(t, report.Income, 1)
	root := report.Income[0]
	assert.Equal(t, int64(10000), root.Direct.Amount)
	assert.Equal(t, int64(70000), root.Amount.Amount) // 100 + 250 + 350
	require.Len(t, root.Children, 2)
	assert.Equal(t, "4100", root.Children[0].Code)
	assert.Equal(t, int64(70000), report.TotalIncome.Amount)
}

func TestRollupExactnessDeepNesting(t *testing.T) {
	// A 40-deep chain with a posting on every level: the root must equal
	// the exact sum no matter the depth.
	repo := newMockRepository()
	var sum int64
	for i := int64(1); i <= 40; i++ {
		var parent *int64
		if i > 1 {
			parent = ptr(i - 1)
		}
		repo.addAccount(i, "5000", ledger.AccountTypeExpense, parent)
		repo.totals[i] = LineTotals{Debit: i * 7}
		sum += i * 7
	}

	report, err := newService(repo, nil).ProfitAndLoss(context.Background(), companyID, pnlInput())
	require.NoError(t, err)
	require.Len(t, report.Expense, 1)
	assert.Equal(t, sum, report.Expense[0].Amount.Amount)
	assert.Equal(t, sum, report.TotalExpense.Amount)
}

func TestRootEqualsTopLevelChildren(t *testing.T) {
	repo := newMockRepository()
	repo.addAccount(1, "4000", ledger.AccountTypeIncome, nil)
	repo.addAccount(2, "4500", ledger.AccountTypeIncome, nil)
	repo.addAccount(3, "4100", ledger.AccountTypeIncome, ptr(1))
	repo.totals[2] = LineTotals{Credit: 11111}
	repo.totals[3] = LineTotals{Credit: 22222}

	report, err := newService(repo, nil).ProfitAndLoss(context.Background(), companyID, pnlInput())
	require.NoError(t, err)

	var topLevel int64
	for _, n := range report.Income {
		topLevel += n.Amount.Amount
	}
	assert.Equal(t, topLevel, report.TotalIncome.Amount)
	assert.Equal(t, int64(33333), report.TotalIncome.Amount)
}

func TestNetProfit(t *testing.T) {
	repo := newMockRepository()
	repo.addAccount(1, "4000", ledger.AccountTypeIncome, nil)
	repo.addAccount(2, "5000", ledger.AccountTypeExpense, nil)
	repo.totals[1] = LineTotals{Credit: 500000}
	repo.totals[2] = LineTotals{Debit: 320000}

	report, err := newService(repo, nil).ProfitAndLoss(context.Background(), companyID, pnlInput())
	require.NoError(t, err)
	assert.Equal(t, int64(500000), report.TotalIncome.Amount)
	assert.Equal(t, int64(320000), report.TotalExpense.Amount)
	assert.Equal(t, int64(180000), report.NetProfit.Amount)
}

func TestComparativePeriod(t *testing.T) {
	repo := newMockRepository()
	repo.addAccount(1, "4000", ledger.AccountTypeIncome, nil)
	repo.addAccount(2, "4100", ledger.AccountTypeIncome, ptr(1))
	repo.totals[2] = LineTotals{Credit: 90000}
	repo.compare[2] = LineTotals{Credit: 60000}

	input := pnlInput()
	cmpFrom := periodFrom.AddDate(-1, 0, 0)
	cmpTo := periodTo.AddDate(-1, 0, 0)
	input.CompareFrom = &cmpFrom
	input.CompareTo = &cmpTo

	report, err := newService(repo, nil).ProfitAndLoss(context.Background(), companyID, input)
	require.NoError(t, err)
	require.NotNil(t, report.Comparative)

	root := report.Income[0]
	assert.Equal(t, int64(90000), root.Amount.Amount)
	require.NotNil(t, root.Comparative)
	assert.Equal(t, int64(60000), root.Comparative.Amount)
}

func TestComparativeNeedsBothDates(t *testing.T) {
	repo := newMockRepository()
	input := pnlInput()
	cmpFrom := periodFrom.AddDate(-1, 0, 0)
	input.CompareFrom = &cmpFrom

	_, err := newService(repo, nil).ProfitAndLoss(context.Background(), companyID, input)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCycleDetection(t *testing.T) {
	repo := newMockRepository()
	repo.addAccount(1, "4000", ledger.AccountTypeIncome, ptr(2))
	repo.addAccount(2, "4100", ledger.AccountTypeIncome, ptr(1))

	_, err := newService(repo, nil).ProfitAndLoss(context.Background(), companyID, pnlInput())
	assert.ErrorIs(t, err, ErrAccountCycle)
	assert.ErrorIs(t, err, shared.ErrInvariant)
}

func TestOrphanDetection(t *testing.T) {
	repo := newMockRepository()
	repo.addAccount(1, "4000", ledger.AccountTypeIncome, ptr(99))

	_, err := newService(repo, nil).ProfitAndLoss(context.Background(), companyID, pnlInput())
	assert.ErrorIs(t, err, ErrOrphanAccount)
}

func TestCachedReportSkipsRecompute(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(client)

	repo := newMockRepository()
	repo.addAccount(1, "4000", ledger.AccountTypeIncome, nil)
	repo.totals[1] = LineTotals{Credit: 42000}
	svc := newService(repo, cache)

	first, err := svc.ProfitAndLoss(context.Background(), companyID, pnlInput())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)

	second, err := svc.ProfitAndLoss(context.Background(), companyID, pnlInput())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls, "second call must come from cache")
	assert.Equal(t, first.TotalIncome, second.TotalIncome)

	require.NoError(t, svc.Invalidate(context.Background(), companyID))
	_, err = svc.ProfitAndLoss(context.Background(), companyID, pnlInput())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls, "invalidation must force a recompute")
}

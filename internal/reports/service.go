package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/artha-erp/artha/internal/ledger"
	"github.com/artha-erp/artha/internal/shared"
)

// Repository defines the read-only data access the rollup needs.
type Repository interface {
	ListAccounts(ctx context.Context, companyID int64) ([]ledger.Account, error)
	PostedTotals(ctx context.Context, companyID int64, from, to time.Time) (map[int64]LineTotals, error)
}

// Cache stores rendered reports keyed by company and period. A miss is
// reported as (nil, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, companyID int64) error
}

const cacheTTL = 5 * time.Minute

// Service computes profit and loss rollups over posted journal lines.
type Service struct {
	logger *slog.Logger
	repo   Repository
	cache  Cache
	group  singleflight.Group
}

// NewService builds a Service instance. cache may be nil, in which case
// every call recomputes.
func NewService(logger *slog.Logger, repo Repository, cache Cache) *Service {
	return &Service{logger: logger, repo: repo, cache: cache}
}

// Input names the reporting periods. Comparative is optional.
type Input struct {
	From        time.Time
	To          time.Time
	CompareFrom *time.Time
	CompareTo   *time.Time
	Currency    string
}

// ProfitAndLoss returns the rolled-up income and expense tree for the
// period. Identical concurrent requests share one computation.
func (s *Service) ProfitAndLoss(ctx context.Context, companyID int64, input Input) (*ProfitAndLossReport, error) {
	if input.To.Before(input.From) {
		return nil, fmt.Errorf("%w: period end precedes start", shared.ErrValidation)
	}
	if (input.CompareFrom == nil) != (input.CompareTo == nil) {
		return nil, fmt.Errorf("%w: comparative period needs both dates", shared.ErrValidation)
	}

	key := cacheKey(companyID, input)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("report cache read failed", slog.Any("error", err))
		} else if raw != nil {
			var report ProfitAndLossReport
			if err := json.Unmarshal(raw, &report); err == nil {
				return &report, nil
			}
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		report, err := s.compute(ctx, companyID, input)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if raw, err := json.Marshal(report); err == nil {
				if err := s.cache.Set(ctx, key, raw, cacheTTL); err != nil {
					s.logger.Warn("report cache write failed", slog.Any("error", err))
				}
			}
		}
		return report, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ProfitAndLossReport), nil
}

func (s *Service) compute(ctx context.Context, companyID int64, input Input) (*ProfitAndLossReport, error) {
	accounts, err := s.repo.ListAccounts(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if err := shared.CheckTenant(companyID, a.CompanyID); err != nil {
			return nil, err
		}
	}
	totals, err := s.repo.PostedTotals(ctx, companyID, input.From, input.To)
	if err != nil {
		return nil, err
	}
	var comparative map[int64]LineTotals
	if input.CompareFrom != nil {
		if comparative, err = s.repo.PostedTotals(ctx, companyID, *input.CompareFrom, *input.CompareTo); err != nil {
			return nil, err
		}
	}

	income, err := buildTree(accounts, ledger.AccountTypeIncome, totals, comparative, input.Currency)
	if err != nil {
		return nil, err
	}
	expense, err := buildTree(accounts, ledger.AccountTypeExpense, totals, comparative, input.Currency)
	if err != nil {
		return nil, err
	}

	totalIncome, err := sumRoots(income, input.Currency)
	if err != nil {
		return nil, err
	}
	totalExpense, err := sumRoots(expense, input.Currency)
	if err != nil {
		return nil, err
	}
	netProfit, err := totalIncome.Sub(totalExpense)
	if err != nil {
		return nil, err
	}

	report := &ProfitAndLossReport{
		CompanyID:    companyID,
		Currency:     input.Currency,
		Period:       Period{From: input.From, To: input.To},
		Income:       income,
		Expense:      expense,
		TotalIncome:  totalIncome,
		TotalExpense: totalExpense,
		NetProfit:    netProfit,
		GeneratedAt:  time.Now(),
	}
	if input.CompareFrom != nil {
		report.Comparative = &Period{From: *input.CompareFrom, To: *input.CompareTo}
	}
	return report, nil
}

// Invalidate drops cached reports for the company, typically after a
// posting changes the underlying ledger.
func (s *Service) Invalidate(ctx context.Context, companyID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, companyID)
}

func cacheKey(companyID int64, input Input) string {
	key := fmt.Sprintf("reports:pnl:%d:%s:%s:%s", companyID, input.Currency,
		input.From.Format("2006-01-02"), input.To.Format("2006-01-02"))
	if input.CompareFrom != nil {
		key += ":" + input.CompareFrom.Format("2006-01-02") + ":" + input.CompareTo.Format("2006-01-02")
	}
	return key
}

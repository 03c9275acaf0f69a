package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
)

// Repository defines data access for the ledger.
type Repository interface {
	WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	CreateAccount(ctx context.Context, account Account) (int64, error)
	GetAccount(ctx context.Context, id int64) (*Account, error)
	ListAccounts(ctx context.Context, companyID int64) ([]Account, error)
	AccountHasPostings(ctx context.Context, accountID int64) (bool, error)
	DeactivateAccount(ctx context.Context, id int64) error

	CreateEntry(ctx context.Context, entry JournalEntry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*JournalEntry, error)
	ListEntries(ctx context.Context, companyID int64, from, to time.Time) ([]JournalEntry, error)
	ReplaceDraftLines(ctx context.Context, entry JournalEntry) error
}

// TxRepository exposes the operations that must run inside one
// serializable transaction.
type TxRepository interface {
	GetEntryForUpdate(ctx context.Context, id uuid.UUID) (*JournalEntry, error)
	SetEntryStatus(ctx context.Context, id uuid.UUID, status EntryStatus) error
	InsertEntry(ctx context.Context, entry JournalEntry) error
}

// Service handles chart-of-accounts and journal posting logic.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewAccountInput carries the fields for a chart node.
type NewAccountInput struct {
	Code     string
	Name     string
	Type     AccountType
	ParentID *int64
}

// CreateAccount adds a node to the company's chart of accounts.
func (s *Service) CreateAccount(ctx context.Context, companyID int64, input NewAccountInput) (*Account, error) {
	if companyID <= 0 {
		return nil, fmt.Errorf("%w: company id required", shared.ErrValidation)
	}
	if strings.TrimSpace(input.Code) == "" || strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: account code and name required", shared.ErrValidation)
	}
	if !ValidAccountType(input.Type) {
		return nil, fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, input.Type)
	}
	if input.ParentID != nil {
		parent, err := s.repo.GetAccount(ctx, *input.ParentID)
		if err != nil {
			return nil, fmt.Errorf("verify parent account: %w", err)
		}
		if err := shared.CheckTenant(companyID, parent.CompanyID); err != nil {
			return nil, err
		}
		if parent.Type != input.Type {
			return nil, fmt.Errorf("%w: child account type must match parent", shared.ErrValidation)
		}
	}

	now := time.Now()
	account := Account{
		CompanyID: companyID,
		Code:      strings.TrimSpace(input.Code),
		Name:      strings.TrimSpace(input.Name),
		Type:      input.Type,
		ParentID:  input.ParentID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := s.repo.CreateAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	account.ID = id
	return &account, nil
}

// DeactivateAccount retires an account that has no postings.
func (s *Service) DeactivateAccount(ctx context.Context, companyID, id int64) error {
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if err := shared.CheckTenant(companyID, account.CompanyID); err != nil {
		return err
	}
	used, err := s.repo.AccountHasPostings(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return ErrAccountInUse
	}
	return s.repo.DeactivateAccount(ctx, id)
}

// ListAccounts returns the company's chart of accounts.
func (s *Service) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	return s.repo.ListAccounts(ctx, companyID)
}

// NewLineInput carries one debit-or-credit leg.
type NewLineInput struct {
	AccountID int64
	Debit     money.Money
	Credit    money.Money
}

// NewEntryInput carries the fields for a draft journal entry.
type NewEntryInput struct {
	Date       time.Time
	FiscalYear string
	Narration  string
	Currency   string
	Lines      []NewLineInput
}

// CreateEntry stores a draft entry. Drafts may be unbalanced while being
// edited; balance is enforced at posting time.
func (s *Service) CreateEntry(ctx context.Context, companyID int64, input NewEntryInput) (*JournalEntry, error) {
	entry, err := s.buildEntry(companyID, input)
	if err != nil {
		return nil, err
	}
	if err := s.checkLineAccounts(ctx, companyID, entry.Lines); err != nil {
		return nil, err
	}
	if err := s.repo.CreateEntry(ctx, *entry); err != nil {
		return nil, fmt.Errorf("create journal entry: %w", err)
	}
	return entry, nil
}

// UpdateEntry replaces the narration and lines of a draft. Posted and
// reversed entries are immutable.
func (s *Service) UpdateEntry(ctx context.Context, companyID int64, id uuid.UUID, input NewEntryInput) (*JournalEntry, error) {
	existing, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := shared.CheckTenant(companyID, existing.CompanyID); err != nil {
		return nil, err
	}
	if existing.Status != EntryStatusDraft {
		return nil, ErrImmutableEntry
	}
	entry, err := s.buildEntry(companyID, input)
	if err != nil {
		return nil, err
	}
	if err := s.checkLineAccounts(ctx, companyID, entry.Lines); err != nil {
		return nil, err
	}
	entry.ID = id
	entry.CreatedAt = existing.CreatedAt
	if err := s.repo.ReplaceDraftLines(ctx, *entry); err != nil {
		return nil, fmt.Errorf("update journal entry: %w", err)
	}
	return entry, nil
}

// PostEntry validates the double-entry invariant and transitions
// draft→posted. The read-validate-write runs under one serializable
// transaction so a concurrent edit cannot slip between validation and the
// status flip.
func (s *Service) PostEntry(ctx context.Context, companyID int64, id uuid.UUID) (*JournalEntry, error) {
	var posted *JournalEntry
	err := s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := shared.CheckTenant(companyID, entry.CompanyID); err != nil {
			return err
		}
		if entry.Status != EntryStatusDraft {
			return fmt.Errorf("%w: only draft entries can be posted, got %s", shared.ErrStateTransition, entry.Status)
		}
		if err := ValidateForPosting(entry); err != nil {
			return err
		}
		if err := tx.SetEntryStatus(ctx, id, EntryStatusPosted); err != nil {
			return err
		}
		entry.Status = EntryStatusPosted
		posted = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posted, nil
}

// ReverseEntry corrects a posted entry by appending a mirrored entry
// (debits and credits swapped) and marking the original reversed. The
// original's lines are never touched.
func (s *Service) ReverseEntry(ctx context.Context, companyID int64, id uuid.UUID, date time.Time, narration string) (*JournalEntry, error) {
	var reversal *JournalEntry
	err := s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := shared.CheckTenant(companyID, original.CompanyID); err != nil {
			return err
		}
		if original.Status != EntryStatusPosted {
			return fmt.Errorf("%w: only posted entries can be reversed, got %s", shared.ErrStateTransition, original.Status)
		}

		now := time.Now()
		mirror := JournalEntry{
			ID:         uuid.New(),
			CompanyID:  original.CompanyID,
			Date:       date,
			FiscalYear: original.FiscalYear,
			Narration:  narration,
			Currency:   original.Currency,
			Status:     EntryStatusPosted,
			ReversesID: &original.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		for _, l := range original.Lines {
			mirror.Lines = append(mirror.Lines, JournalLine{
				ID:        uuid.New(),
				EntryID:   mirror.ID,
				AccountID: l.AccountID,
				Debit:     l.Credit,
				Credit:    l.Debit,
			})
		}
		if err := ValidateForPosting(&mirror); err != nil {
			return err
		}
		if err := tx.InsertEntry(ctx, mirror); err != nil {
			return err
		}
		if err := tx.SetEntryStatus(ctx, original.ID, EntryStatusReversed); err != nil {
			return err
		}
		reversal = &mirror
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// GetEntry loads one entry with its lines.
func (s *Service) GetEntry(ctx context.Context, companyID int64, id uuid.UUID) (*JournalEntry, error) {
	entry, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := shared.CheckTenant(companyID, entry.CompanyID); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries returns the company's entries within a date range.
func (s *Service) ListEntries(ctx context.Context, companyID int64, from, to time.Time) ([]JournalEntry, error) {
	return s.repo.ListEntries(ctx, companyID, from, to)
}

// checkLineAccounts verifies every line account exists, is active and
// belongs to the caller's company. The database foreign key guarantees
// existence only, never tenancy.
func (s *Service) checkLineAccounts(ctx context.Context, companyID int64, lines []JournalLine) error {
	seen := make(map[int64]bool, len(lines))
	for _, l := range lines {
		if seen[l.AccountID] {
			continue
		}
		seen[l.AccountID] = true
		account, err := s.repo.GetAccount(ctx, l.AccountID)
		if err != nil {
			return fmt.Errorf("verify line account %d: %w", l.AccountID, err)
		}
		if err := shared.CheckTenant(companyID, account.CompanyID); err != nil {
			return err
		}
		if !account.IsActive {
			return fmt.Errorf("%w: account %s is inactive", shared.ErrValidation, account.Code)
		}
	}
	return nil
}

func (s *Service) buildEntry(companyID int64, input NewEntryInput) (*JournalEntry, error) {
	if companyID <= 0 {
		return nil, fmt.Errorf("%w: company id required", shared.ErrValidation)
	}
	if err := money.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}
	if input.Date.IsZero() {
		return nil, fmt.Errorf("%w: entry date required", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}

	now := time.Now()
	entry := JournalEntry{
		ID:         uuid.New(),
		CompanyID:  companyID,
		Date:       input.Date,
		FiscalYear: input.FiscalYear,
		Narration:  input.Narration,
		Currency:   input.Currency,
		Status:     EntryStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, l := range input.Lines {
		if l.Debit.Currency != input.Currency || l.Credit.Currency != input.Currency {
			return nil, money.ErrCurrencyMismatch
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return nil, ErrNegativeLineAmount
		}
		entry.Lines = append(entry.Lines, JournalLine{
			ID:        uuid.New(),
			EntryID:   entry.ID,
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
		})
	}
	return &entry, nil
}

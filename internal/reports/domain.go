package reports

import (
	"fmt"
	"sort"
	"time"

	"github.com/artha-erp/artha/internal/ledger"
	"github.com/artha-erp/artha/internal/money"
	"github.com/artha-erp/artha/internal/shared"
)

// LineTotals carries the posted debit and credit sums for one account
// over a period, in minor units.
type LineTotals struct {
	Debit  int64
	Credit int64
}

// Node is one account in the rolled-up report tree. Amount includes the
// node's own postings and every descendant's.
type Node struct {
	AccountID   int64        `json:"account_id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Direct      money.Money  `json:"direct"`
	Amount      money.Money  `json:"amount"`
	Comparative *money.Money `json:"comparative,omitempty"`
	Children    []*Node      `json:"children,omitempty"`
}

// Period is one reporting date range.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ProfitAndLossReport is the income and expense tree for a period, with
// an optional comparative period attached per node.
type ProfitAndLossReport struct {
	CompanyID    int64       `json:"company_id"`
	Currency     string      `json:"currency"`
	Period       Period      `json:"period"`
	Comparative  *Period     `json:"comparative,omitempty"`
	Income       []*Node     `json:"income"`
	Expense      []*Node     `json:"expense"`
	TotalIncome  money.Money `json:"total_income"`
	TotalExpense money.Money `json:"total_expense"`
	NetProfit    money.Money `json:"net_profit"`
	GeneratedAt  time.Time   `json:"generated_at"`
}

var (
	// ErrAccountCycle reports a parent chain that loops back on itself.
	ErrAccountCycle = fmt.Errorf("%w: account hierarchy contains a cycle", shared.ErrInvariant)
	// ErrOrphanAccount reports a parent reference to a missing account.
	ErrOrphanAccount = fmt.Errorf("%w: account parent does not exist", shared.ErrInvariant)
)

// directAmount nets one account's postings in its natural direction:
// income accounts grow with credits, expense accounts with debits.
func directAmount(accountType ledger.AccountType, totals LineTotals, currency string) money.Money {
	switch accountType {
	case ledger.AccountTypeIncome:
		return money.New(totals.Credit-totals.Debit, currency)
	case ledger.AccountTypeExpense:
		return money.New(totals.Debit-totals.Credit, currency)
	default:
		return money.New(totals.Debit-totals.Credit, currency)
	}
}

// buildTree assembles the account forest for one type and rolls amounts
// up bottom-up. Integer minor-unit addition keeps the root exactly equal
// to the sum of its leaves at any depth.
func buildTree(accounts []ledger.Account, accountType ledger.AccountType, totals, comparative map[int64]LineTotals, currency string) ([]*Node, error) {
	byID := make(map[int64]*ledger.Account, len(accounts))
	for i := range accounts {
		byID[accounts[i].ID] = &accounts[i]
	}

	nodes := make(map[int64]*Node)
	children := make(map[int64][]int64)
	var rootIDs []int64
	for _, a := range accounts {
		if a.Type != accountType {
			continue
		}
		if a.ParentID != nil {
			parent, ok := byID[*a.ParentID]
			if !ok {
				return nil, fmt.Errorf("account %s (%d): %w", a.Code, a.ID, ErrOrphanAccount)
			}
			if parent.Type != accountType {
				// Roots of this type hanging under another section.
				rootIDs = append(rootIDs, a.ID)
			} else {
				children[*a.ParentID] = append(children[*a.ParentID], a.ID)
			}
		} else {
			rootIDs = append(rootIDs, a.ID)
		}
		node := &Node{
			AccountID: a.ID,
			Code:      a.Code,
			Name:      a.Name,
			Direct:    directAmount(accountType, totals[a.ID], currency),
			Amount:    money.Zero(currency),
		}
		if comparative != nil {
			c := directAmount(accountType, comparative[a.ID], currency)
			node.Comparative = &c
		}
		nodes[a.ID] = node
	}

	reached := make(map[int64]bool, len(nodes))
	var roots []*Node
	for _, id := range rootIDs {
		root, err := rollup(id, nodes, children, make(map[int64]bool), reached)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	// A parent loop with no entry point leaves its members unreachable
	// from any root.
	if len(reached) != len(nodes) {
		return nil, ErrAccountCycle
	}
	sortNodes(roots)
	return roots, nil
}

// rollup computes amount(node) = direct(node) + Σ amount(children),
// refusing parent chains that loop.
func rollup(id int64, nodes map[int64]*Node, children map[int64][]int64, visiting, reached map[int64]bool) (*Node, error) {
	if visiting[id] {
		return nil, fmt.Errorf("account %d: %w", id, ErrAccountCycle)
	}
	visiting[id] = true
	defer delete(visiting, id)
	reached[id] = true

	node := nodes[id]
	amount := node.Direct
	var comparative *money.Money
	if node.Comparative != nil {
		c := *node.Comparative
		comparative = &c
	}
	for _, childID := range children[id] {
		child, err := rollup(childID, nodes, children, visiting, reached)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
		if amount, err = amount.Add(child.Amount); err != nil {
			return nil, err
		}
		if comparative != nil && child.Comparative != nil {
			c, err := comparative.Add(*child.Comparative)
			if err != nil {
				return nil, err
			}
			comparative = &c
		}
	}
	sortNodes(node.Children)
	node.Amount = amount
	node.Comparative = comparative
	return node, nil
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })
}

// sumRoots totals the top level of one section.
func sumRoots(roots []*Node, currency string) (money.Money, error) {
	total := money.Zero(currency)
	var err error
	for _, n := range roots {
		if total, err = total.Add(n.Amount); err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}

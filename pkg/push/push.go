// Package push reconciles pending ledger rows into destination budgets.
package push

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/ynai/ynai/pkg/budget"
	"github.com/ynai/ynai/pkg/store"
)

// Gateway is the budgeting-service surface the reconciler needs.
type Gateway interface {
	CreateTransactions(budgetID string, txns []budget.Transaction) ([]string, error)
}

// Entry routes one bank account to a budget account inside a budget.
type Entry struct {
	BankAccountID   string `json:"bank_account_id"`
	BudgetAccountID string `json:"budget_account_id"`
	BudgetID        string `json:"budget_id"`
}

// Mapping is the persisted account routing table. A bank account absent
// from it is excluded from every push.
type Mapping []Entry

// Reconciler groups pending ledger rows by destination budget, submits
// each group as one bulk call and marks the group's rows processed.
type Reconciler struct {
	store   *store.Store
	gateway Gateway
	logger  *log.Logger
}

func New(st *store.Store, gateway Gateway, logger *log.Logger) *Reconciler {
	return &Reconciler{store: st, gateway: gateway, logger: logger}
}

type group struct {
	txns   []budget.Transaction
	rowIDs []string
}

// Push submits every mapped pending row. It returns the import ids the
// destination reported as duplicates and how many rows were submitted; a
// run with nothing to push returns (nil, 0, nil). Each group's submission
// and mark-processed pair is the unit of atomicity: a failing group aborts
// the remaining ones but never rolls back groups already processed.
func (r *Reconciler) Push(mapping Mapping) (duplicates []string, submitted int, err error) {
	groups := map[string]*group{}
	var budgetOrder []string

	for _, entry := range mapping {
		rows, err := r.store.PendingSettled(entry.BankAccountID)
		if err != nil {
			return nil, 0, err
		}
		g := groups[entry.BudgetID]
		if g == nil {
			g = &group{}
			groups[entry.BudgetID] = g
			budgetOrder = append(budgetOrder, entry.BudgetID)
		}
		for _, row := range rows {
			g.txns = append(g.txns, budget.Transaction{
				AccountID: entry.BudgetAccountID,
				Date:      row.BookingDate,
				Amount:    Milliunits(row.Amount),
				PayeeName: row.Description,
				ImportID:  row.ImportID,
			})
			g.rowIDs = append(g.rowIDs, row.ID)
		}
	}

	for _, budgetID := range budgetOrder {
		g := groups[budgetID]
		if len(g.txns) == 0 {
			continue
		}
		r.logger.Info("pushing transactions", "budget", budgetID, "count", len(g.txns))
		dups, err := r.gateway.CreateTransactions(budgetID, g.txns)
		if err != nil {
			return duplicates, submitted, fmt.Errorf("push to budget %q: %w", budgetID, err)
		}
		if err := r.store.MarkProcessed(g.rowIDs); err != nil {
			return duplicates, submitted, err
		}
		duplicates = append(duplicates, dups...)
		submitted += len(g.txns)
	}

	if submitted == 0 {
		r.logger.Info("no new transactions")
	}
	return duplicates, submitted, nil
}

// Milliunits converts a currency amount to the destination's integer
// minor-unit scale: multiply by 1000 and truncate. 1.99*1000 is not 1990
// in float64, hence decimal.
func Milliunits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(1000)).IntPart()
}

package budget

import (
	"fmt"

	"github.com/brunomvsouza/ynab.go"
	"github.com/brunomvsouza/ynab.go/api"
	"github.com/brunomvsouza/ynab.go/api/account"
	"github.com/brunomvsouza/ynab.go/api/transaction"
)

// Account is one destination budget account, flattened across budgets so an
// operator can pick from a single numbered list.
type Account struct {
	ID       string `json:"id"`
	BudgetID string `json:"budget_id"`
	Name     string `json:"name"`
}

// Transaction is one row ready for submission to a budget. Amount is in the
// destination's milliunits and ImportID is its idempotency key.
type Transaction struct {
	AccountID string
	Date      string
	Amount    int64
	PayeeName string
	ImportID  string
}

// Client wraps the YNAB API client behind the two calls this system makes.
type Client struct {
	client ynab.ClientServicer
}

// New creates a client from a personal access token.
func New(token string) *Client {
	return &Client{client: ynab.NewClient(token)}
}

// BudgetAccounts lists every account of every budget, named
// "Budget - Account".
func (c *Client) BudgetAccounts() ([]Account, error) {
	budgets, err := c.client.Budget().GetBudgets()
	if err != nil {
		return nil, fmt.Errorf("get budgets: %w", err)
	}

	var accounts []Account
	for _, b := range budgets {
		snapshot, err := c.client.Account().GetAccounts(b.ID, nil)
		if err != nil {
			return nil, fmt.Errorf("get accounts for budget %q: %w", b.ID, err)
		}
		accounts = append(accounts, flattenAccounts(b.ID, b.Name, snapshot.Accounts)...)
	}
	return accounts, nil
}

func flattenAccounts(budgetID, budgetName string, in []*account.Account) []Account {
	out := make([]Account, 0, len(in))
	for _, a := range in {
		out = append(out, Account{
			ID:       a.ID,
			BudgetID: budgetID,
			Name:     fmt.Sprintf("%s - %s", budgetName, a.Name),
		})
	}
	return out
}

// CreateTransactions submits one batch of transactions to a budget and
// returns the import ids the destination reported as duplicates.
func (c *Client) CreateTransactions(budgetID string, txns []Transaction) ([]string, error) {
	if len(txns) == 0 {
		return nil, nil
	}

	payloads := make([]transaction.PayloadTransaction, 0, len(txns))
	for _, t := range txns {
		date, err := api.DateFromString(t.Date)
		if err != nil {
			return nil, fmt.Errorf("bad transaction date %q: %w", t.Date, err)
		}
		payee := t.PayeeName
		importID := t.ImportID
		payloads = append(payloads, transaction.PayloadTransaction{
			AccountID: t.AccountID,
			Date:      date,
			Amount:    t.Amount,
			Cleared:   transaction.ClearingStatusCleared,
			PayeeName: &payee,
			ImportID:  &importID,
		})
	}

	summary, err := c.client.Transaction().CreateTransactions(budgetID, payloads)
	if err != nil {
		return nil, fmt.Errorf("create transactions in budget %q: %w", budgetID, err)
	}
	return summary.DuplicateImportIDs, nil
}

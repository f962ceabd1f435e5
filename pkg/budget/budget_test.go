package budget

import (
	"testing"

	"github.com/brunomvsouza/ynab.go/api/account"
)

func TestFlattenAccounts(t *testing.T) {
	snapshot := []*account.Account{
		{ID: "a123", Name: "first account"},
		{ID: "a321", Name: "second account"},
	}

	accounts := flattenAccounts("b123", "budget1", snapshot)
	if len(accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(accounts))
	}
	first := accounts[0]
	if first.ID != "a123" || first.BudgetID != "b123" {
		t.Errorf("first account = %+v", first)
	}
	if first.Name != "budget1 - first account" {
		t.Errorf("name = %q, want %q", first.Name, "budget1 - first account")
	}
	if accounts[1].Name != "budget1 - second account" {
		t.Errorf("second name = %q", accounts[1].Name)
	}
}

func TestFlattenAccountsEmpty(t *testing.T) {
	if got := flattenAccounts("b123", "budget1", nil); len(got) != 0 {
		t.Errorf("flattening no accounts = %+v, want none", got)
	}
}

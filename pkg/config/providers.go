package config

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/ynai/ynai/pkg/budget"
	"github.com/ynai/ynai/pkg/push"
	"github.com/ynai/ynai/pkg/store"
)

// The consent flow needs somewhere public to land after the operator
// authorizes access; the landing page content is irrelevant.
const consentRedirectURL = "https://google.com"

func registerDefaults(r *Resolver) {
	r.Register("fetch.secret_id", configureFetchSecretID)
	r.Register("fetch.secret_key", configureFetchSecretKey)
	r.Register("fetch.refresh_token", configureFetchRefreshToken)
	r.Register("fetch.access_token", configureFetchAccessToken)
	r.Register("fetch.institution_id", configureFetchInstitutionID)
	r.Register("fetch.requisition_id", configureFetchRequisitionID)
	r.Register("fetch.accounts", configureFetchAccounts)
	r.Register("push.token", configurePushToken)
	r.Register("push.accounts", configurePushAccounts)
	r.Register("push.mapping", configurePushMapping)
}

func configureFetchSecretID(ctx *Context) (any, error) {
	p, err := ctx.Prompter()
	if err != nil {
		return nil, err
	}
	return p.Ask("Enter secret id")
}

func configureFetchSecretKey(ctx *Context) (any, error) {
	p, err := ctx.Prompter()
	if err != nil {
		return nil, err
	}
	return p.AskSecret("Enter secret key")
}

// configureFetchRefreshToken issues a fresh token pair and caches the
// access half as a side effect, so the immediately following access-token
// lookup does not burn a second issue call.
func configureFetchRefreshToken(ctx *Context) (any, error) {
	bankClient, err := ctx.Bank()
	if err != nil {
		return nil, err
	}
	cfg, err := ctx.Config()
	if err != nil {
		return nil, err
	}

	pair, err := bankClient.IssueToken()
	if err != nil {
		return nil, err
	}
	if err := cfg.Set("fetch.access_token", pair.Access); err != nil {
		return nil, err
	}
	return pair.Refresh, nil
}

// configureFetchAccessToken prefers exchanging the cached refresh token;
// without one it issues a new pair and caches the refresh half.
func configureFetchAccessToken(ctx *Context) (any, error) {
	bankClient, err := ctx.Bank()
	if err != nil {
		return nil, err
	}
	cfg, err := ctx.Config()
	if err != nil {
		return nil, err
	}

	hasRefresh, err := cfg.Has("fetch.refresh_token")
	if err != nil {
		return nil, err
	}
	if hasRefresh {
		refresh, err := cfg.GetString("fetch.refresh_token")
		if err != nil {
			return nil, err
		}
		return bankClient.RefreshToken(refresh)
	}

	pair, err := bankClient.IssueToken()
	if err != nil {
		return nil, err
	}
	if err := cfg.Set("fetch.refresh_token", pair.Refresh); err != nil {
		return nil, err
	}
	return pair.Access, nil
}

func configureFetchInstitutionID(ctx *Context) (any, error) {
	bankClient, err := ctx.Bank()
	if err != nil {
		return nil, err
	}
	p, err := ctx.Prompter()
	if err != nil {
		return nil, err
	}

	country, err := p.Ask("Enter country code (ISO 3166) or press return for all")
	if err != nil {
		return nil, err
	}
	institutions, err := bankClient.Institutions(country)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(institutions))
	p.Say("")
	for _, inst := range institutions {
		known[inst.ID] = true
		p.Say("%s: %s", inst.ID, inst.Name)
	}

	id, err := p.Ask("Enter bank ID (hopefully you have scrollback)")
	if err != nil {
		return nil, err
	}
	if !known[id] {
		return nil, &InvalidSelectionError{Value: id}
	}
	return id, nil
}

// configureFetchRequisitionID starts the consent flow. The requisition id
// is persisted here, before the operator has visited the link, so the next
// run picks up the half-finished flow instead of starting a new one. The
// provider cannot return a value: resolution ends in the awaiting-action
// outcome and the run stops.
func configureFetchRequisitionID(ctx *Context) (any, error) {
	bankClient, err := ctx.Bank()
	if err != nil {
		return nil, err
	}
	cfg, err := ctx.Config()
	if err != nil {
		return nil, err
	}

	institutionID, err := cfg.GetString("fetch.institution_id")
	if err != nil {
		return nil, err
	}
	referenceID := uuid.NewString()
	if err := cfg.Set("fetch.reference_id", referenceID); err != nil {
		return nil, err
	}

	req, err := bankClient.CreateRequisition(institutionID, referenceID, consentRedirectURL)
	if err != nil {
		return nil, err
	}
	if err := cfg.Set("fetch.requisition_id", req.ID); err != nil {
		return nil, err
	}
	return nil, &AwaitingActionError{Key: ctx.Key(), Link: req.Link}
}

func configureFetchAccounts(ctx *Context) (any, error) {
	bankClient, err := ctx.Bank()
	if err != nil {
		return nil, err
	}
	cfg, err := ctx.Config()
	if err != nil {
		return nil, err
	}
	st, err := ctx.Store()
	if err != nil {
		return nil, err
	}
	p, err := ctx.Prompter()
	if err != nil {
		return nil, err
	}

	requisitionID, err := cfg.GetString("fetch.requisition_id")
	if err != nil {
		return nil, err
	}
	req, err := bankClient.Requisition(requisitionID)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, fmt.Errorf("error fetching requisition %q", requisitionID)
	}

	p.Say("Fetching accounts")
	accounts := make([]store.Account, 0, len(req.Accounts))
	for _, id := range req.Accounts {
		details, err := bankClient.AccountDetails(id)
		if err != nil {
			return nil, err
		}
		account := store.Account{ID: id, Name: details.Name, Product: details.Product}
		if err := st.UpsertAccount(account); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	p.Say("")
	p.Say("%d accounts set up.", len(accounts))
	return accounts, nil
}

func configurePushToken(ctx *Context) (any, error) {
	p, err := ctx.Prompter()
	if err != nil {
		return nil, err
	}
	return p.AskSecret("Enter personal access token")
}

func configurePushAccounts(ctx *Context) (any, error) {
	budgetClient, err := ctx.Budget()
	if err != nil {
		return nil, err
	}
	return budgetClient.BudgetAccounts()
}

// configurePushMapping interactively routes each local bank account to a
// destination budget account. Skipped accounts are left out of the mapping
// and so out of every future push.
func configurePushMapping(ctx *Context) (any, error) {
	cfg, err := ctx.Config()
	if err != nil {
		return nil, err
	}
	st, err := ctx.Store()
	if err != nil {
		return nil, err
	}
	p, err := ctx.Prompter()
	if err != nil {
		return nil, err
	}

	var choices []budget.Account
	if err := cfg.GetInto("push.accounts", &choices); err != nil {
		return nil, err
	}

	listing := ""
	for i, account := range choices {
		listing += fmt.Sprintf("%d: %s\n", i+1, account.Name)
	}
	listing += "(Return to not import this account)"

	bankAccounts, err := st.ListAccounts()
	if err != nil {
		return nil, err
	}

	mapping := push.Mapping{}
	var summary []string
	for _, account := range bankAccounts {
		p.Say("%s", listing)
		answer, err := p.Ask(fmt.Sprintf("Import %q into", account.Name))
		if err != nil {
			return nil, err
		}
		if answer == "" {
			summary = append(summary, fmt.Sprintf("%s => <not imported>", account.Name))
			continue
		}
		choice, err := strconv.Atoi(answer)
		if err != nil || choice < 1 || choice > len(choices) {
			return nil, &InvalidSelectionError{Value: answer}
		}
		picked := choices[choice-1]
		mapping = append(mapping, push.Entry{
			BankAccountID:   account.ID,
			BudgetAccountID: picked.ID,
			BudgetID:        picked.BudgetID,
		})
		summary = append(summary, fmt.Sprintf("%s => %s", account.Name, picked.Name))
	}

	p.Say("")
	p.Say("Mapping bank account => budget account:")
	for _, line := range summary {
		p.Say("%s", line)
	}
	ok, err := p.Confirm("Is this OK?")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCanceled
	}
	return mapping, nil
}

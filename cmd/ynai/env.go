package main

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/ynai/ynai/pkg/bank"
	"github.com/ynai/ynai/pkg/budget"
	"github.com/ynai/ynai/pkg/config"
	"github.com/ynai/ynai/pkg/prompt"
	"github.com/ynai/ynai/pkg/store"
)

// env holds one run's wired-up collaborators. Gateways are built lazily
// because their credentials come out of config resolution, which may in
// turn prompt the operator.
type env struct {
	store    *store.Store
	config   *config.Config
	resolver *config.Resolver
	bank     *bank.Client
	budget   *budget.Client
}

func setup() (*env, error) {
	st, err := store.Open(viper.GetString("db"))
	if err != nil {
		return nil, err
	}
	resolver := config.NewResolver()
	cfg := config.New(st, resolver)
	resolver.SetPrompter(prompt.NewTerminal())
	return &env{store: st, config: cfg, resolver: resolver}, nil
}

func (e *env) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

// bankClient builds the aggregator client from the configured secrets and
// registers it as a resolver capability so token providers can use it.
func (e *env) bankClient() (*bank.Client, error) {
	if e.bank != nil {
		return e.bank, nil
	}
	secretID, err := e.config.GetString("fetch.secret_id")
	if err != nil {
		return nil, err
	}
	secretKey, err := e.config.GetString("fetch.secret_key")
	if err != nil {
		return nil, err
	}
	client := bank.New(secretID, secretKey)
	e.resolver.SetBank(client)
	e.bank = client
	return client, nil
}

// budgetClient builds the budget client from the configured token and
// registers it as a resolver capability.
func (e *env) budgetClient() (*budget.Client, error) {
	if e.budget != nil {
		return e.budget, nil
	}
	token, err := e.config.GetString("push.token")
	if err != nil {
		return nil, err
	}
	client := budget.New(token)
	e.resolver.SetBudget(client)
	e.budget = client
	return client, nil
}

// ensureConnection probes the aggregator with the cached access token and
// escalates on rejection: first drop the access token so it re-resolves
// off the refresh token, then drop both so a fresh pair is issued, then
// give up.
func (e *env) ensureConnection() error {
	client, err := e.bankClient()
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		token, err := e.config.GetString("fetch.access_token")
		if err != nil {
			return err
		}
		client.SetToken(token)

		err = client.CheckAccess()
		if err == nil {
			return nil
		}
		if !errors.Is(err, bank.ErrUnauthorized) {
			return err
		}

		switch attempt {
		case 1:
			logger.Info("refreshing token")
			if err := e.config.Delete("fetch.access_token"); err != nil {
				return err
			}
		case 2:
			logger.Info("getting new token")
			if err := e.config.Delete("fetch.access_token"); err != nil {
				return err
			}
			if err := e.config.Delete("fetch.refresh_token"); err != nil {
				return err
			}
		default:
			_ = e.config.Delete("fetch.access_token")
			_ = e.config.Delete("fetch.refresh_token")
			return fmt.Errorf("could not obtain a valid access token")
		}
	}
}

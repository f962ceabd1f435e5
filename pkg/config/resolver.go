package config

import (
	"slices"

	"github.com/ynai/ynai/pkg/bank"
	"github.com/ynai/ynai/pkg/budget"
	"github.com/ynai/ynai/pkg/prompt"
	"github.com/ynai/ynai/pkg/store"
)

// BankGateway is the aggregator surface providers may call.
type BankGateway interface {
	IssueToken() (bank.TokenPair, error)
	RefreshToken(refresh string) (string, error)
	Institutions(country string) ([]bank.Institution, error)
	CreateRequisition(institutionID, referenceID, redirectURL string) (bank.Requisition, error)
	Requisition(id string) (bank.Requisition, error)
	AccountDetails(accountID string) (bank.AccountDetails, error)
}

// BudgetGateway is the budgeting-service surface providers may call.
type BudgetGateway interface {
	BudgetAccounts() ([]budget.Account, error)
}

// Provider resolves one configuration key. It receives the capability
// context for the key being resolved and returns a JSON-serializable value.
type Provider func(ctx *Context) (any, error)

// Resolver resolves configuration keys through registered providers. One
// resolution stack tracks the in-flight call chain for cycle detection; a
// key may appear on it at most once.
type Resolver struct {
	providers map[string]Provider
	stack     []string

	config   *Config
	store    *store.Store
	bank     BankGateway
	budget   BudgetGateway
	prompter prompt.Prompter
}

// NewResolver creates a resolver with the default fetch.* and push.*
// providers registered. Capabilities are attached afterwards with the
// Set methods; a provider touching an unattached capability fails with a
// MissingCapabilityError rather than a nil dereference.
func NewResolver() *Resolver {
	r := &Resolver{providers: map[string]Provider{}}
	registerDefaults(r)
	return r
}

// Register binds a provider to a key, replacing any existing one.
func (r *Resolver) Register(key string, p Provider) {
	r.providers[key] = p
}

func (r *Resolver) SetConfig(c *Config)           { r.config = c }
func (r *Resolver) SetStore(s *store.Store)       { r.store = s }
func (r *Resolver) SetBank(b BankGateway)         { r.bank = b }
func (r *Resolver) SetBudget(b BudgetGateway)     { r.budget = b }
func (r *Resolver) SetPrompter(p prompt.Prompter) { r.prompter = p }

// Resolve runs the provider for key. Re-entrant calls share the stack: a
// provider reading another unresolved key pushes onto it, so a chain that
// circles back to an in-flight key fails with the full chain in
// first-encounter order. The stack is popped on every exit path.
func (r *Resolver) Resolve(key string) (any, error) {
	p, ok := r.providers[key]
	if !ok {
		return nil, &UnresolvableKeyError{Key: key}
	}
	if slices.Contains(r.stack, key) {
		return nil, &CyclicDependencyError{Stack: slices.Clone(r.stack)}
	}

	r.stack = append(r.stack, key)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	return p(&Context{key: key, resolver: r})
}

// Context gives a provider access to the ambient capabilities. Every
// accessor fails fast, naming the missing capability and the key being
// resolved, so a misconfigured run surfaces immediately instead of deep
// inside a provider.
type Context struct {
	key      string
	resolver *Resolver
}

// Key is the configuration key this provider invocation resolves.
func (c *Context) Key() string { return c.key }

func (c *Context) Config() (*Config, error) {
	if c.resolver.config == nil {
		return nil, &MissingCapabilityError{Capability: "config", Key: c.key}
	}
	return c.resolver.config, nil
}

func (c *Context) Store() (*store.Store, error) {
	if c.resolver.store == nil {
		return nil, &MissingCapabilityError{Capability: "db", Key: c.key}
	}
	return c.resolver.store, nil
}

func (c *Context) Bank() (BankGateway, error) {
	if c.resolver.bank == nil {
		return nil, &MissingCapabilityError{Capability: "bank client", Key: c.key}
	}
	return c.resolver.bank, nil
}

func (c *Context) Budget() (BudgetGateway, error) {
	if c.resolver.budget == nil {
		return nil, &MissingCapabilityError{Capability: "budget client", Key: c.key}
	}
	return c.resolver.budget, nil
}

func (c *Context) Prompter() (prompt.Prompter, error) {
	if c.resolver.prompter == nil {
		return nil, &MissingCapabilityError{Capability: "prompter", Key: c.key}
	}
	return c.resolver.prompter, nil
}

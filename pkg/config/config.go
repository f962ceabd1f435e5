// Package config holds the persistent configuration namespace and the lazy
// resolution machinery that fills it. Keys are namespace-qualified strings
// ("fetch.access_token", "push.mapping") mapping to JSON values in the
// store. A missing key is resolved on demand by its registered provider,
// which may read other keys, prompt the operator, or call an external
// gateway; the result is persisted so providers run at most once per key.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/ynai/ynai/pkg/store"
)

// Config is the lazy key/value view over the store's config table.
type Config struct {
	store    *store.Store
	resolver *Resolver
}

// New binds a config to its store and resolver. The resolver gains the
// config and store capabilities in the same breath, since providers nearly
// always need both.
func New(st *store.Store, resolver *Resolver) *Config {
	c := &Config{store: st, resolver: resolver}
	if resolver != nil {
		resolver.SetConfig(c)
		resolver.SetStore(st)
	}
	return c
}

// GetRaw returns the raw JSON value for key, resolving and persisting it
// through the key's provider when absent.
func (c *Config) GetRaw(key string) (json.RawMessage, error) {
	raw, ok, err := c.store.GetValue(key)
	if err != nil {
		return nil, err
	}
	if ok {
		return raw, nil
	}
	if c.resolver == nil {
		return nil, &UnresolvableKeyError{Key: key}
	}

	val, err := c.resolver.Resolve(key)
	if err != nil {
		return nil, err
	}
	raw, err = json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("encode value for %q: %w", key, err)
	}
	if err := c.store.SetValue(key, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Get returns the value for key decoded into its natural JSON shape.
func (c *Config) Get(key string) (any, error) {
	raw, err := c.GetRaw(key)
	if err != nil {
		return nil, err
	}
	var val any
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil, fmt.Errorf("decode value for %q: %w", key, err)
	}
	return val, nil
}

// GetString returns the value for key, which must be a JSON string.
func (c *Config) GetString(key string) (string, error) {
	raw, err := c.GetRaw(key)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("value for %q is not a string: %w", key, err)
	}
	return s, nil
}

// GetInto decodes the value for key into out.
func (c *Config) GetInto(key string, out any) error {
	raw, err := c.GetRaw(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode value for %q: %w", key, err)
	}
	return nil
}

// Peek returns the stored value for key without triggering resolution.
func (c *Config) Peek(key string) (any, bool, error) {
	raw, ok, err := c.store.GetValue(key)
	if err != nil || !ok {
		return nil, false, err
	}
	var val any
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil, false, fmt.Errorf("decode value for %q: %w", key, err)
	}
	return val, true, nil
}

// Set persists a value for key, replacing any previous one.
func (c *Config) Set(key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	return c.store.SetValue(key, raw)
}

// Has reports whether the store holds a value for key. It never resolves.
func (c *Config) Has(key string) (bool, error) {
	return c.store.HasValue(key)
}

// Delete removes the value for key. Deleting an absent key is a no-op.
// Absence makes the next Get re-resolve, which is how invalidated
// credentials are recovered.
func (c *Config) Delete(key string) error {
	return c.store.DeleteValue(key)
}

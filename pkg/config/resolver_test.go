package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ynai/ynai/pkg/store"
)

func newTestConfig(t *testing.T) (*Config, *Resolver) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ynai.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	resolver := NewResolver()
	return New(st, resolver), resolver
}

func TestGetUnresolvableKey(t *testing.T) {
	cfg, _ := newTestConfig(t)

	_, err := cfg.Get("unknown")
	var unresolvable *UnresolvableKeyError
	if !errors.As(err, &unresolvable) {
		t.Fatalf("Get(unknown) = %v, want UnresolvableKeyError", err)
	}
	if unresolvable.Key != "unknown" {
		t.Errorf("error names key %q, want unknown", unresolvable.Key)
	}
	if got, want := err.Error(), `don't know how to configure "unknown"`; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestGetRunsProviderOnceAndPersists(t *testing.T) {
	cfg, resolver := newTestConfig(t)

	calls := 0
	resolver.Register("thing", func(_ *Context) (any, error) {
		calls++
		return "the thing", nil
	})

	for i := 0; i < 2; i++ {
		val, err := cfg.GetString("thing")
		if err != nil {
			t.Fatalf("Get #%d failed: %v", i+1, err)
		}
		if val != "the thing" {
			t.Errorf("Get #%d = %q, want %q", i+1, val, "the thing")
		}
	}
	if calls != 1 {
		t.Errorf("provider ran %d times, want 1", calls)
	}
	if ok, _ := cfg.Has("thing"); !ok {
		t.Error("resolved value was not persisted")
	}
}

func TestExplicitSetWinsOverProvider(t *testing.T) {
	cfg, resolver := newTestConfig(t)

	resolver.Register("thing", func(_ *Context) (any, error) {
		t.Error("provider should not run for a stored key")
		return nil, nil
	})
	if err := cfg.Set("thing", "stored"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, err := cfg.GetString("thing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != "stored" {
		t.Errorf("Get = %q, want stored", val)
	}
}

func TestCyclicDependencies(t *testing.T) {
	cfg, resolver := newTestConfig(t)

	resolver.Register("A", func(ctx *Context) (any, error) {
		c, _ := ctx.Config()
		return c.Get("B")
	})
	resolver.Register("B", func(ctx *Context) (any, error) {
		c, _ := ctx.Config()
		return c.Get("A")
	})

	_, err := cfg.Get("A")
	var cyclic *CyclicDependencyError
	if !errors.As(err, &cyclic) {
		t.Fatalf("Get(A) = %v, want CyclicDependencyError", err)
	}
	if len(cyclic.Stack) != 2 || cyclic.Stack[0] != "A" || cyclic.Stack[1] != "B" {
		t.Errorf("stack = %v, want [A B]", cyclic.Stack)
	}
	if got, want := err.Error(), "cyclic configuration dependencies: A, B"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestStackClearedAfterFailure(t *testing.T) {
	cfg, resolver := newTestConfig(t)

	fail := true
	resolver.Register("flaky", func(_ *Context) (any, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return "ok", nil
	})

	if _, err := cfg.Get("flaky"); err == nil {
		t.Fatal("first Get should fail")
	}
	// A failed resolution must pop the stack, or this second call would
	// be reported as a cycle.
	fail = false
	val, err := cfg.GetString("flaky")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if val != "ok" {
		t.Errorf("second Get = %q, want ok", val)
	}
}

func TestMissingCapabilities(t *testing.T) {
	cfg, _ := newTestConfig(t)

	cases := []struct {
		key  string
		want string
	}{
		{"fetch.access_token", `no bank client available to configure "fetch.access_token"`},
		{"push.accounts", `no budget client available to configure "push.accounts"`},
		{"fetch.secret_id", `no prompter available to configure "fetch.secret_id"`},
	}
	for _, tc := range cases {
		_, err := cfg.Get(tc.key)
		var missing *MissingCapabilityError
		if !errors.As(err, &missing) {
			t.Errorf("Get(%s) = %v, want MissingCapabilityError", tc.key, err)
			continue
		}
		if err.Error() != tc.want {
			t.Errorf("Get(%s) error = %q, want %q", tc.key, err.Error(), tc.want)
		}
		if missing.Key != tc.key {
			t.Errorf("error names key %q, want %q", missing.Key, tc.key)
		}
	}
}

func TestDeleteTriggersReResolution(t *testing.T) {
	cfg, resolver := newTestConfig(t)

	calls := 0
	resolver.Register("token", func(_ *Context) (any, error) {
		calls++
		return calls, nil
	})

	if _, err := cfg.Get("token"); err != nil {
		t.Fatalf("first Get failed: %v", err)
	}
	if err := cfg.Delete("token"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	var val int
	if err := cfg.GetInto("token", &val); err != nil {
		t.Fatalf("Get after Delete failed: %v", err)
	}
	if calls != 2 || val != 2 {
		t.Errorf("calls=%d val=%d, want provider re-run after delete", calls, val)
	}
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ynai/ynai/pkg/config"
	"github.com/ynai/ynai/pkg/ledger"
	"github.com/ynai/ynai/pkg/push"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the local database schema",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		for _, tool := range []string{"fetch", "push"} {
			if err := seedConfig(e, tool, "."+tool+".yml"); err != nil {
				return err
			}
		}
		fmt.Println("Database set up. Now run `ynai register`.")
		return nil
	},
}

// seedConfig loads an optional YAML file of initial values into the config
// table, namespaced under the tool.
func seedConfig(e *env, tool, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for key, val := range values {
		if err := e.config.Set(tool+"."+key, val); err != nil {
			return err
		}
	}
	logger.Info("seeded config", "file", path, "keys", len(values))
	return nil
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a bank connection and its accounts",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		if _, err := e.bankClient(); err != nil {
			return err
		}
		if err := e.ensureConnection(); err != nil {
			return err
		}

		// Resolving the account list drags the whole chain behind it:
		// institution selection, the consent flow, account discovery.
		_, err = e.config.Get("fetch.accounts")
		var wait *config.AwaitingActionError
		if errors.As(err, &wait) {
			fmt.Printf("\nNow visit: %s\n", wait.Link)
			fmt.Println("And re-run this command when you hit the redirect page.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Println("All set up. Now run `ynai run`.")
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest bank transactions into the local ledger",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		if _, err := e.bankClient(); err != nil {
			return err
		}
		if err := e.ensureConnection(); err != nil {
			return err
		}

		ingester := ledger.New(e.store, e.bank, logger)
		inserted, err := ingester.IngestAll()
		if err != nil {
			return err
		}
		logger.Info("run complete", "inserted", inserted)
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push pending transactions to the budget service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		refreshAccounts, _ := cmd.Flags().GetBool("refresh-accounts")
		updateMapping, _ := cmd.Flags().GetBool("update-mapping")

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		// Leftover key from an older single-budget layout.
		if ok, _ := e.config.Has("push.budget_id"); ok {
			_ = e.config.Delete("push.budget_id")
		}
		if refreshAccounts {
			if err := e.config.Delete("push.accounts"); err != nil {
				return err
			}
		}
		if updateMapping {
			if err := e.config.Delete("push.mapping"); err != nil {
				return err
			}
		}

		if _, err := e.budgetClient(); err != nil {
			return err
		}
		if refreshAccounts {
			// Re-resolve eagerly; nothing reads the account list until
			// the mapping is next rebuilt.
			if _, err := e.config.Get("push.accounts"); err != nil {
				return err
			}
		}

		var mapping push.Mapping
		if err := e.config.GetInto("push.mapping", &mapping); err != nil {
			return err
		}

		reconciler := push.New(e.store, e.budget, logger)
		duplicates, submitted, err := reconciler.Push(mapping)
		if err != nil {
			return err
		}
		if submitted == 0 {
			fmt.Println("No new transactions")
			return nil
		}
		if len(duplicates) > 0 {
			fmt.Printf("Duplicated IDs: %s\n", strings.Join(duplicates, ", "))
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or edit stored configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a stored configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		val, ok, err := e.config.Peek(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no value stored for %q", args[0])
		}
		_, _ = pp.Println(val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a configuration value (JSON, or a bare string)",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		var val any
		if err := json.Unmarshal([]byte(args[1]), &val); err != nil {
			val = args[1]
		}
		return e.config.Set(args[0], val)
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()
		return e.config.Delete(args[0])
	},
}

func init() {
	pushCmd.Flags().Bool("refresh-accounts", false, "Re-fetch the budget account list before pushing")
	pushCmd.Flags().Bool("update-mapping", false, "Redo the interactive account mapping")

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configDeleteCmd)
}

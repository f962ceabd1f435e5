package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

var logger *log.Logger

var rootCmd = &cobra.Command{
	Use:   "ynai",
	Short: "Sync bank transactions into your budget",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Show help when no subcommand is provided
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().String("db", "ynai.db", "SQLite database file")
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.SetEnvPrefix("ynai")
	_ = viper.BindEnv("db")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	_ = gotenv.Load()

	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "ynai",
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/glowdesk/aimeter/adapters/sqlite"
	"github.com/glowdesk/aimeter/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aimeter",
	Short: "AI usage metering and spending limits for GlowDesk",
	Long: `aimeter records AI usage events, converts raw provider cost to
user-facing EUR spend, and evaluates it against per-user monthly
spending limits.

Quick start:
  aimeter migrate   # Create the database schema
  aimeter serve     # Start the metering API

Management:
  aimeter tokens    # Manage API tokens
  aimeter overage   # Report extra usage to billing
  aimeter usage     # Usage event maintenance`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "aimeter.yaml", "config file path")
}

// openDatabase opens the configured database for CLI commands.
func openDatabase() (*sqlite.DB, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}

package main

import (
	"context"
	"fmt"

	"github.com/glowdesk/aimeter/adapters/clock"
	"github.com/glowdesk/aimeter/adapters/credits"
	"github.com/glowdesk/aimeter/adapters/email"
	"github.com/glowdesk/aimeter/adapters/idgen"
	"github.com/glowdesk/aimeter/adapters/payment"
	"github.com/glowdesk/aimeter/adapters/sqlite"
	"github.com/glowdesk/aimeter/app"
	"github.com/glowdesk/aimeter/config"
	"github.com/glowdesk/aimeter/domain/usage"
	"github.com/glowdesk/aimeter/ports"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var overageCmd = &cobra.Command{
	Use:   "overage",
	Short: "Report extra usage to billing",
	Long: `Report usage beyond included plan credits to the billing processor.

Extra usage is reported as the period total against the plan's metered
subscription item, so re-running the command is safe. Intended to run
from cron near the end of each billing period.

Examples:
  aimeter overage report --user=user_123`,
}

var overageReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report a user's current extra usage",
	RunE:  runOverageReport,
}

var overageUserID string

func init() {
	rootCmd.AddCommand(overageCmd)
	overageCmd.AddCommand(overageReportCmd)

	overageReportCmd.Flags().StringVar(&overageUserID, "user", "", "user ID (required)")
	overageReportCmd.MarkFlagRequired("user")
}

func runOverageReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Overage.Mode == "none" {
		return fmt.Errorf("overage billing is not configured (overage.mode is none)")
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var resolver ports.CreditResolver
	if cfg.Credits.Mode == "remote" {
		resolver = credits.NewRemote(credits.RemoteConfig{
			BaseURL: cfg.Credits.Remote.URL,
			APIKey:  cfg.Credits.Remote.APIKey,
			Timeout: cfg.Credits.Remote.Timeout,
		})
	} else {
		resolver = credits.NewStatic(cfg.Credits.DefaultEur, cfg.Credits.PerUser)
	}

	reporter, err := payment.NewReporter(payment.Config{
		Mode:      cfg.Overage.Mode,
		StripeKey: cfg.Overage.StripeKey,
	})
	if err != nil {
		return fmt.Errorf("overage reporter: %w", err)
	}

	meter := app.NewMeterService(app.MeterDeps{
		Limits:  sqlite.NewLimitStore(db),
		Events:  sqlite.NewUsageStore(db),
		Credits: resolver,
		Alerts:  email.NewNoop(),
		Overage: reporter,
		Clock:   clock.Real{},
		IDs:     idgen.UUID{},
		Pricing: usage.Pricing{Margin: cfg.Pricing.Margin, USDToEUR: cfg.Pricing.USDToEUR},
		Logger:  zerolog.Nop(),
	})

	amount, err := meter.ReportOverage(context.Background(), overageUserID)
	if err != nil {
		return fmt.Errorf("failed to report overage: %w", err)
	}

	if amount == 0 {
		fmt.Printf("No extra usage to report for user %s.\n", overageUserID)
		return nil
	}

	fmt.Printf("Reported %.2f EUR of extra usage for user %s.\n", amount, overageUserID)
	return nil
}

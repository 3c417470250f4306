package main

import (
	"context"
	"fmt"
	"time"

	"github.com/glowdesk/aimeter/adapters/sqlite"
	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Usage event maintenance",
}

var usageCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete usage events older than the retention window",
	Long: `Delete usage events older than the given number of days.

Spend aggregation only reads the current calendar month, so events from
closed periods can be removed once billing for them is settled.

Examples:
  aimeter usage cleanup --days=90`,
	RunE: runUsageCleanup,
}

var cleanupDays int

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageCleanupCmd)

	usageCleanupCmd.Flags().IntVar(&cleanupDays, "days", 90, "retention window in days")
}

func runUsageCleanup(cmd *cobra.Command, args []string) error {
	if cleanupDays < 31 {
		return fmt.Errorf("retention must cover at least the current month (31 days), got %d", cleanupDays)
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	cutoff := time.Now().UTC().AddDate(0, 0, -cleanupDays)
	deleted, err := sqlite.NewUsageStore(db).Cleanup(context.Background(), cutoff)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	fmt.Printf("Deleted %d usage events older than %s.\n", deleted, cutoff.Format("2006-01-02"))
	return nil
}

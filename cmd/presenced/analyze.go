package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/presenced/internal/aggregate"
	"github.com/goodtune/presenced/internal/config"
	"github.com/goodtune/presenced/internal/notify"
	"github.com/goodtune/presenced/internal/storage/jsonfile"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	analyzeFrom string
	analyzeTo   string
	analyzePost bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Aggregate the session log and print a report",
	Long:  `Aggregate the session log into per-identity statistics and chronological daily series without running the daemon.`,
	Example: `  presenced -c config.yaml analyze
  presenced analyze --from 2026-08-01 --to 2026-08-31
  presenced analyze --post`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFrom, "from", "", "Start date (YYYY-MM-DD, inclusive)")
	analyzeCmd.Flags().StringVar(&analyzeTo, "to", "", "End date (YYYY-MM-DD, inclusive)")
	analyzeCmd.Flags().BoolVar(&analyzePost, "post", false, "Also deliver the report to the reports webhook")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for analyze mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := jsonfile.Open(cfg.Storage.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	aggregator := aggregate.New(store, logger)
	report, err := aggregator.Aggregate(context.Background(), analyzeFrom, analyzeTo)
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	printReport(report)

	if analyzePost {
		webhook := notify.NewWebhook("reports", notify.Config{
			URL:       cfg.Webhooks.Reports.URL,
			Username:  cfg.Webhooks.Reports.Username,
			AvatarURL: cfg.Webhooks.Reports.AvatarURL,
		}, logger)
		if err := webhook.SendReport(context.Background(), report); err != nil {
			return fmt.Errorf("failed to post report: %w", err)
		}
		fmt.Println("Report delivered to reports webhook.")
	}

	return nil
}

// printReport prints the aggregation report with colors
func printReport(report *aggregate.Report) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("ACTIVITY ANALYSIS")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Total Users:    %d\n", len(report.Users))
	fmt.Printf("Total Sessions: %d\n", report.TotalSessions)
	fmt.Println()

	if len(report.Users) == 0 {
		yellow.Println("No session data in the requested range.")
		fmt.Println()
		cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println()
		return
	}

	for _, user := range report.Users {
		green.Printf("%s\n", user.DisplayName)
		fmt.Printf("  Total Time:    %.1fh\n", user.TotalHours)
		fmt.Printf("  Daily Average: %.1fh\n", user.DailyAvgHours)
		fmt.Printf("  Sessions:      %d\n", user.SessionCount)

		for _, point := range report.Series[user.IdentityID] {
			fmt.Printf("    %s  %.1fh\n", point.Date, point.Hours)
		}
		fmt.Println()
	}

	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

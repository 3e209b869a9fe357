package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datadojo/partrank/internal/monitoring"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Check score health against configured thresholds",
	Long: `Collects score health metrics from the store (average priority,
zero-score rate, freshness) and evaluates them against the configured
thresholds. Breaches are reported and, when a webhook URL is configured,
delivered as alerts.

Examples:
  # One-shot health check
  partrank monitor

  # Continuous checking on the configured interval
  partrank monitor --watch`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().Bool("watch", false, "run continuous checks on the configured interval")

	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("monitor"); err != nil {
		return err
	}

	st, err := initStore(ctx, true)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	collector := monitoring.NewCollector(st)
	alerter := monitoring.NewAlerter(cfg.Monitoring)

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		checker := monitoring.NewChecker(collector, alerter, cfg.Monitoring)
		checker.Run(ctx)
		return nil
	}

	snap, err := collector.Collect(ctx)
	if err != nil {
		return err
	}

	printSnapshot(snap)

	alerts := alerter.Evaluate(snap)
	if len(alerts) == 0 {
		fmt.Println("\nHealth: OK")
		return nil
	}

	fmt.Printf("\nHealth: %d alert(s)\n", len(alerts))
	for _, a := range alerts {
		fmt.Printf("  [%s] %s: %s\n", a.Severity, a.Type, a.Message)
	}

	if cfg.Monitoring.WebhookURL != "" {
		sent := alerter.SendAlerts(ctx, alerts)
		zap.L().Info("monitor: alerts delivered",
			zap.Int("triggered", len(alerts)),
			zap.Int("sent", sent),
		)
	}

	return eris.Errorf("monitor: %d threshold(s) breached", len(alerts))
}

func printSnapshot(snap *monitoring.MetricsSnapshot) {
	fmt.Printf("Parts scored:     %d\n", snap.Parts)
	fmt.Printf("Average priority: %.1f\n", snap.AvgPriority)
	fmt.Printf("Zero scores:      %d (%.1f%%)\n", snap.ZeroCount, snap.ZeroRate*100)
	if snap.LastScoredAt.IsZero() {
		fmt.Printf("Last scored:      never\n")
	} else {
		fmt.Printf("Last scored:      %s (%.1fh ago)\n",
			snap.LastScoredAt.Format("2006-01-02 15:04"), snap.StaleHours)
	}
	fmt.Printf("Recent runs:      %d\n", snap.RecentRuns)
	if snap.RecentRuns > 0 {
		fmt.Printf("Last run:         %d parts, %.1f%% boosted\n",
			snap.LastRunParts, snap.LastRunBoostRate*100)
	}
}

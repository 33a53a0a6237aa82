package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanlaunch/internal/alias"
	"github.com/Aman-CERP/amanlaunch/internal/config"
	"github.com/Aman-CERP/amanlaunch/internal/output"
	"github.com/Aman-CERP/amanlaunch/internal/telemetry"
	"github.com/Aman-CERP/amanlaunch/internal/ui"
	"github.com/Aman-CERP/amanlaunch/internal/usage"
)

func newStatsCmd() *cobra.Command {
	var (
		jsonOutput bool
		days       int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query statistics and telemetry",
		Long: `Display persisted telemetry from <data_dir>/metrics.db:
  - Turn outcomes (completed, shortcut, superseded, canceled)
  - Latency distribution
  - Per-source timeouts and failures
  - Top query terms`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput, days)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool, days int) error {
	if days < 1 {
		days = 1
	}
	cfg := config.LoadOrDefault(nil)
	dataDir := cfg.DataDir()
	metricsPath := filepath.Join(dataDir, telemetry.DefaultFileName)

	if _, err := os.Stat(metricsPath); err != nil {
		out := output.New(cmd.OutOrStdout())
		out.Warning("No telemetry recorded yet")
		out.Statusf("📁", "Expected: %s", metricsPath)
		if !cfg.Storage.Telemetry {
			out.Status("💡", "Telemetry is off; set storage.telemetry: true to record it")
		}
		return nil
	}

	store, err := telemetry.OpenSQLiteMetricsStore(metricsPath)
	if err != nil {
		return fmt.Errorf("failed to open metrics store: %w", err)
	}
	defer func() { _ = store.Close() }()

	info, err := collectStats(store, time.Now(), days)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	ix := alias.NewIndex(ctx, alias.WithPersister(alias.NewFileStore(filepath.Join(dataDir, alias.DefaultFileName))))
	info.Aliases = ix.Len()
	if ledger, err := usage.Open(ctx, usage.Backend(cfg.Storage.UsageBackend), dataDir, nil); err == nil {
		info.UsageCounts = ledger.Snapshot().Total()
		_ = ledger.Close()
	}

	r := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
	if jsonOutput {
		return r.RenderJSON(info)
	}
	return r.Render(info)
}

// collectStats reads the last days days up to and including now.
func collectStats(store *telemetry.SQLiteMetricsStore, now time.Time, days int) (ui.StatsInfo, error) {
	to := now.Format("2006-01-02")
	from := now.AddDate(0, 0, -(days - 1)).Format("2006-01-02")
	info := ui.StatsInfo{From: from, To: to}

	var err error
	if info.Outcomes, err = store.GetOutcomeCounts(from, to); err != nil {
		return info, fmt.Errorf("get outcome counts: %w", err)
	}
	if info.Latency, err = store.GetLatencyCounts(from, to); err != nil {
		return info, fmt.Errorf("get latency counts: %w", err)
	}
	if info.Sources, err = store.GetSourceStats(from, to); err != nil {
		return info, fmt.Errorf("get source stats: %w", err)
	}
	if info.TopTerms, err = store.GetTopTerms(10); err != nil {
		return info, fmt.Errorf("get top terms: %w", err)
	}
	return info, nil
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanlaunch/internal/output"
	"github.com/Aman-CERP/amanlaunch/internal/ui"
)

func newUsageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show or reset learned selections",
		Long: `Every selection is counted per query text and candidate. The counts
drive frequency ranking. Calculator results, web searches and shortcuts are
never counted.`,
	}

	cmd.AddCommand(newUsageShowCmd())
	cmd.AddCommand(newUsageResetCmd())

	return cmd
}

func newUsageShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show usage counters by query",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			counts := app.ledger.Snapshot()
			r := ui.NewPlainRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			if jsonOutput {
				return r.RenderJSON(counts)
			}
			r.RenderUsage(counts)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newUsageResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget every learned selection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			if !yes {
				out.Warning("This clears all usage counters")
				out.Status("💡", "Re-run with --yes to confirm")
				return nil
			}

			app, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			total := app.ledger.Snapshot().Total()
			if err := app.engine.ResetUsage(cmd.Context()); err != nil {
				return err
			}
			out.Successf("Cleared %d recorded selections", total)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the reset")

	return cmd
}

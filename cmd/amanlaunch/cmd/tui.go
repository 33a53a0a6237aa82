package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanlaunch/internal/output"
	"github.com/Aman-CERP/amanlaunch/internal/ui"
)

type tuiOptions struct {
	limit   int
	query   string
	noColor bool
	dryRun  bool
}

func newTUICmd() *cobra.Command {
	opts := tuiOptions{}

	cmd := &cobra.Command{
		Use:   "tui [text]",
		Short: "Open the interactive launcher",
		Long: `Open the interactive launcher. Every keystroke starts a new query turn;
results from the previous turn stay on screen until the new one finishes.

Keys: up/down (or tab) move, enter selects, esc quits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.query = strings.Join(args, " ")
			return runTUI(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum rows to show")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the selected action instead of carrying it out")

	return cmd
}

func runTUI(cmd *cobra.Command, opts tuiOptions) error {
	if !ui.Interactive(cmd.InOrStdin(), cmd.OutOrStdout()) {
		return fmt.Errorf("the interactive launcher needs a terminal; use 'amanlaunch search' in scripts")
	}

	inv := execInvoker()
	if opts.dryRun {
		inv = printInvoker(cmd.ErrOrStderr())
	}

	ctx := cmd.Context()
	app, err := bootstrap(ctx, withInvoker(inv), withWatch(), withPersistedSettings())
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := ui.NewConfig(cmd.OutOrStdout(),
		ui.WithInput(cmd.InOrStdin()),
		ui.WithLimit(opts.limit),
		ui.WithInitialQuery(opts.query),
		ui.WithNoColor(opts.noColor || ui.DetectNoColor()))

	sel, err := ui.Run(ctx, app.engine, cfg)
	if err != nil {
		return err
	}
	if sel != nil {
		output.New(cmd.OutOrStdout()).Success(describeSelection(*sel))
	}
	return nil
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
	"github.com/Aman-CERP/amanlaunch/internal/launcher"
	"github.com/Aman-CERP/amanlaunch/internal/output"
	"github.com/Aman-CERP/amanlaunch/internal/source"
	"github.com/Aman-CERP/amanlaunch/internal/ui"
)

type searchOptions struct {
	limit  int
	format string
}

func newSearchCmd() *cobra.Command {
	opts := searchOptions{}

	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Resolve text into ranked candidates",
		Long: `Run one query turn and print the ranked candidates.

Every enabled source is asked at once; slow sources are cut off after the
configured source timeout. A blank query lists each source's defaults.`,
		Example: `  # Candidates for "fire"
  amanlaunch search fire

  # Evaluate an expression
  amanlaunch search 2+3*4

  # JSON output for scripts
  amanlaunch search --format json --limit 3 term`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum candidates to show")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, text string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return lerrors.ValidationError(fmt.Sprintf("unknown format %q", opts.format), nil).
			WithSuggestion("Use --format text or --format json")
	}

	ctx := cmd.Context()
	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	res := app.engine.Submit(ctx, text)
	if opts.limit > 0 && len(res.Candidates) > opts.limit {
		res.Candidates = res.Candidates[:opts.limit]
	}

	r := ui.NewPlainRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
	if opts.format == "json" {
		return r.RenderJSON(res)
	}
	r.RenderResult(res, opts.limit)
	return nil
}

type openOptions struct {
	pick int
	exec bool
}

func newOpenCmd() *cobra.Command {
	opts := openOptions{}

	cmd := &cobra.Command{
		Use:   "open <text>",
		Short: "Resolve text and act on one candidate",
		Long: `Run one query turn and select a candidate, recording the selection
so it ranks higher next time.

By default the action is printed as "<kind><TAB><target>" for scripts.
With --exec it is carried out: URLs open in the desktop browser, apps are
launched and calculator results are copied to the clipboard.`,
		Example: `  # Print the top candidate's action
  amanlaunch open fire

  # Launch the second candidate
  amanlaunch open --pick 2 --exec term

  # Run a shortcut directly
  amanlaunch open --exec "g golang generics"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.pick, "pick", "p", 1, "Candidate number to select (1 = top)")
	cmd.Flags().BoolVar(&opts.exec, "exec", false, "Carry out the action instead of printing it")

	return cmd
}

func runOpen(cmd *cobra.Command, text string, opts openOptions) error {
	inv := printInvoker(cmd.OutOrStdout())
	if opts.exec {
		inv = execInvoker()
	}

	ctx := cmd.Context()
	app, err := bootstrap(ctx, withInvoker(inv))
	if err != nil {
		return err
	}
	defer app.Close()

	res := app.engine.Submit(ctx, text)
	if !res.Outcome.Delivered() {
		return fmt.Errorf("query %s", res.Outcome)
	}
	c, err := pickCandidate(res, opts.pick)
	if err != nil {
		return err
	}

	sel, err := app.engine.Select(ctx, c.ID)
	if err != nil {
		return err
	}
	if opts.exec {
		output.New(cmd.OutOrStdout()).Success(describeSelection(sel))
	}
	return nil
}

// pickCandidate returns the n-th (1-based) candidate of res.
func pickCandidate(res launcher.Result, n int) (c source.Candidate, err error) {
	if len(res.Candidates) == 0 {
		return c, lerrors.ValidationError(fmt.Sprintf("no candidates for %q", res.Query.Normalized), nil).
			WithSuggestion("Run 'amanlaunch search' to see what each source returns")
	}
	if n < 1 || n > len(res.Candidates) {
		return c, lerrors.ValidationError(fmt.Sprintf("--pick %d is out of range", n), nil).
			WithSuggestion(fmt.Sprintf("Pick a number between 1 and %d", len(res.Candidates)))
	}
	return res.Candidates[n-1], nil
}

func describeSelection(sel launcher.Selection) string {
	label := sel.Candidate.Action.Label
	if label == "" {
		label = string(sel.Candidate.Action.Kind)
	}
	return fmt.Sprintf("%s: %s", label, sel.Candidate.Title)
}

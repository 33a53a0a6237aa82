package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
	"github.com/Aman-CERP/amanlaunch/internal/output"
	"github.com/Aman-CERP/amanlaunch/internal/ranking"
	"github.com/Aman-CERP/amanlaunch/internal/ui"
)

func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Order, enable and disable result sources",
		Long: `Show and change how result sources are ranked.

With frequency ranking on, sources whose results you pick more often for a
query rank first; the manual order breaks ties. With it off, the manual order
alone decides. Changes are saved to the user config file.`,
		Example: `  amanlaunch sources list
  amanlaunch sources move files up
  amanlaunch sources disable websearch
  amanlaunch sources frequency off`,
	}

	cmd.AddCommand(newSourcesListCmd())
	cmd.AddCommand(newSourcesMoveCmd())
	cmd.AddCommand(newSourcesToggleCmd("enable", true))
	cmd.AddCommand(newSourcesToggleCmd("disable", false))
	cmd.AddCommand(newSourcesFrequencyCmd())

	return cmd
}

func newSourcesListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sources in manual order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			r := ui.NewPlainRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			infos := app.engine.Sources()
			if jsonOutput {
				return r.RenderJSON(infos)
			}
			r.RenderSources(infos)
			mode := "manual order"
			if app.engine.Settings().UseFrequency {
				mode = "frequency, then manual order"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nRanking: %s\n", mode)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newSourcesMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <source> <up|down>",
		Short: "Move a source one step in the manual order",
		Long: `Move a source one step in the manual order. Disabled sources in
between are skipped; moving past either end does nothing.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, ok := ranking.ParseDirection(args[1])
			if !ok {
				return lerrors.ValidationError(fmt.Sprintf("unknown direction %q", args[1]), nil).
					WithSuggestion("Use up or down")
			}

			app, err := bootstrap(cmd.Context(), withPersistedSettings())
			if err != nil {
				return err
			}
			defer app.Close()

			moved, err := app.engine.ReorderSource(args[0], dir)
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			if !moved {
				out.Warningf("%s is already at the %s", args[0], boundary(dir))
				return nil
			}
			out.Successf("Moved %s %s", args[0], dir)
			return nil
		},
	}
}

func boundary(dir ranking.Direction) string {
	if dir == ranking.Up {
		return "top"
	}
	return "bottom"
}

func newSourcesToggleCmd(verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <source>",
		Short: fmt.Sprintf("%s a source for subsequent queries", capitalize(verb)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(cmd.Context(), withPersistedSettings())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.engine.SetSourceEnabled(args[0], enabled); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("%s %sd", args[0], verb)
			return nil
		},
	}
}

func newSourcesFrequencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "frequency <on|off>",
		Short:     "Turn frequency ranking on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			switch args[0] {
			case "on":
				on = true
			case "off":
			default:
				return lerrors.ValidationError(fmt.Sprintf("expected on or off, got %q", args[0]), nil)
			}

			app, err := bootstrap(cmd.Context(), withPersistedSettings())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.engine.SetFrequencyRanking(on); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Frequency ranking %s", args[0])
			return nil
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

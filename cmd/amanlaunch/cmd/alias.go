package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanlaunch/internal/alias"
	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
	"github.com/Aman-CERP/amanlaunch/internal/output"
	"github.com/Aman-CERP/amanlaunch/internal/ui"
)

func newAliasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alias",
		Aliases: []string{"aliases"},
		Short:   "Manage shortcuts",
		Long: `Manage shortcuts: short keys that jump straight to a search site, an
application or a quicklink.

Typing the key alone, or the key followed by a space and more text, resolves
the shortcut; the rest of the text is passed to the target (the search
terms for a site, arguments for an app).`,
		Example: `  # "g golang" searches Google
  amanlaunch alias add g web_search google

  # "ff" launches Firefox
  amanlaunch alias add ff app_launch firefox

  # List and remove
  amanlaunch alias list
  amanlaunch alias rm g`,
	}

	cmd.AddCommand(newAliasAddCmd())
	cmd.AddCommand(newAliasRmCmd())
	cmd.AddCommand(newAliasListCmd())

	return cmd
}

func newAliasAddCmd() *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "add <key> <web_search|app_launch|quicklink> <target-id>",
		Short: "Add a shortcut",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAliasAdd(cmd, args[0], alias.TargetKind(args[1]), args[2], label)
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Display name of the target")

	return cmd
}

func newAliasRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>",
		Aliases: []string{"remove"},
		Short:   "Remove a shortcut",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAliasRm(cmd, args[0])
		},
	}
}

func newAliasListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List shortcuts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAliasList(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAliasAdd(cmd *cobra.Command, key string, kind alias.TargetKind, id, label string) error {
	ctx := cmd.Context()
	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	target := alias.Target{Kind: kind, ID: id, Label: label}
	if !target.Valid() {
		return lerrors.New(lerrors.ErrCodeAliasKeyInvalid, fmt.Sprintf("unknown target kind %q", kind), nil).
			WithSuggestion("Use web_search, app_launch or quicklink")
	}
	if err := checkTargetExists(app, target); err != nil {
		return err
	}

	res, err := app.aliases.Insert(ctx, key, target)
	switch res {
	case alias.Duplicate:
		return lerrors.New(lerrors.ErrCodeAliasDuplicate, fmt.Sprintf("shortcut %q already exists", alias.NormalizeKey(key)), nil).
			WithSuggestion("Remove it first with 'amanlaunch alias rm'")
	case alias.InvalidKey:
		return lerrors.New(lerrors.ErrCodeAliasKeyInvalid, fmt.Sprintf("invalid shortcut key %q", key), nil).
			WithSuggestion("Keys cannot be blank")
	}
	if err != nil {
		return err
	}

	output.New(cmd.OutOrStdout()).Successf("Added shortcut %q -> %s %s", alias.NormalizeKey(key), kind, id)
	return nil
}

// checkTargetExists rejects targets no source can resolve today. The index
// itself accepts any id since sources can change after a shortcut is made.
func checkTargetExists(app *launcherApp, t alias.Target) error {
	var known bool
	switch t.Kind {
	case alias.KindWebSearch:
		for _, s := range app.cfg.SearchSites {
			known = known || s.ID == t.ID
		}
	case alias.KindQuicklink:
		for _, l := range app.cfg.Quicklinks {
			known = known || l.ID == t.ID
		}
	case alias.KindAppLaunch:
		// Desktop entries are only known after a scan; accept any id.
		known = true
	}
	if known {
		return nil
	}
	return lerrors.New(lerrors.ErrCodeUnknownTarget, fmt.Sprintf("no %s target %q is configured", t.Kind, t.ID), nil).
		WithSuggestion("Check search_sites and quicklinks with 'amanlaunch config show'")
}

func runAliasRm(cmd *cobra.Command, key string) error {
	ctx := cmd.Context()
	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	norm := alias.NormalizeKey(key)
	before := app.aliases.Len()
	if err := app.aliases.Remove(ctx, key); err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if app.aliases.Len() == before {
		out.Warningf("No shortcut %q", norm)
		return nil
	}
	out.Successf("Removed shortcut %q", norm)
	return nil
}

func runAliasList(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()
	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	entries := app.aliases.Entries()
	if jsonOutput {
		if entries == nil {
			entries = []alias.Entry{}
		}
		return ui.NewPlainRenderer(cmd.OutOrStdout(), true).RenderJSON(entries)
	}
	if len(entries) == 0 {
		output.New(cmd.OutOrStdout()).Status("💡", "No shortcuts yet. Add one with 'amanlaunch alias add'")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tKIND\tTARGET\tLABEL")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Key, e.Target.Kind, e.Target.ID, strings.TrimSpace(e.Target.Label))
	}
	return tw.Flush()
}

// Package cmd provides the CLI commands for amanlaunch.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
	"github.com/Aman-CERP/amanlaunch/internal/logging"
	"github.com/Aman-CERP/amanlaunch/internal/ui"
	"github.com/Aman-CERP/amanlaunch/pkg/version"
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the amanlaunch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amanlaunch",
		Short: "Keyboard launcher for apps, files, links and web searches",
		Long: `amanlaunch resolves what you type into ranked candidates from several
sources at once: installed applications, files, quicklinks, a calculator and
web search sites. Shortcuts (aliases) jump straight to a target, and the
results you pick are learned so they rank higher next time.

Run 'amanlaunch' in a terminal to open the interactive launcher.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 || !ui.Interactive(cmd.InOrStdin(), cmd.OutOrStdout()) {
				return cmd.Help()
			}
			return runTUI(cmd, tuiOptions{limit: 10})
		},
	}

	cmd.SetVersionTemplate("amanlaunch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.amanlaunch/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newOpenCmd())
	cmd.AddCommand(newTUICmd())
	cmd.AddCommand(newAliasCmd())
	cmd.AddCommand(newSourcesCmd())
	cmd.AddCommand(newUsageCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the CLI logger. serve installs its own file-only
// logger since stdout carries JSON-RPC.
func startLogging(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "serve" {
		return nil
	}
	cleanup, err := logging.SetupCLI(debugMode)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command. Errors are printed once, formatted with
// their suggestion.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), formatError(err))
	}
	return err
}

// formatError renders launcher errors with their hint and code; anything
// else (flag and usage errors) is printed as is.
func formatError(err error) string {
	var le *lerrors.LaunchError
	if errors.As(err, &le) {
		return lerrors.FormatForCLI(err)
	}
	return fmt.Sprintf("Error: %v\n", err)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanlaunch/internal/config"
	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
	"github.com/Aman-CERP/amanlaunch/internal/logging"
	"github.com/Aman-CERP/amanlaunch/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		execute   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server on stdio so AI assistants can run launcher queries.

Tools: launch_search, launch_select, alias_list, source_list.
Resource: amanlaunch://query_metrics.

Nothing but JSON-RPC is written to stdout; logs go to
~/.amanlaunch/logs/launcher.log (see 'amanlaunch logs').`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport, execute)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport: stdio (default from config)")
	cmd.Flags().BoolVar(&execute, "exec", false, "Carry out selected actions on this machine")

	return cmd
}

// runServe blocks until ctx is canceled, a signal arrives or the client
// disconnects.
func runServe(ctx context.Context, transport string, execute bool) error {
	// Load quietly first: the logger is not file-only yet.
	cfg, loadErr := config.Load()
	level := "info"
	if loadErr == nil {
		level = cfg.Server.LogLevel
		if transport == "" {
			transport = cfg.Server.Transport
		}
	}
	if transport == "" {
		transport = "stdio"
	}

	cleanup, err := logging.SetupMCPMode(level)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	if loadErr != nil {
		slog.Warn("config_invalid_using_defaults", lerrors.LogAttrs(loadErr)...)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Without --exec selections are recorded but nothing runs on the host.
	var opts []bootstrapOption
	opts = append(opts, withWatch())
	if execute {
		opts = append(opts, withInvoker(execInvoker()))
	}
	app, err := bootstrap(ctx, opts...)
	if err != nil {
		slog.Error("mcp_bootstrap_failed", lerrors.LogAttrs(err)...)
		return err
	}
	defer app.Close()

	srv, err := mcp.NewServer(app.engine, mcp.WithMetrics(app.metrics), mcp.WithLogger(app.logger))
	if err != nil {
		return err
	}

	err = srv.Serve(ctx, transport)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

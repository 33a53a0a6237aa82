package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/amanlaunch/configs"
	"github.com/Aman-CERP/amanlaunch/internal/config"
	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
	"github.com/Aman-CERP/amanlaunch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long: `Manage the user configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/amanlaunch/config.yaml)
  3. Environment variables (AMANLAUNCH_*)

A config file that cannot be loaded never stops the launcher: it logs a
warning and runs on defaults. Use 'config validate' to see the error.`,
		Example: `  # Create user config from template
  amanlaunch config init

  # Show effective configuration
  amanlaunch config show

  # Check the file for errors
  amanlaunch config validate`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user configuration file from a commented template.

The file is created at ~/.config/amanlaunch/config.yaml (or
$XDG_CONFIG_HOME/amanlaunch/config.yaml if XDG_CONFIG_HOME is set).
With --force an existing file is backed up first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration (a backup is kept)")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging defaults, the user
config file and environment overrides.`,
		Example: `  amanlaunch config show
  amanlaunch config show --json
  amanlaunch config show --source defaults`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the user config file for errors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd)
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	configPath := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("📁", "Location: %s", configPath)
			out.Newline()
			out.Status("💡", "Use --force to replace it with the template (a backup is kept)")
			return nil
		}
		backupPath, err := config.Backup(configPath)
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		defer out.Statusf("💾", "Backup: %s", backupPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created user configuration")
	out.Statusf("📁", "Location: %s", configPath)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Add quicklinks and app entries")
	out.Status("", "  2. Adjust files roots if your home directory is large")
	out.Status("", "  3. Run 'amanlaunch config validate' to check it")
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	var cfg *config.Config
	switch source {
	case "merged":
		cfg = config.LoadOrDefault(nil)
	case "defaults":
		cfg = config.NewConfig()
	default:
		return lerrors.ValidationError(fmt.Sprintf("unknown config source %q", source), nil).
			WithSuggestion("Use --source merged or --source defaults")
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	path := config.GetUserConfigPath()

	if !config.UserConfigExists() {
		out.Status("💡", "No user config; the defaults are in use")
		out.Statusf("📁", "Expected: %s", path)
		return nil
	}
	if _, err := config.LoadFile(path); err != nil {
		return lerrors.ConfigError(err.Error(), err).
			WithSuggestion("Fix the file or recreate it with 'amanlaunch config init --force'")
	}
	out.Successf("%s is valid", path)
	return nil
}

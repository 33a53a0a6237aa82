// Package ui provides the interactive launcher and the plain renderers used
// when output is not a terminal.
package ui

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/amanlaunch/internal/launcher"
	"github.com/Aman-CERP/amanlaunch/internal/ranking"
)

// Launcher is the part of the engine the UI drives.
type Launcher interface {
	Submit(ctx context.Context, raw string) launcher.Result
	Select(ctx context.Context, id string) (launcher.Selection, error)
	Settings() launcher.Settings
	ReorderSource(id string, dir ranking.Direction) (bool, error)
	SetFrequencyRanking(on bool) error
}

// Config configures the UI.
type Config struct {
	Input   io.Reader
	Output  io.Writer
	NoColor bool

	// Limit caps the rows shown per turn.
	Limit int

	// InitialQuery is submitted when the launcher opens.
	InitialQuery string
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithLimit sets the maximum number of rows.
func WithLimit(n int) ConfigOption {
	return func(c *Config) {
		if n > 0 {
			c.Limit = n
		}
	}
}

// WithInitialQuery pre-fills the query line.
func WithInitialQuery(q string) ConfigOption {
	return func(c *Config) {
		c.InitialQuery = q
	}
}

// WithInput sets the input reader.
func WithInput(r io.Reader) ConfigOption {
	return func(c *Config) {
		c.Input = r
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output:  output,
		NoColor: DetectNoColor(),
		Limit:   10,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// IsTTY checks if output is a terminal.
func IsTTY(w any) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Interactive reports whether the interactive launcher can run on in/out.
func Interactive(in io.Reader, out io.Writer) bool {
	return IsTTY(in) && IsTTY(out) && !DetectCI()
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

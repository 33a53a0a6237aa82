package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/amanlaunch/internal/source/apps"
	"github.com/Aman-CERP/amanlaunch/internal/source/calculator"
	"github.com/Aman-CERP/amanlaunch/internal/source/files"
	"github.com/Aman-CERP/amanlaunch/internal/source/quicklinks"
	"github.com/Aman-CERP/amanlaunch/internal/source/websearch"
	"github.com/Aman-CERP/amanlaunch/internal/usage"
)

// CurrentVersion is the config schema version written by WriteYAML.
const CurrentVersion = 1

// Config is the complete amanlaunch configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Ranking     RankingConfig     `yaml:"ranking" json:"ranking"`
	Dispatch    DispatchConfig    `yaml:"dispatch" json:"dispatch"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Sources     SourcesConfig     `yaml:"sources" json:"sources"`
	SearchSites []websearch.Site  `yaml:"search_sites" json:"search_sites"`
	Quicklinks  []quicklinks.Link `yaml:"quicklinks,omitempty" json:"quicklinks,omitempty"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// RankingConfig configures how source groups are merged.
type RankingConfig struct {
	// UseFrequency enables frequency ranking from recorded selections.
	UseFrequency bool `yaml:"use_frequency" json:"use_frequency"`

	// SourceOrder is the manual source priority. Unknown ids are dropped
	// and missing ones appended in registration order.
	SourceOrder []string `yaml:"source_order" json:"source_order"`
}

// DispatchConfig configures the per-turn fan-out.
type DispatchConfig struct {
	SourceTimeout   time.Duration `yaml:"source_timeout" json:"source_timeout"`
	MaxWorkers      int           `yaml:"max_workers" json:"max_workers"`
	BreakerFailures int           `yaml:"breaker_failures" json:"breaker_failures"`
	BreakerReset    time.Duration `yaml:"breaker_reset" json:"breaker_reset"`
}

// StorageConfig configures where aliases, usage and metrics live.
type StorageConfig struct {
	// DataDir defaults to ~/.amanlaunch.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// UsageBackend is one of sqlite, badger or memory.
	UsageBackend string `yaml:"usage_backend" json:"usage_backend"`

	// Telemetry persists query metrics to <data_dir>/metrics.db.
	Telemetry bool `yaml:"telemetry" json:"telemetry"`
}

// SourcesConfig holds per-source settings keyed by source id.
type SourcesConfig struct {
	Apps       AppsConfig       `yaml:"apps" json:"apps"`
	Quicklinks QuicklinksConfig `yaml:"quicklinks" json:"quicklinks"`
	Calculator CalculatorConfig `yaml:"calculator" json:"calculator"`
	WebSearch  WebSearchConfig  `yaml:"websearch" json:"websearch"`
	Files      FilesConfig      `yaml:"files" json:"files"`
}

// AppsConfig configures the apps source.
type AppsConfig struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	apps.Config `yaml:",inline"`
}

// QuicklinksConfig configures the quicklinks source.
type QuicklinksConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	quicklinks.Config `yaml:",inline"`
}

// CalculatorConfig configures the calculator source.
type CalculatorConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	calculator.Config `yaml:",inline"`
}

// WebSearchConfig configures the websearch source. Sites are top-level
// search_sites so aliases can refer to them.
type WebSearchConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// FilesConfig configures the files source.
type FilesConfig struct {
	Enabled      bool `yaml:"enabled" json:"enabled"`
	files.Config `yaml:",inline"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Ranking: RankingConfig{
			UseFrequency: true,
			SourceOrder: []string{
				calculator.ID, apps.ID, quicklinks.ID, files.ID, websearch.ID,
			},
		},
		Dispatch: DispatchConfig{
			SourceTimeout:   500 * time.Millisecond,
			MaxWorkers:      16,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
		},
		Storage: StorageConfig{
			UsageBackend: string(usage.BackendSQLite),
			Telemetry:    true,
		},
		Sources: SourcesConfig{
			Apps:       AppsConfig{Enabled: true, Config: apps.DefaultConfig()},
			Quicklinks: QuicklinksConfig{Enabled: true, Config: quicklinks.DefaultConfig()},
			Calculator: CalculatorConfig{Enabled: true, Config: calculator.DefaultConfig()},
			WebSearch:  WebSearchConfig{Enabled: true},
			Files:      FilesConfig{Enabled: true, Config: files.DefaultConfig()},
		},
		SearchSites: websearch.DefaultSites(),
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/amanlaunch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/amanlaunch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "amanlaunch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "amanlaunch", "config.yaml")
	}
	return filepath.Join(home, ".config", "amanlaunch", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

// Load loads configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (GetUserConfigPath)
//  3. Environment variables (AMANLAUNCH_*)
func Load() (*Config, error) {
	return LoadFile(GetUserConfigPath())
}

// LoadFile is Load with an explicit config file path. A missing file is
// not an error.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to defaults (with env overrides) when
// the file is unreadable or invalid. The load error is logged.
func LoadOrDefault(logger *slog.Logger) *Config {
	cfg, err := Load()
	if err == nil {
		return cfg
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("config_invalid_using_defaults",
		slog.String("path", GetUserConfigPath()),
		slog.String("error", err.Error()))

	cfg = NewConfig()
	cfg.applyEnvOverrides()
	if cfg.Validate() != nil {
		return NewConfig()
	}
	return cfg
}

// loadYAML decodes path over c, so keys absent from the file keep their
// current values. Lists replace the defaults wholesale.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AMANLAUNCH_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("AMANLAUNCH_USAGE_BACKEND"); v != "" {
		c.Storage.UsageBackend = v
	}
	if v := os.Getenv("AMANLAUNCH_TELEMETRY"); v != "" {
		c.Storage.Telemetry = parseBool(v)
	}
	if v := os.Getenv("AMANLAUNCH_USE_FREQUENCY"); v != "" {
		c.Ranking.UseFrequency = parseBool(v)
	}
	if v := os.Getenv("AMANLAUNCH_SOURCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Dispatch.SourceTimeout = d
		}
	}
	if v := os.Getenv("AMANLAUNCH_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Dispatch.MaxWorkers = n
		}
	}
	if v := os.Getenv("AMANLAUNCH_FILES_ROOTS"); v != "" {
		c.Sources.Files.Roots = filepath.SplitList(v)
	}
	if v := os.Getenv("AMANLAUNCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

// Validate checks the configuration for values no component can use.
func (c *Config) Validate() error {
	if c.Dispatch.SourceTimeout <= 0 {
		return fmt.Errorf("dispatch.source_timeout must be positive, got %s", c.Dispatch.SourceTimeout)
	}
	if c.Dispatch.MaxWorkers < 0 {
		return fmt.Errorf("dispatch.max_workers must be non-negative, got %d", c.Dispatch.MaxWorkers)
	}
	if c.Dispatch.BreakerFailures < 0 {
		return fmt.Errorf("dispatch.breaker_failures must be non-negative, got %d", c.Dispatch.BreakerFailures)
	}

	validBackend := false
	for _, b := range usage.ValidBackends {
		if strings.EqualFold(c.Storage.UsageBackend, string(b)) {
			validBackend = true
		}
	}
	if !validBackend {
		return fmt.Errorf("storage.usage_backend must be 'sqlite', 'badger' or 'memory', got %s", c.Storage.UsageBackend)
	}

	seen := make(map[string]bool)
	for _, s := range c.SearchSites {
		if err := websearch.ValidateSite(s); err != nil {
			return err
		}
		if seen[s.ID] {
			return fmt.Errorf("search site %q is defined twice", s.ID)
		}
		seen[s.ID] = true
	}

	seen = make(map[string]bool)
	for _, l := range c.Quicklinks {
		if l.ID == "" || l.URL == "" {
			return fmt.Errorf("quicklinks need an id and a url, got %+v", l)
		}
		if seen[l.ID] {
			return fmt.Errorf("quicklink %q is defined twice", l.ID)
		}
		seen[l.ID] = true
	}

	for _, a := range c.Sources.Apps.Entries {
		if a.ID == "" || a.Name == "" || a.Exec == "" {
			return fmt.Errorf("sources.apps.entries need id, name and exec, got %+v", a)
		}
	}

	if !strings.EqualFold(c.Server.Transport, "stdio") {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// DataDir returns the resolved data directory.
func (c *Config) DataDir() string {
	dir := c.Storage.DataDir
	home, err := os.UserHomeDir()
	switch {
	case dir == "" && err == nil:
		return filepath.Join(home, ".amanlaunch")
	case dir == "":
		return filepath.Join(os.TempDir(), ".amanlaunch")
	case err == nil && (dir == "~" || strings.HasPrefix(dir, "~/")):
		return filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return dir
}

// SourceEnabled reports the enabled flag of a built-in source. Unknown ids
// are reported enabled.
func (c *Config) SourceEnabled(id string) bool {
	if p := c.enabledFlag(id); p != nil {
		return *p
	}
	return true
}

// SetSourceEnabled sets the enabled flag of a built-in source and reports
// whether id is known.
func (c *Config) SetSourceEnabled(id string, enabled bool) bool {
	p := c.enabledFlag(id)
	if p == nil {
		return false
	}
	*p = enabled
	return true
}

// DisabledSources returns the ids of disabled built-in sources.
func (c *Config) DisabledSources() map[string]bool {
	out := make(map[string]bool)
	for _, id := range BuiltinSources() {
		if !c.SourceEnabled(id) {
			out[id] = true
		}
	}
	return out
}

// BuiltinSources lists the built-in source ids in default order.
func BuiltinSources() []string {
	return []string{calculator.ID, apps.ID, quicklinks.ID, files.ID, websearch.ID}
}

func (c *Config) enabledFlag(id string) *bool {
	switch id {
	case apps.ID:
		return &c.Sources.Apps.Enabled
	case quicklinks.ID:
		return &c.Sources.Quicklinks.Enabled
	case calculator.ID:
		return &c.Sources.Calculator.Enabled
	case websearch.ID:
		return &c.Sources.WebSearch.Enabled
	case files.ID:
		return &c.Sources.Files.Enabled
	}
	return nil
}

// WriteYAML writes the configuration to path, creating its directory. The
// file is replaced atomically.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

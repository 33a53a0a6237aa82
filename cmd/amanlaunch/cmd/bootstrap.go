package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanlaunch/internal/alias"
	"github.com/Aman-CERP/amanlaunch/internal/config"
	"github.com/Aman-CERP/amanlaunch/internal/dispatch"
	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
	"github.com/Aman-CERP/amanlaunch/internal/launcher"
	"github.com/Aman-CERP/amanlaunch/internal/source"
	"github.com/Aman-CERP/amanlaunch/internal/source/apps"
	"github.com/Aman-CERP/amanlaunch/internal/source/calculator"
	"github.com/Aman-CERP/amanlaunch/internal/source/files"
	"github.com/Aman-CERP/amanlaunch/internal/source/quicklinks"
	"github.com/Aman-CERP/amanlaunch/internal/source/websearch"
	"github.com/Aman-CERP/amanlaunch/internal/telemetry"
	"github.com/Aman-CERP/amanlaunch/internal/usage"
)

// launcherApp is a fully wired engine plus everything that must be closed
// when the command finishes.
type launcherApp struct {
	cfgMu      sync.Mutex // guards cfg writes and the config file
	cfg        *config.Config
	engine     *launcher.Engine
	dispatcher *dispatch.Dispatcher
	aliases    *alias.Index
	ledger     *usage.MemoryLedger
	metrics    *telemetry.QueryMetrics
	files      *files.Source
	logger     *slog.Logger
}

type bootstrapOptions struct {
	invoker source.Invoker

	// watch keeps the files index current. Only long-lived commands
	// (tui, serve) need it.
	watch bool

	// persistSettings writes settings changes back to the user config.
	persistSettings bool
}

type bootstrapOption func(*bootstrapOptions)

func withInvoker(inv source.Invoker) bootstrapOption {
	return func(o *bootstrapOptions) {
		o.invoker = inv
	}
}

func withWatch() bootstrapOption {
	return func(o *bootstrapOptions) {
		o.watch = true
	}
}

func withPersistedSettings() bootstrapOption {
	return func(o *bootstrapOptions) {
		o.persistSettings = true
	}
}

// bootstrap loads the configuration and wires the engine: aliases and
// usage are loaded concurrently, then every built-in source is registered.
// Disabled sources stay registered so they can be enabled again.
func bootstrap(ctx context.Context, opts ...bootstrapOption) (*launcherApp, error) {
	var o bootstrapOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := slog.Default()
	cfg := config.LoadOrDefault(logger)
	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	a := &launcherApp{cfg: cfg, logger: logger}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store := alias.NewFileStore(filepath.Join(dataDir, alias.DefaultFileName))
		a.aliases = alias.NewIndex(gctx, alias.WithPersister(store), alias.WithLogger(logger))
		return nil
	})
	g.Go(func() error {
		l, err := usage.Open(gctx, usage.Backend(cfg.Storage.UsageBackend), dataDir, logger)
		if err != nil {
			return fmt.Errorf("failed to open usage ledger: %w", err)
		}
		a.ledger = l
		return nil
	})
	if err := g.Wait(); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Storage.Telemetry {
		store, err := telemetry.OpenSQLiteMetricsStore(filepath.Join(dataDir, telemetry.DefaultFileName))
		if err != nil {
			// Telemetry is optional; keep counting in memory.
			logger.Warn("metrics_store_unavailable", slog.String("error", err.Error()))
			a.metrics = telemetry.NewQueryMetrics(nil)
		} else {
			a.metrics = telemetry.NewQueryMetrics(store)
		}
	}

	srcs, err := a.buildSources(ctx, o.watch)
	if err != nil {
		a.Close()
		return nil, err
	}

	dopts := []dispatch.Option{
		dispatch.WithSourceTimeout(cfg.Dispatch.SourceTimeout),
		dispatch.WithMaxWorkers(cfg.Dispatch.MaxWorkers),
		dispatch.WithCircuitBreaker(cfg.Dispatch.BreakerFailures, cfg.Dispatch.BreakerReset),
		dispatch.WithLogger(logger),
	}
	if a.metrics != nil {
		dopts = append(dopts, dispatch.WithObserver(a.metrics))
	}
	a.dispatcher, err = dispatch.New(srcs.all, dopts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	eopts := []launcher.Option{
		launcher.WithAliases(a.aliases),
		launcher.WithLedger(a.ledger),
		launcher.WithTargetResolver(alias.KindWebSearch, srcs.web),
		launcher.WithTargetResolver(alias.KindAppLaunch, srcs.apps),
		launcher.WithTargetResolver(alias.KindQuicklink, srcs.links),
		launcher.WithSettings(launcher.Settings{
			SourceOrder:  cfg.Ranking.SourceOrder,
			Disabled:     cfg.DisabledSources(),
			UseFrequency: cfg.Ranking.UseFrequency,
		}),
		launcher.WithLogger(logger),
	}
	if o.invoker != nil {
		eopts = append(eopts, launcher.WithInvoker(o.invoker))
	}
	if a.metrics != nil {
		eopts = append(eopts, launcher.WithMetrics(a.metrics))
	}
	if o.persistSettings {
		eopts = append(eopts, launcher.WithSettingsSink(launcher.SettingsSinkFunc(a.saveSettings)))
	}
	a.engine, err = launcher.New(a.dispatcher, eopts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

type builtinSources struct {
	all   []source.Source
	apps  *apps.Source
	links *quicklinks.Source
	web   *websearch.Source
}

func (a *launcherApp) buildSources(ctx context.Context, watch bool) (builtinSources, error) {
	cfg := a.cfg
	var out builtinSources

	out.apps = apps.New(cfg.Sources.Apps.Config, apps.WithLogger(a.logger))
	out.links = quicklinks.New(cfg.Quicklinks, cfg.Sources.Quicklinks.Config)
	out.web = websearch.New(cfg.SearchSites)
	calc := calculator.New(cfg.Sources.Calculator.Config)

	fcfg := cfg.Sources.Files.Config
	fcfg.Watch = fcfg.Watch && watch
	if !cfg.Sources.Files.Enabled {
		// Registered with an empty index; enabling takes effect on the
		// next start.
		fcfg.Roots = nil
		fcfg.Watch = false
	}
	fs, err := files.Open(ctx, fcfg, files.WithLogger(a.logger))
	if err != nil {
		return out, fmt.Errorf("failed to index files: %w", err)
	}
	a.files = fs

	out.all = []source.Source{calc, out.apps, out.links, fs, out.web}
	return out, nil
}

// saveSettings mirrors engine settings into the user config file. A file
// that does not load is left alone: a.cfg holds defaults in that case.
func (a *launcherApp) saveSettings(s launcher.Settings) error {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()

	path := config.GetUserConfigPath()
	if config.UserConfigExists() {
		if _, err := config.LoadFile(path); err != nil {
			return lerrors.ConfigError("refusing to overwrite a config file that does not load", err).
				WithSuggestion("Run 'amanlaunch config validate' and fix the file first")
		}
	}

	a.cfg.Ranking.SourceOrder = append([]string(nil), s.SourceOrder...)
	a.cfg.Ranking.UseFrequency = s.UseFrequency
	for _, id := range config.BuiltinSources() {
		a.cfg.SetSourceEnabled(id, s.Enabled(id))
	}
	return a.cfg.WriteYAML(path)
}

// Close releases everything in reverse order of construction. Metrics are
// flushed to the store before it closes.
func (a *launcherApp) Close() {
	if a == nil {
		return
	}
	var errs []error
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.files != nil {
		errs = append(errs, a.files.Close())
	}
	if a.metrics != nil {
		errs = append(errs, a.metrics.Close())
	}
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown_incomplete", slog.String("error", err.Error()))
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/importsplit/pkg/cache"
	"github.com/Sumatoshi-tech/importsplit/pkg/config"
	"github.com/Sumatoshi-tech/importsplit/pkg/jsimport"
	"github.com/Sumatoshi-tech/importsplit/pkg/loader"
	"github.com/Sumatoshi-tech/importsplit/pkg/observability"
	"github.com/Sumatoshi-tech/importsplit/pkg/rewrite"
	"github.com/Sumatoshi-tech/importsplit/pkg/version"
)

// overrides are command-line values that win over the config file.
type overrides struct {
	dialect string
	targets []string
	workers int
}

// app is the wired object graph shared by all subcommands.
type app struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
	engines   *rewrite.Set
	opts      rewrite.Options
	loader    *loader.Loader
	red       *observability.REDMetrics
	rewrite   *observability.RewriteMetrics
	cache     *cache.LRU
}

func newApp(flags *rootFlags, mode observability.AppMode, ov overrides) (*app, error) {
	cfg, err := config.Load(flags.cfgFile)
	if err != nil {
		return nil, err
	}

	if ov.dialect != "" {
		cfg.Rewrite.Dialect = ov.dialect
	}

	if len(ov.targets) > 0 {
		cfg.Rewrite.Targets = ov.targets
	}

	if ov.workers > 0 {
		cfg.Transform.Workers = ov.workers
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	providers, err := observability.Init(observabilityConfig(cfg, flags, mode))
	if err != nil {
		return nil, fmt.Errorf("observability init: %w", err)
	}

	a := &app{cfg: cfg, providers: providers, logger: providers.Logger}

	err = a.wire(mode)
	if err != nil {
		a.close()

		return nil, err
	}

	return a, nil
}

func (a *app) wire(mode observability.AppMode) error {
	var err error

	a.red, err = observability.NewREDMetrics(a.providers.Meter)
	if err != nil {
		return fmt.Errorf("red metrics: %w", err)
	}

	a.rewrite, err = observability.NewRewriteMetrics(a.providers.Meter)
	if err != nil {
		return fmt.Errorf("rewrite metrics: %w", err)
	}

	dialect, err := jsimport.ParseDialect(a.cfg.Rewrite.Dialect)
	if err != nil {
		return fmt.Errorf("rewrite dialect: %w", err)
	}

	a.opts = rewrite.Options{Targets: a.cfg.Rewrite.Targets}

	a.engines, err = rewrite.NewSet(dialect, a.opts)
	if err != nil {
		return fmt.Errorf("build engines: %w", err)
	}

	// Only long-running hosts see repeated sources.
	if a.cfg.Cache.Enabled && mode != observability.ModeCLI {
		a.cache = cache.New(a.cfg.Cache.MaxSizeBytes)

		err = observability.RegisterCacheMetrics(a.providers.Meter, a.cache)
		if err != nil {
			return fmt.Errorf("cache metrics: %w", err)
		}
	}

	a.loader = loader.New(a.engines, a.opts, loader.Deps{
		Logger:  a.logger,
		Tracer:  a.providers.Tracer,
		RED:     a.red,
		Rewrite: a.rewrite,
		Cache:   a.cache,
	})

	return nil
}

func (a *app) close() {
	err := a.providers.Shutdown(context.Background())
	if err != nil {
		a.logger.Warn("observability shutdown failed", "error", err)
	}
}

func observabilityConfig(cfg *config.Config, flags *rootFlags, mode observability.AppMode) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.Prometheus = mode == observability.ModeServe
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON
	obsCfg.LogLevel = cfg.Logging.SlogLevel()

	switch {
	case flags.verbose:
		obsCfg.LogLevel = slog.LevelDebug
	case flags.quiet:
		obsCfg.LogLevel = slog.LevelError
	}

	return obsCfg
}

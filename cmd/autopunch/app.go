package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ericfisherdev/autopunch/internal/adapter/driven/browser"
	"github.com/ericfisherdev/autopunch/internal/adapter/driven/cachefile"
	"github.com/ericfisherdev/autopunch/internal/adapter/driven/vaultcli"
	"github.com/ericfisherdev/autopunch/internal/application"
	"github.com/ericfisherdev/autopunch/internal/config"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
	"github.com/ericfisherdev/autopunch/internal/logging"
)

// app holds the wired services shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	vault    *vaultcli.Client
	cache    *cachefile.Store
	resolver *application.CredentialResolver
	pipeline *application.JobPipeline

	closeLog io.Closer
}

// newApp loads configuration and wires the vault, cache and browser adapters.
// Persistence is wired separately by serve.
func newApp() (*app, error) {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// 2. Logger to stdout and the log file.
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	// 3. Wire driven adapters.
	vault := vaultcli.NewClient(cfg.VaultBinary, logger)

	cache, err := cachefile.NewStore(cfg.CachePath, cfg.CacheKey, logger)
	if err != nil {
		_ = closeLog.Close()
		return nil, fmt.Errorf("open credential cache: %w", err)
	}

	runner := browser.NewRunner(browser.Options{
		PortalURL:  cfg.PortalURL,
		ChromePath: cfg.ChromePath,
		OutputDir:  cfg.OutputDir,
		Timeouts:   browser.DefaultTimeouts(),
	}, logger)

	// 4. Application services.
	resolver := application.NewCredentialResolver(cache, logger)
	pipeline := application.NewJobPipeline(resolver, vault, runner, cfg.VaultItem, logger)

	logger.Debug("config loaded",
		"vault_binary", vault.BinaryPath(),
		"vault_item", cfg.VaultItem,
		"cache_path", cfg.CachePath,
		"cache_sealed", cfg.CacheKey != nil,
		"portal_url", cfg.PortalURL,
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		vault:    vault,
		cache:    cache,
		resolver: resolver,
		pipeline: pipeline,
		closeLog: closeLog,
	}, nil
}

// jobService builds a JobService that records runs to runs (nil skips
// history) and prints console lines to stdout.
func (a *app) jobService(runs driven.RunStore) *application.JobService {
	return application.NewJobService(a.vault, a.resolver, a.pipeline, runs, a.cfg.VaultItem, os.Stdout, a.logger)
}

func (a *app) Close() {
	if err := a.closeLog.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		fmt.Fprintln(os.Stderr, "close log file:", err)
	}
}

// withApp wires the app for one subcommand and releases it afterwards.
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	sqliteadapter "github.com/ericfisherdev/autopunch/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/autopunch/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/autopunch/internal/adapter/driving/web"
	"github.com/ericfisherdev/autopunch/internal/application"
)

const (
	vaultStatusTTL  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// serveAction runs the dashboard, the API and the scheduler until the
// process receives SIGINT or SIGTERM.
func serveAction(ctx context.Context, _ *cli.Command) error {
	return withApp(ctx, serve)
}

func serve(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	// 1. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// 2. Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	logger.Info("database ready", "path", db.Path(), "schema_version", version)

	// 3. Wire persistence and services.
	jobStore := sqliteadapter.NewJobRepo(db)
	runStore := sqliteadapter.NewRunRepo(db)

	secrets    := application.NewSecretStore(cfg.SecretTTL)
	vaultState := application.NewVaultStatusCache(a.vault, vaultStatusTTL)
	jobs       := a.jobService(runStore)
	// Nothing has started yet, so any run still marked running was cut off.
	jobs.FailInterruptedRuns(ctx)
	scheduler := application.NewScheduler(jobStore, jobs, secrets, application.SchedulerOptions{
		Tick:         cfg.SchedulerTick,
		MisfireGrace: cfg.MisfireGrace,
		Workers:      cfg.Workers,
	}, logger)

	// 4. HTTP handlers: API under /api/v1, dashboard at /.
	mux := http.NewServeMux()
	httphandler.NewHandler(httphandler.Deps{
		Jobs:       jobs,
		Scheduler:  scheduler,
		Vault:      a.vault,
		VaultState: vaultState,
		Secrets:    secrets,
		Cache:      a.resolver,
		Runs:       runStore,
		VaultItem:  cfg.VaultItem,
	}, logger).RegisterRoutes(mux)

	webhandler.RegisterRoutes(mux, webhandler.NewHandler(webhandler.Deps{
		Jobs:       jobs,
		Scheduler:  scheduler,
		Vault:      a.vault,
		VaultState: vaultState,
		Secrets:    secrets,
		Cache:      a.resolver,
		Runs:       runStore,
		VaultItem:  cfg.VaultItem,
	}, logger))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.Wrap(mux, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Run-now holds the request open for the whole browser session.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	logger.Info("autopunch started",
		"listen_addr", cfg.ListenAddr,
		"scheduler_tick", cfg.SchedulerTick,
		"misfire_grace", cfg.MisfireGrace,
		"workers", cfg.Workers,
	)

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

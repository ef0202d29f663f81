// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/loreweave/loreweave/internal/auth"
	"github.com/loreweave/loreweave/internal/config"
	"github.com/loreweave/loreweave/internal/observability"
	"github.com/loreweave/loreweave/internal/world"
)

const (
	readinessTimeout = 2 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *Deps) *cobra.Command {
	def := config.Default()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Loreweave process",
		Long: `Run the long-lived Loreweave process. It connects to PostgreSQL,
optionally applies pending migrations, ensures the superuser account
exists, purges expired tokens in the background and serves health and
metrics over HTTP until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, deps)
		},
	}

	cmd.Flags().Bool("auto-migrate", false, "apply pending migrations on startup")
	cmd.Flags().String("metrics-addr", def.Server.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().Duration("cleanup-interval", def.Server.CleanupInterval, "interval between expired token purges")

	return cmd
}

// runServeWithDeps runs the process until ctx is cancelled or a
// termination signal arrives.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	databaseURL, err := requireDatabaseURL(cfg)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)

	logger.Info("starting loreweave",
		"version", version,
		"environment", cfg.Server.Environment,
		"log_format", cfg.Log.Format,
	)

	if cfg.Database.AutoMigrate {
		if err := migrateUp(deps, databaseURL); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	pool, err := deps.PoolFactory(ctx, databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	logger.Info("connected to database")

	services, err := buildApp(pool, cfg, logger)
	if err != nil {
		return err
	}

	created, err := services.Auth.EnsureSuperUser(ctx, cfg.Auth.SuperUserPassword)
	if err != nil {
		return oops.With("operation", "ensure superuser").Wrap(err)
	}
	if created {
		logger.Warn("created superuser account with the configured initial password",
			"username", auth.SuperUserName)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	janitor := deps.JanitorFactory(services.Auth, cfg.Server.CleanupInterval)
	if err := janitor.Start(ctx); err != nil {
		return oops.With("operation", "start token janitor").Wrap(err)
	}
	defer janitor.Stop()

	var obsServer ObservabilityServer
	if cfg.Server.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(
			cfg.Server.MetricsAddr,
			observability.PingReadiness(pool, readinessTimeout),
			auth.RegisterMetrics,
			world.RegisterMetrics,
		)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Server.MetricsAddr).Wrap(err)
		}
		// Monitor observability server errors - cancel context on error
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Println("Loreweave started")
	logger.Info("loreweave ready")

	<-sigCtx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}

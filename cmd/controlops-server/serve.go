package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Subash107/control-ops-local1/pkg/controlops/config"
	"github.com/Subash107/control-ops-local1/pkg/controlops/database"
	"github.com/Subash107/control-ops-local1/pkg/controlops/health"
	"github.com/Subash107/control-ops-local1/pkg/controlops/metrics"
	"github.com/Subash107/control-ops-local1/pkg/controlops/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().String("port", "", "HTTP listen port")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	sentryEnabled := initSentry(cfg, logger)
	if sentryEnabled {
		defer sentry.Flush(2 * time.Second)
	}

	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn("database close error", zap.Error(err))
		}
	}()

	if err := server.Seed(ctx, db, cfg, logger); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	checker := health.NewChecker(db, health.Options{
		Timeout:     cfg.HealthCheckTimeout,
		Concurrency: cfg.HealthCheckConcurrency,
		Metrics:     m,
		Logger:      logger.Named("health"),
	})

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(server.Dependencies{
		Config:  cfg,
		DB:      db,
		Logger:  logger,
		Metrics: m,
		Checker: checker,
		Sentry:  sentryEnabled,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		health.NewScheduler(checker, cfg.HealthCheckInterval, logger.Named("health")).Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func initSentry(cfg config.Config, logger *zap.Logger) bool {
	if cfg.SentryDSN == "" {
		return false
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
	})
	if err != nil {
		logger.Error("sentry init failed", zap.Error(err))
		return false
	}
	return true
}

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/quillback/tally/pkg/api"
	"github.com/quillback/tally/pkg/auth"
	"github.com/quillback/tally/pkg/billing"
	"github.com/quillback/tally/pkg/clock"
	"github.com/quillback/tally/pkg/config"
	"github.com/quillback/tally/pkg/observability"
	"github.com/quillback/tally/pkg/plans"
	"github.com/quillback/tally/pkg/storage/postgres"
	"github.com/quillback/tally/pkg/teams"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	connections, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Storage.PostgresURL,
		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Storage.PostgresReplicaURLs),
		MaxConns:    cfg.Storage.PostgresMaxConns,
		MinConns:    cfg.Storage.PostgresMinConns,
		Timeout:     cfg.Storage.PostgresTimeout,
	}, logger)
	if err != nil {
		return err
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return connections.Close()
	})

	db := connections.Primary()
	if err := postgres.RunMigrations(context.Background(), db); err != nil {
		return err
	}
	logger.Info("migrations applied")

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var planSvc plans.Service = plans.NewPostgresService(db)
	healthChecker := observability.NewHealthChecker(db, nil)

	if cfg.Storage.CacheEnabled {
		redisClient, err := postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			// The plan cache is an optimization, not a dependency
			logger.WithError(err).Warn("redis unavailable, plan cache disabled")
		} else {
			planSvc = plans.NewCachedService(planSvc, redisClient, cfg.Storage.CacheTTL, logger, metrics)
			healthChecker = observability.NewHealthChecker(db, redisClient)
			shutdown.RegisterShutdownFunc(func(context.Context) error {
				return redisClient.Close()
			})
		}
	}

	teamSvc := teams.NewPostgresService(db)
	billingSvc := billing.NewPostgresService(
		db, planSvc, teamSvc, clock.NewSystem(),
		cfg.Billing.DefaultTermDays, logger, metrics,
	)

	tokens := auth.NewTokenStore(db)
	guard := auth.NewGuard(teamSvc)

	server := api.NewServer(planSvc, teamSvc, billingSvc, tokens, guard, logger, metrics)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	shutdown.RegisterShutdownFunc(apiServer.Shutdown)

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, healthChecker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)

	if cfg.Billing.ExpirySweepCron != "" {
		sweeper, err := startExpirySweep(cfg.Billing.ExpirySweepCron, billingSvc, logger, metrics)
		if err != nil {
			return err
		}
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			select {
			case <-sweeper.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	var group errgroup.Group
	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		sig := shutdown.WaitForSignal()
		logger.WithField("signal", sig.String()).Info("shutting down")
		return shutdown.Shutdown()
	})

	return group.Wait()
}

// startExpirySweep schedules the background job that flips overdue
// subscriptions to expired. Lazy expiry on read covers correctness; the
// sweep keeps listings and metrics current between reads.
func startExpirySweep(spec string, billingSvc billing.Service, logger *observability.Logger, metrics *observability.Metrics) (*cron.Cron, error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		flipped, err := billingSvc.ExpireOverdue(context.Background())
		if err != nil {
			logger.WithError(err).Error("expiry sweep failed")
			if metrics != nil {
				metrics.ExpirySweepRunsTotal.WithLabelValues("error").Inc()
			}
			return
		}
		if metrics != nil {
			metrics.ExpirySweepRunsTotal.WithLabelValues("ok").Inc()
		}
		if flipped > 0 {
			logger.WithField("flipped", flipped).Info("expiry sweep flipped subscriptions")
		}
	})
	if err != nil {
		return nil, err
	}
	scheduler.Start()
	return scheduler, nil
}

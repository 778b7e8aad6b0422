package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/posterminal/api/routes"
	"github.com/angelmondragon/posterminal/internal/cart"
	"github.com/angelmondragon/posterminal/internal/catalog"
	"github.com/angelmondragon/posterminal/internal/checkout"
	"github.com/angelmondragon/posterminal/internal/cron"
	"github.com/angelmondragon/posterminal/internal/ranking"
	"github.com/angelmondragon/posterminal/internal/remote"
	"github.com/angelmondragon/posterminal/internal/salequeue"
	"github.com/angelmondragon/posterminal/internal/salesync"
	"github.com/angelmondragon/posterminal/pkg/auth"
	"github.com/angelmondragon/posterminal/pkg/config"
	"github.com/angelmondragon/posterminal/pkg/db"
	"github.com/angelmondragon/posterminal/pkg/debounce"
	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/metrics"
	"github.com/angelmondragon/posterminal/pkg/migrate"
	"github.com/angelmondragon/posterminal/pkg/pubsub"
	"github.com/angelmondragon/posterminal/pkg/redis"
)

const serviceName = "terminal"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		DeviceID:    cfg.Device.ID,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "terminal stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers = append(closers, dbClient.Close)

	if err := migrate.MaybeRun(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(bootCtx, cfg.Redis, cfg.Device.ID, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
	}

	var pubsubClient *pubsub.Client
	if cfg.PubSub.Enabled() {
		pubsubClient, err = pubsub.NewClient(bootCtx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		closers = append(closers, pubsubClient.Close)
	}

	tokens, err := auth.NewTokenSource(auth.DeviceTokenConfig{
		Secret: cfg.Device.Secret,
		Issuer: cfg.Remote.TokenIssuer,
		TTL:    cfg.Remote.TokenTTL,
	}, cfg.Device.ID)
	if err != nil {
		return err
	}
	backend, err := remote.NewClient(cfg.Remote.BaseURL, remote.WithTokenSource(tokens), remote.WithTimeout(cfg.Remote.Timeout))
	if err != nil {
		return err
	}
	catalogBackend, err := remote.NewClient(cfg.Remote.BaseURL, remote.WithTokenSource(tokens), remote.WithTimeout(cfg.Remote.CatalogTimeout))
	if err != nil {
		return err
	}

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Fetcher:      catalogBackend,
		Repository:   catalog.NewRepository(dbClient.DB()),
		Logger:       logg,
		Metrics:      metrics.NewCatalogMetrics(prometheus.DefaultRegisterer),
		PersistDelay: cfg.Catalog.PersistDelay,
		EventBuffer:  cfg.Catalog.EventBufferLen,
	})
	if err != nil {
		return err
	}

	queue := salequeue.NewRepository(dbClient.DB())

	var syncLock salesync.Lock
	var cronLock cron.Lock
	if redisClient != nil {
		if syncLock, err = cron.NewRedisLock(redisClient, redisClient.LockKey("sale-sync"), cfg.Sync.LockTTL); err != nil {
			return err
		}
		if cronLock, err = cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), 0); err != nil {
			return err
		}
	}

	coordinator, err := salesync.NewCoordinator(salesync.CoordinatorParams{
		Queue:         queue,
		Submitter:     backend,
		Lock:          syncLock,
		Logger:        logg,
		Metrics:       metrics.NewSyncMetrics(prometheus.DefaultRegisterer),
		BackoffBase:   cfg.Sync.BackoffBase,
		BackoffMax:    cfg.Sync.BackoffMax,
		SubmitTimeout: cfg.Remote.SubmitTimeout,
	})
	if err != nil {
		return err
	}

	monitor, err := salesync.NewConnectivityMonitor(backend, coordinator, logg, cfg.Remote.PingInterval)
	if err != nil {
		return err
	}

	cartEngine := cart.NewEngine()
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Cart:          cartEngine,
		Queue:         queue,
		Submitter:     backend,
		Sync:          coordinator,
		Logger:        logg,
		SubmitTimeout: cfg.Remote.SubmitTimeout,
	})
	if err != nil {
		return err
	}

	liveSearch, err := ranking.NewLiveSearch(debounce.New(cfg.Search.Debounce), catalogService, cfg.Search.Limit)
	if err != nil {
		return err
	}

	cronService, err := buildCron(logg, cronLock, cfg, queue, coordinator, catalogService)
	if err != nil {
		return err
	}

	runners := []runner{
		{name: "catalog", run: catalogService.Run},
		{name: "sale-sync", run: coordinator.Run},
		{name: "connectivity", run: monitor.Run},
		{name: "cron", run: cronService.Run},
	}
	if pubsubClient != nil {
		consumer, err := catalog.NewConsumer(catalogService.Bus(), pubsubClient.CatalogSubscription(), logg)
		if err != nil {
			return err
		}
		runners = append(runners, runner{name: "catalog-consumer", run: consumer.Run})
	}

	deps := routes.Deps{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		Gatherer:    prometheus.DefaultGatherer,
		Catalog:     catalogService,
		Typeahead:   liveSearch,
		Cart:        cartEngine,
		Checkout:    checkoutService,
		Sync:        coordinator,
		FailedSales: queue,
	}
	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	params := ServiceParams{
		Logger:  logg,
		DB:      dbClient,
		Server:  server,
		Catalog: catalogService,
		Runners: runners,
	}
	if redisClient != nil {
		params.Redis = redisClient
	}
	service, err := NewService(params)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"device_id":   cfg.Device.ID,
	})
	logg.Info(ctx, "starting terminal")

	if err := service.Run(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "terminal shutting down gracefully")
	return nil
}

func buildCron(
	logg *logger.Logger,
	lock cron.Lock,
	cfg *config.Config,
	queue *salequeue.Repository,
	coordinator *salesync.Coordinator,
	catalogService *catalog.Service,
) (*cron.Service, error) {
	syncJob, err := cron.NewSyncJob(queue, coordinator)
	if err != nil {
		return nil, err
	}
	refreshJob, err := cron.NewCatalogRefreshJob(catalogService, coordinator)
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	registry.Register(syncJob, cfg.Sync.PeriodicEvery)
	registry.Register(refreshJob, cfg.Catalog.RefreshEvery)

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
}

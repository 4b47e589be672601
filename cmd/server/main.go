package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ECGOPS/OPSOMS-sub004/internal/api"
	"github.com/ECGOPS/OPSOMS-sub004/internal/buffer"
	"github.com/ECGOPS/OPSOMS-sub004/internal/config"
	"github.com/ECGOPS/OPSOMS-sub004/internal/connectivity"
	"github.com/ECGOPS/OPSOMS-sub004/internal/metrics"
	"github.com/ECGOPS/OPSOMS-sub004/internal/remote"
	"github.com/ECGOPS/OPSOMS-sub004/internal/repository"
	"github.com/ECGOPS/OPSOMS-sub004/internal/service"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// Initialize logger
	logger.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("application startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// 2. Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize Infrastructure
	rdb, err := initRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	etcdCli, err := initEtcd(cfg.Etcd)
	if err != nil {
		return err
	}
	defer etcdCli.Close()

	db, err := repository.OpenStore(cfg.Storage)
	if err != nil {
		return err
	}

	// 4. Initialize Repositories
	intentRepo := repository.NewIntentRepository(db)
	failedRepo := repository.NewFailedRepository(db)
	idlinkRepo := repository.NewIDLinkRepository(db)
	cacheRepo := repository.NewCacheRepository(db)
	deviceRepo := repository.NewDeviceClientRepository(db)

	// 5. Remote store adapter and connectivity
	store := remote.NewEtcdStore(etcdCli)
	monitor := connectivity.NewMonitor(probeAtStartup(store, cfg.Sync.ProbeTimeout))
	prober := connectivity.NewProber(monitor, store, cfg.Sync.ProbeInterval, cfg.Sync.ProbeTimeout)

	// 6. Initialize Services
	observer := metrics.NewPrometheusObserver()
	observer.SetConnectivity(monitor.IsOnline())
	monitor.OnTransition(observer.SetConnectivity)
	hub := service.NewHub(observer, cfg.Stream.HeartbeatInterval, cfg.Stream.HubBufferSize)
	events := service.NewEventBus(hub, buffer.NewReplayBuffer(cfg.Stream.ReplayBufferSize))

	queueSvc := service.NewQueueService(db, intentRepo, failedRepo, cacheRepo, events, observer)
	authSvc := service.NewAuthService(rdb, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	var locker remote.Locker
	if cfg.Sync.DrainLock {
		locker = remote.NewDrainLock(etcdCli, deviceID())
	}
	syncer := service.NewSyncer(db, intentRepo, failedRepo, idlinkRepo, cacheRepo, store, monitor, events, observer, service.SyncerConfig{
		RetryCeiling: cfg.Sync.RetryCeiling,
		Locker:       locker,
	})
	if cfg.Sync.EagerDrain {
		queueSvc.SetDrainHint(syncer.Kick)
	}

	refresher := service.NewRefresher(store, cacheRepo, monitor, cfg.Sync.RefreshKinds, cfg.Sync.RefreshInterval)

	// 7. Start background routines
	go func() {
		logger.Info("starting connectivity prober")
		prober.Run(ctx)
	}()
	go func() {
		logger.Info("starting sync driver")
		syncer.Run(ctx)
	}()
	go func() {
		logger.Info("starting cache refresher")
		refresher.Run(ctx)
	}()
	go func() {
		logger.Info("starting hub")
		hub.Run()
	}()

	// 8. Setup HTTP Server
	r := api.RegisterRoutes(
		api.NewQueueHandler(queueSvc, syncer),
		api.NewStreamHandler(events, hub),
		api.NewAuthHandler(authSvc),
		deviceRepo,
		rdb,
		cfg.RateLimit.RequestsPerSecond,
		cfg.Server.Environment,
	)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen failed", zap.Error(err))
		}
	}()

	// 9. Graceful Shutdown Signal Wait
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Signal all workers to stop
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited properly")
	return nil
}

// probeAtStartup seeds the monitor with the real reachability state so a
// process that opens already online drains immediately without a synthetic
// transition event.
func probeAtStartup(store remote.Store, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return store.Ping(ctx) == nil
}

func deviceID() string {
	if id := os.Getenv("OPS_DEVICE_ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

// -- Infrastructure Initializers --

func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func initEtcd(cfg config.EtcdConfig) (*clientv3.Client, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return client, nil
}

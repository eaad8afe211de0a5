package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oeg-upm/telegram-dataset-builder/internal/batch"
	"github.com/oeg-upm/telegram-dataset-builder/internal/config"
	"github.com/oeg-upm/telegram-dataset-builder/internal/cursor"
	"github.com/oeg-upm/telegram-dataset-builder/internal/feed"
	"github.com/oeg-upm/telegram-dataset-builder/internal/runlock"
	"github.com/oeg-upm/telegram-dataset-builder/internal/scheduler"
	"github.com/oeg-upm/telegram-dataset-builder/internal/server"
	"github.com/oeg-upm/telegram-dataset-builder/internal/state"
	"github.com/oeg-upm/telegram-dataset-builder/internal/tracker"
	"github.com/oeg-upm/telegram-dataset-builder/internal/version"
)

// infrastructure holds the state backend and its optional Redis client.
type infrastructure struct {
	redisClient *goredis.Client
	store       state.Store
	lock        runlock.Lock
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := setupLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadAndValidateConfig(logger, *configPath)
	if err != nil {
		logger.WithError(err).Fatal("Configuration error")
	}

	infra, err := setupInfrastructure(ctx, logger, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Infrastructure setup failed")
	}

	sched, err := setupEngine(ctx, logger, cfg, infra)
	if err != nil {
		logger.WithError(err).Fatal("Engine setup failed")
	}

	var srv *server.Server
	if cfg.Metrics.Enabled {
		srv = startServer(logger, cfg)
	}

	// Run the polling loop in the background; a non-nil error from Run is a
	// persistence failure and fatal per the error taxonomy.
	runErr := make(chan error, 1)
	loopDone := make(chan struct{})

	go func() {
		runErr <- sched.Run(ctx)
		close(loopDone)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-runErr:
		if err != nil {
			logger.WithError(err).Error("Polling loop failed")
		}
	}

	cancel()
	shutdownGracefully(logger, cfg, srv, infra, loopDone)
}

// setupLogger creates and configures the application logger.
func setupLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})

	logger.WithFields(logrus.Fields{
		"version":    version.Short(),
		"git_commit": version.GitCommit,
		"build_date": version.BuildDate,
	}).Info("Starting...")

	return logger
}

// loadAndValidateConfig loads the configuration file and validates it.
func loadAndValidateConfig(logger *logrus.Logger, configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.Monitor.LogLevel != "" {
		level, parseErr := logrus.ParseLevel(cfg.Monitor.LogLevel)
		if parseErr != nil {
			logger.WithError(parseErr).Warn("Invalid log level, using info")

			level = logrus.InfoLevel
		}

		logger.SetLevel(level)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"channels": cfg.Monitor.Channels,
		"backend":  cfg.State.Backend,
		"output":   cfg.Output.Dir,
	}).Info("Configuration loaded")

	return cfg, nil
}

// setupInfrastructure initializes the state backend and, when configured, the
// Redis client and run lock.
func setupInfrastructure(
	ctx context.Context,
	logger *logrus.Logger,
	cfg *config.Config,
) (*infrastructure, error) {
	infra := &infrastructure{}

	if cfg.State.Backend == config.StateBackendRedis || cfg.Lock.Enabled {
		infra.redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolSize:     cfg.Redis.PoolSize,
		})

		if err := infra.redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		logger.WithField("address", cfg.Redis.Address).Info("Connected to Redis")
	}

	switch cfg.State.Backend {
	case config.StateBackendRedis:
		infra.store = state.NewRedisStore(logger, infra.redisClient)
	default:
		infra.store = state.NewFileStore(cfg.RuntimeDir())
	}

	if cfg.Lock.Enabled {
		infra.lock = runlock.New(logger, runlock.Config{
			LockKey:       cfg.Lock.LockKey,
			LockTTL:       cfg.Lock.LockTTL,
			RenewInterval: cfg.Lock.RenewInterval,
			RetryInterval: cfg.Lock.RetryInterval,
		}, infra.redisClient)

		if err := infra.lock.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start run lock: %w", err)
		}
	}

	return infra, nil
}

// setupEngine wires the feed client, cursors, batch store, and tracking window
// into the scheduler and bootstraps durable state.
func setupEngine(
	ctx context.Context,
	logger *logrus.Logger,
	cfg *config.Config,
	infra *infrastructure,
) (*scheduler.Scheduler, error) {
	client, err := feed.NewGateway(&cfg.Feed, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed client: %w", err)
	}

	cursors := cursor.NewManager(logger, infra.store)

	batches, err := batch.NewStore(logger, infra.store, cfg.Output.Dir, cfg.Monitor.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch store: %w", err)
	}

	window := tracker.NewWindow(
		logger,
		infra.store,
		client,
		cfg.Monitor.TrackerWindow,
		cfg.Monitor.StalenessLimit,
		cfg.Monitor.TrackerTimer,
	)

	var gate scheduler.Gate
	if infra.lock != nil {
		gate = infra.lock
	}

	sched := scheduler.New(logger, scheduler.Config{
		Channels:       cfg.Monitor.Channels,
		Interval:       cfg.Monitor.TrackerTimer,
		OutputDir:      cfg.Output.Dir,
		ForceColdStart: cfg.Monitor.ForceColdStart,
	}, client, infra.store, cursors, batches, window, scheduler.NewSystemClock(), gate)

	if err := sched.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("failed to bootstrap: %w", err)
	}

	return sched, nil
}

// startServer starts the observability listener in the background.
func startServer(logger *logrus.Logger, cfg *config.Config) *server.Server {
	srv := server.New(logger, cfg.Metrics)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server error")
		}
	}()

	return srv
}

// shutdownGracefully stops components in dependency order:
// 1. Polling loop (wait for the in-flight cycle to finish).
// 2. HTTP server.
// 3. Run lock (release so a standby can take over).
// 4. Redis client.
func shutdownGracefully(
	logger *logrus.Logger,
	cfg *config.Config,
	srv *server.Server,
	infra *infrastructure,
	loopDone <-chan struct{},
) {
	logger.Info("Initiating graceful shutdown...")

	timeout := cfg.Metrics.ShutdownTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	select {
	case <-loopDone:
	case <-shutdownCtx.Done():
		logger.Warn("Polling loop did not stop in time")
	}

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	if infra.lock != nil {
		if err := infra.lock.Stop(); err != nil {
			logger.WithError(err).Error("Error stopping run lock")
		}
	}

	if infra.redisClient != nil {
		if err := infra.redisClient.Close(); err != nil {
			logger.WithError(err).Error("Error closing Redis client")
		}
	}

	logger.Info("Monitor stopped gracefully")
}

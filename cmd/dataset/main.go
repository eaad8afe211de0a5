package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/oeg-upm/telegram-dataset-builder/internal/config"
	"github.com/oeg-upm/telegram-dataset-builder/internal/dataset"
	"github.com/oeg-upm/telegram-dataset-builder/internal/feed"
	"github.com/oeg-upm/telegram-dataset-builder/internal/version"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})

	logger.WithField("version", version.Short()).Info("Starting dataset export...")

	cfg, err := loadAndValidateConfig(logger, *configPath)
	if err != nil {
		logger.WithError(err).Fatal("Configuration error")
	}

	// One shot: a signal cancels the export mid-chat rather than queueing a
	// graceful drain.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := feed.NewGateway(&cfg.Feed, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create feed client")
	}

	exp := dataset.New(logger, dataset.Config{
		Channels:  cfg.Monitor.Channels,
		OutputDir: cfg.Output.Dir,
		BatchSize: cfg.Monitor.BatchSize,
	}, client)

	if err := exp.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Export interrupted")

			return
		}

		logger.WithError(err).Fatal("Export failed")
	}

	logger.Info("Export complete")
}

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

	return cfg, nil
}

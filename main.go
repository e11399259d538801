package main

import (
	"context"
	"os"
	"time"

	"basic-cleaning/cli"
	"basic-cleaning/config"
	"basic-cleaning/events"
	"basic-cleaning/services"
	"basic-cleaning/storage"
	"basic-cleaning/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(utils.ParseLevel(cfg.LogLevel))

	ctx, stop := utils.SignalContext(context.Background(), logger)

	cmd := cli.NewRootCommand(func(ctx context.Context, p services.Params) error {
		return run(ctx, cfg, logger, p)
	})
	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Error("%v", err)
		stop()
		os.Exit(1)
	}
	stop()
}

func run(ctx context.Context, cfg *config.Config, logger *utils.Logger, p services.Params) error {
	logger.Info("=== basic_cleaning starting (project %s) ===", cfg.Project)

	blobs, err := storage.NewMinioBlobStore(cfg, logger)
	if err != nil {
		return err
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		return err
	}

	registry, err := storage.NewPostgresRegistry(ctx, cfg.DSN(), cfg.Project, &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   time.Second,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer registry.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaBroker != "" {
		publisher = events.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic, logger)
	}
	defer publisher.Close()

	store := storage.NewArtifactStore(blobs, registry, cfg.CacheDir, logger)
	step := services.NewBasicCleaning(store, registry, publisher, cfg.OutputPath, logger)

	_, err = step.Run(ctx, p)
	return err
}

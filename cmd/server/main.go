package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/overdub/overdub-server/internal/api"
	"github.com/overdub/overdub-server/internal/config"
	"github.com/overdub/overdub-server/internal/db"
	"github.com/overdub/overdub-server/internal/history"
	"github.com/overdub/overdub-server/internal/logging"
	"github.com/overdub/overdub-server/internal/merge"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting overdub server",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := history.NewRepository(database.Conn())

	instanceID, err := ensureInstanceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure instance ID: %w", err)
	}

	// The merge service is unusable without ffmpeg; refuse to start.
	merger, err := merge.NewMerger(merge.Config{
		FFmpegPath: cfg.FFmpegPath(),
		Timeout:    cfg.MergeTimeout(),
		Logger:     logging.WithComponent(logger, "merge"),
	})
	if err != nil {
		return err
	}

	// A missing base asset is a deployment problem; requests will fail
	// with 500 until it appears, so flag it loudly at startup.
	if _, err := os.Stat(cfg.BaseVideoPath()); err != nil {
		logger.Warn("base video asset not found; merge requests will fail until it is deployed",
			"error", err,
		)
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		BaseVideoPath:  cfg.BaseVideoPath(),
		TempDir:        cfg.TempDir(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Merger:         merger,
		Repository:     repo,
		Logger:         logger,
		StartTime:      startTime,
		InstanceID:     instanceID,
		Version:        config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	logger.Info("overdub server ready",
		"addr", apiServer.Addr(),
		"instance_id", instanceID[:8],
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureInstanceID(repo history.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "instance_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	instanceID := uuid.NewString()
	if err := repo.SetConfig(ctx, "instance_id", instanceID); err != nil {
		return "", err
	}

	return instanceID, nil
}

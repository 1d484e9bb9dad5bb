package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	clts "nftlens/clients"
	"nftlens/config"
	"nftlens/internal/app"
	"nftlens/internal/store"

	"go.uber.org/zap"
)

const (
	// loadTimeout is the maximum time to wait for loading persisted settings
	loadTimeout = 10 * time.Second
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Load config from environment variables
	envConfig := config.Load()
	logger.Info("starting nftlens", zap.Bool("isProd", envConfig.IsProd))

	// Create LiveConfig with env config as initial value
	liveConfig := config.NewLiveConfig(envConfig)

	// Open the local store (API key, settings, metric series cache)
	st, err := store.Open(logger, envConfig.Store.Path)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("path", envConfig.Store.Path), zap.Error(err))
	}
	defer st.Close()

	// Create SettingsManager backed by the store
	settingsManager := config.NewSettingsManager(logger, st, liveConfig)

	// Load persisted settings on top of env/defaults
	loadCtx, loadCancel := context.WithTimeout(context.Background(), loadTimeout)
	cfg, err := settingsManager.LoadSettings(loadCtx, envConfig)
	loadCancel()
	if err != nil {
		logger.Warn("failed to load persisted settings, using env/defaults", zap.Error(err))
	} else if cfg != nil {
		if err := liveConfig.Update(cfg); err != nil {
			logger.Warn("failed to apply persisted settings", zap.Error(err))
		} else {
			logger.Info("persisted settings loaded")
		}
	}

	// Initialize clients; the store supplies the analytics API key
	logger.Info("instantiating clients")
	clients := clts.NewClients(logger, liveConfig.Get(), st)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	runner := app.NewRunner(clients, liveConfig, settingsManager, st)
	if err := runner.Run(ctx); err != nil {
		logger.Fatal("runner failed", zap.Error(err))
	}
}

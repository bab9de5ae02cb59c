package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/engine"
	"github.com/edgescout/edgescout/internal/logger"
	"github.com/edgescout/edgescout/internal/marketprice"
	"github.com/edgescout/edgescout/internal/oddsfeed"
	"github.com/edgescout/edgescout/internal/storage"
	"github.com/edgescout/edgescout/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(
		cfg.Storage.MaxMarkets,
		cfg.Storage.DBPath,
	)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	oddsClient := oddsfeed.NewClient(
		cfg.OddsFeed.BaseURL,
		cfg.OddsFeed.APIKey,
		cfg.OddsFeed.Regions,
		cfg.OddsFeed.Timeout,
		cfg.OddsFeed.MaxRetries,
		cfg.OddsFeed.SharpBooks,
	)
	priceClient := marketprice.NewClient(
		cfg.Market.BaseURL,
		cfg.Market.BatchChunkSize,
		cfg.Market.MaxConcurrent,
		cfg.Market.Timeout,
	)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	var notifier engine.Notifier
	if telegramClient != nil {
		notifier = telegramClient
	}
	eng := engine.New(cfg, store, oddsClient, priceClient, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Starting signal detection service (interval: %v, workers: %d, min_net_edge: %.3f)",
		cfg.Engine.PollInterval,
		cfg.Engine.Workers,
		cfg.Engine.MinNetEdge,
	)

	ticker := time.NewTicker(cfg.Engine.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Poll cycle failed: %v", err)
			if consecutiveFailures == 1 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial poll cycle")
	handleCycleResult(runCycle(ctx, eng))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled poll cycle")
			handleCycleResult(runCycle(ctx, eng))
			if err := store.RotateMarkets(); err != nil {
				logger.Warn("Failed to rotate markets: %v", err)
			}
		}
	}
}

func runCycle(ctx context.Context, eng *engine.Engine) error {
	summary, err := eng.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("Poll cycle completed in %v: %d polled, %d matched, %d edges, %d movement-confirmed, %d created, %d updated, %d alerts",
		summary.Duration,
		summary.EventsPolled,
		summary.Matched,
		summary.EdgesFound,
		summary.MovementConfirmed,
		summary.SignalsCreated,
		summary.SignalsUpdated,
		summary.AlertsSent,
	)
	return nil
}

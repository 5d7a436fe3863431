package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"inspection-brain/config"
	"inspection-brain/internal/api/rest"
	"inspection-brain/internal/api/telegram"
	"inspection-brain/internal/container"
	"inspection-brain/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Собираем сервисы приложения
	app := container.New(cfg, logger)
	go app.Hub.Run(ctx)

	if app.MQTT != nil {
		if err := app.MQTT.Connect(ctx); err != nil {
			logger.Warn("mqtt broker not reachable yet, events dropped until it connects", "error", err)
		}
		defer app.MQTT.Disconnect()
	}

	server := rest.NewServer(cfg.HTTPAddr, rest.Deps{
		Scanner: app.Orchestrator,
		Trigger: app.Trigger,
		Status:  app.Status,
		Events:  app.Hub,
		Logger:  logger,
	})
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run()
	}()

	if cfg.EnableWeightPolling {
		go func() {
			if err := app.Poller.Run(ctx); err != nil {
				logger.Error("weight poller stopped", "error", err)
			}
		}()
	} else {
		logger.Info("weight polling disabled, manual triggers only")
	}

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, app.Orchestrator, app.Trigger, app.Status, cfg.TelegramAllowedChats, logger)
		if err != nil {
			logger.Error("telegram bot disabled", "error", err)
		} else {
			go func() {
				if err := bot.Run(ctx); err != nil {
					logger.Error("telegram bot stopped", "error", err)
				}
			}()
		}
	}

	logger.Info("inspection brain started",
		"env", cfg.AppEnv,
		"min_weight", cfg.MinFruitWeight,
		"delta", cfg.SignificantDelta,
		"cooldown", cfg.MinScanInterval(),
		"main_server_publish", cfg.Services.EnableMainServerPublish)

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := app.Orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Warn("scan still running at shutdown", "error", err)
	}
	logger.Info("stopped")
}

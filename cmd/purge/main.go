// Команда purge один раз удаляет просроченные уведомления и печатает итог в JSON
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/app"
	"github.com/Freeeeeet/timetutor/internal/config"
	"github.com/Freeeeeet/timetutor/internal/controller/httpapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	requestID := uuid.NewString()
	res, err := app.RunPurge(ctx, application.Purge, cfg.PurgeTimeout, "manual", logger.With(zap.String("request_id", requestID)))
	if err != nil {
		logger.Error("Purge failed",
			zap.Int("deleted", res.Deleted),
			zap.Int("batches", res.Batches),
			zap.Error(err),
		)
		application.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(httpapi.NewPurgeResponse(res, requestID)); err != nil {
		logger.Error("Failed to write result", zap.Error(err))
	}
}

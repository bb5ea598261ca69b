// Package main runs the event log worker: it drains the redis event queue into Google Sheets.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dailypoll/backend/config"
	"github.com/dailypoll/backend/internal/sheets"
	"github.com/dailypoll/backend/internal/worker"
	"github.com/dailypoll/backend/pkg/queue"
	"github.com/dailypoll/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if !cfg.Redis.Enabled() {
		logger.Fatal("REDIS_ADDR is required for the worker")
	}
	if !cfg.Sheets.Active() {
		logger.Fatal("google sheets is not configured; nothing to ship events to")
	}

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	sheetsClient, err := sheets.New(ctx, cfg.Sheets, logger)
	if err != nil {
		logger.Fatal("google sheets", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	shipper := worker.NewEventShipper(jobQueue, sheetsClient, cfg.Remote.Timeout, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		shipper.Run(workerCtx)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(queue.PollTimeout + 2*time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

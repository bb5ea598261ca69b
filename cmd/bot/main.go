// Package main runs the daily poll bot: Discord gateway, scheduler and keep-alive HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dailypoll/backend/config"
	"github.com/dailypoll/backend/internal/discord"
	"github.com/dailypoll/backend/internal/eventlog"
	"github.com/dailypoll/backend/internal/httpapi"
	"github.com/dailypoll/backend/internal/interactions"
	"github.com/dailypoll/backend/internal/metrics"
	"github.com/dailypoll/backend/internal/polls"
	"github.com/dailypoll/backend/internal/questions"
	"github.com/dailypoll/backend/internal/scheduler"
	"github.com/dailypoll/backend/internal/settings"
	"github.com/dailypoll/backend/internal/sheets"
	"github.com/dailypoll/backend/internal/store"
	"github.com/dailypoll/backend/pkg/database"
	"github.com/dailypoll/backend/pkg/queue"
	"github.com/dailypoll/backend/pkg/redis"
	"github.com/dailypoll/backend/pkg/storage"
)

const (
	settingsTTL   = 30 * time.Second
	mirrorTimeout = 10 * time.Second
	sweepInterval = time.Minute
)

func main() {
	logger, level := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logger.Warn("invalid LOG_LEVEL, keeping info", zap.String("level", cfg.LogLevel))
	}
	if cfg.Discord.Token == "" {
		logger.Fatal("DISCORD_TOKEN is required")
	}
	loc, _ := cfg.Schedule.Location() // checked by Validate
	duration := time.Duration(cfg.Schedule.DurationMinutes) * time.Minute

	ctx := context.Background()
	st, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}

	settingsSvc := settings.NewService(st, settingsTTL)

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	var sheetsClient *sheets.Client
	if cfg.Sheets.Active() {
		sheetsClient, err = sheets.New(ctx, cfg.Sheets, logger)
		if err != nil {
			// Sheets is optional; the bot runs on the local pool without it.
			logger.Warn("google sheets disabled", zap.Error(err))
			sheetsClient = nil
		}
	}

	snapshot, err := newSnapshot(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("question snapshot", zap.Error(err))
	}
	var remote questions.Remote
	if sheetsClient != nil {
		remote = sheetsClient
	}
	source := questions.NewSource(ctx, remote, snapshot, cfg.Remote.Timeout, logger)

	var sink eventlog.Sink
	switch {
	case rdb != nil && sheetsClient != nil:
		sink = queue.NewQueue(rdb.Client, logger)
		logger.Info("event log queued for worker")
	case sheetsClient != nil:
		sink = sheetsClient
	}
	mirror := eventlog.NewMirror(sink, mirrorTimeout, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	bot, err := discord.NewBot(cfg.Discord.Token, cfg.Discord.ClientID, cfg.Discord.GuildID, logger)
	if err != nil {
		logger.Fatal("discord", zap.Error(err))
	}

	manager := polls.NewManager(polls.Deps{
		Store:     st,
		Platform:  bot.Client(),
		Questions: source,
		Settings:  settingsSvc,
		Mirror:    mirror,
		Metrics:   m,
		Logger:    logger,
	}, polls.Options{
		Location: loc,
		Duration: duration,
		LogWait:  cfg.Remote.VoteLogWait,
	})
	intake := polls.NewIntake(manager, cfg.Remote.VoteLogWait)
	handler := interactions.NewHandler(manager, intake, source, settingsSvc, duration, logger)

	if err := bot.Start(ctx, handler); err != nil {
		logger.Fatal("discord gateway", zap.Error(err))
	}

	var locker scheduler.Locker
	if rdb != nil {
		locker = scheduler.NewRedisLocker(rdb.Client, logger)
	}
	sched := scheduler.New(scheduler.Config{
		SweepInterval: sweepInterval,
		Location:      loc,
		Hour:          cfg.Schedule.Hour,
		Minute:        cfg.Schedule.Minute,
	}, func(ctx context.Context) error {
		closed, err := manager.Sweep(ctx)
		if closed > 0 {
			logger.Info("expired polls closed", zap.Int("count", closed))
		}
		return err
	}, func(ctx context.Context) error {
		p, err := manager.PostNow(ctx, "")
		if errors.Is(err, polls.ErrNoChannel) {
			logger.Warn("daily poll skipped: no channel set, use /set-channel")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("daily poll posted", zap.Int64("poll_id", p.ID), zap.String("channel_id", p.ChannelID))
		return nil
	}, locker, logger)
	sched.Start(ctx)
	logger.Info("scheduler started",
		zap.Int("hour", cfg.Schedule.Hour),
		zap.Int("minute", cfg.Schedule.Minute),
		zap.String("timezone", cfg.Schedule.Timezone),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Polls:       manager,
		DB:          st,
		Gatherer:    registry,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		Logger:      logger,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sched.Stop()
	if err := bot.Close(); err != nil {
		logger.Warn("discord close", zap.Error(err))
	}
	manager.Wait()
	mirror.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := st.Close(); err != nil {
		logger.Error("database close", zap.Error(err))
	}
	logger.Info("bot stopped")
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (store.Store, error) {
	if cfg.Driver == config.DriverPostgres {
		pool, err := database.NewPostgresPool(ctx, cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		return store.NewPostgres(pool), nil
	}
	db, err := database.NewSQLite(cfg.SQLitePath, logger)
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQLite(db)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newSnapshot(ctx context.Context, cfg *config.Config, logger *zap.Logger) (questions.Snapshot, error) {
	if cfg.Questions.S3Bucket == "" {
		return questions.FileSnapshot{Path: cfg.Questions.File}, nil
	}
	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Bucket:          cfg.Questions.S3Bucket,
		Endpoint:        cfg.AWS.Endpoint,
	}, logger)
	if err != nil {
		return nil, err
	}
	return questions.S3Snapshot{Store: s3Client, Key: cfg.Questions.S3Key}, nil
}

func newLogger() (*zap.Logger, zap.AtomicLevel) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger, config.Level
}

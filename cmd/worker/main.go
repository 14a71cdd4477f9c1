// Package main runs the background worker consuming transcript-processing
// jobs from the queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meetscribe/backend/config"
	"github.com/meetscribe/backend/internal/auth"
	"github.com/meetscribe/backend/internal/extraction"
	"github.com/meetscribe/backend/internal/meetings"
	"github.com/meetscribe/backend/internal/pipeline"
	"github.com/meetscribe/backend/internal/plugins"
	"github.com/meetscribe/backend/internal/worker"
	"github.com/meetscribe/backend/pkg/database"
	"github.com/meetscribe/backend/pkg/queue"
	"github.com/meetscribe/backend/pkg/redis"
	"github.com/meetscribe/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
		OutputsBucket:        cfg.AWS.OutputsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.ServiceSubject)

	client := extraction.NewHTTPChatClient(cfg.LLM)
	engineCfg := extraction.Config{
		Chunk:       extraction.StageConfig{Model: cfg.LLM.Model, Temperature: 0.2, MaxTokens: 2000},
		Consolidate: extraction.StageConfig{Model: cfg.LLM.Model, Temperature: 0.3, MaxTokens: 3000},
		Actions:     extraction.StageConfig{Model: cfg.LLM.Model, Temperature: 0.2, MaxTokens: 1000},
		MaxParallel: cfg.LLM.MaxParallel,
	}
	window := time.Duration(cfg.Pipeline.ChunkWindowMinutes) * time.Minute

	pluginRegistry := plugins.NewRegistry(cfg.Plugins.Disabled)
	if err := pluginRegistry.Register(plugins.NewEducationalPlugin(client, engineCfg, window, logger)); err != nil {
		logger.Fatal("register educational plugin", zap.Error(err))
	}
	if err := pluginRegistry.Register(plugins.NewMeetingPlugin(client, engineCfg, logger)); err != nil {
		logger.Fatal("register meeting plugin", zap.Error(err))
	}

	retention := time.Duration(cfg.Scheduler.RetentionDays) * 24 * time.Hour
	meetingRepo := meetings.NewRepository(pool, retention)
	pipe := pipeline.New(meetingRepo, s3Client, pluginRegistry, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	consumer := worker.New(jobQueue, pipe, meetingRepo, jwtService, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consumer.Run(workerCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

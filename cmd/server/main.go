// Package main runs the meeting-assistant HTTP server: webhook ingestion,
// meeting and schedule APIs, the authenticated task callback, and the
// scheduler loop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meetscribe/backend/config"
	"github.com/meetscribe/backend/internal/auth"
	"github.com/meetscribe/backend/internal/dispatch"
	"github.com/meetscribe/backend/internal/extraction"
	"github.com/meetscribe/backend/internal/meetings"
	"github.com/meetscribe/backend/internal/middleware"
	"github.com/meetscribe/backend/internal/pipeline"
	"github.com/meetscribe/backend/internal/plugins"
	"github.com/meetscribe/backend/internal/providers"
	"github.com/meetscribe/backend/internal/schedule"
	"github.com/meetscribe/backend/internal/tasks"
	"github.com/meetscribe/backend/internal/webhooks"
	"github.com/meetscribe/backend/pkg/database"
	"github.com/meetscribe/backend/pkg/queue"
	"github.com/meetscribe/backend/pkg/redis"
	"github.com/meetscribe/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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

	providerRegistry := buildProviders(cfg, logger)
	pluginRegistry := buildPlugins(cfg, logger)

	// Meetings + processing
	retention := time.Duration(cfg.Scheduler.RetentionDays) * 24 * time.Hour
	meetingRepo := meetings.NewRepository(pool, retention)
	pipe := pipeline.New(meetingRepo, s3Client, pluginRegistry, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	dispatcher := dispatch.New(
		meetingRepo, s3Client, jobQueue, pipe, jwtService,
		cfg.Server.BaseURL+"/tasks/process",
		time.Duration(cfg.Pipeline.SyncTimeoutSeconds)*time.Second,
		logger,
	)
	meetingHandler := meetings.NewHandler(meetingRepo, providerRegistry, pluginRegistry, dispatcher, s3Client, cfg.Recall.BotName, logger)
	webhookHandler := webhooks.NewHandler(meetingRepo, providerRegistry, dispatcher, cfg.Calendar.FallbackUserID, logger)
	taskHandler := tasks.NewHandler(pipe, meetingRepo, logger)

	// Schedules
	scheduleRepo := schedule.NewRepository(pool)
	scheduleHandler := schedule.NewHandler(scheduleRepo, logger)
	scheduler := schedule.NewScheduler(
		scheduleRepo, meetingRepo, providerRegistry, s3Client,
		time.Duration(cfg.Scheduler.PollIntervalSeconds)*time.Second,
		cfg.Scheduler.RetentionDays > 0,
		cfg.Recall.BotName,
		logger,
	)
	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	go scheduler.Run(schedulerCtx)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Vendor webhooks: signature verification happens upstream of this
	// service, so the route is unauthenticated here.
	webhookHandler.RegisterRoutes(router)

	// Task callbacks carry a service-identity token minted at enqueue time.
	taskGroup := router.Group("")
	taskGroup.Use(middleware.ServiceToken(jwtService))
	taskHandler.RegisterRoutes(taskGroup)

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		meetingHandler.RegisterRoutes(api)
		scheduleHandler.RegisterRoutes(api)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopScheduler()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// buildProviders registers every configured vendor integration. Duplicate
// registration and missing credentials fail here, at startup.
func buildProviders(cfg *config.Config, logger *zap.Logger) *providers.Registry {
	registry := providers.NewRegistry()

	if cfg.Recall.APIKey != "" {
		recall, err := providers.NewRecallProvider(cfg.Recall, logger)
		if err != nil {
			logger.Fatal("recall provider", zap.Error(err))
		}
		if err := registry.Register("recall", recall); err != nil {
			logger.Fatal("register recall provider", zap.Error(err))
		}
	} else {
		logger.Warn("recall provider disabled (RECALL_API_KEY not set)")
	}

	if cfg.Calendar.BaseURL != "" {
		calendar, err := providers.NewCalendarProvider(cfg.Calendar,
			providers.StaticTokenSource{AccessToken: cfg.Calendar.AccessToken}, nil, logger)
		if err != nil {
			logger.Fatal("calendar provider", zap.Error(err))
		}
		if err := registry.Register("calendar", calendar); err != nil {
			logger.Fatal("register calendar provider", zap.Error(err))
		}
	}

	if err := registry.Register("manual", providers.NewManualProvider()); err != nil {
		logger.Fatal("register manual provider", zap.Error(err))
	}
	if err := registry.Register("stub", providers.NewStubProvider()); err != nil {
		logger.Fatal("register stub provider", zap.Error(err))
	}

	logger.Info("providers registered", zap.Strings("types", registry.List()))
	return registry
}

// buildPlugins registers the content-type plugins, honoring the disabled
// list from config.
func buildPlugins(cfg *config.Config, logger *zap.Logger) *plugins.Registry {
	client := extraction.NewHTTPChatClient(cfg.LLM)
	engineCfg := extraction.Config{
		Chunk:       extraction.StageConfig{Model: cfg.LLM.Model, Temperature: 0.2, MaxTokens: 2000},
		Consolidate: extraction.StageConfig{Model: cfg.LLM.Model, Temperature: 0.3, MaxTokens: 3000},
		Actions:     extraction.StageConfig{Model: cfg.LLM.Model, Temperature: 0.2, MaxTokens: 1000},
		MaxParallel: cfg.LLM.MaxParallel,
	}
	window := time.Duration(cfg.Pipeline.ChunkWindowMinutes) * time.Minute

	registry := plugins.NewRegistry(cfg.Plugins.Disabled)
	if err := registry.Register(plugins.NewEducationalPlugin(client, engineCfg, window, logger)); err != nil {
		logger.Fatal("register educational plugin", zap.Error(err))
	}
	if err := registry.Register(plugins.NewMeetingPlugin(client, engineCfg, logger)); err != nil {
		logger.Fatal("register meeting plugin", zap.Error(err))
	}
	logger.Info("plugins registered", zap.Strings("types", registry.List()))
	return registry
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

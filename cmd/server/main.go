package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/gin-blog/config"
	"github.com/d60-Lab/gin-blog/internal/api/handler"
	"github.com/d60-Lab/gin-blog/internal/api/router"
	"github.com/d60-Lab/gin-blog/internal/cache"
	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/internal/service"
	"github.com/d60-Lab/gin-blog/internal/storage"
	"github.com/d60-Lab/gin-blog/pkg/auth"
	"github.com/d60-Lab/gin-blog/pkg/database"
	"github.com/d60-Lab/gin-blog/pkg/logger"
	"github.com/d60-Lab/gin-blog/pkg/tracing"
)

// @title gin-blog API
// @version 1.0
// @description 博客服务：帖子、图片与点赞
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	gin.SetMode(cfg.Server.Mode)

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	db, err := database.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	logger.Info("connected to database", zap.String("driver", cfg.Database.Driver))

	// redis 可选，未配置时点赞计数直接查库
	var counter *cache.LikeCounter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, like counts fall back to the database", zap.Error(err))
		}
		counter = cache.NewLikeCounter(rdb, cfg.Redis.LikeCountTTL)
	}

	assets, err := storage.NewLocalStore(cfg.Storage.MediaRoot, cfg.Storage.MediaURL, cfg.Storage.MaxImageBytes)
	if err != nil {
		return fmt.Errorf("init media storage: %w", err)
	}

	postRepo := repository.NewPostRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	userRepo := repository.NewUserRepository(db)
	orphanRepo := repository.NewOrphanRepository(db)

	store := service.NewPostStore(postRepo, likeRepo, userRepo, orphanRepo, assets)
	likeSvc := service.NewLikeService(db, likeRepo, postRepo, counter)
	postSvc := service.NewPostService(store, likeSvc)
	userSvc := service.NewUserService(userRepo, bcrypt.DefaultCost)
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)

	janitor := service.NewAssetJanitor(orphanRepo, assets, cfg.Storage.JanitorBatch, cfg.Storage.JanitorMaxAttempts, cfg.Storage.JanitorInterval)
	stopJanitor := janitor.Start()

	serviceName := ""
	if cfg.Tracing.Enabled {
		serviceName = cfg.Tracing.ServiceName
	}
	engine := router.Setup(handler.New(userSvc, postSvc, likeSvc, tokens), tokens, router.Options{
		ServiceName: serviceName,
		RateLimit:   cfg.Server.RateLimit,
		MediaURL:    cfg.Storage.MediaURL,
		Media:       assets.FS(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("server started", zap.Int("port", cfg.Server.Port), zap.String("mode", cfg.Server.Mode))

	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case err := <-errCh:
		logger.Error("http server exited with error", zap.Error(err))
	}

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := server.Shutdown(sctx); err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	if err := stopJanitor(sctx); err != nil {
		logger.Warn("janitor stop", zap.Error(err))
	}
	return nil
}

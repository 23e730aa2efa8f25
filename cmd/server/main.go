package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"memo-service/internal/backup"
	"memo-service/internal/config"
	apphttp "memo-service/internal/http"
	"memo-service/internal/logging"
	"memo-service/internal/repository/sqlite"
	"memo-service/internal/service"
	"memo-service/internal/session"
	"memo-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatalf("setup logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	applied, err := sqlite.Migrate(ctx, db)
	if err != nil {
		logger.Fatalf("migrate database: %v", err)
	}
	logger.Infof("database %s ready (schema version %d)", cfg.Database.Path, applied)

	store, closeStore, err := buildSessionStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup session store: %v", err)
	}
	defer closeStore()

	sessions := session.NewManager(store, session.Config{
		TTL:             cfg.Session.TTL,
		CleanupInterval: cfg.Session.CleanupInterval,
		Logger:          logger,
	})

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		sessions.Run(ctx)
	}()

	scheduler, err := buildBackup(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatalf("setup backups: %v", err)
	}
	if scheduler != nil {
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatalf("start backups: %v", err)
		}
	}

	userService := service.NewUserService(sqlite.NewUserRepository(db), logger)
	memoService := service.NewMemoService(sqlite.NewMemoRepository(db))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		userService,
		memoService,
		sessions,
		db,
		apphttp.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.SecureCookie,
		},
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	workers.Wait()

	logger.Info("bye")
}

func buildSessionStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (session.Store, func(), error) {
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		logger.Infof("using redis session store at %s", cfg.Redis.Addr)
		return session.NewRedisStore(client), func() { client.Close() }, nil
	default:
		logger.Info("using in-memory session store")
		return session.NewMemoryStore(), func() {}, nil
	}
}

func buildBackup(ctx context.Context, cfg config.Config, db *sql.DB, logger *logrus.Logger) (*backup.Scheduler, error) {
	if cfg.Backup.Bucket == "" {
		logger.Info("database backups disabled")
		return nil, nil
	}

	client, err := storage.NewS3Client(ctx, storage.ClientOptions{
		Region:   cfg.Storage.Region,
		Endpoint: cfg.Storage.Endpoint,
		Profile:  cfg.AWS.Profile,
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("using s3 bucket %s (region %s)", cfg.Backup.Bucket, cfg.Storage.Region)

	return backup.NewScheduler(backup.Config{
		Bucket:    cfg.Backup.Bucket,
		KeyPrefix: cfg.Backup.KeyPrefix,
		Interval:  cfg.Backup.Interval,
		Keep:      cfg.Backup.Keep,
		Logger:    logger,
	}, db, storage.NewS3Service(client)), nil
}

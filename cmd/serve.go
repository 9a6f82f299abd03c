package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Payphone-Digital/account-service/internal/handler"
	"github.com/Payphone-Digital/account-service/internal/middleware"
	"github.com/Payphone-Digital/account-service/internal/repository"
	"github.com/Payphone-Digital/account-service/internal/router"
	"github.com/Payphone-Digital/account-service/internal/service"
	"github.com/Payphone-Digital/account-service/pkg/cache"
	"github.com/Payphone-Digital/account-service/pkg/database"
	"github.com/Payphone-Digital/account-service/pkg/health"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/Payphone-Digital/account-service/pkg/metrics"
	"github.com/Payphone-Digital/account-service/pkg/queue"
	pkgredis "github.com/Payphone-Digital/account-service/pkg/redis"
	"github.com/Payphone-Digital/account-service/pkg/validation"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the account HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	rt, err := bootstrap(ctx, "api")
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, db := rt.cfg, rt.db

	if err := database.AutoMigrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if cfg.Database.Seed {
		if err := database.Seed(ctx, db); err != nil {
			// The demo account may already exist with other data.
			logger.GetLogger().Error("Failed to seed database", zap.Error(err))
		}
	}

	if err := validation.RegisterWithGin(); err != nil {
		return err
	}

	m := metrics.New()
	monitor := health.NewMonitor(30*time.Second, 3*time.Second, health.NewDatabaseChecker(db))

	var (
		revoked  service.RevocationCache
		enqueuer service.JobEnqueuer
		limiter  middleware.Limiter
	)
	window := router.RateLimitWindow(cfg)

	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		q := queue.New(redisClient, queue.PolicyFromConfig(cfg.Queue))
		revoked = service.NewRedisRevocationCache(redisClient)
		enqueuer = q
		limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimit.Request, window)

		monitor.Register(health.NewRedisChecker(redisClient))
		monitor.Register(health.NewQueueChecker(q, cfg.Queue.EmailQueue, cfg.Queue.PushQueue))
	} else {
		logger.GetLogger().Warn("Redis disabled: revocations and rate limits are per process, notifications are not delivered")

		mem := cache.NewCache()
		defer mem.Close()
		revoked = service.NewMemoryRevocationCache(mem)
		enqueuer = discardEnqueuer{}
		limiter = middleware.NewMemoryLimiter(cfg.RateLimit.Request, window)
	}

	background := service.NewBackground()
	notifications := service.NewNotificationService(enqueuer, cfg.Queue, cfg.Mail)
	users := repository.NewUserRepository(db)
	tokens := service.NewTokenService(cfg.JWT)
	sessions := service.NewSessionService(users, tokens, revoked, notifications, background, m, cfg.Auth)
	recovery := service.NewRecoveryService(users, sessions, notifications, background, m, cfg.Auth)

	engine := router.NewRouter(
		handler.NewAuthHandler(sessions, recovery),
		handler.NewUserHandler(sessions),
		handler.NewHealthHandler(monitor),

		middleware.NewJWTMiddleware(sessions),
		limiter,
		m,
		cfg,
	).SetupRoutes()

	monitor.Start(ctx)
	defer monitor.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.GetLogger().Info("Server starting",
			zap.String("port", cfg.App.Port),
			zap.String("host", "0.0.0.0"),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.GetLogger().Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.GetLogger().Error("Graceful shutdown failed", zap.Error(err))
	}

	// Verification and reset emails still being enqueued.
	background.Wait()
	logger.GetLogger().Info("Server stopped")
	return nil
}

// discardEnqueuer stands in for the queue when Redis is disabled.
type discardEnqueuer struct{}

func (discardEnqueuer) Enqueue(ctx context.Context, queueName, jobName string, _ interface{}) (string, error) {
	id := uuid.NewString()
	logger.WarnWithContext(ctx, "Notification dropped, no queue configured").
		String("queue", queueName).
		String("job", jobName).
		String("job_id", id).
		Log()
	return id, nil
}

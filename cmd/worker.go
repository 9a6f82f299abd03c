package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Payphone-Digital/account-service/internal/repository"
	"github.com/Payphone-Digital/account-service/internal/worker"
	"github.com/Payphone-Digital/account-service/pkg/circuit"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/Payphone-Digital/account-service/pkg/mailer"
	"github.com/Payphone-Digital/account-service/pkg/metrics"
	"github.com/Payphone-Digital/account-service/pkg/push"
	"github.com/Payphone-Digital/account-service/pkg/queue"
	pkgredis "github.com/Payphone-Digital/account-service/pkg/redis"
	mailtemplate "github.com/Payphone-Digital/account-service/pkg/template"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWorkerCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume the email and push notification queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9102")
	return cmd
}

func runWorker(ctx context.Context, metricsAddr string) error {
	rt, err := bootstrap(ctx, "worker")
	if err != nil {
		return err
	}
	defer rt.close()
	cfg := rt.cfg

	if !cfg.Redis.Enabled {
		return errors.New("worker needs Redis: set REDIS_ENABLED=true")
	}
	redisClient, err := pkgredis.NewClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	renderer, err := mailtemplate.NewRenderer(map[string]any{
		"appName":   cfg.App.Name,
		"clientURL": cfg.App.ClientURL,
	})
	if err != nil {
		return fmt.Errorf("load email templates: %w", err)
	}

	pushSender, err := push.New(ctx, cfg.Push)
	if err != nil {
		return fmt.Errorf("init push sender: %w", err)
	}

	m := metrics.New()
	breakers := circuit.NewRegistry(circuit.FromConfig(cfg.Breaker))

	emailProcessor := worker.NewEmailProcessor(renderer, mailer.New(cfg.Mail), breakers.Get("sendgrid"))
	pushProcessor := worker.NewPushProcessor(pushSender, breakers.Get("fcm"), cfg.Queue.PushFanOutParallel, m)
	hooks := worker.NewHooks(repository.NewNotificationFailureRepository(rt.db), m)

	q := queue.New(redisClient, queue.PolicyFromConfig(cfg.Queue))
	w := worker.New(q, cfg.Queue, cfg.App.Timeout, emailProcessor, pushProcessor, hooks)

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.GetLogger().Error("Metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.GetLogger().Info("Worker starting",
		zap.String("email_queue", cfg.Queue.EmailQueue),
		zap.String("push_queue", cfg.Queue.PushQueue),
		zap.Int("concurrency", cfg.Queue.Concurrency),
		zap.Int("max_attempts", cfg.Queue.MaxAttempts),
	)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.GetLogger().Info("Worker stopped", zap.Any("breakers", breakers.Stats()))
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"nfcattendance/internal/clock"
	"nfcattendance/internal/config"
	"nfcattendance/internal/faculty"
	"nfcattendance/internal/logging"
	"nfcattendance/internal/queue"
	"nfcattendance/internal/store"
)

// Worker delivers queued login codes and periodically purges stale
// credentials.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.IsProduction())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	stopJanitor, err := startJanitor(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("janitor start failed")
	}
	defer stopJanitor()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.WithError(err).Fatal("queue consume init failed")
	}

	logger.Info("worker started, waiting for messages")
	for msg := range messages {
		deliver(logger, msg)
	}
	logger.Info("worker stopped")
}

// startJanitor schedules the credential purge against Postgres. The memory
// backend lives inside the API process, so there is nothing to purge.
func startJanitor(ctx context.Context, cfg config.App, logger *logrus.Logger) (func(), error) {
	if cfg.StoreBackend == "memory" {
		logger.Info("memory store backend, credential janitor disabled")
		return func() {}, nil
	}
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	janitor := faculty.NewJanitor(faculty.NewRepository(db.Client), clock.Real{}, logger, cfg.OTPRetention, cfg.TokenRetention)
	c := cron.New()
	if _, err := c.AddFunc(cfg.JanitorSchedule, func() {
		_ = janitor.Run(ctx)
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("janitor schedule %q: %w", cfg.JanitorSchedule, err)
	}
	c.Start()
	return func() {
		<-c.Stop().Done()
		db.Close()
	}, nil
}

// deliver records the dispatch of a queued login code.
func deliver(logger *logrus.Logger, msg queue.Message) {
	if msg.Type != queue.TypeOTP {
		logger.WithField("type", msg.Type).Debug("ignoring message")
		return
	}
	d, err := queue.DecodeOTP(msg)
	if err != nil {
		logger.WithError(err).Warn("dropping malformed otp message")
		return
	}
	logger.WithField("email", d.Email).Info("otp dispatched")
}

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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"nfcattendance/internal/api"
	"nfcattendance/internal/attendance"
	"nfcattendance/internal/auth"
	"nfcattendance/internal/clock"
	"nfcattendance/internal/config"
	"nfcattendance/internal/faculty"
	"nfcattendance/internal/httpmiddleware"
	"nfcattendance/internal/logging"
	"nfcattendance/internal/memstore"
	"nfcattendance/internal/metrics"
	"nfcattendance/internal/queue"
	"nfcattendance/internal/roster"
	"nfcattendance/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.IsProduction())

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.WithError(err).Fatal("http server failed")
	}
}

type stores struct {
	roster     roster.Store
	attendance attendance.Store
	faculty    faculty.Store
	db         *store.DB
}

func openStores(ctx context.Context, cfg config.App, logger *logrus.Logger) (stores, error) {
	if cfg.StoreBackend == "memory" {
		logger.Warn("using in-memory record store; data is lost on restart")
		mem := memstore.New()
		return stores{roster: mem, attendance: mem, faculty: mem.Faculty()}, nil
	}
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, fmt.Errorf("connect db: %w", err)
	}
	if err := store.Migrate(ctx, db.Client); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	return stores{
		roster:     roster.NewRepository(db.Client),
		attendance: attendance.NewRepository(db.Client),
		faculty:    faculty.NewRepository(db.Client),
		db:         db,
	}, nil
}

func runHTTP(cfg config.App, logger *logrus.Logger) error {
	ctx := context.Background()
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var notifier faculty.Notifier = faculty.EchoNotifier{Logger: logger}
	if cfg.NotifyBackend == "queue" {
		var q queue.Queue
		if cfg.QueueBackend == "memory" {
			logger.Warn("queue notifier with memory backend; codes will not be delivered")
			q = queue.NewInMemory(64)
		} else {
			q = queue.NewRedisQueue(redisClient.Client, "")
		}
		notifier = queue.NewOTPNotifier(q)
	}

	clk := clock.Real{}
	deps := faculty.Deps{Store: st.faculty, Notifier: notifier, Clock: clk, Logger: logger}
	tokens := faculty.NewRememberIssuer(deps)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h := api.New(api.Deps{
		Roster:     roster.NewService(st.roster, logger),
		Attendance: attendance.NewService(st.attendance, clk, logger),
		OTP:        faculty.NewAuthenticator(deps, tokens, cfg.OTPHashCost),
		Tokens:     tokens,
		Directory:  faculty.NewDirectory(deps),
		Sessions:   auth.NewIssuer(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL, clk),
		Metrics:    metrics.New(reg),
		Logger:     logger,
	}, cfg.NotifyBackend != "queue")

	loginLimiter := httpmiddleware.NewRedisWindow(redisClient.Client, "nfc-attendance:login",
		cfg.LoginLimitPerWindow, cfg.LoginLimitWindow, clk, logger)
	health := func(ctx context.Context) map[string]bool {
		checks := map[string]bool{"redis": redisClient.Healthy(ctx)}
		if st.db != nil {
			checks["db"] = st.db.Healthy(ctx)
		}
		return checks
	}

	r := api.NewRouter(h, api.Options{
		CORSOrigins:        cfg.CORSOrigins,
		RequireFacultyAuth: cfg.RequireFacultyAuth,
		GlobalLimiter:      httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin, clk),
		LoginLimiter:       loginLimiter,
		Health:             health,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		StaticDir:          cfg.StaticDir,
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.HTTPPort).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server forced shutdown")
	}

	logger.Info("server exited")
	return nil
}

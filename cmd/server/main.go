package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tracker/internal/config"
	"tracker/internal/database"
	"tracker/internal/handlers"
	"tracker/internal/logging"
	"tracker/internal/repository"
	"tracker/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}

	err = run(cfg, logger)
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Open(cfg, logger)
	if err != nil {
		return err
	}
	store := repository.New(db, repository.Options{RecipientsColumn: cfg.Reminder.RecipientsColumn})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	notifier := services.NewNotifier(cfg.SendGrid)
	if !cfg.SendGrid.Enabled() {
		logger.Warn("SendGrid is not configured, reminders will stay pending")
	}

	sweeper := services.NewSweeper(
		store,
		services.NewRecipientResolver(store),
		notifier,
		services.SweepConfig{
			Window:     cfg.Reminder.Window,
			BatchLimit: cfg.Reminder.BatchLimit,
			ClaimTTL:   cfg.Reminder.ClaimTTL,
			SiteURL:    cfg.SiteURL,
		},
		logger,
		services.NewSweepMetrics(reg),
	)

	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET is not set, the cron endpoint rejects every request")
	}

	// In-process schedule, optional alongside the external cron trigger
	var workerDone <-chan struct{}
	if cfg.Reminder.SweepInterval > 0 {
		workerDone = services.NewReminderWorker(sweeper, cfg.Reminder.SweepInterval, logger).Start(ctx)
	}

	gin.SetMode(cfg.GinMode)
	router := handlers.NewRouter(handlers.New(handlers.Stores{
		Reminders:   store,
		Assignments: store,
		Tasks:       store,
		Profiles:    store,
	}, sweeper, logger), handlers.RouterOptions{
		CronSecret:     cfg.CronSecret,
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         logger,
		HTTPMetrics:    handlers.NewHTTPMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	// Configure trusted proxies
	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("mode", cfg.GinMode))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if workerDone != nil {
		<-workerDone
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	return nil
}

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

	"github.com/pathakanu/medguardian/internal/activity"
	"github.com/pathakanu/medguardian/internal/auth"
	"github.com/pathakanu/medguardian/internal/bot"
	"github.com/pathakanu/medguardian/internal/clock"
	"github.com/pathakanu/medguardian/internal/config"
	"github.com/pathakanu/medguardian/internal/database"
	"github.com/pathakanu/medguardian/internal/httpapi"
	"github.com/pathakanu/medguardian/internal/inventory"
	"github.com/pathakanu/medguardian/internal/logging"
	"github.com/pathakanu/medguardian/internal/medicine"
	"github.com/pathakanu/medguardian/internal/notify"
	myopenai "github.com/pathakanu/medguardian/internal/openai"
	"github.com/pathakanu/medguardian/internal/reminder"
	"github.com/pathakanu/medguardian/internal/schedule"
	"github.com/pathakanu/medguardian/internal/scheduler"
	"github.com/pathakanu/medguardian/internal/store"
	"github.com/pathakanu/medguardian/internal/twilio"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.New(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	docs := store.NewGormStore(db)
	clk := clock.Real{}
	activityLog := activity.NewLog(docs, clk)
	meds := medicine.NewRepo(docs, activityLog, clk, cfg.LocalTimezone.String())

	var notifier notify.Notifier
	if cfg.TwilioEnabled() {
		client := twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, logger)
		notifier = twilio.NewNotifier(client, logger)
	} else {
		logger.Warn("twilio credentials missing, messages are only logged")
		notifier = notify.NewLogNotifier(logger)
	}

	ledger := inventory.NewLedger(meds, activityLog, notifier, logger, cfg.LowStockThreshold)
	schedules := schedule.NewService(docs, meds, activityLog, clk, logger)
	engine := reminder.NewManager(reminder.Deps{
		Schedules: schedules,
		Medicines: meds,
		Ledger:    ledger,
		Log:       activityLog,
		Deadlines: store.NewDeadlines(db, clk),
		Notifier:  notifier,
		Clock:     clk,
		Logger:    logger,
	}, reminder.Config{
		Escalation: cfg.EscalationDelay,
		Snooze:     cfg.SnoozeDelay,
	})

	var classifier bot.Classifier
	if oa := myopenai.New(cfg.OpenAIAPIKey); oa.Enabled() {
		classifier = oa
	}
	replyBot := bot.New(engine, classifier, logger)

	sched := scheduler.New(scheduler.Config{
		TickSpec:    cfg.TickSchedule,
		SummarySpec: cfg.DailySummarySchedule,
		Location:    cfg.LocalTimezone,
	}, docs, engine, activityLog, meds, notifier, clk, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("scheduler start failed", zap.Error(err))
	}

	routerCfg := httpapi.RouterConfig{
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		CORSAllowCredentials: cfg.CORSAllowCredentials,
	}
	if cfg.TwilioEnabled() {
		verify := twilio.RequireSignature(cfg.TwilioAuthToken, cfg.TwilioWebhookBaseURL, logger)
		routerCfg.Webhook = verify(replyBot.Handler())
	} else {
		logger.Warn("twilio credentials missing, webhook disabled")
	}
	if cfg.JWTSecret != "" {
		routerCfg.JWT = auth.NewJWT(cfg.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET not set, tenant API disabled")
	}
	handler := httpapi.NewHandler(meds, schedules, engine, ledger, activityLog, clk, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.NewRouter(routerCfg, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	waitForShutdown(server, sched, logger)
}

func waitForShutdown(server *http.Server, sched *scheduler.Scheduler, logger *zap.Logger) {
	stopCtx := make(chan os.Signal, 1)
	signal.Notify(stopCtx, syscall.SIGINT, syscall.SIGTERM)
	<-stopCtx
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	sched.Stop()
}

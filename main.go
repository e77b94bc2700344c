package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/studybot/internal/ai"
	"github.com/example/studybot/internal/bot"
	"github.com/example/studybot/internal/config"
	"github.com/example/studybot/internal/database"
	"github.com/example/studybot/internal/logger"
	"github.com/example/studybot/internal/quiz"
	"github.com/example/studybot/internal/reading"
	"github.com/example/studybot/internal/repetition"
	"github.com/example/studybot/internal/scheduler"
	"github.com/example/studybot/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := database.OpenStore(cfg.DataFile, cfg.DatabaseURL)
	if err != nil {
		lg.Fatal("Failed to open store", zap.Error(err))
	}
	repo, err := database.NewRepository(ctx, store, cfg.TargetHours)
	if err != nil {
		lg.Fatal("Failed to load state", zap.Error(err))
	}
	defer repo.Close()

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		lg.Fatal("Failed to create bot", zap.Error(err))
	}
	lg.Info("Authorized on account", zap.String("username", api.Self.UserName))

	var exemption func(int64) bool
	if cfg.AdminReadingExempt {
		exemption = cfg.IsAdmin
	} else {
		exemption = func(int64) bool { return false }
	}
	tracker := reading.NewTracker(repo, cfg.Location, cfg.DayResetHour, reading.WithExemption(exemption))
	policy := repetition.NewPolicy(cfg.CooldownDays, cfg.Location)

	motivator := ai.NewMotivator(nil)
	if cfg.OpenAIKey != "" {
		client, err := ai.New(cfg.OpenAIKey)
		if err != nil {
			lg.Warn("OpenAI disabled", zap.Error(err))
		} else {
			motivator = ai.NewMotivator(client)
		}
	}

	b := bot.New(api, bot.FromConfig(cfg), repo, tracker, policy,
		bot.WithLogger(lg.Named("bot")),
		bot.WithMotivator(motivator),
		bot.WithEngineOptions(quiz.WithPacing(cfg.PacingDelay)),
	)

	sched := scheduler.New(b, cfg.Schedule, cfg.Location, cfg.DayResetHour, scheduler.WithLogger(lg.Named("scheduler")))
	if err := sched.Start(ctx); err != nil {
		lg.Fatal("Failed to start scheduler", zap.Error(err))
	}

	srv := server.New(cfg.ListenAddr(), server.NewRouter(cfg.WebhookPath, b.HandleUpdate, lg.Named("http")), lg.Named("http"))
	srv.Start()

	polling := false
	if endpoint := cfg.WebhookEndpoint(); endpoint != "" {
		if err := b.RegisterWebhook(endpoint); err != nil {
			lg.Fatal("Failed to register webhook", zap.Error(err))
		}
	} else {
		if err := b.ClearWebhook(); err != nil {
			lg.Warn("Could not clear webhook", zap.Error(err))
		}
		updateConfig := tgbotapi.NewUpdate(0)
		updateConfig.Timeout = 60
		go b.Poll(ctx, api.GetUpdatesChan(updateConfig))
		polling = true
		lg.Info("Long polling started")
	}

	done := make(chan struct{})
	go func() {
		sig := <-sigChan
		lg.Info("Received signal", zap.String("signal", sig.String()))
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if polling {
			api.StopReceivingUpdates()
		}
		sched.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Error("Error during shutdown", zap.Error(err))
		}
		close(done)
	}()

	lg.Info("Bot started. Press Ctrl+C to stop.")
	<-done
	lg.Info("Bot stopped successfully")
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/suspectuso/green-coin/internal/actions"
	"github.com/suspectuso/green-coin/internal/backend"
	"github.com/suspectuso/green-coin/internal/config"
	"github.com/suspectuso/green-coin/internal/greencoin"
	"github.com/suspectuso/green-coin/internal/metrics"
	"github.com/suspectuso/green-coin/internal/notifier"
	"github.com/suspectuso/green-coin/internal/telegram"
	"github.com/suspectuso/green-coin/internal/webhook"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	// Load config
	cfg := config.Load()

	// Setup logger
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(log)

	if envErr != nil {
		log.Debug("no .env file found")
	}

	if cfg.BotToken == "" {
		log.Error("BOT_TOKEN is required")
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize identity storage
	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Error("init storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize metrics and the reward service client
	m := metrics.New()
	api := greencoin.NewClient(cfg.APIBaseURL,
		greencoin.WithTimeout(cfg.APITimeout),
		greencoin.WithRateLimit(cfg.APIRPS, cfg.APIBurst),
		greencoin.WithObserver(m),
	)
	log.Info("greencoin client initialized", "base_url", cfg.APIBaseURL, "timeout", cfg.APITimeout)

	source := metadataSource(cfg, log)
	sessions := telegram.NewSessions(api, store.Store, log, m.SetSessions)

	// Initialize telegram bot
	bot, err := telegram.New(cfg, sessions, source, m, log)
	if err != nil {
		log.Error("init telegram bot", "error", err)
		os.Exit(1)
	}
	log.Info("telegram bot initialized")

	bot.SetNotifier(notifier.New(bot, log))

	if err := bot.RegisterCommands(ctx); err != nil {
		log.Warn("register commands", "error", err)
	}

	// Initialize webhook
	webhookManager := webhook.NewManager(bot.GetBot(), cfg.WebhookURL, cfg.WebhookSecret, log)
	if err := webhookManager.Init(ctx); err != nil {
		log.Error("init webhook", "error", err)
		os.Exit(1)
	}

	// Start side server
	var updates http.Handler
	if cfg.WebhookURL != "" {
		updates = bot.WebhookHandler()
	}
	server := webhook.NewServer(updates, cfg.WebhookSecret, m.Handler(), log)
	go func() {
		if err := server.Start(ctx, cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Error("http server", "error", err)
		}
	}()

	go webhookManager.SyncLoop(ctx, 5*time.Minute)

	// Resume stored chats
	go resumeSessions(ctx, store, sessions, log)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("shutting down...")
		cancel()
	}()

	if cfg.WebhookURL != "" {
		log.Info("starting bot in webhook mode...", "url", cfg.WebhookURL)
		bot.StartWebhook(ctx)
		return
	}

	log.Info("starting bot polling...")
	bot.Start(ctx)
}

func metadataSource(cfg *config.Config, log *slog.Logger) actions.Source {
	random := actions.NewRandom(uint64(time.Now().UnixNano()))
	if cfg.MetadataSource == config.SourceMeasured {
		log.Info("using measured action metadata")
		return actions.NewMeasured(random)
	}
	return random
}

// resumeSessions loads the controllers of every chat with a stored identity
func resumeSessions(ctx context.Context, store *backend.Backend, sessions *telegram.Sessions, log *slog.Logger) {
	origins, err := store.Origins(ctx)
	if err != nil {
		log.Error("list stored identities", "error", err)
		return
	}

	if len(origins) == 0 {
		log.Info("no sessions to resume")
		return
	}

	log.Info("resuming sessions", "count", len(origins))
	resumed := sessions.Resume(ctx, origins)
	log.Info("resume complete", "sessions", resumed)
}

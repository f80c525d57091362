package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"void-ai-chat/internal/config"
	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"
	aiAdapters "void-ai-chat/internal/infra/adapters/ai"
	tele "void-ai-chat/internal/infra/adapters/telegram"
	"void-ai-chat/internal/infra/api"
	"void-ai-chat/internal/infra/i18n"
	"void-ai-chat/internal/infra/logging"
	"void-ai-chat/internal/infra/metrics"
	"void-ai-chat/internal/infra/security"
	"void-ai-chat/internal/infra/storage"
	"void-ai-chat/internal/infra/tokens"
	"void-ai-chat/internal/infra/worker"
	"void-ai-chat/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs, echo AI when no key is set")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Storage.Driver)

	// ---- Storage ----
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("storage")
	}
	kv := st.kv
	if cfg.Security.EncryptionKey != "" {
		sealer, err := security.NewSealer(cfg.Security.EncryptionKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("encryption")
		}
		kv = security.NewEncryptedStore(kv, sealer)
		logger.Info().Msg("records are encrypted at rest")
	}
	repo := storage.NewStateRepo(kv, cfg.Storage.KeyPrefix, logger)
	saver := worker.NewSerial(ctx, logger)

	// ---- AI gateway ----
	gateway, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("ai gateway")
	}

	// ---- Presentation surfaces ----
	hub := api.NewHub(cfg.HTTP.AllowedOrigins, logger)
	pubs := adapter.Publishers{hub}

	var (
		bot     *tele.Bot
		updates tgbotapi.UpdatesChannel
		tgPool  *worker.Pool
		tgAPI   *tgbotapi.BotAPI
	)
	if cfg.Telegram.Enabled {
		tgAPI, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		tr, err := i18n.Load(cfg.Telegram.Language)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram locales")
		}
		tgPool = worker.NewPool(cfg.Telegram.Workers, logger)
		tgPool.Start(ctx)

		var limiter tele.Limiter
		if st.limiter != nil {
			limiter = st.limiter
		}
		bot = tele.NewBot(tele.NewBotMessenger(tgAPI), tr, cfg.Telegram, tgPool, limiter, logger)
		pubs = append(pubs, bot)

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = tgAPI.GetUpdatesChan(u)
		logger.Info().Str("bot", tgAPI.Self.UserName).Int64("owner", cfg.Telegram.OwnerID).Msg("telegram enabled")
	}

	// ---- Use cases ----
	state := usecase.NewAppState(repo, pubs, logger, usecase.StateOptions{
		TitleLimit:   cfg.Chat.TitleLimit,
		DefaultModel: cfg.AI.DefaultModel,
		Saver:        saver,
	})
	state.Load(ctx, model.NewUserProfile(cfg.Profile.Name, cfg.Profile.Credits, model.Tier(cfg.Profile.Tier)))

	chatUC := usecase.NewChatUseCase(
		state,
		gateway,
		aiAdapters.NewKeywordClassifier(cfg.AI, cfg.Credits),
		tokens.NewCounter(logger),
		pubs,
		logger,
		usecase.ChatOptions{HistoryBudget: cfg.Chat.HistoryTokenBudget, Dev: cfg.Runtime.Dev},
	)

	// ---- Servers ----
	server := api.NewServer(cfg.HTTP, chatUC, hub, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()
	if bot != nil {
		go func() {
			if err := bot.Run(ctx, updates, chatUC); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if tgAPI != nil {
		tgAPI.StopReceivingUpdates()
	}
	waitTurn(shutdownCtx, chatUC)
	cancel()
	if tgPool != nil {
		tgPool.Stop()
	}

	// the last scheduled writes must land before the store closes
	state.Flush()
	if err := st.close(); err != nil {
		logger.Warn().Err(err).Msg("storage close")
	}
	logger.Info().Msg("bye")
}

// waitTurn lets an in-flight turn finish so its final content is persisted.
func waitTurn(ctx context.Context, uc usecase.ChatUseCase) {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for uc.InFlight() {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

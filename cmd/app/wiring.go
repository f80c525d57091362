package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"void-ai-chat/internal/config"
	"void-ai-chat/internal/domain/ports/adapter"
	"void-ai-chat/internal/domain/ports/repository"
	aiAdapters "void-ai-chat/internal/infra/adapters/ai"
	pg "void-ai-chat/internal/infra/db/postgres"
	"void-ai-chat/internal/infra/db/sqlite"
	red "void-ai-chat/internal/infra/redis"
)

type store struct {
	kv      repository.KeyValueStore
	limiter *red.RateLimiter // redis driver only
	close   func() error
}

func openStore(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (store, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "memory":
		kv, err := sqlite.NewKVStore(ctx, sqlite.MemoryPath)
		if err != nil {
			return store{}, err
		}
		log.Warn().Msg("storage: in-memory, nothing survives a restart")
		return store{kv: kv, close: kv.Close}, nil

	case "sqlite":
		kv, err := sqlite.NewKVStore(ctx, cfg.Storage.Path)
		if err != nil {
			return store{}, err
		}
		log.Info().Str("path", cfg.Storage.Path).Msg("storage: sqlite")
		return store{kv: kv, close: kv.Close}, nil

	case "redis":
		client, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			return store{}, fmt.Errorf("redis: %w", err)
		}
		kv := red.NewKVStore(client)
		log.Info().Str("addr", cfg.Redis.URL).Msg("storage: redis")
		return store{kv: kv, limiter: red.NewRateLimiter(client), close: kv.Close}, nil

	case "postgres":
		pool, err := pg.Connect(ctx, cfg.Database)
		if err != nil {
			return store{}, fmt.Errorf("postgres: %w", err)
		}
		kv := pg.NewKVStore(pool, pool.Close)
		if err := kv.EnsureSchema(ctx); err != nil {
			pool.Close()
			return store{}, err
		}
		go pg.ReportPoolStats(ctx, pool, 15*time.Second)
		log.Info().Int32("max_conns", cfg.Database.MaxConns).Msg("storage: postgres")
		return store{kv: kv, close: kv.Close}, nil
	}
	return store{}, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
}

// geminiDefaultModel is what Gemini answers with when the router hands it a
// request meant for a provider that is not configured.
func geminiDefaultModel(ai config.AIConfig) string {
	if name := ai.ModelMap[ai.DefaultModel]; strings.HasPrefix(strings.ToLower(name), "gemini") {
		return name
	}
	return "gemini-3-flash-preview"
}

// buildGateway wires every provider with a key behind the model router, then
// applies the concurrency limit and the provider timeout.
func buildGateway(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (adapter.AIGateway, error) {
	providers := map[string]adapter.AIGateway{}
	defaultProvider := ""

	if cfg.AI.GeminiKey != "" {
		g, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL,
			geminiDefaultModel(cfg.AI), cfg.AI.ImageModel, log)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		providers["gemini"] = g
		defaultProvider = "gemini"
	}
	if cfg.AI.OpenAIKey != "" {
		o, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.ModelMap["gpt-4"], log)
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		providers["openai"] = o
		if defaultProvider == "" {
			defaultProvider = "openai"
		}
	}

	var gw adapter.AIGateway
	switch {
	case len(providers) > 0:
		gw = aiAdapters.NewMultiAIAdapter(defaultProvider, providers, nil)
		log.Info().Str("default", defaultProvider).Int("providers", len(providers)).Msg("ai gateway ready")
	case cfg.Runtime.Dev:
		gw = aiAdapters.NewNoopAIAdapter(log)
		log.Warn().Msg("ai: no provider key, using the echo adapter")
	default:
		return nil, errors.New("no AI provider configured")
	}
	return aiAdapters.NewLimitedAI(gw, cfg.AI.ConcurrentLimit, cfg.AI.Timeout), nil
}

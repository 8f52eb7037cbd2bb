package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/pollenpilot/internal/domain/chat"
	"github.com/yanqian/pollenpilot/internal/infra/config"
	"github.com/yanqian/pollenpilot/internal/infra/exportarchive"
	"github.com/yanqian/pollenpilot/internal/infra/llm/anthropic"
	"github.com/yanqian/pollenpilot/internal/infra/llm/chatgpt"
	"github.com/yanqian/pollenpilot/internal/infra/llm/completion"
	"github.com/yanqian/pollenpilot/internal/infra/sessionstore"
	"github.com/yanqian/pollenpilot/internal/infra/tokenizer"
	"github.com/yanqian/pollenpilot/pkg/util"
)

func provideChatConfig(cfg *config.Config) chat.Config {
	return chat.Config{
		Model:             cfg.LLM.Model,
		MaxOutputTokens:   cfg.LLM.MaxOutputTokens,
		CompletionTimeout: cfg.LLM.Timeout,
		ConfidenceLabel:   cfg.Chat.ConfidenceLabel,
		ArchivePrefix:     cfg.Export.Archive.Prefix,
	}
}

func provideLocation(cfg *config.Config, logger *slog.Logger) *time.Location {
	return util.LoadZone(cfg.Chat.Timezone, logger)
}

func provideCompleter(cfg *config.Config, logger *slog.Logger) (chat.Completer, error) {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		logger.Warn("llm api key not set, serving fallback replies only")
		return completion.OfflineCompleter{}, nil
	}

	var next chat.Completer
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		client, err := chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
		if err != nil {
			return nil, err
		}
		next = completion.NewChatGPTCompleter(client, cfg.LLM.Temperature)
	default:
		client, err := anthropic.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
		if err != nil {
			return nil, err
		}
		next = completion.NewAnthropicCompleter(client, cfg.LLM.Temperature)
	}
	logger.Info("completion client enabled", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	if !cfg.LLM.Breaker.Enabled {
		return next, nil
	}
	return completion.NewBreakerCompleter(next, completion.BreakerSettings{
		Name:             cfg.LLM.Provider,
		MaxRequests:      cfg.LLM.Breaker.MaxRequests,
		Interval:         cfg.LLM.Breaker.Interval,
		OpenTimeout:      cfg.LLM.Breaker.OpenTimeout,
		FailureThreshold: cfg.LLM.Breaker.FailureThreshold,
	}, logger), nil
}

func provideTokenCounter(cfg *config.Config, logger *slog.Logger) chat.TokenCounter {
	return tokenizer.NewCounter(cfg.Tokenizer.Encoding, logger)
}

func provideArchiver(cfg *config.Config, logger *slog.Logger) chat.Archiver {
	archive := cfg.Export.Archive
	if !archive.Enabled {
		return nil
	}
	r2, err := exportarchive.NewR2Archive(exportarchive.Options{
		Endpoint:  archive.Endpoint,
		AccessKey: archive.AccessKey,
		SecretKey: archive.SecretKey,
		Bucket:    archive.Bucket,
		Region:    archive.Region,
		UseSSL:    archive.UseSSL,
	}, logger)
	if err != nil {
		logger.Error("export archive disabled", "error", err)
		return nil
	}
	logger.Info("export archive enabled", "bucket", archive.Bucket)
	return r2
}

func provideSessionStore(cfg *config.Config, logger *slog.Logger) (chat.SessionStore, func()) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		store, pool, err := openPostgresStore(cfg, logger)
		if err != nil {
			logger.Error("postgres session store unavailable, using memory store", "error", err)
			return sessionstore.NewMemoryStore(), func() {}
		}
		logger.Info("postgres session store enabled")
		return store, pool.Close
	case config.StoreValkey:
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, using memory store", "error", err)
			return sessionstore.NewMemoryStore(), func() {}
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, using memory store", "error", err)
			return sessionstore.NewMemoryStore(), func() {}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, using memory store", "error", err)
			client.Close()
			return sessionstore.NewMemoryStore(), func() {}
		}
		logger.Info("valkey session store enabled", "addr", cfg.Store.Valkey.Addr)
		return sessionstore.NewValkeyStore(client, cfg.Store.Valkey.KeyPrefix, cfg.Store.Valkey.TTL), client.Close
	default:
		logger.Info("using in-memory session store")
		return sessionstore.NewMemoryStore(), func() {}
	}
}

func openPostgresStore(cfg *config.Config, logger *slog.Logger) (*sessionstore.PostgresStore, *pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(strings.TrimSpace(cfg.Store.Postgres.DSN))
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Store.Postgres.MaxConns
	}
	if cfg.Store.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Store.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	store := sessionstore.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool, nil
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	if strings.Contains(cfg.Store.Valkey.Addr, "://") {
		return valkey.ParseURL(cfg.Store.Valkey.Addr)
	}
	return valkey.ClientOption{InitAddress: []string{cfg.Store.Valkey.Addr}}, nil
}

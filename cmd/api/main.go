package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fitrelay-platform/fitrelay/internal/api"
	"github.com/fitrelay-platform/fitrelay/internal/chat"
	"github.com/fitrelay-platform/fitrelay/internal/config"
	"github.com/fitrelay-platform/fitrelay/internal/database"
	"github.com/fitrelay-platform/fitrelay/internal/events"
	"github.com/fitrelay-platform/fitrelay/internal/history"
	"github.com/fitrelay-platform/fitrelay/internal/llm"
	"github.com/fitrelay-platform/fitrelay/internal/middleware"
	"github.com/fitrelay-platform/fitrelay/internal/orchestrator"
	iredis "github.com/fitrelay-platform/fitrelay/internal/redis"
	"github.com/fitrelay-platform/fitrelay/internal/server"
	"github.com/fitrelay-platform/fitrelay/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DB.Migrate {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}

	// Redis (optional): history cache and rate limiting
	var (
		historyCache    *history.Cache
		chatRateLimiter func(http.Handler) http.Handler
	)
	redisClient, err := newRedis(ctx, cfg)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		historyCache = history.NewCache(redisClient, history.HistoryLimit, time.Hour)
		if cfg.RateLimit.Enabled {
			limiter := middleware.NewRateLimiter(redisClient, cfg.RateLimit.MaxReqs, cfg.RateLimit.WindowSec)
			chatRateLimiter = limiter.Middleware
		}
	}

	// NATS (optional): turn and tool events
	var (
		eventsClient *events.Client
		publisher    *events.Publisher
	)
	if cfg.NATS.Enabled {
		eventsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()
		publisher = events.NewPublisher(eventsClient.JetStream())
	}

	// Conversation pipeline
	historySvc := history.NewService(history.NewPostgresRepository(pool), historyCache)
	completion := llm.NewOpenAIClient(cfg.LLM)
	dispatcher := tools.NewDispatcher(tools.NewWebhookClient(cfg.Automation))
	orch := orchestrator.New(historySvc, completion, dispatcher, publisher)
	chatHandler := chat.NewHandler(orch)

	router := api.NewRouter(pool, eventsClient, redisClient,
		api.RouterConfig{
			CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
			ChatRateLimiter:    chatRateLimiter,
		},
		api.HandlerSet{Chat: chatHandler.HandleTurn},
	)

	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	return iredis.NewClient(ctx, cfg.Redis)
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// Command docpipe runs the document-extraction pipeline as a
// standalone HTTP service: redis-backed job store, Gemini extraction,
// GCS file reads, and the gin API surface.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/docpipe/docpipe"
	"github.com/docpipe/docpipe/api"
	"github.com/docpipe/docpipe/engine"
	"github.com/docpipe/docpipe/extract/gemini"
	"github.com/docpipe/docpipe/storage/gcs"
	redisstore "github.com/docpipe/docpipe/store/redis"
	"github.com/docpipe/docpipe/webhook"
)

func main() {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	if err := run(ctx, logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	redisOpts, err := goredis.ParseURL(envOr("REDIS_URL", "redis://localhost:6379/0"))
	if err != nil {
		return err
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))

	store := redisstore.New(redisClient, redisstore.WithLogger(logger))

	cfg := docpipe.DefaultConfig()
	if n := envInt("DOCPIPE_CONCURRENCY", 0); n > 0 {
		cfg.Concurrency = n
	}
	if n := envInt("DOCPIPE_MAX_ATTEMPTS", 0); n > 0 {
		cfg.MaxAttempts = n
	}

	p, err := docpipe.New(
		docpipe.WithStore(store),
		docpipe.WithLogger(logger),
		docpipe.WithConfig(cfg),
	)
	if err != nil {
		return err
	}

	extractor, err := gemini.New(ctx,
		os.Getenv("GCP_PROJECT"),
		envOr("GCP_REGION", "us-central1"),
		gemini.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	files, err := gcs.New(ctx)
	if err != nil {
		return err
	}

	docs := newDocClient(envOr("DOCS_API_URL", "http://localhost:8081"))

	engOpts := []engine.Option{}
	if model := os.Getenv("DOCPIPE_DEFAULT_MODEL"); model != "" {
		engOpts = append(engOpts, engine.WithDefaultModel(model))
	}
	if url := os.Getenv("WEBHOOK_URL"); url != "" {
		hookOpts := []webhook.Option{webhook.WithLogger(logger)}
		if secret := os.Getenv("WEBHOOK_SECRET"); secret != "" {
			hookOpts = append(hookOpts, webhook.WithSecret(secret))
		}
		engOpts = append(engOpts, engine.WithExtension(webhook.New(url, hookOpts...)))
	}

	eng, err := engine.Build(p, docs, docs, files, extractor, engOpts...)
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	a := api.New(eng,
		api.WithLogger(logger),
		api.WithHeartbeatInterval(cfg.HeartbeatInterval),
	)

	server := &http.Server{
		Addr:              ":" + envOr("PORT", "8080"),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: SSE connections stay open indefinitely.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("http server starting", slog.String("addr", server.Addr))
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("http server error", slog.String("error", serveErr.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if err := eng.Stop(shutdownCtx); err != nil {
		logger.Error("engine stop error", slog.String("error", err.Error()))
	}

	logger.Info("shutdown complete")
	return nil
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

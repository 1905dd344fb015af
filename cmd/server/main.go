package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"go-summarizer/internal/api"
	"go-summarizer/internal/config"
	"go-summarizer/internal/logging"
	"go-summarizer/internal/metrics"
	"go-summarizer/internal/ratelimit"
	redisdb "go-summarizer/internal/redis"
	"go-summarizer/internal/summarizer"
	"go-summarizer/internal/tools"
)

func main() {
	if err := serverCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serverCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the text summarizer web UI and JSON API",
		Long: `Serve the text summarizer web UI and JSON API.

Configuration is read from the environment, seeded from a .env file when one
exists. Flags override both.

Environment variables:
  OLLAMA_URL              Upstream endpoint (default: http://localhost:11434/api/generate)
  MODEL_NAME              Model to request
  HTTP_TIMEOUT            Upstream timeout in seconds (default: 60)
  UPSTREAM_API            generate or openai (default: generate)
  OPENAI_API_KEY          Bearer token for the openai API style
  SERVER_HOST             Host to bind (default: 0.0.0.0)
  SERVER_PORT             Port to listen on (default: 7860)
  SERVER_SUBPATH          Mount everything under this path
  LOG_LEVEL, LOG_FORMAT   DEBUG|INFO|WARN|ERROR, text|json
  REDIS_ADDR              Share rate limit counters through Redis
  RATE_LIMIT_PER_MINUTE   Summarizations per client per minute, 0 disables
  CORS_ALLOWED_ORIGINS    Comma-separated origins allowed to call the API
  FETCH_ALLOW_PRIVATE     Let page fetches reach private networks (default: false)`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Host to bind (overrides SERVER_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides SERVER_PORT)")

	return cmd
}

func runServer(envFile, host string, port int) error {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyServeOverrides(cfg, host, port); err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisdb.NewClient(cfg)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, rate limiting will fail open", "addr", cfg.Redis.Addr, "error", err)
		}
	}

	limiter := ratelimit.New(cfg.RateLimit, rdb)
	if ml, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		ml.StartCleanup(ctx, time.Minute, 10*time.Minute)
	}

	client := summarizer.NewClient(&cfg.Upstream, summarizer.WithLogger(logger))
	checkModel(ctx, client, logger)

	router := api.SetupRouter(cfg, api.Deps{
		Summarizer: client,
		Pages:      tools.NewWebPageClient(cfg.Fetch),
		Limiter:    limiter,
		Metrics:    metrics.New(),
		Log:        logger,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           withCORS(router, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("starting server",
		"addr", server.Addr,
		"subpath", cfg.Server.Subpath,
		"upstream", cfg.Upstream.URL,
		"model", cfg.Upstream.Model,
		"api", cfg.Upstream.API,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// applyServeOverrides applies command line flag overrides to the config and
// validates the result.
func applyServeOverrides(cfg *config.Config, host string, port int) error {
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	return cfg.Validate()
}

// withCORS lets browsers on origins call the API. No origins, no wrapping.
func withCORS(h http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return h
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})(h)
}

// checkModel warns when the upstream is down or does not list the configured
// model. The server starts either way.
func checkModel(ctx context.Context, client *summarizer.Client, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ok, models, err := client.CheckModel(ctx)
	switch {
	case err != nil:
		logger.Warn("could not list upstream models", "error", err)
	case !ok:
		logger.Warn("configured model not found upstream", "model", client.Model(), "available", models)
	default:
		logger.Info("upstream model available", "model", client.Model())
	}
}

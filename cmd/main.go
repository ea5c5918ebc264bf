package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"summarist/internal/bot"
	"summarist/internal/broker"
	"summarist/internal/config"
	"summarist/internal/database"
	"summarist/internal/extract"
	"summarist/internal/provider"
	"summarist/internal/scheduler"
	"summarist/internal/verifier"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	prompt := provider.PromptOptions{
		RegionalLanguage: cfg.RegionalLanguage,
		FallbackLanguage: cfg.FallbackLanguage,
	}

	caller := provider.NewCaller(httpClient, log,
		provider.NewOpenAI(provider.OpenAIConfig{
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Prompt:  prompt,
		}),
		provider.NewAnthropic(provider.AnthropicConfig{
			BaseURL:   cfg.AnthropicBaseURL,
			Model:     cfg.AnthropicModel,
			Version:   cfg.AnthropicVersion,
			MaxTokens: cfg.AnthropicMaxTokens,
			Prompt:    prompt,
		}),
	)

	brk := broker.New(caller, broker.Options{
		MinRequestInterval: cfg.MinRequestInterval,
		MaxRetries:         cfg.MaxRetries,
	}, log)
	defer func() {
		brk.Stop()
		log.InfoContext(ctx, "Broker is stopped",
			"uptimeSeconds", time.Since(start).Seconds())
	}()
	log.InfoContext(ctx, "Broker is initialized",
		"minRequestIntervalSeconds", cfg.MinRequestInterval.Seconds(),
		"maxRetries", cfg.MaxRetries)

	var fetcher bot.ArticleFetcher
	if cfg.ExtractContent {
		fetcher = extract.NewFetcher(extract.FetcherConfig{
			MaxChars:  cfg.ExtractMaxChars,
			Timeout:   cfg.ExtractTimeout,
			CacheSize: cfg.ExtractCacheSize,
			CacheTTL:  cfg.ExtractCacheTTL,
		}, log)
	}

	credentialVerifier := verifier.New(brk, db, log)

	sched := scheduler.New(ctx, cfg.VerifySpec, credentialVerifier, log)
	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", cfg.VerifySpec)

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", cfg.VerifySpec,
		"timezone", scheduler.Timezone)

	if cfg.MetricsAddr != "" {
		metricsServer := startMetricsServer(ctx, cfg.MetricsAddr, log)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer shutdownCancel()

			if err = metricsServer.Shutdown(shutdownCtx); err != nil {
				log.ErrorContext(ctx, "Failed to stop metrics server",
					"error", err,
					"metricsAddr", cfg.MetricsAddr)
			}
		}()
	}

	handler := bot.NewHandler(db, brk, credentialVerifier, fetcher, cfg.UserRequestsPerMinute, log)

	botInst, err := bot.New(cfg.Token, handler, cfg.AllowedUsers, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize bot",
			"error", err,
			"allowedUsersCount", len(cfg.AllowedUsers))

		return
	}
	log.InfoContext(ctx, "Bot is initialized",
		"allowedUsersCount", len(cfg.AllowedUsers),
		"extractContent", cfg.ExtractContent)

	go func() {
		botInst.Start(ctx)
	}()
	log.InfoContext(ctx, "Bot is started")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())

	botInst.Stop()
	log.InfoContext(ctx, "Bot is stopped",
		"uptimeSeconds", time.Since(start).Seconds())
}

func startMetricsServer(ctx context.Context, addr string, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "Metrics server failed",
				"error", err,
				"metricsAddr", addr)
		}
	}()
	log.InfoContext(ctx, "Metrics server is started",
		"metricsAddr", addr)

	return srv
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lisan-ai/lisan/pkg/api"
	"github.com/lisan-ai/lisan/pkg/auth"
	"github.com/lisan-ai/lisan/pkg/cache"
	"github.com/lisan-ai/lisan/pkg/config"
	"github.com/lisan-ai/lisan/pkg/events"
	"github.com/lisan-ai/lisan/pkg/generate"
	"github.com/lisan-ai/lisan/pkg/ledger"
	"github.com/lisan-ai/lisan/pkg/lifecycle"
	"github.com/lisan-ai/lisan/pkg/logging"
	"github.com/lisan-ai/lisan/pkg/models"
	"github.com/lisan-ai/lisan/pkg/resilience"
	"github.com/lisan-ai/lisan/pkg/telemetry"
	"github.com/lisan-ai/lisan/pkg/worker"
)

const insecureDefaultSecret = "your-secret-key"

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the translation and summarization API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logging.New(cfg.Log.Level, cfg.Log.Format)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to lisan config file")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.Auth.Secret == insecureDefaultSecret {
		log.Warn().Msg("auth.secret is the built-in default; set JWT_SECRET in production")
	}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutCtx)
	}()

	client, err := generate.NewOllamaClient(cfg.Generation.URL, cfg.Generation.Model, &http.Client{})
	if err != nil {
		return fmt.Errorf("init generation client: %w", err)
	}

	pool := worker.New(cfg.Worker.Workers, cfg.Worker.QueueSize, log)
	emitter := events.NewEmitter(events.NewPublisher(ctx, cfg.Events, log), cfg.Events.AckTimeout, log, tel.Metrics)

	retry := resilience.NewRetry(resilience.RetryPolicy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Jitter:       true,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("regeneration failed, retrying")
		},
	})

	ctrl, err := lifecycle.New(lifecycle.Deps{
		Translations: cache.New[models.TranslationResult](cfg.Cache.Capacity, cfg.Cache.TTL),
		Summaries:    cache.New[models.SummaryResult](cfg.Cache.Capacity, cfg.Cache.TTL),
		Ledger:       ledger.New(),
		Adapter:      generate.NewAdapter(client, cfg.Generation.Timeout),
		Pool:         pool,
		Emitter:      emitter,
		Retry:        retry,
		Metrics:      tel.Metrics,
		Log:          log,
	})
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokens(cfg.Auth)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	srv := api.New(cfg, api.Deps{
		Controller: ctrl,
		Users:      auth.NewUserStore(0),
		Tokens:     tokens,
		Metrics:    tel.Handler(),
		Log:        log,
	})

	log.Info().
		Str("generation_url", cfg.Generation.URL).
		Str("model", cfg.Generation.Model).
		Str("events", emitter.Transport()).
		Int("workers", cfg.Worker.Workers).
		Msg("starting lisan")

	serveErr := srv.ListenAndServe(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := pool.Shutdown(drainCtx); err != nil {
		log.Warn().Err(err).Int("queued", pool.Depth()).Msg("background tasks abandoned at shutdown")
	}
	if err := emitter.Close(); err != nil {
		log.Warn().Err(err).Msg("close event transport")
	}
	log.Info().Msg("lisan stopped")
	return serveErr
}

// Skytts is a text-to-speech API daemon that synthesizes speech through a
// set of cloud and local providers with automatic phonetic fallback.
//
// Usage:
//
//	skytts [flags]
//	skytts --config /path/to/skytts.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"github.com/suraj5sky/sky-tts/internal/account"
	"github.com/suraj5sky/sky-tts/internal/catalog"
	"github.com/suraj5sky/sky-tts/internal/config"
	"github.com/suraj5sky/sky-tts/internal/dispatch"
	"github.com/suraj5sky/sky-tts/internal/health"
	"github.com/suraj5sky/sky-tts/internal/observe"
	"github.com/suraj5sky/sky-tts/internal/server"
	"github.com/suraj5sky/sky-tts/internal/store"
	"github.com/suraj5sky/sky-tts/internal/tts"
	"github.com/suraj5sky/sky-tts/internal/tts/bark"
	"github.com/suraj5sky/sky-tts/internal/tts/edge"
	"github.com/suraj5sky/sky-tts/internal/tts/gtts"
	"github.com/suraj5sky/sky-tts/internal/tts/polly"
	"github.com/suraj5sky/sky-tts/internal/tts/speechkit"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/skytts.local.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("skytts %s\n", version)
		os.Exit(0)
	}

	// A local .env is convenient in development; absence is not an error.
	_ = godotenv.Load()

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("skytts starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics pipeline; /metrics is served by the API server.
	shutdownMetrics, err := observe.InitProvider("sky-tts", version)
	if err != nil {
		slog.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = shutdownMetrics(shutdownCtx)
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	// Load the voice catalog.
	cat, err := catalog.Load()
	if err != nil {
		slog.Error("failed to load voice catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("voice catalog loaded", "languages", len(cat.Languages()))

	// Audio storage.
	files, err := store.NewFS(cfg.Storage.AudioDir, cfg.Storage.PreviewDir)
	if err != nil {
		slog.Error("failed to init audio storage", "error", err)
		os.Exit(1)
	}

	// Provider adapters. The phonetic fallback is always built; it doubles
	// as the primary for catalog entries that belong to it.
	fallback := gtts.New()
	adapters := []tts.Synthesizer{
		edge.New(edge.WithTimeout(time.Duration(cfg.Providers.Edge.TimeoutSeconds) * time.Second)),
		fallback,
	}

	if cfg.Providers.Polly.Enabled {
		pc, err := polly.New(ctx, cfg.Providers.Polly.Region,
			polly.WithEngine(cfg.Providers.Polly.Engine))
		if err != nil {
			slog.Error("failed to init polly", "error", err)
			os.Exit(1)
		}
		adapters = append(adapters, pc)
		slog.Info("polly provider enabled", "region", cfg.Providers.Polly.Region)
	}

	if cfg.Providers.Bark.Enabled {
		opts := []bark.Option{bark.WithBaseURL(cfg.Providers.Bark.Endpoint)}
		if cfg.Providers.Bark.ModelDir != "" {
			opts = append(opts, bark.WithModelDir(cfg.Providers.Bark.ModelDir))
		}
		bc := bark.New(opts...)
		adapters = append(adapters, bc)
		slog.Info("bark provider enabled",
			"endpoint", cfg.Providers.Bark.Endpoint, "models_ready", bc.Available())
	}

	if cfg.Providers.SpeechKit.Enabled {
		sk, err := speechkit.New(cfg.Providers.SpeechKit.APIKey, cfg.Providers.SpeechKit.FolderID)
		if err != nil {
			slog.Error("failed to init speechkit", "error", err)
			os.Exit(1)
		}
		defer sk.Close()
		adapters = append(adapters, sk)
		slog.Info("speechkit provider enabled")
	}

	resolver := dispatch.New(cat, adapters, fallback, files, metrics)

	// Accounts are optional; without them the API serves anonymously.
	var (
		accounts *account.Service
		webhook  *account.WebhookHandler
	)
	if cfg.Accounts.Enabled {
		db, err := account.NewPostgresStore(ctx, cfg.Accounts.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect account database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		accounts = account.NewService(db)
		if cfg.Accounts.WebhookSecret != "" {
			webhook = account.NewWebhookHandler(cfg.Accounts.WebhookSecret, accounts)
		}
		slog.Info("accounts enabled")
	}

	api := server.New(cfg.Server.Port, server.Deps{
		Resolver: resolver,
		Catalog:  cat,
		Files:    files,
		Accounts: accounts,
		Webhook:  webhook,
		Metrics:  metrics,
	})

	// Start health check server.
	providerNames := make([]string, 0, len(adapters))
	for _, a := range adapters {
		providerNames = append(providerNames, string(a.Service()))
	}
	healthServer := health.New(cfg.Server.HealthPort, providerNames)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	// Start the API server.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := api.Run(ctx); err != nil {
			slog.Error("api server failed", "error", err)
			cancel()
		}
	}()

	healthServer.SetReady(true)
	slog.Info("skytts ready",
		"port", cfg.Server.Port,
		"health_port", cfg.Server.HealthPort,
		"providers", len(adapters))

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")

	wg.Wait()
	slog.Info("skytts stopped")
}

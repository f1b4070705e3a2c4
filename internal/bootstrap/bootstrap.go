package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/devgen-studio/internal/config"
	"github.com/kirillkom/devgen-studio/internal/core/ports"
	"github.com/kirillkom/devgen-studio/internal/core/usecase"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/cache"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/github"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/llm"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/llm/openai"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/persistence"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/queue/nats"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/resilience"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/storage/s3"
	"github.com/kirillkom/devgen-studio/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Workspace *usecase.WorkspaceUseCase
	Metrics   *metrics.HTTPServerMetrics

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config) (app *App, err error) {
	app = &App{Config: cfg, Metrics: metrics.NewHTTPServerMetrics("api")}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	executor := resilience.NewExecutor(resilienceConfig(cfg)).WithStateObserver(app.Metrics.ObserveBreakerState)

	provider, err := newGenerator(ctx, cfg)
	if err != nil {
		return app, fmt.Errorf("init generator: %w", err)
	}
	generator := llm.NewResilientGenerator(cfg.LLMProvider, provider, executor, app.Metrics)

	fetcher := github.NewFetcher(github.Config{
		RawBaseURL: cfg.GitHubRawBaseURL,
		Branch:     cfg.GitHubDefaultBranch,
		EntryFile:  cfg.GitHubEntryFile,
	}, executor)

	kv, err := app.newKVStore(ctx, cfg)
	if err != nil {
		return app, fmt.Errorf("init workspace store: %w", err)
	}
	cached, err := cache.NewKVStore(kv, cfg.StoreCacheSize)
	if err != nil {
		return app, fmt.Errorf("init workspace cache: %w", err)
	}
	store := persistence.NewWorkspaceStore(cached, cfg.WorkspaceID)

	var publisher ports.RevisionPublisher
	if cfg.NATSURL != "" {
		bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ClientName:         "devgen-studio-api",
			ResilienceExecutor: executor,
		})
		if err != nil {
			return app, fmt.Errorf("init revision bus: %w", err)
		}
		app.onClose(bus.Close)
		publisher = bus
	} else {
		slog.Info("revision_publishing_disabled", "reason", "NATS_URL is empty")
	}

	app.Workspace = usecase.NewWorkspaceUseCase(store, generator, fetcher, publisher, app.Metrics, usecase.WorkspaceConfig{
		WorkspaceID:  cfg.WorkspaceID,
		PreviewDelay: cfg.PreviewDebounce,
		SavedDelay:   cfg.SavedDelay,
		IdleDelay:    cfg.IdleDelay,
	})
	app.onClose(app.Workspace.Close)

	if err := app.Workspace.Restore(ctx); err != nil {
		return app, fmt.Errorf("restore workspace: %w", err)
	}
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

func (a *App) newKVStore(ctx context.Context, cfg config.Config) (ports.KeyValueStore, error) {
	switch cfg.StoreBackend {
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.onClose(func() { _ = db.Close() })
		store := postgres.NewKVStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, nil
	case "s3":
		return s3.New(s3Config(cfg, "workspace"))
	default:
		return localfs.New(cfg.StoragePath)
	}
}

func newGenerator(ctx context.Context, cfg config.Config) (ports.MarkupGenerator, error) {
	params := llm.Params{
		Temperature: cfg.GenTemperature,
		TopP:        cfg.GenTopP,
		TopK:        cfg.GenTopK,
	}
	prompts := llm.Prompts{
		GeneratePreamble: cfg.GeneratePreamble,
		RefinePreamble:   cfg.RefinePreamble,
	}

	switch cfg.LLMProvider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Params:  params,
			Prompts: prompts,
		})
	case "ollama":
		return ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, params, prompts), nil
	default:
		return gemini.New(ctx, gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Params:  params,
			Prompts: prompts,
		})
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.BreakerEnabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	rc.BreakerFailureRatio = cfg.BreakerFailureRatio
	rc.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return rc
}

func s3Config(cfg config.Config, prefix string) s3.Config {
	return s3.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
		Prefix:    prefix,
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"menurag/internal/config"
	"menurag/internal/domain"
	"menurag/internal/embedding/cache"
	"menurag/internal/embedding/ollama"
	"menurag/internal/embedding/openai"
	"menurag/internal/embedding/tfidf"
	"menurag/internal/logging"
	"menurag/internal/menu"
	"menurag/internal/service"
)

// app bundles everything a subcommand needs.
type app struct {
	cfg      *config.AppConfig
	logger   *logging.Logger
	engine   *service.Engine
	menuPath string
	embCache *cache.Embedder // nil unless the cache is enabled
	closers  []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

func loadConfig() (*config.AppConfig, error) {
	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if menuPath != "" {
		cfg.Menu.Path = menuPath
		cfg.Menu.Format = ""
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newApp loads configuration, assembles the embedder and initializes an
// engine from the configured menu.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, os.Stderr)
	a := &app{cfg: cfg, logger: logger, menuPath: cfg.Menu.Path}

	emb, closer, err := buildEmbedder(cfg.Embedder, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	if c, ok := emb.(*cache.Embedder); ok {
		a.embCache = c
	}

	a.engine = service.NewEngine(emb,
		service.WithLogger(logger),
		service.WithCurrency(cfg.Retrieval.Currency),
	)
	if err := initializeEngine(ctx, a.engine, cfg.Menu, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func initializeEngine(ctx context.Context, e *service.Engine, mc config.MenuConfig, logger *logging.Logger) error {
	if mc.Format == "" {
		return e.InitializeFromFile(ctx, mc.Path)
	}
	format, err := menu.ParseFormat(mc.Format)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(mc.Path)
	if err != nil {
		return fmt.Errorf("read menu %s: %w", mc.Path, err)
	}
	records, err := menu.Load(ctx, raw, format, logger)
	if err != nil {
		return err
	}
	return e.Initialize(ctx, records)
}

// buildEmbedder assembles the configured embedder, wrapped in the SQLite
// cache when enabled. The returned closer may be nil.
func buildEmbedder(cfg config.EmbedderConfig, logger *logging.Logger) (domain.Embedder, func() error, error) {
	var emb domain.Embedder
	switch cfg.Type {
	case "tfidf", "":
		emb = tfidf.NewEmbedder()
	case "openai":
		if cfg.OpenAI == nil {
			return nil, nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKeyEnv:         cfg.OpenAI.APIKeyEnv,
			Model:             cfg.OpenAI.Model,
			Timeout:           time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			BatchSize:         cfg.OpenAI.BatchSize,
			MaxRetries:        cfg.OpenAI.MaxRetries,
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
			Concurrency:       cfg.OpenAI.Concurrency,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	case "ollama":
		if cfg.Ollama == nil {
			return nil, nil, fmt.Errorf("ollama embedder config missing")
		}
		client, err := ollama.New(ollama.Config{
			BaseURL:    cfg.Ollama.BaseURL,
			Model:      cfg.Ollama.Model,
			Timeout:    time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
			BatchSize:  cfg.Ollama.BatchSize,
			MaxRetries: cfg.Ollama.MaxRetries,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("ollama embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}

	if !cfg.Cache.Enabled {
		return emb, nil, nil
	}
	cached, err := cache.Open(emb, cfg.Cache.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding cache: %w", err)
	}
	return cached, cached.Close, nil
}

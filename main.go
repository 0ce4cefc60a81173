package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"news-digest/pkg/api"
	"news-digest/pkg/auth"
	"news-digest/pkg/bulletin"
	"news-digest/pkg/collector"
	"news-digest/pkg/config"
	"news-digest/pkg/db"
	"news-digest/pkg/domain"
	"news-digest/pkg/llm"
	"news-digest/pkg/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	flag.Parse()

	if err := config.LoadDotenv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited properly")
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store := db.NewClient(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.NewsCollection, cfg.Mongo.BulletinCollection).
		WithLogger(logger)
	if err := store.Connect(ctx); err != nil {
		return fmt.Errorf("connect to mongo: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("failed to close mongo client", "error", err)
		}
	}()
	if err := store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info("connected to mongo", "database", cfg.Mongo.Database)

	srcs, err := collector.FromConfig(cfg.Collector.Sources, cfg.Collector.Timeout, logger)
	if err != nil {
		return err
	}
	coll := collector.NewCollector(cfg.Collector.Workers, store, cfg.Collector.Timeout, logger)

	synth := bulletin.NewSynthesizer(store, newGenerator(cfg.Gemini, logger), logger)

	server := api.NewServer(api.Options{
		Store:       store,
		Synthesizer: synth,
		Ingest: func(ctx context.Context) domain.RunSummary {
			return coll.CollectAll(ctx, srcs)
		},
		Tokens: auth.TokenService{
			Secret:   []byte(cfg.Auth.Secret),
			Issuer:   "news-digest",
			Duration: cfg.Auth.TokenTTL,
		},
		Credentials: auth.Credentials{Username: cfg.Auth.AdminUsername, Password: cfg.Auth.AdminPassword},
		Sources:     sourceInfos(cfg.Collector.Sources),
		Defaults: api.Defaults{
			BulletinHours: cfg.Bulletin.DefaultHours,
			BulletinLimit: cfg.Bulletin.DefaultLimit,
			NewsHours:     cfg.Bulletin.NewsHours,
			NewsLimit:     cfg.Bulletin.NewsLimit,
		},
		Logger: logger,
	})

	logger.Info("configuration loaded",
		"sources", len(srcs),
		"workers", cfg.Collector.Workers,
		"addr", cfg.Server.Addr)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(cfg.Server.Addr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newGenerator returns the Gemini client, or a generator that always fails
// when no API key is configured so the rest of the API keeps working.
func newGenerator(cfg config.GeminiConfig, logger *slog.Logger) bulletin.Generator {
	gemini, err := llm.NewGemini(llm.Config{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		logger.Warn("bulletin generation disabled", "error", err)
		return bulletin.GeneratorFunc(func(ctx context.Context, _ []llm.Article) (llm.Result, error) {
			return llm.Result{}, err
		})
	}
	return gemini
}

func sourceInfos(cfgs []config.Source) []api.SourceInfo {
	out := make([]api.SourceInfo, 0, len(cfgs))
	for _, s := range cfgs {
		out = append(out, api.SourceInfo{Name: s.Name, Kind: s.Kind, URL: s.URL, Avatar: s.Avatar})
	}
	return out
}

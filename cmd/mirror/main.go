package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"news-digest/pkg/config"
	"news-digest/pkg/db"
	"news-digest/pkg/logging"
	"news-digest/pkg/replication"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to the YAML config file")
		target     = flag.String("target", "postgres", "Mirror target: postgres or supabase")
	)
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

	if err := run(context.Background(), cfg, *target, logger); err != nil {
		logger.Error("mirror failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, target string, logger *slog.Logger) error {
	mongo := db.NewClient(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.NewsCollection, cfg.Mongo.BulletinCollection).
		WithLogger(logger)
	if err := mongo.Connect(ctx); err != nil {
		return fmt.Errorf("connect to mongo: %w", err)
	}
	defer mongo.Close(ctx)

	pool := db.PoolConfig{MaxOpenConns: cfg.Mirror.Workers * 2, ConnMaxIdle: 5 * time.Minute}

	var sink replication.Target
	switch target {
	case "postgres":
		pg := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.Mirror.PostgresDSN, Pool: pool})
		if err := pg.Connect(ctx); err != nil {
			return err
		}
		defer pg.Close()
		sink = replication.NewSQLTarget(pg)

	case "supabase":
		sb := db.NewSupabaseClient(db.SupabaseConfig{
			URL:      cfg.Mirror.SupabaseURL,
			Key:      cfg.Mirror.SupabaseKey,
			Password: cfg.Mirror.SupabasePassword,
			Pool:     pool,
		})
		if err := sb.Connect(ctx); err != nil {
			return err
		}
		defer sb.Close()
		if sb.DB() != nil {
			sink = replication.NewSQLTarget(sb)
		} else {
			logger.Info("no direct database connection, using supabase REST API")
			sink = replication.NewRESTTarget(sb.SDK())
		}

	default:
		return fmt.Errorf("unknown target %q", target)
	}

	r, err := replication.NewReplicator(replication.Config{
		Source:    mongo,
		Target:    sink,
		BatchSize: cfg.Mirror.BatchSize,
		Workers:   cfg.Mirror.Workers,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	stats, err := r.Replicate(ctx)
	if err != nil {
		return err
	}
	logger.Info("mirror done",
		"target", target,
		"loaded", stats.Loaded,
		"inserted", stats.Inserted,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

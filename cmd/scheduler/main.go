package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"news-digest/pkg/config"
	"news-digest/pkg/httpclient"
	"news-digest/pkg/logging"
	"news-digest/pkg/scheduler"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to the YAML config file")
		once       = flag.Bool("once", false, "Run a single cycle and exit")
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

	sc := cfg.Scheduler
	s := scheduler.New(scheduler.Config{
		BaseURL:           sc.BaseURL,
		Interval:          sc.Interval,
		RunOnStartup:      sc.RunOnStartup,
		DelayBetweenTasks: sc.DelayBetweenTasks,
		MaxRetries:        sc.MaxRetries,
		RetryDelay:        sc.RetryDelay,
		ErrorPause:        sc.ErrorPause,
		BulletinHours:     sc.BulletinHours,
		BulletinLimit:     sc.BulletinLimit,
		BulletinSources:   sc.BulletinSources,
		Token:             sc.AdminToken,
		Username:          cfg.Auth.AdminUsername,
		Password:          cfg.Auth.AdminPassword,
	}, httpclient.NewClient(httpclient.APIClient, sc.Timeout), scheduler.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if *once {
		if err := s.RunCycle(ctx); err != nil {
			logger.Error("cycle failed", "error", err)
			os.Exit(1)
		}
		return
	}

	go func() {
		<-ctx.Done()
		logger.Info("stop signal received")
		s.Stop()
	}()

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler exited with error", "error", err)
		os.Exit(1)
	}
}

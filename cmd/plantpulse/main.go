// cmd/plantpulse/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ecodata/plantpulse/internal/api"
	"github.com/ecodata/plantpulse/internal/config"
	"github.com/ecodata/plantpulse/internal/gold"
	"github.com/ecodata/plantpulse/internal/logger"
	"github.com/ecodata/plantpulse/internal/metrics"
	"github.com/ecodata/plantpulse/internal/pipeline"
	"github.com/ecodata/plantpulse/internal/watch"
)

const usage = `plantpulse - brick plant analytics pipeline

Usage:
  plantpulse <command> [flags]

Commands:
  etl     run the pipeline once and exit
  serve   run the pipeline, then serve KPIs over HTTP, re-running on changes
  watch   re-run the pipeline whenever bronze files change
  health  check freshness of silver and gold artifacts

Flags:
  -config path   YAML configuration file (optional)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plantpulse: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "plantpulse: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	var code int
	switch command {
	case "etl":
		code = runETL(cfg, log)
	case "serve":
		code = runServe(cfg, log)
	case "watch":
		code = runWatch(cfg, log)
	case "health":
		code = runHealth(cfg, log)
	default:
		fmt.Fprint(os.Stderr, usage)
		code = 2
	}
	os.Exit(code)
}

func runETL(cfg config.Config, log *zap.Logger) int {
	registry := prometheus.NewRegistry()
	p, err := pipeline.New(cfg, log, metrics.NewPipeline(registry))
	if err != nil {
		log.Error("pipeline init failed", zap.Error(err))
		return 1
	}
	defer func() { _ = p.Close() }()

	if _, err := p.Run(context.Background()); err != nil {
		log.Error("pipeline run failed", zap.Error(err))
		return 1
	}
	return 0
}

func runServe(cfg config.Config, log *zap.Logger) int {
	registry := prometheus.NewRegistry()
	p, err := pipeline.New(cfg, log, metrics.NewPipeline(registry))
	if err != nil {
		log.Error("pipeline init failed", zap.Error(err))
		return 1
	}
	defer func() { _ = p.Close() }()

	state := api.NewState()
	server := api.New(cfg.Server, state, registry, log.Named("api"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := func(ctx context.Context) error {
		res, err := p.Run(ctx)
		if err != nil {
			return err
		}
		state.SetResult(res)
		return nil
	}
	// First run before accepting traffic; a missing bronze file is not
	// fatal in serve mode, the watcher will pick it up later.
	if err := run(ctx); err != nil {
		log.Warn("initial pipeline run failed", zap.Error(err))
	}

	w := watch.New(cfg.Paths.Bronze, cfg.Watch.Debounce, run, log.Named("watch"))
	go func() {
		if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
			log.Error("watcher stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", zap.Error(err))
		}
	}()

	if err := server.ListenAndServe(); err != nil {
		log.Error("server failed", zap.Error(err))
		return 1
	}
	return 0
}

func runWatch(cfg config.Config, log *zap.Logger) int {
	registry := prometheus.NewRegistry()
	p, err := pipeline.New(cfg, log, metrics.NewPipeline(registry))
	if err != nil {
		log.Error("pipeline init failed", zap.Error(err))
		return 1
	}
	defer func() { _ = p.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := watch.New(cfg.Paths.Bronze, cfg.Watch.Debounce, func(ctx context.Context) error {
		_, err := p.Run(ctx)
		return err
	}, log.Named("watch"))

	if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
		log.Error("watcher failed", zap.Error(err))
		return 1
	}
	return 0
}

// runHealth checks that the pipeline artifacts exist and are recent
// enough to trust. Exit code 1 means stale or missing outputs.
func runHealth(cfg config.Config, log *zap.Logger) int {
	const maxAge = 26 * time.Hour

	paths := []string{
		filepath.Join(cfg.Paths.Silver, "telemetry_silver.csv"),
		filepath.Join(cfg.Paths.Silver, "production_silver.csv"),
		filepath.Join(cfg.Paths.Silver, "events_silver.csv"),
		filepath.Join(cfg.Paths.Gold, gold.FileName),
	}

	healthy := true
	for _, path := range paths {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			fmt.Printf("MISSING  %s\n", path)
			healthy = false
		case time.Since(info.ModTime()) > maxAge:
			fmt.Printf("STALE    %s (written %s)\n", path, info.ModTime().Format(time.RFC3339))
			healthy = false
		default:
			fmt.Printf("OK       %s\n", path)
		}
	}
	if !healthy {
		log.Warn("health check failed")
		return 1
	}
	return 0
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/logavro/internal/config"
	"github.com/jittakal/logavro/internal/observability"
	"github.com/jittakal/logavro/internal/server"
)

const usageText = `usage: logavro [flags] [write|read|generate]

  write     convert the input CSV into one record file per category (default)
  read      decode the category files and print every record as JSON
  generate  write a synthetic movie log CSV to the input path

flags:
`

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	inputPath := flag.String("input", "", "input CSV file (overrides input.path)")
	outputDir := flag.String("output-dir", "", "output directory (overrides output.dir)")
	format := flag.String("format", "", "output format: binary, ocf or parquet (overrides output.format)")
	rows := flag.Int("rows", 0, "rows to generate (overrides generator.rows)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "write"
	switch flag.NArg() {
	case 0:
	case 1:
		command = flag.Arg(0)
	default:
		flag.Usage()
		return fmt.Errorf("expected one command, got %d", flag.NArg())
	}

	// Priority: CLI flag > CONFIG_PATH env var > default path
	loader := config.NewLoader()
	if *inputPath != "" {
		loader.Set("input.path", *inputPath)
	}
	if *outputDir != "" {
		loader.Set("output.dir", *outputDir)
	}
	if *format != "" {
		loader.Set("output.format", *format)
	}
	if *rows > 0 {
		loader.Set("generator.rows", *rows)
	}
	cfg, err := loader.Load(config.ResolvePath(*configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	logger.Info("starting logavro",
		"command", command,
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	status := server.NewBatchStatus()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.Metrics.Enabled {
		httpServer := server.NewServer(cfg.Observability.Metrics.Port, status, registry, logger)
		if err := httpServer.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to stop HTTP server", "error", err)
			}
		}()
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics, status: status, stdout: os.Stdout}

	switch command {
	case "write":
		err = a.write(ctx)
	case "read":
		err = a.read(ctx)
	case "generate":
		err = a.generate()
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	if err != nil {
		status.Fail(err)
		if errors.Is(err, context.Canceled) {
			logger.Info("batch interrupted")
		}
	} else {
		status.SetPhase(server.PhaseDone)
	}

	exportCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if exportErr := metrics.Export(exportCtx, observability.ExportConfig{
		TextfilePath: cfg.Observability.Metrics.TextfilePath,
		PushURL:      cfg.Observability.Metrics.PushURL,
		Job:          cfg.Observability.Metrics.Job,
	}); exportErr != nil {
		logger.Error("failed to export metrics", "error", exportErr)
	}

	return err
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"datasetbuilder/config"
	"datasetbuilder/internal/binance"
	"datasetbuilder/internal/builder"
	"datasetbuilder/internal/metrics"
	"datasetbuilder/internal/series"
	"datasetbuilder/internal/throttle"
	"datasetbuilder/logger"
	"datasetbuilder/writer"
)

const (
	exitOK          = 0
	exitSyncFailure = 1
	exitConfigError = 2
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "", "Path to configuration file (defaults by APP_ENV)")
	flag.Parse()

	path := config.ResolveConfigPath(*configPath)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"path": path}).Error("Failed to load configuration")
		os.Exit(exitConfigError)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(exitConfigError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, cfg, log)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, log *logger.Log) int {
	runID := uuid.NewString()
	mainLog := log.WithComponent("main").WithFields(logger.Fields{"run_id": runID})

	mainLog.WithFields(logger.Fields{
		"service":     cfg.Builder.Name,
		"version":     cfg.Builder.Version,
		"environment": config.AppEnvironment(),
		"symbol":      cfg.Binance.Symbol,
		"output_dir":  cfg.Datasets.OutputDir,
	}).Info("starting dataset builder")

	metrics.Configure(cfg.Metrics)
	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	adapters, err := series.NewRegistry().Build(cfg.Datasets)
	if err != nil {
		mainLog.WithError(err).Error("Failed to build series")
		return exitConfigError
	}
	if len(adapters) == 0 {
		mainLog.Warn("no series enabled; nothing to do")
		return exitOK
	}

	client := binance.NewClient(cfg.Binance)
	if cfg.Binance.CheckWeightLimit {
		if _, err := client.CheckWeightLimit(ctx, cfg.Binance.Throttle*2); err != nil {
			mainLog.WithError(err).Warn("could not read binance request weight limit")
		}
	}

	opts := []builder.Option{}
	var exporters []builder.Exporter
	if cfg.Export.Parquet.Enabled {
		exporters = append(exporters, writer.NewParquetExporter(cfg.Export.Parquet, client.Symbol()))
	}
	if cfg.Storage.S3.Enabled {
		s3Exporter, err := writer.NewS3Exporter(ctx, cfg.Storage.S3, client.Symbol(), cfg.Builder.Version, runID)
		if err != nil {
			mainLog.WithError(err).Error("failed to create S3 exporter")
			return exitConfigError
		}
		if cfg.Export.Parquet.Enabled {
			s3Exporter.WithParquetDir(cfg.Export.Parquet.Dir)
		}
		exporters = append(exporters, s3Exporter)
	} else {
		mainLog.Info("S3 storage disabled; skipping dataset mirror")
	}
	if len(exporters) > 0 {
		opts = append(opts, builder.WithExporters(exporters...))
	}

	b := builder.New(throttle.Wrap(client, cfg.Binance.Throttle), opts...)

	started := time.Now()
	results, err := b.SyncAll(ctx, adapters)
	for _, res := range results {
		mainLog.WithSeries(res.Series).WithFields(logger.Fields{
			"state":    string(res.State),
			"cycles":   res.Cycles,
			"appended": res.Appended,
			"resume":   res.Resume,
		}).Info("series result")
	}
	if err != nil {
		mainLog.WithError(err).Error("dataset build failed")
		return exitSyncFailure
	}

	mainLog.WithFields(logger.Fields{
		"series":   len(results),
		"duration": time.Since(started).String(),
	}).Info("dataset build completed")
	return exitOK
}

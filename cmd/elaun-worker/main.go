package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"elaun/internal/amqp"
	"elaun/internal/classes"
	"elaun/internal/cli"
	"elaun/internal/rates"
	"elaun/internal/report"
	rgoogle "elaun/internal/report/google"
	rmemory "elaun/internal/report/memory"
	"elaun/internal/roster"
	"elaun/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting elaun-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sink report.RowWriter
	switch cfg.ReportBackend {
	case "sheets":
		client, err := rgoogle.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets sink", "error", err)
			os.Exit(1)
		}
		sink = client
		logger.Info("Google Sheets report sink initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	default:
		sink = rmemory.New()
		logger.Info("In-memory report sink initialized")
	}

	ratesSvc := rates.NewService(repo, cfg.CacheTTL)
	rosterSvc := roster.NewService(repo, cfg.CacheSize, cfg.CacheTTL)
	classDir := classes.NewDirectory(repo, cfg.CacheSize, cfg.CacheTTL)

	syncWorker := worker.NewSyncWorker(repo, sink, classDir, ratesSvc, rosterSvc, cfg.SyncBatchSize)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// On startup, push through anything the previous run left pending.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
		// Don't exit - continue with normal operation
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeRecordSync(ctx, func(msg *amqp.RecordSyncMessage) error {
			return syncWorker.HandleSyncMessage(ctx, msg)
		})
	})

	g.Go(func() error {
		return syncWorker.RunPendingSweep(ctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}

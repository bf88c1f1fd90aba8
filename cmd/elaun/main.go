package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"elaun/internal/aggregate"
	"elaun/internal/amqp"
	"elaun/internal/cache"
	"elaun/internal/classes"
	"elaun/internal/cli"
	"elaun/internal/editor"
	apphttp "elaun/internal/http"
	"elaun/internal/rates"
	"elaun/internal/report/excel"
	"elaun/internal/roster"
	"elaun/internal/tracker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// The broker is optional for the server: records stay pending in
	// SQLite and the worker's sweep picks them up either way.
	var publisher editor.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without sync publishing", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}

	ratesSvc := rates.NewService(repo, cfg.CacheTTL)
	rosterSvc := roster.NewService(repo, cfg.CacheSize, cfg.CacheTTL)
	classDir := classes.NewDirectory(repo, cfg.CacheSize, cfg.CacheTTL)

	cacheMgr := cache.NewManager()
	cacheMgr.Register(ratesSvc)
	cacheMgr.Register(rosterSvc)
	cacheMgr.Register(classDir)
	cacheMgr.StartCleanup(10 * time.Minute)
	defer cacheMgr.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Editor:   editor.New(repo, rosterSvc, publisher),
		Reports:  aggregate.NewEngine(repo, classDir, ratesSvc),
		People:   tracker.New(repo, classDir, ratesSvc),
		Records:  repo,
		Classes:  classDir,
		Rates:    ratesSvc,
		Roster:   rosterSvc,
		Exporter: excel.New(),
		RefreshMasterData: func(ctx context.Context) error {
			rosterSvc.Refresh()
			classDir.Refresh()
			return ratesSvc.Refresh(ctx)
		},
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting elaun server", "port", cfg.Port, "db_path", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

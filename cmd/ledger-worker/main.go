package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/log"
	"ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)

	if !cfg.AMQPEnabled() {
		logger.Error("ledger-worker needs AMQP_URL to receive ledger events")
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if !backendCfg.Type.Durable() {
		logger.Warn("Memory backend is private to this process; backups will only see its own empty store",
			log.FieldBackend, backendCfg.Type)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(logger).CreateBackend(initCtx, backendCfg)
	initCancel()
	if err != nil {
		logger.Error("Failed to create backend", "error", err)
		os.Exit(1)
	}
	defer result.Close()

	if result.AMQP == nil {
		logger.Error("AMQP broker unreachable, nothing to consume")
		os.Exit(1)
	}

	w := worker.NewEventWorker(result.Ledger, worker.BackupConfig{
		Dir:       cfg.BackupDir,
		Retention: cfg.BackupRetention,
		Debounce:  cfg.BackupDebounce,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := w.StartupBackup(ctx); err != nil {
		logger.Error("Startup backup failed", "error", err, log.FieldOperation, log.OpStartup)
	}

	logger.Info("Starting ledger-worker",
		"backup_dir", cfg.BackupDir,
		"retention", cfg.BackupRetention,
		"debounce", cfg.BackupDebounce)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		err := result.AMQP.ConsumeLedgerEvents(gctx, w.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		_ = result.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped", "events_handled", w.Stats())
}

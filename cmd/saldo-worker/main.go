package main

import (
	"context"
	"errors"
	"os"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/log"
	"saldo/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting saldo-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the mirror worker")
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// The worker only reads the store; publishing stays with the API process.
	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	res, bcfg := cli.InitBackend(ctx, logger, &storeCfg)
	defer res.Cleanup()

	mirror, err := backend.NewFactory(logger.WithComponent(log.ComponentSheets)).CreateMirror(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize mirror", log.FieldError, err)
		os.Exit(1)
	}
	mirrorWorker := worker.NewMirrorWorker(res.Store, mirror)

	if cfg.MirrorReconcileOnStart {
		logger.Info("Performing startup reconcile...")
		if err := mirrorWorker.Reconcile(ctx); err != nil {
			logger.Error("Startup reconcile failed", log.FieldError, err)
		}
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer consumer.Close()

	failed := make(chan error, 1)
	go func() {
		err := consumer.Consume(ctx, mirrorWorker.HandleEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			failed <- err
		}
	}()

	select {
	case err := <-failed:
		logger.Error("Message consumption failed", log.FieldError, err)
		consumer.Close()
		res.Cleanup()
		os.Exit(1)
	case <-ctx.Done():
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

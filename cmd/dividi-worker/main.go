package main

import (
	"context"
	"os"
	"time"

	"dividi/internal/cli"
	"dividi/internal/log"
	"dividi/internal/metrics"
	"dividi/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting dividi-worker")

	if cfg.DataBackend != "sqlite" {
		logger.Warn("Worker is running on a private memory ledger; use DATA_BACKEND=sqlite to share the server's data")
	}

	m := metrics.New()
	res := cli.InitBackend(context.Background(), cfg, logger, m)

	// A nil *amqp.Client must not become a non-nil Consumer.
	var consumer worker.Consumer
	if res.AMQP != nil {
		consumer = res.AMQP
	}

	w := worker.NewPlanWorker(res.Ledger, consumer, worker.Config{
		ReconcileInterval: cfg.ReconcileInterval,
	}, logger, m)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	err := w.Run(ctx)
	if cerr := res.Cleanup(); cerr != nil {
		logger.Error("Backend cleanup error", log.FieldError, cerr)
	}
	if err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped gracefully")
}

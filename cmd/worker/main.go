package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/docvault/internal/bootstrap"
	"github.com/dharsanguruparan/docvault/internal/config"
	"github.com/dharsanguruparan/docvault/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("init dependencies")
	}
	defer app.Close()

	processor, err := app.WorkerProcessor()
	if err != nil {
		log.WithError(err).Fatal("init worker")
	}

	server := asynq.NewServer(bootstrap.RedisOpt(cfg), asynq.Config{
		Concurrency: cfg.ProcessingPool,
		Logger:      log,
	})

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.WithField("concurrency", cfg.ProcessingPool).Info("worker started")
	if err := server.Run(processor.Handler()); err != nil {
		log.WithError(err).Error("worker stopped")
		app.Close()
		os.Exit(1)
	}
}

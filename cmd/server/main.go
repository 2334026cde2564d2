// Package main runs the DocVault HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/docvault/internal/api"
	"github.com/dharsanguruparan/docvault/internal/bootstrap"
	"github.com/dharsanguruparan/docvault/internal/config"
	"github.com/dharsanguruparan/docvault/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(gin.ReleaseMode)

	// Cancel on SIGINT/SIGTERM so the HTTP server drains and dependencies close.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("init dependencies")
	}
	defer app.Close()

	srv := api.New(cfg, api.Deps{
		Documents: app.Documents,
		OCR:       app.OCR,
		Objects:   app.Objects,
	}, log)
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("server stopped")
		app.Close()
		os.Exit(1)
	}
	log.Info("server stopped")
}

package main

import (
	"context"
	"log"

	"github.com/vbonduro/fridgescan/internal/app"
	"github.com/vbonduro/fridgescan/internal/config"
	"github.com/vbonduro/fridgescan/internal/logging"
	"github.com/vbonduro/fridgescan/internal/web"
	"github.com/vbonduro/fridgescan/internal/web/templates"
)

func main() {
	cfg := config.Load()

	logger, cleanup, err := logging.New("web", cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	server := web.NewServer(a.Service, a.Scanner, a.Bus, a.Metrics, templates.FS, logger)
	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}
